package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
)

// Pipeline takes a submission through validate -> persist -> acknowledge ->
// broadcast. Persistence is the atomicity boundary: once History.Append
// succeeded the message stays in history whatever happens to the fan-out.
type Pipeline struct {
	log       *slog.Logger
	catalog   chat.Catalog
	history   contract.IHistory
	blobs     contract.IBlobStore
	moderator contract.IModerator
	typing    *TypingCoordinator
	publisher contract.IPublisher
	clock     Clock
	metrics   *observability.Metrics
}

func NewPipeline(
	log *slog.Logger,
	catalog chat.Catalog,
	history contract.IHistory,
	blobs contract.IBlobStore,
	moderator contract.IModerator,
	typing *TypingCoordinator,
	publisher contract.IPublisher,
	clock Clock,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		log:       log,
		catalog:   catalog,
		history:   history,
		blobs:     blobs,
		moderator: moderator,
		typing:    typing,
		publisher: publisher,
		clock:     clock,
		metrics:   metrics,
	}
}

// Submit persists a message exactly once and enqueues its canonical copy for
// every member of the room, sender included. Duplicated submissions (client
// retries) produce distinct messages.
func (p *Pipeline) Submit(ctx context.Context, cmd chat.SubmitMessageCommand) (chat.Receipt, error) {
	delivery := chat.NewDelivery(cmd.CorrelationID)
	log := p.log.With("room", cmd.Room, "sender", cmd.Sender, "correlation_id", cmd.CorrelationID)

	fail := func(err error) (chat.Receipt, error) {
		delivery.Fail(err)
		outcome := observability.OutcomeFailed
		if errors.IsValidation(err) {
			outcome = observability.OutcomeRejected
			log.Debug("Submission rejected", "error", err)
		} else {
			log.Error("Submission failed", "state", delivery.State, "error", err)
		}
		p.metrics.Submissions.WithLabelValues(outcome).Inc()
		return chat.Receipt{Delivery: *delivery}, err
	}

	if err := cmd.Validate(); err != nil {
		return fail(err)
	}
	if !p.catalog.Contains(cmd.Room) {
		return fail(fmt.Errorf("%w: %s", errors.ErrUnknownRoom, cmd.Room))
	}

	attachmentURL := cmd.AttachmentURL
	if cmd.Upload != nil && len(cmd.Upload.Data) > 0 {
		url, err := p.blobs.Put(ctx, cmd.Upload.Data, cmd.Upload.ContentType)
		if err != nil {
			if !errors.IsValidation(err) {
				err = fmt.Errorf("%w: store attachment: %w", errors.ErrPersistence, err)
			}
			return fail(err)
		}
		attachmentURL = url
	}

	text, _ := p.moderator.Censor(cmd.Text)
	p.typing.ClearTyping(cmd.Room, cmd.Sender)

	message, err := p.history.Append(ctx, chat.Message{
		Room:          cmd.Room,
		Sender:        cmd.Sender,
		Text:          text,
		AttachmentURL: attachmentURL,
		CreatedAt:     p.clock.Now(),
	})
	if err != nil {
		if !errors.IsPersistence(err) {
			err = fmt.Errorf("%w: %w", errors.ErrPersistence, err)
		}
		return fail(err)
	}
	delivery.MessageID = message.ID
	if err := delivery.Advance(chat.Persisted); err != nil {
		return fail(err)
	}

	if err := delivery.Advance(chat.Acknowledged); err != nil {
		return fail(err)
	}

	// The message is durable from here on. A lost broadcast is recovered by
	// members through history backfill, never by failing the submission.
	envelope := event.Envelope{Event: event.MessageReceived{Message: message, CorrelationID: cmd.CorrelationID}}
	if err := p.publisher.Publish(envelope); err != nil {
		log.Warn("Persisted message not broadcast", "message_id", message.ID, "error", err)
	}
	p.metrics.Submissions.WithLabelValues(observability.OutcomeAcknowledged).Inc()
	log.Debug("Message acknowledged", "message_id", message.ID)
	return chat.Receipt{Delivery: *delivery, Message: message}, nil
}
