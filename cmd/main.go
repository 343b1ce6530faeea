package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/chat"
	relaygrpc "chat-relay/infrastructure/grpc"
	"chat-relay/infrastructure/httpserver"
	"chat-relay/infrastructure/websocket"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a server failure.
// Deferred closes still run when a step fails.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := loadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	catalog, err := chat.ParseCatalog(config.KnownRooms)
	if err != nil {
		return fmt.Errorf("invalid KNOWN_ROOMS: %w", err)
	}

	// 2. Database (BadgerDB) and search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	var index repositories.IMessageIndex
	if config.BlugeFilepath != "" {
		writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
		if err != nil {
			return fmt.Errorf("search index opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing search index...")
			_ = writer.Close()
		}()
		index = repositories.NewMessageIndex(writer, log)
	} else {
		log.Warn("BLUGE_FILEPATH is empty, message search is disabled")
	}

	history := services.NewHistoryService(log,
		repositories.NewMessageRepository(db, log), index, config.HistoryMaxPage)

	// 3. Attachments, moderation and identity
	blobs, err := storage.NewDiskBlobStore(log, config.UploadDir, config.PublicBaseURL, config.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("upload store failed: %w", err)
	}

	moderator, err := newModerator(log, config)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	identity, err := newIdentity(log, config)
	if err != nil {
		return fmt.Errorf("identity setup failed: %w", err)
	}

	// 4. Orchestration
	metrics := observability.NewMetrics()
	orchestrator := runtime.NewOrchestrator(log, runtime.Options{
		Catalog:           catalog,
		FanoutBufferSize:  config.FanoutBufferSize,
		FanoutMaxAttempts: config.FanoutMaxAttempts,
		EnqueueTimeout:    config.EnqueueTimeout,
		SinkTimeout:       config.SinkTimeout,
		TypingExpiry:      config.TypingExpiry,
		MetricInterval:    config.MetricInterval,
		RestartInterval:   config.RestartInterval,
	}, history, blobs, moderator, metrics)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := services.NewChatService(orchestrator, history)
	sockets := websocket.NewHandler(ctx, log, service, identity, websocket.SessionOptions{
		AckTimeout: config.AckTimeout,
		BufferSize: config.ConnectionBufferSize,
	})
	server := httpserver.NewServer(log, httpserver.Dependencies{
		Service:        service,
		Identity:       identity,
		Blobs:          blobs,
		UploadDir:      blobs.Dir(),
		MaxUploadBytes: config.MaxUploadBytes,
		Metrics:        metrics,
		Sockets:        sockets,
	})

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	health := relaygrpc.NewHealthServer(log)

	// 6. Start everything
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orchestrator.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return health.Serve(gctx, listener)
	})
	g.Go(func() error {
		if err := server.Listen(fmt.Sprintf("%s:%d", config.Host, config.Port)); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	health.SetServing(true)

	// 7. Wait for Stop or Error, then drain in order
	<-gctx.Done()
	log.Info("Shutting down gracefully...")
	health.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", "error", err)
	}
	orchestrator.Stop()

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

func newModerator(log *slog.Logger, config Config) (*moderation.Moderator, error) {
	var words []string
	for _, word := range strings.Split(config.CensoredWords, ",") {
		if word = strings.TrimSpace(word); word != "" {
			words = append(words, word)
		}
	}
	if config.CensoredDir != "" {
		dictionary, err := moderation.NewLoader(os.DirFS(config.CensoredDir)).LoadAll(".")
		if err != nil {
			return nil, err
		}
		log.Info("Censored words loaded", "count", len(dictionary.Words), "languages", dictionary.Languages)
		words = append(words, dictionary.Words...)
	}

	replacement := []rune(config.CharacterReplacement)
	if len(replacement) != 1 {
		return nil, fmt.Errorf("CHARACTER_REPLACEMENT must be a single character, got %q", config.CharacterReplacement)
	}
	return moderation.NewModerator(words, replacement[0], log)
}

func newIdentity(log *slog.Logger, config Config) (contract.IIdentity, error) {
	if config.JwtSecret == "" {
		log.Warn("JWT_SECRET is empty, claimed user names are trusted")
		return auth.TrustedIdentity{}, nil
	}
	tokens, err := auth.NewTokens(config.JwtSecret, 0)
	if err != nil {
		return nil, err
	}
	return auth.NewJWTIdentity(log, tokens), nil
}
