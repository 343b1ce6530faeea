package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// Queue is anything exposing a bounded length, such as the fan-out queue.
type Queue interface {
	Len() int
	Cap() int
}

const saturationRatio = 0.8

// ChannelCapacityWorker periodically samples the fan-out queue depth into a gauge.
// Reading len/cap is non-blocking, so sampling never slows producers down.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	queue          Queue
	metrics        *observability.Metrics
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, queue Queue,
	metrics *observability.Metrics, metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{log: log, queue: queue, metrics: metrics, metricInterval: metricInterval}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping queue sampling")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

func (w ChannelCapacityWorker) Sample() {
	length, capacity := w.queue.Len(), w.queue.Cap()
	w.metrics.QueueDepth.Set(float64(length))
	if capacity > 0 && float64(length) >= saturationRatio*float64(capacity) {
		w.log.Warn("Fan-out queue close to saturation", "length", length, "capacity", capacity)
	}
}
