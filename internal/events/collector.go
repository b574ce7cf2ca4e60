// Package events buffers per-row link events and publishes them in batches.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/resilience"
)

// Publisher delivers a batch of events. *kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

const (
	statusPublished = "published"
	statusFailed    = "failed"
	statusDropped   = "dropped"
)

// Collector accumulates events and flushes them when the buffer reaches
// batchSize, on every flushInterval tick once started, and on Close.
// A failed batch is re-queued up to three batches of backlog.
type Collector struct {
	publisher     Publisher
	metrics       *metrics.Metrics
	mu            sync.Mutex
	flushMu       sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	retry         resilience.RetryConfig
	logger        *slog.Logger
	cancel        context.CancelFunc
	done          chan struct{}
}

func NewCollector(publisher Publisher, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		metrics:       m,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retry:         resilience.DefaultRetryConfig(),
		logger:        slog.Default().With("component", "event-collector"),
	}
}

// Start launches the background flush loop until Close is called.
func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Flush(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	c.logger.Info("event collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track buffers an event and flushes in the caller once the batch is full.
func (c *Collector) Track(key string, value any) {
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: key, Value: value})
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		c.Flush(context.Background())
	}
}

// Flush publishes everything buffered and returns the publish error, if any.
func (c *Collector) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		c.count(statusFailed, len(batch))
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if limit := c.batchSize * 3; len(c.buffer) > limit {
			dropped := len(c.buffer) - limit
			c.buffer = c.buffer[:limit]
			c.count(statusDropped, dropped)
			c.logger.Warn("event buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return err
	}

	c.count(statusPublished, len(batch))
	c.logger.Debug("batch flushed", "events", len(batch))
	return nil
}

// Close stops the flush loop, if started, and publishes what is left,
// retrying with backoff.
func (c *Collector) Close(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return resilience.Retry(ctx, "final event flush", c.retry, c.Flush)
}

func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) count(status string, n int) {
	if c.metrics != nil {
		c.metrics.EventsPublishedTotal.WithLabelValues(status).Add(float64(n))
	}
}
