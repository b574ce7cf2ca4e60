package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/resilience"
)

type fakePublisher struct {
	mu       sync.Mutex
	batches  [][]kafka.Event
	err      error
	failures int
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.failures > 0 {
		p.failures--
		return errors.New("leader not available")
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var keys []string
	for _, b := range p.batches {
		for _, e := range b {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func TestTrackFlushesFullBatch(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 2, time.Hour, m)

	c.Track("a", 1)
	if c.BufferLen() != 1 {
		t.Fatalf("BufferLen = %d, want 1", c.BufferLen())
	}
	c.Track("b", 2)
	if c.BufferLen() != 0 {
		t.Fatalf("BufferLen after full batch = %d, want 0", c.BufferLen())
	}
	c.Track("c", 3)
	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := pub.keys(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("published keys = %v", got)
	}
	if len(pub.batches) != 2 {
		t.Errorf("published %d batches, want 2", len(pub.batches))
	}
	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues(statusPublished)); got != 3 {
		t.Errorf("published counter = %v, want 3", got)
	}
}

func TestFlushRequeuesOnFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 10, time.Hour, nil)
	c.Track("a", 1)
	c.Track("b", 2)

	if err := c.Flush(context.Background()); err == nil {
		t.Fatal("expected publish error")
	}
	if c.BufferLen() != 2 {
		t.Fatalf("BufferLen after failure = %d, want 2", c.BufferLen())
	}

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := pub.keys(); len(got) != 2 || got[0] != "a" {
		t.Errorf("published keys = %v", got)
	}
}

func TestFlushDropsOverflow(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 2, time.Hour, m)
	for range 7 {
		c.mu.Lock()
		c.buffer = append(c.buffer, kafka.Event{Key: "k"})
		c.mu.Unlock()
	}
	_ = c.Flush(context.Background())
	if c.BufferLen() != 6 {
		t.Errorf("BufferLen = %d, want 6", c.BufferLen())
	}
	if got := testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues(statusDropped)); got != 1 {
		t.Errorf("dropped counter = %v, want 1", got)
	}
}

func TestStartFlushesOnTick(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 10*time.Millisecond, nil)
	c.Start(context.Background())
	c.Track("a", 1)

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.keys()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := pub.keys(); len(got) != 1 {
		t.Errorf("published keys = %v", got)
	}
}

func TestCloseRetriesFinalFlush(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	c := NewCollector(pub, 10, time.Hour, nil)
	c.retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	c.Track("a", 1)
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := pub.keys(); len(got) != 1 {
		t.Errorf("published keys = %v", got)
	}
}
