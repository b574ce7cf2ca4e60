// Package resilience guards calls to optional external services: a breaker
// that stops calling a failing dependency for a cool-down period, and
// exponential-backoff retry.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Breaker.Do while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Cooldown is how long the breaker stays open before one probe call.
	Cooldown time.Duration
}

// Breaker is closed while calls succeed, opens after Threshold consecutive
// failures and lets a single probe through once Cooldown has passed.
type Breaker struct {
	name     string
	cfg      BreakerConfig
	mu       sync.Mutex
	failures int
	open     bool
	probing  bool
	openedAt time.Time
	now      func() time.Time
	logger   *slog.Logger
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	if b.probing || b.now().Sub(b.openedAt) < b.cfg.Cooldown {
		return fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	b.probing = true
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	wasProbe := b.probing
	b.probing = false
	if err == nil {
		if b.open {
			b.logger.Info("circuit closed")
		}
		b.open = false
		b.failures = 0
		return
	}
	b.failures++
	if wasProbe || (!b.open && b.failures >= b.cfg.Threshold) {
		if !b.open {
			b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "cooldown", b.cfg.Cooldown)
		}
		b.open = true
		b.openedAt = b.now()
	}
}
