// Package health runs preflight checks against the optional external
// dependencies of a run, concurrently, before any indexing starts.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check is a function that probes a single dependency.
type Check func(ctx context.Context) error

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status
	Message string
	Latency time.Duration
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status
	Components map[string]ComponentHealth
}

// Err returns nil when every component is up, otherwise an ErrUnavailable
// error naming the failed components in sorted order.
func (r Report) Err() error {
	if r.Status == StatusUp {
		return nil
	}
	var failed []string
	for name, comp := range r.Components {
		if comp.Status == StatusDown {
			failed = append(failed, fmt.Sprintf("%s (%s)", name, comp.Message))
		}
	}
	sort.Strings(failed)
	return apperrors.Newf(apperrors.ErrUnavailable, 0, "preflight failed: %s", strings.Join(failed, ", "))
}

// Checker manages registered checks and runs them concurrently.
type Checker struct {
	checks map[string]Check
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "preflight"),
	}
}

// Register adds a named check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Len reports the number of registered checks.
func (c *Checker) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.checks)
}

// Run executes all registered checks concurrently. The overall status is
// down if any component is down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()
	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch Check) {
			defer wg.Done()
			start := time.Now()
			err := ch(ctx)
			result := ComponentHealth{Status: StatusUp, Latency: time.Since(start)}
			if err != nil {
				result.Status = StatusDown
				result.Message = err.Error()
			}
			mu.Lock()
			report.Components[n] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	for name, comp := range report.Components {
		if comp.Status == StatusDown {
			report.Status = StatusDown
			c.logger.Error("dependency down", "name", name, "error", comp.Message)
			continue
		}
		c.logger.Debug("dependency up", "name", name, "latency", comp.Latency.Round(time.Millisecond))
	}
	return report
}
