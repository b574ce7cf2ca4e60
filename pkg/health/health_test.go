package health

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

func TestRunAllUp(t *testing.T) {
	c := NewChecker()
	c.Register("redis", func(context.Context) error { return nil })
	c.Register("kafka", func(context.Context) error { return nil })

	report := c.Run(context.Background())
	if report.Status != StatusUp {
		t.Fatalf("status = %s, want up", report.Status)
	}
	if err := report.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if len(report.Components) != 2 {
		t.Errorf("components = %d, want 2", len(report.Components))
	}
}

func TestRunOneDown(t *testing.T) {
	c := NewChecker()
	c.Register("redis", func(context.Context) error { return nil })
	c.Register("postgres", func(context.Context) error { return errors.New("connection refused") })

	report := c.Run(context.Background())
	if report.Status != StatusDown {
		t.Fatalf("status = %s, want down", report.Status)
	}
	err := report.Err()
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Fatalf("Err() = %v, want ErrUnavailable", err)
	}
	if !strings.Contains(err.Error(), "postgres (connection refused)") {
		t.Errorf("error does not name the failed check: %v", err)
	}
}

func TestRunEmpty(t *testing.T) {
	if got := NewChecker().Run(context.Background()).Status; got != StatusUp {
		t.Errorf("empty checker status = %s, want up", got)
	}
}
