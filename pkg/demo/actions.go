package demo

import (
	"context"
	"errors"
	"time"

	"github.com/vango-dev/vstore/pkg/validate"
)

// Result is the outcome of a demo action, shaped for form handlers:
// failures carry a message and, for invalid input, per-field messages.
type Result struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Fields  validate.Errors `json:"fields,omitempty"`
}

func ok() Result {
	return Result{Success: true}
}

func failed(err error) Result {
	var fields validate.Errors
	if errors.As(err, &fields) {
		return Result{Error: fields.First(), Fields: fields}
	}
	return Result{Error: err.Error()}
}

// ActionOption configures the simulated backends of action stores.
type ActionOption func(*actionConfig)

type actionConfig struct {
	latency time.Duration
	now     func() time.Time
}

func defaultActionConfig() actionConfig {
	return actionConfig{now: time.Now}
}

// WithLatency delays every action by d to mimic a remote call.
// Default: 0.
func WithLatency(d time.Duration) ActionOption {
	return func(c *actionConfig) {
		c.latency = d
	}
}

// WithClock sets the time source for ids and timestamps.
func WithClock(now func() time.Time) ActionOption {
	return func(c *actionConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// wait sleeps for the configured latency or until ctx is done.
func (c actionConfig) wait(ctx context.Context) error {
	if c.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
