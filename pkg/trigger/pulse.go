// Package trigger drives governance evaluations. Pulse evaluates on a fixed
// interval from live roster data; Snapshot evaluates on every roster update
// with a pre-assembled input. Both feed the same engine and converge.
package trigger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
)

var ErrInvalidInterval = errors.New("trigger: interval must be positive")

// Evaluator is the part of the engine a trigger needs.
type Evaluator interface {
	Evaluate(ctx context.Context, in governance.Input) governance.Summary
}

// Pulse evaluates the implicit input every interval.
type Pulse struct {
	eval     Evaluator
	interval time.Duration
	logger   *slog.Logger
}

// NewPulse creates a pulse trigger.
func NewPulse(eval Evaluator, interval time.Duration) (*Pulse, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Pulse{
		eval:     eval,
		interval: interval,
		logger:   slog.Default().With("component", "trigger.pulse"),
	}, nil
}

// Interval returns the pulse period.
func (p *Pulse) Interval() time.Duration { return p.interval }

// Tick runs one pulse evaluation.
func (p *Pulse) Tick(ctx context.Context) governance.Summary {
	return p.eval.Evaluate(ctx, governance.Implicit{})
}

// Run ticks immediately and then every interval until ctx is done.
func (p *Pulse) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.DebugContext(ctx, "pulse started", "interval", p.interval)
	p.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.DebugContext(ctx, "pulse stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}
