// Package playback applies governance phases to a media player.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
)

// Player is the playback surface the gate drives.
type Player interface {
	Pause(reason string)
	Resume()
	ShowWarning(deadline time.Time)
	HideWarning()
	ShowLock()
	HideLock()
}

// Pause reasons.
const (
	ReasonLocked  = "locked"
	ReasonPending = "waiting_for_participants"
)

// Gate turns phase changes into Player calls.
type Gate struct {
	player Player
	active func() bool
	logger *slog.Logger

	mu    sync.Mutex
	phase governance.Phase
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithActive reports whether governance is gating the current media. While it
// returns false a Pending phase does not pause playback. Typically
// (*governance.Engine).Active.
func WithActive(fn func() bool) GateOption {
	return func(g *Gate) { g.active = fn }
}

// WithLogger sets the gate logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate creates a gate in the Pending phase.
func NewGate(p Player, opts ...GateOption) *Gate {
	g := &Gate{
		player: p,
		active: func() bool { return true },
		logger: slog.Default().With("component", "playback"),
		phase:  governance.PhasePending,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Phase returns the last applied phase.
func (g *Gate) Phase() governance.Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Apply drives the player for a phase change.
func (g *Gate) Apply(c governance.PhaseChange) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = c.To

	switch c.To {
	case governance.PhaseUnlocked:
		g.player.HideWarning()
		g.player.HideLock()
		g.player.Resume()
	case governance.PhaseWarning:
		g.player.ShowWarning(c.GraceDeadline)
	case governance.PhaseLocked:
		g.player.HideWarning()
		g.player.Pause(ReasonLocked)
		g.player.ShowLock()
	case governance.PhasePending:
		g.player.HideWarning()
		g.player.HideLock()
		if g.active() {
			g.player.Pause(ReasonPending)
		}
	default:
		g.logger.Warn("unknown phase", "phase", c.To)
	}
}

// Callbacks returns next with OnPhaseChange extended to apply the gate first.
func (g *Gate) Callbacks(next governance.Callbacks) governance.Callbacks {
	inner := next.OnPhaseChange
	next.OnPhaseChange = func(c governance.PhaseChange) {
		g.Apply(c)
		if inner != nil {
			inner(c)
		}
	}
	return next
}
