// Package governance implements the participant compliance engine: a
// synchronous decision function plus the small state needed to keep the
// decision stable while a pulse trigger and a snapshot trigger both drive it.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/kckern/DaylightStation-sub013/pkg/media"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/tiers"
	"github.com/kckern/DaylightStation-sub013/pkg/zones"
)

const tracerName = "github.com/kckern/DaylightStation-sub013/pkg/governance"

// OutcomeReset tags phase changes caused by Configure or SetMedia.
const OutcomeReset Outcome = "reset"

var ErrNotConfigured = errors.New("governance: engine not configured")

// Observer receives instrumentation events. See observability.Recorder.
type Observer interface {
	ObserveEvaluation(ctx context.Context, s Summary, elapsed time.Duration)
	ObservePhaseChange(ctx context.Context, c PhaseChange)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the evaluation clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRoster sets the roster read by implicit evaluations.
func WithRoster(src roster.Source) Option {
	return func(e *Engine) { e.roster = src }
}

// WithResolver sets the zone resolver. Nil means no resolver.
func WithResolver(r roster.ZoneResolver) Option {
	return func(e *Engine) { e.chain = newSafeChain(r) }
}

// WithObserver attaches an instrumentation observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.sessionID = id
		}
	}
}

// Engine is a per-session governance engine. It is safe for concurrent use;
// evaluations are serialised and each one runs to completion, callbacks
// included, before the next begins.
type Engine struct {
	// op serialises Evaluate, Configure and SetMedia.
	op sync.Mutex
	// mu guards the fields below.
	mu sync.RWMutex

	sessionID string
	clock     Clock
	logger    *slog.Logger
	tracer    trace.Tracer
	observer  Observer
	ghostLog  *rate.Limiter

	roster roster.Source
	chain  roster.Chain

	configured bool
	governed   media.LabelSet
	grace      time.Duration
	tier       *tiers.Tier
	ranks      rankTable

	media         *media.Media
	mediaGoverned bool

	state     State
	callbacks Callbacks
}

// New creates an unconfigured engine in the Pending phase.
func New(opts ...Option) *Engine {
	e := &Engine{
		sessionID: uuid.NewString(),
		clock:     wallClock{},
		logger:    slog.Default().With("component", "governance"),
		tracer:    otel.Tracer(tracerName),
		ghostLog:  rate.NewLimiter(rate.Every(10*time.Second), 1),
		state:     State{Phase: PhasePending},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("session_id", e.sessionID)
	return e
}

// SessionID returns the engine's session id.
func (e *Engine) SessionID() string { return e.sessionID }

// SetCallbacks replaces the registered callbacks.
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	e.callbacks = cb
	e.mu.Unlock()
}

// SetResolver swaps the zone resolver. Nil removes it.
func (e *Engine) SetResolver(r roster.ZoneResolver) {
	e.mu.Lock()
	e.chain = newSafeChain(r)
	e.mu.Unlock()
}

// SetRoster swaps the roster read by implicit evaluations.
func (e *Engine) SetRoster(src roster.Source) {
	e.mu.Lock()
	e.roster = src
	e.mu.Unlock()
}

// Configure installs the session configuration and resets the state.
// Invalid tier or zone data is logged and leaves the engine unconfigured,
// which holds Pending until a valid configuration arrives.
func (e *Engine) Configure(cfg Config, ts []tiers.Tier, taxonomy zones.Taxonomy) {
	ctx := context.Background()
	e.op.Lock()
	defer e.op.Unlock()

	tier, err := selectTier(cfg, ts, taxonomy)

	e.mu.Lock()
	prev := e.state
	if err != nil {
		e.logger.ErrorContext(ctx, "governance configuration rejected, holding pending", "error", err)
		e.configured = false
		e.tier = nil
		e.ranks = nil
	} else {
		e.configured = true
		e.tier = tier
		e.ranks = newRankTable(taxonomy.RankMap())
		e.governed = media.NewLabelSet(cfg.GovernedLabels...)
		e.grace = tier.Grace(cfg.GracePeriod)
		e.mediaGoverned = media.Governed(e.media, e.governed)
		e.logger.InfoContext(ctx, "governance configured",
			"tier", tier.ID,
			"min_participants", tier.MinParticipants,
			"minimum_rank", tier.Base.MinimumRank,
			"mode", tier.Base.Mode,
			"grace", e.grace,
			"challenges", tier.HasChallenges(),
			"governed_labels", cfg.GovernedLabels,
		)
	}
	e.state = e.resetStateLocked()
	next, cbs := e.state, e.callbacks
	e.mu.Unlock()

	e.dispatchReset(ctx, cbs, prev, next)
}

// SetMedia records the playing media and resets the state. Media whose
// labels do not intersect the governed labels makes the engine inert.
func (e *Engine) SetMedia(m *media.Media) {
	ctx := context.Background()
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	prev := e.state
	if m != nil {
		cp := *m
		cp.Labels = append([]string(nil), m.Labels...)
		m = &cp
	}
	e.media = m
	e.mediaGoverned = media.Governed(m, e.governed)
	e.state = e.resetStateLocked()
	next, cbs := e.state, e.callbacks
	if m != nil {
		e.logger.InfoContext(ctx, "media changed", "media_id", m.ID, "governed", e.mediaGoverned)
	}
	e.mu.Unlock()

	e.dispatchReset(ctx, cbs, prev, next)
}

// Evaluate recomputes the phase from scratch. A nil input is Implicit.
// Evaluate never fails: every fault degrades to ghosts or Pending.
func (e *Engine) Evaluate(ctx context.Context, in Input) Summary {
	in = normalizeInput(in)
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "governance.evaluate")
	defer span.End()

	e.op.Lock()
	defer e.op.Unlock()

	prev, summary, next, cbs := e.commit(ctx, in)

	span.SetAttributes(
		attribute.String("governance.source", string(summary.Source)),
		attribute.String("governance.outcome", string(summary.Outcome)),
		attribute.String("governance.phase", string(summary.Phase)),
		attribute.Int("governance.total", summary.TotalCount),
		attribute.Int("governance.active", summary.ActiveCount),
	)

	var change *PhaseChange
	if next.Phase != prev.Phase {
		change = e.phaseChange(prev, next, summary.Source, summary.Outcome, summary.EvaluatedAt)
		e.logger.InfoContext(ctx, "phase changed",
			"from", change.From,
			"to", change.To,
			"source", change.Source,
			"outcome", change.Outcome,
			"active", summary.ActiveCount,
			"total", summary.TotalCount,
		)
	}

	if change != nil && cbs.OnPhaseChange != nil {
		cbs.OnPhaseChange(*change)
	}
	if cbs.OnPulse != nil {
		cbs.OnPulse(summary)
	}
	if !next.sameDecision(prev) && cbs.OnStateChange != nil {
		cbs.OnStateChange(next)
	}
	if e.observer != nil {
		if change != nil {
			e.observer.ObservePhaseChange(ctx, *change)
		}
		e.observer.ObserveEvaluation(ctx, summary, time.Since(started))
	}
	return summary
}

// State returns a copy of the engine state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return e.State().Phase
}

// Active reports whether governance is currently gating playback.
func (e *Engine) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.configured && e.media != nil && e.mediaGoverned
}

// Tier returns the selected tier.
func (e *Engine) Tier() (tiers.Tier, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.configured || e.tier == nil {
		return tiers.Tier{}, ErrNotConfigured
	}
	return *e.tier, nil
}

// commit evaluates in and stores the new state under mu.
func (e *Engine) commit(ctx context.Context, in Input) (prev State, s Summary, next State, cbs Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev = e.state
	s, next = e.evaluateLocked(ctx, in)
	e.state = next
	return prev, s, next, e.callbacks
}

func (e *Engine) evaluateLocked(ctx context.Context, in Input) (Summary, State) {
	now := e.clock.Now()
	prev := e.state
	s := Summary{Source: in.source(), EvaluatedAt: now}

	if !e.configured {
		next := prev
		next.LastEvaluationSource = s.Source
		s.Outcome = OutcomeUnconfigured
		s.Phase = next.Phase
		return s, next
	}

	resolved := e.resolveLocked(in)
	res := evaluateRequirement(resolved, e.tier)

	s.TierID = string(e.tier.ID)
	s.ActiveCount = res.passing
	s.TotalCount = resolved.Total
	s.GhostCount = res.ghosts
	s.Satisfied = res.satisfied
	s.Participants = res.participants
	if digest, err := digestInput(resolved, s.TierID); err == nil {
		s.InputDigest = digest
	} else {
		e.logger.DebugContext(ctx, "input digest unavailable", "error", err)
	}
	if ghosts := resolved.ghosts(); len(ghosts) > 0 && e.ghostLog.Allow() {
		e.logger.DebugContext(ctx, "participants without a resolvable zone",
			"participants", ghosts,
			"source", s.Source,
			"resolver", e.chain.HasResolver(),
		)
	}

	var next State
	switch {
	case e.media == nil:
		s.Outcome = OutcomeNoMedia
		next = prev
	case !e.mediaGoverned:
		s.Outcome = OutcomeInert
		next = State{Phase: PhaseUnlocked, SatisfiedOnce: prev.SatisfiedOnce}
	case res.noParticipants:
		s.Outcome = OutcomeNoParticipants
		next = transition(prev, res, now, e.grace)
	default:
		s.Outcome = OutcomeEvaluated
		next = transition(prev, res, now, e.grace)
	}
	next.LastEvaluationSource = s.Source
	s.Phase = next.Phase
	return s, next
}

func (e *Engine) resolveLocked(in Input) resolvedInput {
	switch v := in.(type) {
	case Explicit:
		return resolveExplicit(v, e.ranks)
	default:
		var ps []roster.Participant
		if e.roster != nil {
			ps = e.roster.Snapshot()
		}
		return resolveImplicit(ps, e.chain, e.ranks)
	}
}

func (e *Engine) resetStateLocked() State {
	s := State{Phase: PhasePending}
	if e.configured && e.media != nil && !e.mediaGoverned {
		s.Phase = PhaseUnlocked
	}
	return s
}

func (e *Engine) dispatchReset(ctx context.Context, cbs Callbacks, prev, next State) {
	if next.Phase != prev.Phase {
		change := e.phaseChange(prev, next, SourceNone, OutcomeReset, e.clock.Now())
		if cbs.OnPhaseChange != nil {
			cbs.OnPhaseChange(*change)
		}
		if e.observer != nil {
			e.observer.ObservePhaseChange(ctx, *change)
		}
	}
	if !next.sameDecision(prev) && cbs.OnStateChange != nil {
		cbs.OnStateChange(next)
	}
}

func (e *Engine) phaseChange(prev, next State, src Source, outcome Outcome, at time.Time) *PhaseChange {
	return &PhaseChange{
		ID:            uuid.NewString(),
		SessionID:     e.sessionID,
		From:          prev.Phase,
		To:            next.Phase,
		Source:        src,
		Outcome:       outcome,
		At:            at,
		GraceDeadline: next.GraceDeadline,
	}
}

func selectTier(cfg Config, ts []tiers.Tier, taxonomy zones.Taxonomy) (*tiers.Tier, error) {
	if err := taxonomy.Validate(); err != nil {
		return nil, fmt.Errorf("zone taxonomy: %w", err)
	}
	if err := tiers.ValidateAll(ts); err != nil {
		return nil, fmt.Errorf("tiers: %w", err)
	}
	if cfg.GracePeriod < 0 {
		return nil, fmt.Errorf("negative default grace period %s", cfg.GracePeriod)
	}
	sel := cfg.Selector
	if sel == nil {
		sel = tiers.FirstSelector{}
	}
	tier, err := sel.Select(ts)
	if err != nil {
		return nil, err
	}
	return tier, nil
}

// newSafeChain wraps r so a panicking resolver reads as "no value".
func newSafeChain(r roster.ZoneResolver) roster.Chain {
	return roster.NewChain(roster.Recovering(r))
}
