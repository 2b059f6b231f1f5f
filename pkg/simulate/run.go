package simulate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kckern/DaylightStation-sub013/pkg/config"
	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/playback"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/trigger"
)

// DefaultStart is the virtual clock origin when a scenario sets no start.
var DefaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Event types.
const (
	EventPhaseChange = "phase_change"
	EventSummary     = "summary"
	EventPlayer      = "player"
)

// Event is one line of simulator output.
type Event struct {
	Step        int                     `json:"step"`
	Name        string                  `json:"name,omitempty"`
	At          time.Time               `json:"at"`
	Type        string                  `json:"type"`
	PhaseChange *governance.PhaseChange `json:"phase_change,omitempty"`
	Summary     *governance.Summary     `json:"summary,omitempty"`
	Action      *playback.Action        `json:"action,omitempty"`
}

// Result is the end state of a simulation.
type Result struct {
	Final        governance.State `json:"final"`
	Evaluations  int              `json:"evaluations"`
	PhaseChanges int              `json:"phase_changes"`
	Paused       bool             `json:"paused"`
}

// tableResolver is a resolver backed by a replaceable table that can be
// switched off to simulate an outage.
type tableResolver struct {
	mu    sync.RWMutex
	zones map[string]string
	down  bool
}

func (t *tableResolver) Resolve(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.down {
		return "", false
	}
	z, ok := t.zones[id]
	return z, ok && strings.TrimSpace(z) != ""
}

func (t *tableResolver) set(zones map[string]string, down *bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if zones != nil {
		t.zones = zones
	}
	if down != nil {
		t.down = *down
	}
}

// Run replays sc against a fresh engine configured from g. emit receives
// every phase change, evaluation summary and player action in order.
func Run(ctx context.Context, g *config.Governance, sc *Scenario, logger *slog.Logger, emit func(Event)) (Result, error) {
	if err := sc.Validate(); err != nil {
		return Result{}, err
	}
	if logger == nil {
		logger = slog.Default().With("component", "simulate")
	}
	if emit == nil {
		emit = func(Event) {}
	}

	now := sc.Start
	if now.IsZero() {
		now = DefaultStart
	}
	var (
		step int
		name string
		res  Result
	)
	event := func(typ string) Event { return Event{Step: step, Name: name, At: now, Type: typ} }

	var table *tableResolver
	var resolver roster.ZoneResolver
	if sc.Resolver || sc.Zones != nil || hasZoneSteps(sc) {
		table = &tableResolver{zones: sc.Zones}
		resolver = table
	}

	initial := make([]roster.Participant, 0, len(sc.Roster))
	for _, p := range sc.Roster {
		initial = append(initial, p.roster())
	}
	r := roster.New(initial...)

	engine := governance.New(
		governance.WithClock(governance.ClockFunc(func() time.Time { return now })),
		governance.WithRoster(r),
		governance.WithResolver(resolver),
		governance.WithLogger(logger),
	)
	engine.Configure(g.Config, g.Tiers, g.Taxonomy)

	player := &playback.RecordingPlayer{Sink: func(a playback.Action) {
		ev := event(EventPlayer)
		ev.Action = &a
		emit(ev)
	}}
	gate := playback.NewGate(player, playback.WithActive(engine.Active), playback.WithLogger(logger))
	engine.SetCallbacks(gate.Callbacks(governance.Callbacks{
		OnPhaseChange: func(c governance.PhaseChange) {
			res.PhaseChanges++
			ev := event(EventPhaseChange)
			ev.PhaseChange = &c
			emit(ev)
		},
		OnPulse: func(s governance.Summary) {
			res.Evaluations++
			ev := event(EventSummary)
			ev.Summary = &s
			emit(ev)
		},
	}))
	if sc.Media != nil {
		engine.SetMedia(sc.Media)
	}

	pulse, err := trigger.NewPulse(engine, time.Second)
	if err != nil {
		return Result{}, err
	}
	snapshot := trigger.NewSnapshot(engine, resolver, trigger.WithTaxonomy(g.Taxonomy))

	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		st := &sc.Steps[i]
		step, name = i, st.Name
		now = now.Add(st.advance)

		if st.Roster != nil {
			ps := make([]roster.Participant, 0, len(st.Roster))
			for _, p := range st.Roster {
				ps = append(ps, p.roster())
			}
			r.Replace(ps)
		}
		for _, p := range st.Upsert {
			r.Upsert(p.roster())
		}
		for _, id := range st.Remove {
			r.Remove(id)
		}
		if table != nil {
			table.set(st.Zones, st.ResolverDown)
		}
		if st.Media != nil {
			engine.SetMedia(st.Media)
		}

		switch st.Trigger {
		case TriggerPulse:
			pulse.Tick(ctx)
		case TriggerSnapshot:
			snapshot.Fire(ctx, r.Snapshot())
		case TriggerBoth:
			pulse.Tick(ctx)
			snapshot.Fire(ctx, r.Snapshot())
		}
	}

	res.Final = engine.State()
	res.Paused = player.Paused()
	return res, nil
}

func hasZoneSteps(sc *Scenario) bool {
	for _, st := range sc.Steps {
		if st.Zones != nil || st.ResolverDown != nil {
			return true
		}
	}
	return false
}
