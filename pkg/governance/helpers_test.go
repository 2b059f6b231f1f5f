package governance_test

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/media"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/tiers"
	"github.com/kckern/DaylightStation-sub013/pkg/zones"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testTaxonomy() zones.Taxonomy {
	return zones.MustTaxonomy(
		zones.Zone{ID: "cool", Rank: 0, Name: "Cool"},
		zones.Zone{ID: "active", Rank: 1, Name: "Active"},
		zones.Zone{ID: "warm", Rank: 2, Name: "Warm"},
		zones.Zone{ID: "hot", Rank: 3, Name: "Hot"},
	)
}

func allTier(minRank, minParticipants int) tiers.Tier {
	return tiers.Tier{
		ID:              "baseline",
		Name:            "Baseline",
		MinParticipants: minParticipants,
		Base:            tiers.Requirement{MinimumRank: minRank, Mode: tiers.ModeAll},
	}
}

func anyTier(minRank int) tiers.Tier {
	return tiers.Tier{
		ID:              "any",
		MinParticipants: 1,
		Base:            tiers.Requirement{MinimumRank: minRank, Mode: tiers.ModeAny},
	}
}

func exerciseConfig() governance.Config {
	return governance.Config{GovernedLabels: []string{"exercise"}, GracePeriod: 30 * time.Second}
}

func workout() *media.Media {
	return &media.Media{ID: "ride-1", Type: "video", Labels: []string{"exercise", "cycling"}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder captures callback traffic.
type recorder struct {
	mu      sync.Mutex
	changes []governance.PhaseChange
	pulses  []governance.Summary
	states  []governance.State
}

func (r *recorder) callbacks() governance.Callbacks {
	return governance.Callbacks{
		OnPhaseChange: func(c governance.PhaseChange) {
			r.mu.Lock()
			r.changes = append(r.changes, c)
			r.mu.Unlock()
		},
		OnPulse: func(s governance.Summary) {
			r.mu.Lock()
			r.pulses = append(r.pulses, s)
			r.mu.Unlock()
		},
		OnStateChange: func(s governance.State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) phases() []governance.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]governance.Phase, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.To
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.changes, r.pulses, r.states = nil, nil, nil
	r.mu.Unlock()
}

type fixture struct {
	engine *governance.Engine
	clock  *fakeClock
	roster *roster.Roster
	rec    *recorder
}

// newFixture builds a configured engine playing governed media.
func newFixture(tier tiers.Tier, resolver roster.ZoneResolver, ps ...roster.Participant) *fixture {
	f := &fixture{clock: newFakeClock(), roster: roster.New(ps...), rec: &recorder{}}
	f.engine = governance.New(
		governance.WithClock(f.clock),
		governance.WithLogger(quietLogger()),
		governance.WithRoster(f.roster),
		governance.WithResolver(resolver),
	)
	f.engine.Configure(exerciseConfig(), []tiers.Tier{tier}, testTaxonomy())
	f.engine.SetMedia(workout())
	f.engine.SetCallbacks(f.rec.callbacks())
	return f
}

// explicitFrom builds the snapshot-trigger input for the same world the
// implicit path sees.
func explicitFrom(ps []roster.Participant, resolver roster.ZoneResolver) governance.Explicit {
	chain := roster.NewChain(resolver)
	tax := testTaxonomy()
	ids := roster.ActiveIDs(ps)
	return governance.Explicit{
		ActiveParticipantIDs: ids,
		ZoneByParticipant:    chain.ZonesFor(ps),
		ZoneRank:             tax.RankMap(),
		ZoneInfo:             tax.InfoMap(),
		TotalCount:           len(ids),
	}
}

type mapResolver map[string]string

func (m mapResolver) Resolve(id string) (string, bool) {
	z, ok := m[id]
	return z, ok
}
