package trigger_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/media"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/tiers"
	"github.com/kckern/DaylightStation-sub013/pkg/trigger"
	"github.com/kckern/DaylightStation-sub013/pkg/zones"
)

type countingEvaluator struct {
	mu     sync.Mutex
	inputs []governance.Input
}

func (c *countingEvaluator) Evaluate(_ context.Context, in governance.Input) governance.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, in)
	return governance.Summary{Outcome: governance.OutcomeEvaluated}
}

func (c *countingEvaluator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inputs)
}

func taxonomy() zones.Taxonomy {
	return zones.MustTaxonomy(
		zones.Zone{ID: "cool", Rank: 0, Name: "Cool"},
		zones.Zone{ID: "active", Rank: 1, Name: "Active"},
		zones.Zone{ID: "hot", Rank: 2, Name: "Hot"},
	)
}

func newEngine(r *roster.Roster, resolver roster.ZoneResolver) *governance.Engine {
	e := governance.New(
		governance.WithRoster(r),
		governance.WithResolver(resolver),
		governance.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	e.Configure(
		governance.Config{GovernedLabels: []string{"exercise"}, GracePeriod: time.Minute},
		[]tiers.Tier{{ID: "baseline", MinParticipants: 1, Base: tiers.Requirement{MinimumRank: 1, Mode: tiers.ModeAll}}},
		taxonomy(),
	)
	e.SetMedia(&media.Media{ID: "ride", Labels: []string{"exercise"}})
	return e
}

func TestNewPulse_InvalidInterval(t *testing.T) {
	_, err := trigger.NewPulse(&countingEvaluator{}, 0)
	require.ErrorIs(t, err, trigger.ErrInvalidInterval)
}

func TestPulse_TickUsesImplicitInput(t *testing.T) {
	ev := &countingEvaluator{}
	p, err := trigger.NewPulse(ev, time.Second)
	require.NoError(t, err)

	p.Tick(context.Background())
	require.Equal(t, 1, ev.count())
	assert.IsType(t, governance.Implicit{}, ev.inputs[0])
}

func TestPulse_RunUntilCancelled(t *testing.T) {
	ev := &countingEvaluator{}
	p, err := trigger.NewPulse(ev, 2*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return ev.count() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pulse did not stop")
	}
}

func TestSnapshot_Build(t *testing.T) {
	resolver := roster.ResolverFunc(func(id string) (string, bool) {
		if id == "alice" {
			return "hot", true
		}
		return "", false
	})
	s := trigger.NewSnapshot(&countingEvaluator{}, resolver, trigger.WithTaxonomy(taxonomy()))

	in := s.Build([]roster.Participant{
		{ID: "alice", Active: true, ZoneHint: "cool"},
		{ID: "bob", Active: true, ZoneHint: "active"},
		{ID: "carol", Active: true},
		{ID: "dave", Active: false, ZoneHint: "hot"},
	})

	assert.Equal(t, []string{"alice", "bob", "carol"}, in.ActiveParticipantIDs)
	assert.Equal(t, map[string]string{"alice": "hot", "bob": "active"}, in.ZoneByParticipant)
	assert.Equal(t, 3, in.TotalCount)
	assert.Equal(t, 2, in.ZoneRank["hot"])
	assert.Equal(t, "Active", in.ZoneInfo["active"].Name)
}

func TestSnapshot_BuildWithoutTaxonomy(t *testing.T) {
	s := trigger.NewSnapshot(&countingEvaluator{}, nil)
	in := s.Build([]roster.Participant{{ID: "alice", Active: true, ZoneHint: "hot"}})
	assert.Nil(t, in.ZoneRank)
	assert.Equal(t, map[string]string{"alice": "hot"}, in.ZoneByParticipant)
}

func TestSnapshot_AttachEvaluatesEveryUpdate(t *testing.T) {
	r := roster.New()
	e := newEngine(r, nil)
	s := trigger.NewSnapshot(e, nil)

	detach := s.Attach(context.Background(), r)

	r.Upsert(roster.Participant{ID: "alice", Active: true, ZoneHint: "hot"})
	assert.Equal(t, governance.SourceSnapshot, s.Last().Source)
	assert.Equal(t, governance.PhaseUnlocked, e.Phase())

	require.NoError(t, r.UpdateZoneHint("alice", "cool"))
	assert.Equal(t, governance.PhaseWarning, e.Phase())

	detach()
	require.NoError(t, r.UpdateZoneHint("alice", "hot"))
	assert.Equal(t, governance.PhaseWarning, e.Phase(), "detached trigger no longer evaluates")
}

// TestPulseAndSnapshotConverge runs the same roster through a pulse-only and a
// snapshot-only engine with the same resolver and compares their decisions.
func TestPulseAndSnapshotConverge(t *testing.T) {
	zonesByID := map[string]string{"alice": "hot", "bob": "cool"}
	resolver := roster.ResolverFunc(func(id string) (string, bool) {
		z, ok := zonesByID[id]
		return z, ok
	})
	ps := []roster.Participant{
		{ID: "alice", Active: true},
		{ID: "bob", Active: true, ZoneHint: "hot"},
		{ID: "carol", Active: true, ZoneHint: "active"},
		{ID: "erin", Active: true},
	}

	pulseEngine := newEngine(roster.New(ps...), resolver)
	p, err := trigger.NewPulse(pulseEngine, time.Second)
	require.NoError(t, err)

	snapEngine := newEngine(roster.New(), resolver)
	s := trigger.NewSnapshot(snapEngine, resolver, trigger.WithTaxonomy(taxonomy()))

	viaPulse := p.Tick(context.Background())
	viaSnapshot := s.Fire(context.Background(), ps)

	assert.Equal(t, viaPulse.Phase, viaSnapshot.Phase)
	assert.Equal(t, viaPulse.InputDigest, viaSnapshot.InputDigest)
	assert.Equal(t, viaPulse.Participants, viaSnapshot.Participants)
	assert.Equal(t, 1, viaPulse.GhostCount)
	assert.Equal(t, governance.SourcePulse, viaPulse.Source)
	assert.Equal(t, governance.SourceSnapshot, viaSnapshot.Source)
}
