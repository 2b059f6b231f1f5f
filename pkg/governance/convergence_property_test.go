package governance_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/tiers"
)

var zoneChoices = []string{"", "cool", "active", "warm", "hot"}

// world is one decoded roster/resolver state plus how long to wait before it.
type world struct {
	participants []roster.Participant
	resolver     mapResolver
	advance      time.Duration
}

func decodeWorld(seed uint64) world {
	w := world{resolver: mapResolver{}}
	ids := []string{"p0", "p1", "p2", "p3"}
	for _, id := range ids {
		b := seed % 50
		seed /= 50
		p := roster.Participant{
			ID:       id,
			Active:   b%2 == 1,
			ZoneHint: zoneChoices[(b/2)%5],
		}
		if z := zoneChoices[(b/10)%5]; z != "" {
			w.resolver[id] = z
		}
		w.participants = append(w.participants, p)
	}
	w.advance = time.Duration(seed%40) * time.Second
	return w
}

func decodeTier(seed int) tiers.Tier {
	mode := tiers.ModeAll
	if (seed/4)%2 == 1 {
		mode = tiers.ModeAny
	}
	return tiers.Tier{
		ID:              "generated",
		MinParticipants: (seed / 8) % 4,
		Base: tiers.Requirement{
			MinimumRank: seed % 4,
			Mode:        mode,
			GracePeriod: tiers.Duration(time.Duration((seed/32)%3) * 10 * time.Second),
		},
	}
}

// TestConvergence_TriggerPathDoesNotMatter drives three engines through the
// same sequence of worlds: one only through the pulse path, one only through
// the snapshot path, one alternating. Their phases must agree at every step.
// Property: phase(world, now) is independent of the trigger.
func TestConvergence_TriggerPathDoesNotMatter(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("pulse, snapshot and mixed triggers agree", prop.ForAll(
		func(tierSeed int, seeds []uint64) bool {
			tier := decodeTier(tierSeed)
			pulse := newFixture(tier, nil)
			snapshot := newFixture(tier, nil)
			mixed := newFixture(tier, nil)

			for i, seed := range seeds {
				w := decodeWorld(seed)
				for _, f := range []*fixture{pulse, snapshot, mixed} {
					f.clock.Advance(w.advance)
					f.roster.Replace(w.participants)
					f.engine.SetResolver(w.resolver)
				}

				sp := pulse.engine.Evaluate(ctx, governance.Implicit{})
				ss := snapshot.engine.Evaluate(ctx, explicitFrom(w.participants, w.resolver))
				var sm governance.Summary
				if i%2 == 0 {
					sm = mixed.engine.Evaluate(ctx, governance.Implicit{})
				} else {
					sm = mixed.engine.Evaluate(ctx, explicitFrom(w.participants, w.resolver))
				}

				if sp.Phase != ss.Phase || sp.Phase != sm.Phase {
					return false
				}
				if sp.InputDigest != ss.InputDigest || sp.InputDigest != sm.InputDigest {
					return false
				}
				if pulse.engine.State().GraceDeadline != snapshot.engine.State().GraceDeadline {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 95),
		gen.SliceOf(gen.UInt64()),
	))

	properties.TestingRun(t)
}

// TestIdempotence_RepeatedEvaluation verifies a second evaluation of an
// unchanged world never fires OnPhaseChange.
// Property: changes(eval; eval) == changes(eval)
func TestIdempotence_RepeatedEvaluation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("second evaluation is silent", prop.ForAll(
		func(tierSeed int, seed uint64, explicitFirst bool) bool {
			tier := decodeTier(tierSeed)
			w := decodeWorld(seed)
			f := newFixture(tier, w.resolver, w.participants...)

			first, second := governance.Input(governance.Implicit{}), governance.Input(explicitFrom(w.participants, w.resolver))
			if explicitFirst {
				first, second = second, first
			}
			f.engine.Evaluate(ctx, first)
			before := len(f.rec.changes)
			f.engine.Evaluate(ctx, second)
			return before <= 1 && len(f.rec.changes) == before
		},
		gen.IntRange(0, 95),
		gen.UInt64(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
