package governance

import "github.com/kckern/DaylightStation-sub013/pkg/tiers"

// requirementResult is the evaluator output before the phase machine runs.
type requirementResult struct {
	noParticipants bool
	satisfied      bool
	passing        int
	ghosts         int
	participants   []ParticipantResult
}

// evaluateRequirement applies the participant floor and the tier's base
// requirement to resolved inputs. Ghosts count toward the floor but never
// toward compliance.
func evaluateRequirement(in resolvedInput, tier *tiers.Tier) requirementResult {
	res := requirementResult{participants: make([]ParticipantResult, 0, len(in.Participants))}

	survivors := 0
	for _, p := range in.Participants {
		pr := ParticipantResult{ID: p.ID, Zone: p.Zone, Ghost: p.ghost()}
		if pr.Ghost {
			res.ghosts++
		} else {
			survivors++
			pr.Rank = *p.Rank
			pr.Pass = pr.Rank >= tier.Base.MinimumRank
			if pr.Pass {
				res.passing++
			}
		}
		res.participants = append(res.participants, pr)
	}

	if in.Total < tier.EffectiveMinParticipants() {
		res.noParticipants = true
		return res
	}

	switch tier.Base.Mode {
	case tiers.ModeAll:
		// Absence is not compliance.
		res.satisfied = survivors > 0 && res.passing == survivors
	case tiers.ModeAny:
		res.satisfied = res.passing > 0
	}
	return res
}
