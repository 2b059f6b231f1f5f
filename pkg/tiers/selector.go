package tiers

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Selector picks the single tier the engine evaluates against.
type Selector interface {
	Select(ts []Tier) (*Tier, error)
}

// FirstSelector selects the first configured tier.
type FirstSelector struct{}

func (FirstSelector) Select(ts []Tier) (*Tier, error) {
	if len(ts) == 0 {
		return nil, ErrNoTiers
	}
	t := ts[0]
	return &t, nil
}

// CELSelector selects the first tier, in configured order, for which an
// operator-supplied boolean expression holds. The expression sees a single
// variable `tier` with fields id, name, min_participants, minimum_rank, mode,
// grace_seconds (-1 when unset) and challenges (count).
//
// Selection happens once per Configure; it never looks at live roster data.
type CELSelector struct {
	expr string
	prg  cel.Program
}

// NewCELSelector compiles expr. A non-bool result is reported by Select.
func NewCELSelector(expr string) (*CELSelector, error) {
	env, err := cel.NewEnv(
		cel.Variable("tier", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("tier selector: environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("tier selector: compile: %w", issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("tier selector: program: %w", err)
	}
	return &CELSelector{expr: expr, prg: prg}, nil
}

// Expression returns the source expression.
func (s *CELSelector) Expression() string { return s.expr }

func (s *CELSelector) Select(ts []Tier) (*Tier, error) {
	if len(ts) == 0 {
		return nil, ErrNoTiers
	}
	for i := range ts {
		out, _, err := s.prg.Eval(map[string]any{"tier": celInput(&ts[i])})
		if err != nil {
			return nil, fmt.Errorf("tier selector: eval tier %q: %w", ts[i].ID, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return nil, fmt.Errorf("tier selector: tier %q: result not bool", ts[i].ID)
		}
		if ok {
			t := ts[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("tier selector: no tier matched %q", s.expr)
}

func celInput(t *Tier) map[string]any {
	grace := int64(-1)
	if t.Base.GracePeriod != nil {
		grace = int64(t.Base.GracePeriod.Seconds())
	}
	return map[string]any{
		"id":               string(t.ID),
		"name":             t.Name,
		"min_participants": int64(t.MinParticipants),
		"minimum_rank":     int64(t.Base.MinimumRank),
		"mode":             string(t.Base.Mode),
		"grace_seconds":    grace,
		"challenges":       int64(len(t.Challenges)),
	}
}
