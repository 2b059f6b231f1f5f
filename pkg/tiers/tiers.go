// Package tiers defines requirement tiers for governed sessions.
// A tier maps a participant floor to the zone requirement the group must meet.
package tiers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTier = errors.New("tiers: invalid tier")
	ErrNoTiers     = errors.New("tiers: no tiers configured")
)

// TierID identifies a requirement tier.
type TierID string

// Mode selects how individual results combine into the group result.
type Mode string

const (
	ModeAll Mode = "all"
	ModeAny Mode = "any"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAll:
		return ModeAll, nil
	case ModeAny:
		return ModeAny, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidTier, s)
	}
}

// Requirement is the baseline condition of a tier.
type Requirement struct {
	MinimumRank int
	Mode        Mode
	// GracePeriod is how long the engine holds Warning before Locked.
	// Nil means the governance default applies.
	GracePeriod *time.Duration
}

// Challenge is opaque extension data carried by a tier. The engine stores it
// but never evaluates it.
type Challenge map[string]any

// Tier is a single requirement tier.
type Tier struct {
	ID              TierID
	Name            string
	MinParticipants int
	Base            Requirement
	Challenges      []Challenge
}

// Validate reports every structural problem of the tier.
func (t *Tier) Validate() error {
	var errs []error
	if strings.TrimSpace(string(t.ID)) == "" {
		errs = append(errs, fmt.Errorf("%w: id is required", ErrInvalidTier))
	}
	if t.MinParticipants < 0 {
		errs = append(errs, fmt.Errorf("%w: tier %q: min participants %d < 0", ErrInvalidTier, t.ID, t.MinParticipants))
	}
	if t.Base.Mode != ModeAll && t.Base.Mode != ModeAny {
		errs = append(errs, fmt.Errorf("%w: tier %q: unknown mode %q", ErrInvalidTier, t.ID, t.Base.Mode))
	}
	if t.Base.GracePeriod != nil && *t.Base.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("%w: tier %q: negative grace period", ErrInvalidTier, t.ID))
	}
	return errors.Join(errs...)
}

// Grace returns the tier's grace period, or def when the tier does not set one.
func (t *Tier) Grace(def time.Duration) time.Duration {
	if t.Base.GracePeriod == nil {
		return def
	}
	return *t.Base.GracePeriod
}

// EffectiveMinParticipants is the participant floor used for the no-participants
// check. An empty group never has anything to govern, so the floor is at least one.
func (t *Tier) EffectiveMinParticipants() int {
	if t.MinParticipants < 1 {
		return 1
	}
	return t.MinParticipants
}

// HasChallenges reports whether the tier carries extension data.
func (t *Tier) HasChallenges() bool {
	return len(t.Challenges) > 0
}

// ValidateAll validates a tier list, including id uniqueness.
func ValidateAll(ts []Tier) error {
	if len(ts) == 0 {
		return ErrNoTiers
	}
	var errs []error
	seen := make(map[TierID]bool, len(ts))
	for i := range ts {
		if err := ts[i].Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[ts[i].ID] {
			errs = append(errs, fmt.Errorf("%w: duplicate id %q", ErrInvalidTier, ts[i].ID))
		}
		seen[ts[i].ID] = true
	}
	return errors.Join(errs...)
}

// Duration is a convenience for building a GracePeriod pointer.
func Duration(d time.Duration) *time.Duration {
	return &d
}
