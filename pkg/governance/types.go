package governance

import (
	"time"

	"github.com/kckern/DaylightStation-sub013/pkg/tiers"
)

// Phase is the gating decision reported to the playback controller.
type Phase string

const (
	PhasePending  Phase = "pending"
	PhaseUnlocked Phase = "unlocked"
	PhaseWarning  Phase = "warning"
	PhaseLocked   Phase = "locked"
)

// Source tags which trigger ran an evaluation. Diagnostic only.
type Source string

const (
	SourceNone     Source = ""
	SourcePulse    Source = "pulse"
	SourceSnapshot Source = "snapshot"
)

// Outcome names the rule that decided an evaluation.
type Outcome string

const (
	// OutcomeEvaluated: the requirement was evaluated and drove the phase machine.
	OutcomeEvaluated Outcome = "evaluated"
	// OutcomeNoParticipants: fewer participants than the tier floor; phase forced to Pending.
	OutcomeNoParticipants Outcome = "no_participants"
	// OutcomeInert: current media carries no governed label; phase is Unlocked.
	OutcomeInert Outcome = "inert"
	// OutcomeNoMedia: nothing is playing; phase held at Pending.
	OutcomeNoMedia Outcome = "no_media"
	// OutcomeUnconfigured: no valid configuration; phase held at Pending.
	OutcomeUnconfigured Outcome = "unconfigured"
)

// Config is the session-level governance configuration.
type Config struct {
	// GovernedLabels are the media labels that activate governance.
	GovernedLabels []string
	// GracePeriod applies to tiers that do not set their own.
	GracePeriod time.Duration
	// Selector picks the tier to evaluate. Nil selects the first configured tier.
	Selector tiers.Selector
}

// State is everything the engine carries between evaluations.
type State struct {
	Phase         Phase `json:"phase"`
	SatisfiedOnce bool  `json:"satisfied_once"`
	// GraceDeadline is zero when no grace window is running.
	GraceDeadline        time.Time `json:"grace_deadline,omitempty"`
	LastEvaluationSource Source    `json:"last_evaluation_source,omitempty"`
}

// HasDeadline reports whether a grace window is running.
func (s State) HasDeadline() bool { return !s.GraceDeadline.IsZero() }

// sameDecision compares everything except the diagnostic source tag.
func (s State) sameDecision(o State) bool {
	return s.Phase == o.Phase &&
		s.SatisfiedOnce == o.SatisfiedOnce &&
		s.GraceDeadline.Equal(o.GraceDeadline)
}

// ParticipantResult is the per-participant part of a summary.
type ParticipantResult struct {
	ID    string `json:"id"`
	Zone  string `json:"zone,omitempty"`
	Rank  int    `json:"rank"`
	Ghost bool   `json:"ghost"`
	Pass  bool   `json:"pass"`
}

// Summary is the transient result of one evaluation. It is never persisted.
type Summary struct {
	Outcome Outcome `json:"outcome"`
	TierID  string  `json:"tier_id,omitempty"`
	// ActiveCount is the number of participants meeting the requirement.
	ActiveCount int `json:"active_count"`
	// TotalCount is every present participant, ghosts included.
	TotalCount   int                 `json:"total_count"`
	GhostCount   int                 `json:"ghost_count"`
	Satisfied    bool                `json:"satisfied"`
	Participants []ParticipantResult `json:"participants,omitempty"`
	Phase        Phase               `json:"phase"`
	Source       Source              `json:"source"`
	// InputDigest fingerprints the normalised inputs. Two evaluations with the
	// same digest, tier and time reach the same phase.
	InputDigest string    `json:"input_digest,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// PhaseChange is delivered to OnPhaseChange.
type PhaseChange struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Source    Source    `json:"source,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	At        time.Time `json:"at"`
	// GraceDeadline is set when To is Warning.
	GraceDeadline time.Time `json:"grace_deadline,omitempty"`
}

// Callbacks are the engine's observers. Any of them may be nil.
// Callbacks run synchronously after the state is committed and may read the
// engine (State, Phase), but must not call Evaluate, Configure or SetMedia.
type Callbacks struct {
	OnPhaseChange func(PhaseChange)
	OnPulse       func(Summary)
	OnStateChange func(State)
}
