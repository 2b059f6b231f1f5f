package governance

import "time"

// transition computes the next state from the previous state and a
// requirement result at time now. It is pure: identical arguments always
// produce the identical state, whichever trigger asked.
func transition(prev State, res requirementResult, now time.Time, grace time.Duration) State {
	next := prev

	if res.noParticipants {
		// Nobody present: nothing to grace, nothing to lock.
		next.Phase = PhasePending
		next.SatisfiedOnce = false
		next.GraceDeadline = time.Time{}
		return next
	}

	if res.satisfied {
		// Pending, Warning and Locked all unlock immediately.
		next.Phase = PhaseUnlocked
		next.SatisfiedOnce = true
		next.GraceDeadline = time.Time{}
		return next
	}

	switch prev.Phase {
	case PhaseUnlocked:
		next.Phase = PhaseWarning
		next.GraceDeadline = now.Add(grace)
		if !now.Before(next.GraceDeadline) {
			next.Phase = PhaseLocked
			next.GraceDeadline = time.Time{}
		}
	case PhaseWarning:
		if prev.GraceDeadline.IsZero() || !now.Before(prev.GraceDeadline) {
			next.Phase = PhaseLocked
			next.GraceDeadline = time.Time{}
		}
	case PhaseLocked:
		next.GraceDeadline = time.Time{}
	default:
		next.Phase = PhasePending
		next.GraceDeadline = time.Time{}
	}
	return next
}

// GraceRemaining returns the time left before Warning turns into Locked, or
// zero when no grace window is running.
func (s State) GraceRemaining(now time.Time) time.Duration {
	if s.Phase != PhaseWarning || s.GraceDeadline.IsZero() {
		return 0
	}
	remaining := s.GraceDeadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
