package playback

import (
	"sync"
	"time"
)

// Action is one Player call.
type Action struct {
	Kind     string    `json:"kind"`
	Reason   string    `json:"reason,omitempty"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// Action kinds.
const (
	ActionPause       = "pause"
	ActionResume      = "resume"
	ActionShowWarning = "show_warning"
	ActionHideWarning = "hide_warning"
	ActionShowLock    = "show_lock"
	ActionHideLock    = "hide_lock"
)

// RecordingPlayer is a Player that records every call and optionally forwards
// it to Sink. The simulator prints its actions.
type RecordingPlayer struct {
	Sink func(Action)

	mu      sync.Mutex
	actions []Action
	paused  bool
}

var _ Player = (*RecordingPlayer)(nil)

func (p *RecordingPlayer) record(a Action) {
	p.mu.Lock()
	p.actions = append(p.actions, a)
	switch a.Kind {
	case ActionPause:
		p.paused = true
	case ActionResume:
		p.paused = false
	}
	sink := p.Sink
	p.mu.Unlock()
	if sink != nil {
		sink(a)
	}
}

func (p *RecordingPlayer) Pause(reason string) { p.record(Action{Kind: ActionPause, Reason: reason}) }
func (p *RecordingPlayer) Resume()             { p.record(Action{Kind: ActionResume}) }
func (p *RecordingPlayer) ShowWarning(deadline time.Time) {
	p.record(Action{Kind: ActionShowWarning, Deadline: deadline})
}
func (p *RecordingPlayer) HideWarning() { p.record(Action{Kind: ActionHideWarning}) }
func (p *RecordingPlayer) ShowLock()    { p.record(Action{Kind: ActionShowLock}) }
func (p *RecordingPlayer) HideLock()    { p.record(Action{Kind: ActionHideLock}) }

// Actions returns a copy of the recorded calls.
func (p *RecordingPlayer) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Action(nil), p.actions...)
}

// Paused reports whether the last pause/resume call was a pause.
func (p *RecordingPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}
