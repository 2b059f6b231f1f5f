// Package simulate replays scripted governance sessions against the engine
// with a virtual clock.
package simulate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kckern/DaylightStation-sub013/pkg/media"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
)

var ErrInvalidScenario = errors.New("simulate: invalid scenario")

// Trigger names the evaluation path a step uses.
type Trigger string

const (
	TriggerPulse    Trigger = "pulse"
	TriggerSnapshot Trigger = "snapshot"
	TriggerBoth     Trigger = "both"
	TriggerNone     Trigger = "none"
)

// Participant is a roster entry in a scenario file.
type Participant struct {
	ID       string `yaml:"id"`
	Active   *bool  `yaml:"active,omitempty"`
	ZoneHint string `yaml:"zone_hint,omitempty"`
}

func (p Participant) roster() roster.Participant {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return roster.Participant{ID: p.ID, Active: active, ZoneHint: p.ZoneHint}
}

// Step is one scripted moment of a session. Changes apply in field order,
// then the step evaluates through Trigger.
type Step struct {
	Name    string        `yaml:"name,omitempty"`
	Advance string        `yaml:"advance,omitempty"`
	Roster  []Participant `yaml:"roster,omitempty"`
	Upsert  []Participant `yaml:"upsert,omitempty"`
	Remove  []string      `yaml:"remove,omitempty"`
	// Zones replaces the resolver's table. Omitted leaves it unchanged.
	Zones map[string]string `yaml:"zones,omitempty"`
	// ResolverDown simulates a resolver outage (true) or recovery (false).
	ResolverDown *bool        `yaml:"resolver_down,omitempty"`
	Media        *media.Media `yaml:"media,omitempty"`
	Trigger      Trigger      `yaml:"trigger,omitempty"`

	advance time.Duration
}

// Scenario is a scripted session.
type Scenario struct {
	Start    time.Time         `yaml:"start,omitempty"`
	Media    *media.Media      `yaml:"media,omitempty"`
	Resolver bool              `yaml:"resolver,omitempty"`
	Zones    map[string]string `yaml:"zones,omitempty"`
	Roster   []Participant     `yaml:"roster,omitempty"`
	Steps    []Step            `yaml:"steps"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", path, err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and checks a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks step durations and triggers.
func (sc *Scenario) Validate() error {
	var errs []error
	if len(sc.Steps) == 0 {
		errs = append(errs, fmt.Errorf("%w: no steps", ErrInvalidScenario))
	}
	if sc.Media != nil && sc.Media.ID == "" {
		errs = append(errs, fmt.Errorf("%w: media id is required", ErrInvalidScenario))
	}
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.Advance != "" {
			d, err := time.ParseDuration(st.Advance)
			if err != nil || d < 0 {
				errs = append(errs, fmt.Errorf("%w: step %d: bad advance %q", ErrInvalidScenario, i, st.Advance))
			}
			st.advance = d
		}
		switch st.Trigger {
		case "":
			st.Trigger = TriggerPulse
		case TriggerPulse, TriggerSnapshot, TriggerBoth, TriggerNone:
		default:
			errs = append(errs, fmt.Errorf("%w: step %d: unknown trigger %q", ErrInvalidScenario, i, st.Trigger))
		}
	}
	return errors.Join(errs...)
}
