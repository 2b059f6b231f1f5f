// Package zones defines the physiological zone taxonomy used by governance.
// A taxonomy is loaded once per session and never mutated afterwards.
package zones

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyTaxonomy = errors.New("zones: taxonomy is empty")
	ErrMissingID     = errors.New("zones: zone id is required")
	ErrDuplicateZone = errors.New("zones: duplicate zone id")
	ErrUnknownZone   = errors.New("zones: unknown zone")
)

// Zone is a single intensity zone. Lower rank means less intense.
type Zone struct {
	ID       string            `yaml:"id" json:"id"`
	Rank     int               `yaml:"rank" json:"rank"`
	Name     string            `yaml:"name,omitempty" json:"name,omitempty"`
	Color    string            `yaml:"color,omitempty" json:"color,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Info is the display metadata of a zone.
type Info struct {
	Name     string            `json:"name,omitempty"`
	Color    string            `json:"color,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Info returns the display metadata of z.
func (z Zone) Info() Info {
	return Info{Name: z.Name, Color: z.Color, Metadata: z.Metadata}
}

// Taxonomy is an ordered set of zones.
type Taxonomy struct {
	zones []Zone
	byID  map[string]int
}

// NewTaxonomy builds a taxonomy from zones, ordered by rank (stable for equal ranks).
// Zone ids are matched case-insensitively.
func NewTaxonomy(zs []Zone) (Taxonomy, error) {
	t := Taxonomy{
		zones: make([]Zone, len(zs)),
		byID:  make(map[string]int, len(zs)),
	}
	copy(t.zones, zs)
	sort.SliceStable(t.zones, func(i, j int) bool { return t.zones[i].Rank < t.zones[j].Rank })

	if err := t.Validate(); err != nil {
		return Taxonomy{}, err
	}
	for i, z := range t.zones {
		t.byID[key(z.ID)] = i
	}
	return t, nil
}

// MustTaxonomy is NewTaxonomy that panics on error. Intended for tests and static tables.
func MustTaxonomy(zs ...Zone) Taxonomy {
	t, err := NewTaxonomy(zs)
	if err != nil {
		panic(err)
	}
	return t
}

// Validate reports every structural problem of the taxonomy.
func (t Taxonomy) Validate() error {
	if len(t.zones) == 0 {
		return ErrEmptyTaxonomy
	}
	var errs []error
	seen := make(map[string]bool, len(t.zones))
	for i, z := range t.zones {
		k := key(z.ID)
		if k == "" {
			errs = append(errs, fmt.Errorf("zone #%d: %w", i, ErrMissingID))
			continue
		}
		if seen[k] {
			errs = append(errs, fmt.Errorf("zone %q: %w", z.ID, ErrDuplicateZone))
		}
		seen[k] = true
	}
	return errors.Join(errs...)
}

// Len returns the number of zones.
func (t Taxonomy) Len() int { return len(t.zones) }

// Zones returns a copy of the zones in rank order.
func (t Taxonomy) Zones() []Zone {
	out := make([]Zone, len(t.zones))
	copy(out, t.zones)
	return out
}

// Get returns the zone with the given id.
func (t Taxonomy) Get(id string) (Zone, bool) {
	i, ok := t.byID[key(id)]
	if !ok {
		return Zone{}, false
	}
	return t.zones[i], true
}

// Rank returns the rank of the zone with the given id.
func (t Taxonomy) Rank(id string) (int, bool) {
	z, ok := t.Get(id)
	return z.Rank, ok
}

// RankOf resolves a zone id to its rank, wrapping ErrUnknownZone.
func (t Taxonomy) RankOf(id string) (int, error) {
	r, ok := t.Rank(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownZone, id)
	}
	return r, nil
}

// RankMap returns zone id -> rank for every zone.
func (t Taxonomy) RankMap() map[string]int {
	out := make(map[string]int, len(t.zones))
	for _, z := range t.zones {
		out[z.ID] = z.Rank
	}
	return out
}

// InfoMap returns zone id -> display metadata for every zone.
func (t Taxonomy) InfoMap() map[string]Info {
	out := make(map[string]Info, len(t.zones))
	for _, z := range t.zones {
		out[z.ID] = z.Info()
	}
	return out
}

// Canonical returns the taxonomy's spelling of id, or "" if unknown.
func (t Taxonomy) Canonical(id string) string {
	z, ok := t.Get(id)
	if !ok {
		return ""
	}
	return z.ID
}

func key(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
