// Package media describes the content whose playback governance gates.
package media

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Media is the currently playing item.
type Media struct {
	ID     string   `yaml:"id" json:"id"`
	Type   string   `yaml:"type,omitempty" json:"type,omitempty"`
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// NormalizeLabel returns the comparison form of a label: NFC normalised,
// case folded and trimmed.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(label)))
}

// LabelSet is a set of normalised labels.
type LabelSet map[string]struct{}

// NewLabelSet normalises labels into a set. Blank labels are dropped.
func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		if n := NormalizeLabel(l); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Has reports whether label (in any spelling) is in the set.
func (s LabelSet) Has(label string) bool {
	_, ok := s[NormalizeLabel(label)]
	return ok
}

// Intersects reports whether any of labels is in the set.
func (s LabelSet) Intersects(labels []string) bool {
	for _, l := range labels {
		if s.Has(l) {
			return true
		}
	}
	return false
}

// Governed reports whether m carries at least one of the governed labels.
// A nil media is never governed.
func Governed(m *Media, governed LabelSet) bool {
	if m == nil || len(governed) == 0 {
		return false
	}
	return governed.Intersects(m.Labels)
}
