// Package config loads governance configuration files and runtime settings.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/tiers"
	"github.com/kckern/DaylightStation-sub013/pkg/zones"
)

var (
	ErrSchemaViolation    = errors.New("config: schema violation")
	ErrUnsupportedVersion = errors.New("config: unsupported version")
	ErrInvalidConfig      = errors.New("config: invalid configuration")
)

// SupportedVersions is the constraint a file's version must satisfy.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// DefaultGracePeriod applies when a file does not set grace_period.
const DefaultGracePeriod = 30 * time.Second

const schemaURL = "https://governor.schemas.local/governance.schema.json"

//go:embed governance.schema.json
var schemaSource string

// File is the on-disk governance configuration.
type File struct {
	Version        string       `yaml:"version" json:"version"`
	GovernedLabels []string     `yaml:"governed_labels" json:"governed_labels"`
	GracePeriod    string       `yaml:"grace_period,omitempty" json:"grace_period,omitempty"`
	TierSelector   string       `yaml:"tier_selector,omitempty" json:"tier_selector,omitempty"`
	Zones          []zones.Zone `yaml:"zones" json:"zones"`
	Tiers          []TierFile   `yaml:"tiers" json:"tiers"`
}

// TierFile is a tier as written in the file. MinZone names a zone of the
// file's taxonomy and is converted to a rank by Build.
type TierFile struct {
	ID              string            `yaml:"id" json:"id"`
	Name            string            `yaml:"name,omitempty" json:"name,omitempty"`
	MinParticipants int               `yaml:"min_participants,omitempty" json:"min_participants,omitempty"`
	MinZone         string            `yaml:"min_zone" json:"min_zone"`
	Mode            string            `yaml:"mode,omitempty" json:"mode,omitempty"`
	GracePeriod     string            `yaml:"grace_period,omitempty" json:"grace_period,omitempty"`
	Challenges      []tiers.Challenge `yaml:"challenges,omitempty" json:"challenges,omitempty"`
}

// Governance is a loaded file converted to engine inputs.
type Governance struct {
	Version  *semver.Version
	Config   governance.Config
	Tiers    []tiers.Tier
	Taxonomy zones.Taxonomy
}

// LoadFile reads and builds the governance file at path.
func LoadFile(path string) (*Governance, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("load governance config %q: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse validates data against the governance schema, decodes it and builds
// the engine inputs.
func Parse(data []byte) (*Governance, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse governance config: %w", err)
	}
	return f.Build()
}

// Build checks the version, converts zone names to ranks and compiles the
// optional tier selector.
func (f *File) Build() (*Governance, error) {
	v, err := checkVersion(f.Version)
	if err != nil {
		return nil, err
	}

	taxonomy, err := zones.NewTaxonomy(f.Zones)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	grace := DefaultGracePeriod
	if f.GracePeriod != "" {
		if grace, err = parseDuration("grace_period", f.GracePeriod); err != nil {
			return nil, err
		}
	}

	var errs []error
	ts := make([]tiers.Tier, 0, len(f.Tiers))
	for i := range f.Tiers {
		t, err := f.Tiers[i].build(taxonomy)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ts = append(ts, t)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := tiers.ValidateAll(ts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := governance.Config{
		GovernedLabels: append([]string(nil), f.GovernedLabels...),
		GracePeriod:    grace,
	}
	if strings.TrimSpace(f.TierSelector) != "" {
		sel, err := tiers.NewCELSelector(f.TierSelector)
		if err != nil {
			return nil, fmt.Errorf("%w: tier_selector: %w", ErrInvalidConfig, err)
		}
		cfg.Selector = sel
	}

	return &Governance{Version: v, Config: cfg, Tiers: ts, Taxonomy: taxonomy}, nil
}

func (tf *TierFile) build(taxonomy zones.Taxonomy) (tiers.Tier, error) {
	rank, err := taxonomy.RankOf(tf.MinZone)
	if err != nil {
		return tiers.Tier{}, fmt.Errorf("tier %q: min_zone: %w", tf.ID, err)
	}
	mode := tiers.ModeAll
	if tf.Mode != "" {
		if mode, err = tiers.ParseMode(tf.Mode); err != nil {
			return tiers.Tier{}, fmt.Errorf("tier %q: %w", tf.ID, err)
		}
	}
	t := tiers.Tier{
		ID:              tiers.TierID(tf.ID),
		Name:            tf.Name,
		MinParticipants: tf.MinParticipants,
		Base:            tiers.Requirement{MinimumRank: rank, Mode: mode},
		Challenges:      tf.Challenges,
	}
	if tf.GracePeriod != "" {
		d, err := parseDuration(fmt.Sprintf("tier %q: grace_period", tf.ID), tf.GracePeriod)
		if err != nil {
			return tiers.Tier{}, err
		}
		t.Base.GracePeriod = tiers.Duration(d)
	}
	return t, nil
}

func checkVersion(raw string) (*semver.Version, error) {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnsupportedVersion, raw, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return nil, fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, SupportedVersions)
	}
	return v, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: negative duration", ErrInvalidConfig, field)
	}
	return d, nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(schemaSource)); err != nil {
			schemaErr = fmt.Errorf("governance schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("governance schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// validateSchema checks the YAML document's structure. The document is
// re-encoded as JSON so the validator sees JSON types.
func validateSchema(data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse governance config: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return nil
}
