package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/kckern/DaylightStation-sub013/pkg/config"
	"github.com/kckern/DaylightStation-sub013/pkg/tiers"
)

type validateReport struct {
	Config       string   `json:"config"`
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
	Version      string   `json:"version,omitempty"`
	Zones        []string `json:"zones,omitempty"`
	Tiers        []string `json:"tiers,omitempty"`
	SelectedTier string   `json:"selected_tier,omitempty"`
}

// runValidateCmd implements `governor validate`.
//
// Exit codes:
//
//	0 = configuration valid
//	1 = configuration invalid
//	2 = usage error
func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		path       string
		jsonOutput bool
	)
	cmd.StringVar(&path, "config", "", "Path to governance YAML (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --config is required")
		return 2
	}

	report := validateReport{Config: path}
	g, err := config.LoadFile(path)
	if err == nil {
		var sel tiers.Selector = tiers.FirstSelector{}
		if g.Config.Selector != nil {
			sel = g.Config.Selector
		}
		var picked *tiers.Tier
		if picked, err = sel.Select(g.Tiers); err == nil {
			report.Valid = true
			report.Version = g.Version.String()
			report.SelectedTier = string(picked.ID)
			for _, z := range g.Taxonomy.Zones() {
				report.Zones = append(report.Zones, z.ID)
			}
			for _, t := range g.Tiers {
				report.Tiers = append(report.Tiers, string(t.ID))
			}
		}
	}
	if err != nil {
		report.Error = err.Error()
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else if report.Valid {
		_, _ = fmt.Fprintf(stdout, "%sOK%s %s (version %s)\n", ColorGreen, ColorReset, path, report.Version)
		_, _ = fmt.Fprintf(stdout, "  zones: %v\n", report.Zones)
		_, _ = fmt.Fprintf(stdout, "  tiers: %v (selected: %s)\n", report.Tiers, report.SelectedTier)
	} else {
		_, _ = fmt.Fprintf(stderr, "%sINVALID%s %s\n  %s\n", ColorRed, ColorReset, path, report.Error)
	}

	if !report.Valid {
		return 1
	}
	return 0
}
