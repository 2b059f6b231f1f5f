package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/kckern/DaylightStation-sub013/pkg/config"
	"github.com/kckern/DaylightStation-sub013/pkg/simulate"
)

// runSimulateCmd implements `governor simulate`. Every event is written to
// stdout as one JSON object per line, followed by the final result.
func runSimulateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("simulate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath   string
		scenarioPath string
		summaries    bool
		verbose      bool
	)
	cmd.StringVar(&configPath, "config", "", "Path to governance YAML (REQUIRED)")
	cmd.StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML (REQUIRED)")
	cmd.BoolVar(&summaries, "summaries", true, "Include evaluation summaries in the output")
	cmd.BoolVar(&verbose, "v", false, "Log engine activity to stderr")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if configPath == "" || scenarioPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --config and --scenario are required")
		return 2
	}

	g, err := config.LoadFile(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sc, err := simulate.LoadScenario(scenarioPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	enc := json.NewEncoder(stdout)
	res, err := simulate.Run(context.Background(), g, sc, logger, func(ev simulate.Event) {
		if ev.Type == simulate.EventSummary && !summaries {
			return
		}
		_ = enc.Encode(ev)
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: simulation failed: %v\n", err)
		return 1
	}
	_ = enc.Encode(map[string]any{"type": "result", "result": res})
	return 0
}
