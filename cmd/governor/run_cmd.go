package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/kckern/DaylightStation-sub013/pkg/config"
	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/media"
	"github.com/kckern/DaylightStation-sub013/pkg/observability"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/trigger"
	"github.com/kckern/DaylightStation-sub013/pkg/zonestore"
)

// stdin is a variable to allow feeding updates in tests.
var stdin io.Reader = os.Stdin

// update is one line of roster input.
type update struct {
	Op           string               `json:"op"`
	Participant  *roster.Participant  `json:"participant,omitempty"`
	Participants []roster.Participant `json:"participants,omitempty"`
	ID           string               `json:"id,omitempty"`
	Zone         string               `json:"zone,omitempty"`
	Active       *bool                `json:"active,omitempty"`
	Media        *media.Media         `json:"media,omitempty"`
}

// runHostCmd implements `governor run`: a long-running session host. Settings
// come from the environment; roster and media updates arrive as JSON lines on
// stdin and phase changes leave as JSON lines on stdout. The session ends at
// end of input or on SIGINT/SIGTERM.
func runHostCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var configPath string
	cmd.StringVar(&configPath, "config", "", "Path to governance YAML (overrides GOVERNOR_CONFIG)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	rt, err := config.LoadRuntime()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if configPath == "" {
		configPath = rt.ConfigPath
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: rt.SlogLevel()}))
	slog.SetDefault(logger)

	g, err := config.LoadFile(configPath)
	if err != nil {
		logger.Error("governance config rejected", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obsConfig := observability.DefaultConfig()
	obsConfig.ServiceVersion = version
	obsConfig.Enabled = rt.OTelEnabled
	obsConfig.OTLPEndpoint = rt.OTelEndpoint
	obsConfig.Insecure = rt.OTelInsecure
	prov, err := observability.New(ctx, obsConfig)
	if err != nil {
		logger.Error("observability setup failed", "error", err)
		return 1
	}
	defer func() { _ = prov.Shutdown(context.Background()) }()

	rec, err := observability.NewRecorder(prov.Meter())
	if err != nil {
		logger.Error("metric setup failed", "error", err)
		return 1
	}

	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		wg.Wait()
	}()

	var resolver roster.ZoneResolver
	if rt.RedisEnabled() {
		src := zonestore.NewRedisSource(rt.RedisAddr, rt.RedisPassword, rt.RedisDB, rt.RedisZoneKey, 0)
		defer func() { _ = src.Close() }()
		cache := zonestore.NewCache(src, zonestore.WithMaxAge(3*rt.ZoneRefreshInterval))
		resolver = cache
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cache.Run(runCtx, rt.ZoneRefreshInterval)
		}()
		logger.Info("zone store enabled", "addr", rt.RedisAddr, "key", rt.RedisZoneKey)
	}

	r := roster.New()
	engine := governance.New(
		governance.WithRoster(r),
		governance.WithResolver(resolver),
		governance.WithObserver(rec),
	)

	var outMu sync.Mutex
	enc := json.NewEncoder(stdout)
	engine.SetCallbacks(governance.Callbacks{
		OnPhaseChange: func(c governance.PhaseChange) {
			outMu.Lock()
			defer outMu.Unlock()
			_ = enc.Encode(c)
		},
	})
	engine.Configure(g.Config, g.Tiers, g.Taxonomy)

	snapshot := trigger.NewSnapshot(engine, resolver, trigger.WithTaxonomy(g.Taxonomy))
	detach := snapshot.Attach(runCtx, r)
	defer detach()

	pulse, err := trigger.NewPulse(engine, rt.PulseInterval)
	if err != nil {
		logger.Error("pulse setup failed", "error", err)
		return 2
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = pulse.Run(runCtx)
	}()

	logger.Info("governor running", "session", engine.SessionID(), "pulse", rt.PulseInterval)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-runCtx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			logger.Error("reading updates failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("governor stopping", "reason", "signal")
			return 0
		case line, ok := <-lines:
			if !ok {
				logger.Info("governor stopping", "reason", "end of input")
				return 0
			}
			if err := applyUpdate(engine, r, line); err != nil {
				logger.Warn("update ignored", "error", err)
			}
		}
	}
}

func applyUpdate(engine *governance.Engine, r *roster.Roster, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var u update
	if err := json.Unmarshal([]byte(line), &u); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}

	switch u.Op {
	case "upsert":
		if u.Participant == nil {
			return fmt.Errorf("upsert: participant is required")
		}
		r.Upsert(*u.Participant)
	case "replace":
		r.Replace(u.Participants)
	case "remove":
		r.Remove(u.ID)
	case "zone":
		return r.UpdateZoneHint(u.ID, u.Zone)
	case "active":
		if u.Active == nil {
			return fmt.Errorf("active: active is required")
		}
		return r.SetActive(u.ID, *u.Active)
	case "media":
		engine.SetMedia(u.Media)
	default:
		return fmt.Errorf("unknown op %q", u.Op)
	}
	return nil
}
