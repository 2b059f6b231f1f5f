package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
)

func run(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = Run(append([]string{"governor"}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Dispatch(t *testing.T) {
	code, _, stderr := run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "USAGE")

	code, stdout, _ := run("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "governor dev")

	code, stdout, _ = run("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "simulate")

	code, _, stderr = run("fly")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: fly")
}

func TestValidateCmd(t *testing.T) {
	code, stdout, _ := run("validate", "-config", filepath.Join("testdata", "governance.yaml"))
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "OK")
	assert.Contains(t, stdout, "selected: baseline")

	code, _, stderr := run("validate", "-config", filepath.Join("testdata", "broken.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "INVALID")

	code, _, _ = run("validate")
	assert.Equal(t, 2, code)
}

func TestValidateCmd_JSON(t *testing.T) {
	code, stdout, _ := run("validate", "-json", "-config", filepath.Join("testdata", "governance.yaml"))
	require.Equal(t, 0, code)

	var report validateReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, []string{"cool", "active", "warm", "hot"}, report.Zones)
	assert.Equal(t, "baseline", report.SelectedTier)
}

func TestSimulateCmd(t *testing.T) {
	code, stdout, stderr := run("simulate",
		"-summaries=false",
		"-config", filepath.Join("testdata", "governance.yaml"),
		"-scenario", filepath.Join("testdata", "scenario.yaml"),
	)
	require.Equal(t, 0, code, stderr)

	var phases []governance.Phase
	var last map[string]any
	sc := bufio.NewScanner(strings.NewReader(stdout))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		assert.NotEqual(t, "summary", line["type"])
		if line["type"] == "phase_change" {
			pc := line["phase_change"].(map[string]any)
			phases = append(phases, governance.Phase(pc["to"].(string)))
		}
		last = line
	}
	assert.Equal(t, []governance.Phase{governance.PhaseUnlocked, governance.PhaseWarning, governance.PhaseLocked}, phases)
	require.NotNil(t, last)
	assert.Equal(t, "result", last["type"])
}

func TestSimulateCmd_MissingFlags(t *testing.T) {
	code, _, stderr := run("simulate", "-config", filepath.Join("testdata", "governance.yaml"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--scenario")
}

func TestHostCmd(t *testing.T) {
	for _, k := range []string{"REDIS_ADDR", "OTEL_ENABLED", "LOG_LEVEL", "PULSE_INTERVAL", "ZONE_REFRESH_INTERVAL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("GOVERNOR_CONFIG", filepath.Join("testdata", "governance.yaml"))
	t.Setenv("PULSE_INTERVAL", "1h")
	t.Setenv("LOG_LEVEL", "ERROR")

	prev := stdin
	t.Cleanup(func() { stdin = prev })
	stdin = strings.NewReader(strings.Join([]string{
		`{"op":"media","media":{"id":"ride-1","labels":["exercise"]}}`,
		`{"op":"upsert","participant":{"id":"alice","active":true,"zone_hint":"hot"}}`,
		`not json`,
		`{"op":"zone","id":"alice","zone":"cool"}`,
	}, "\n"))

	code, stdout, _ := run("run")
	require.Equal(t, 0, code)

	var phases []governance.Phase
	sc := bufio.NewScanner(strings.NewReader(stdout))
	for sc.Scan() {
		var pc governance.PhaseChange
		require.NoError(t, json.Unmarshal(sc.Bytes(), &pc))
		phases = append(phases, pc.To)
	}
	assert.Equal(t, []governance.Phase{governance.PhaseUnlocked, governance.PhaseWarning}, phases)
}

func TestApplyUpdate_Errors(t *testing.T) {
	tests := []string{
		`{"op":"upsert"}`,
		`{"op":"active","id":"alice"}`,
		`{"op":"zone","id":"nobody","zone":"hot"}`,
		`{"op":"teleport"}`,
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			e := governance.New()
			require.Error(t, applyUpdate(e, roster.New(), line))
		})
	}
}
