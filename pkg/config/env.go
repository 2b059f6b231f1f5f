package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Runtime holds the host settings read from the environment.
type Runtime struct {
	ConfigPath    string        `env:"GOVERNOR_CONFIG"             envDefault:"governance.yaml"`
	LogLevel      string        `env:"LOG_LEVEL"                   envDefault:"INFO"`
	PulseInterval time.Duration `env:"PULSE_INTERVAL"              envDefault:"5s"`

	RedisAddr           string        `env:"REDIS_ADDR"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB"                envDefault:"0"`
	RedisZoneKey        string        `env:"REDIS_ZONE_KEY"          envDefault:"governor:zones"`
	ZoneRefreshInterval time.Duration `env:"ZONE_REFRESH_INTERVAL"   envDefault:"1s"`

	OTelEnabled  bool   `env:"OTEL_ENABLED"                 envDefault:"false"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"  envDefault:"localhost:4317"`
	OTelInsecure bool   `env:"OTEL_INSECURE"                envDefault:"true"`
}

// LoadRuntime reads Runtime from the environment.
func LoadRuntime() (Runtime, error) {
	var r Runtime
	if err := env.Parse(&r); err != nil {
		return Runtime{}, fmt.Errorf("parse env: %w", err)
	}
	if r.PulseInterval <= 0 {
		return Runtime{}, fmt.Errorf("%w: PULSE_INTERVAL must be positive", ErrInvalidConfig)
	}
	if r.ZoneRefreshInterval <= 0 {
		return Runtime{}, fmt.Errorf("%w: ZONE_REFRESH_INTERVAL must be positive", ErrInvalidConfig)
	}
	return r, nil
}

// RedisEnabled reports whether a Redis zone store is configured.
func (r Runtime) RedisEnabled() bool { return r.RedisAddr != "" }

// SlogLevel maps LogLevel to a slog level. Unknown names read as Info.
func (r Runtime) SlogLevel() slog.Level {
	switch strings.ToUpper(strings.TrimSpace(r.LogLevel)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
