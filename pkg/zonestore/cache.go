package zonestore

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Cache is an in-memory zone snapshot implementing roster.ZoneResolver.
// Refresh replaces the snapshot from the Source; Resolve only reads memory.
type Cache struct {
	src    Source
	logger *slog.Logger
	now    func() time.Time
	maxAge time.Duration

	mu       sync.RWMutex
	zones    map[string]string
	loadedAt time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNow sets the time source used for staleness checks.
func WithNow(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxAge makes Resolve report nothing when the last successful refresh is
// older than d. The engine then falls back to roster hints.
func WithMaxAge(d time.Duration) CacheOption {
	return func(c *Cache) { c.maxAge = d }
}

// NewCache creates an empty cache over src.
func NewCache(src Source, opts ...CacheOption) *Cache {
	c := &Cache{
		src:    src,
		logger: slog.Default().With("component", "zonestore"),
		now:    time.Now,
		zones:  map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Resolve returns the cached zone of a participant.
func (c *Cache) Resolve(participantID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.staleLocked() {
		return "", false
	}
	z, ok := c.zones[strings.TrimSpace(participantID)]
	if !ok || strings.TrimSpace(z) == "" {
		return "", false
	}
	return z, true
}

func (c *Cache) staleLocked() bool {
	if c.loadedAt.IsZero() {
		return true
	}
	return c.maxAge > 0 && c.now().Sub(c.loadedAt) > c.maxAge
}

// Refresh loads a new snapshot. On error the previous snapshot is kept and
// ages out through WithMaxAge.
func (c *Cache) Refresh(ctx context.Context) error {
	zones, err := c.src.Load(ctx)
	if err != nil {
		c.logger.Warn("zone refresh failed", "error", err)
		return err
	}
	snapshot := make(map[string]string, len(zones))
	for id, z := range zones {
		snapshot[strings.TrimSpace(id)] = z
	}

	c.mu.Lock()
	c.zones = snapshot
	c.loadedAt = c.now()
	c.mu.Unlock()
	return nil
}

// Run refreshes every interval until ctx is done. Refresh errors are logged
// and do not stop the loop.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	_ = c.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Len returns the number of participants in the snapshot.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.zones)
}

// LoadedAt returns the time of the last successful refresh.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
