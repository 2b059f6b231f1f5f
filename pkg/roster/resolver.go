package roster

import "strings"

// ZoneResolver maps a participant to its current zone. It is backed by a
// denoising store that may be temporarily empty; "no value" is reported
// through ok, never as an error. Implementations must not block.
type ZoneResolver interface {
	Resolve(participantID string) (zoneID string, ok bool)
}

// ResolverFunc adapts a function to ZoneResolver.
type ResolverFunc func(participantID string) (string, bool)

func (f ResolverFunc) Resolve(participantID string) (string, bool) { return f(participantID) }

// Recovering wraps r so that a panic inside Resolve reads as "no value".
// A nil r stays nil.
func Recovering(r ZoneResolver) ZoneResolver {
	if r == nil {
		return nil
	}
	return ResolverFunc(func(id string) (zone string, ok bool) {
		defer func() {
			if recover() != nil {
				zone, ok = "", false
			}
		}()
		return r.Resolve(id)
	})
}

// ZoneOrigin records which link of the chain produced a zone.
type ZoneOrigin string

const (
	OriginResolver ZoneOrigin = "resolver"
	OriginHint     ZoneOrigin = "hint"
	OriginNone     ZoneOrigin = "none"
)

// Resolution is the outcome of the chain for one participant.
type Resolution struct {
	Zone   string
	Origin ZoneOrigin
}

// Resolved reports whether any link produced a zone.
func (r Resolution) Resolved() bool { return r.Origin != OriginNone }

// Chain resolves zones in order: resolver (when present), then the roster
// hint, otherwise unresolved. The zero value is a chain without a resolver.
type Chain struct {
	resolver ZoneResolver
}

// NewChain builds a chain. A nil resolver means "no resolver configured".
func NewChain(resolver ZoneResolver) Chain {
	return Chain{resolver: resolver}
}

// HasResolver reports whether a resolver is configured.
func (c Chain) HasResolver() bool { return c.resolver != nil }

// Resolve runs the chain for p.
func (c Chain) Resolve(p Participant) Resolution {
	if c.resolver != nil {
		if z, ok := c.resolver.Resolve(p.ID); ok && strings.TrimSpace(z) != "" {
			return Resolution{Zone: z, Origin: OriginResolver}
		}
	}
	if strings.TrimSpace(p.ZoneHint) != "" {
		return Resolution{Zone: p.ZoneHint, Origin: OriginHint}
	}
	return Resolution{Origin: OriginNone}
}

// ActiveIDs returns the ids of active participants in roster order, skipping
// blank and repeated ids.
func ActiveIDs(ps []Participant) []string {
	out := make([]string, 0, len(ps))
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		id := normID(p.ID)
		if !p.Active || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ZonesFor resolves every active participant through c. Unresolved
// participants are absent from the result.
func (c Chain) ZonesFor(ps []Participant) map[string]string {
	out := make(map[string]string, len(ps))
	for _, p := range ps {
		id := normID(p.ID)
		if !p.Active || id == "" {
			continue
		}
		if _, done := out[id]; done {
			continue
		}
		if res := c.Resolve(p); res.Resolved() {
			out[id] = res.Zone
		}
	}
	return out
}
