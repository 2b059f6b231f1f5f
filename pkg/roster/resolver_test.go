package roster_test

import (
	"testing"

	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/stretchr/testify/assert"
)

func mapResolver(m map[string]string) roster.ZoneResolver {
	return roster.ResolverFunc(func(id string) (string, bool) {
		z, ok := m[id]
		return z, ok
	})
}

func TestChain_Resolve(t *testing.T) {
	resolver := mapResolver(map[string]string{"alice": "hot", "blank": "  "})

	tests := []struct {
		name   string
		chain  roster.Chain
		p      roster.Participant
		zone   string
		origin roster.ZoneOrigin
	}{
		{"resolver wins over hint", roster.NewChain(resolver), roster.Participant{ID: "alice", ZoneHint: "cool"}, "hot", roster.OriginResolver},
		{"hint when resolver has nothing", roster.NewChain(resolver), roster.Participant{ID: "bob", ZoneHint: "warm"}, "warm", roster.OriginHint},
		{"blank resolver value falls through", roster.NewChain(resolver), roster.Participant{ID: "blank", ZoneHint: "warm"}, "warm", roster.OriginHint},
		{"no resolver uses hint", roster.NewChain(nil), roster.Participant{ID: "alice", ZoneHint: "active"}, "active", roster.OriginHint},
		{"ghost", roster.NewChain(nil), roster.Participant{ID: "ghost"}, "", roster.OriginNone},
		{"zero value chain", roster.Chain{}, roster.Participant{ID: "x", ZoneHint: "cool"}, "cool", roster.OriginHint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.chain.Resolve(tt.p)
			assert.Equal(t, tt.zone, res.Zone)
			assert.Equal(t, tt.origin, res.Origin)
			assert.Equal(t, tt.origin != roster.OriginNone, res.Resolved())
		})
	}

	assert.True(t, roster.NewChain(resolver).HasResolver())
	assert.False(t, roster.NewChain(nil).HasResolver())
}

func TestActiveIDsAndZonesFor(t *testing.T) {
	ps := []roster.Participant{
		{ID: "alice", Active: true, ZoneHint: "hot"},
		{ID: "bob", Active: false, ZoneHint: "hot"},
		{ID: "carol", Active: true},
		{ID: "alice", Active: true, ZoneHint: "cool"},
		{ID: "", Active: true, ZoneHint: "cool"},
	}

	assert.Equal(t, []string{"alice", "carol"}, roster.ActiveIDs(ps))

	zones := roster.NewChain(nil).ZonesFor(ps)
	assert.Equal(t, map[string]string{"alice": "hot"}, zones)
}

func TestRecovering(t *testing.T) {
	assert.Nil(t, roster.Recovering(nil))

	boom := roster.Recovering(roster.ResolverFunc(func(string) (string, bool) { panic("store offline") }))
	z, ok := boom.Resolve("alice")
	assert.False(t, ok)
	assert.Empty(t, z)

	fine := roster.Recovering(roster.ResolverFunc(func(string) (string, bool) { return "warm", true }))
	z, ok = fine.Resolve("alice")
	assert.True(t, ok)
	assert.Equal(t, "warm", z)
}
