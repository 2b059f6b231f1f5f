package governance

import (
	"sort"
	"strings"

	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/zones"
)

// Input is the evaluation input. It is either Explicit (snapshot trigger) or
// Implicit (pulse trigger). Both are normalised into the same resolved form
// before anything is decided.
type Input interface {
	source() Source
}

// Implicit asks the engine to derive its inputs from the roster, the zone
// resolver and the configured taxonomy.
type Implicit struct{}

func (Implicit) source() Source { return SourcePulse }

// Explicit carries inputs computed by the caller.
type Explicit struct {
	ActiveParticipantIDs []string
	// ZoneByParticipant may omit participants or map them to "" (unknown).
	ZoneByParticipant map[string]string
	// ZoneRank maps zone id to rank. When nil the configured taxonomy is used.
	ZoneRank map[string]int
	// ZoneInfo is display metadata. It does not influence the decision.
	ZoneInfo map[string]zones.Info
	// TotalCount is raised to the number of distinct active ids when lower.
	TotalCount int
}

func (Explicit) source() Source { return SourceSnapshot }

// normalizeInput maps nil to Implicit and dereferences *Explicit, so the
// rest of the engine only sees value inputs. A nil *Explicit is an empty
// snapshot.
func normalizeInput(in Input) Input {
	switch v := in.(type) {
	case nil:
		return Implicit{}
	case *Explicit:
		if v == nil {
			return Explicit{}
		}
		return *v
	case *Implicit:
		return Implicit{}
	}
	return in
}

// participantInput is one active participant after zone resolution.
type participantInput struct {
	ID   string `json:"id"`
	Zone string `json:"zone,omitempty"`
	Rank *int   `json:"rank"`
}

func (p participantInput) ghost() bool { return p.Rank == nil }

// resolvedInput is the single shape both trigger paths converge on.
type resolvedInput struct {
	Participants []participantInput `json:"participants"`
	Total        int                `json:"total"`
}

// rankTable looks zones up case-insensitively.
type rankTable map[string]rankEntry

type rankEntry struct {
	zone string
	rank int
}

func zoneKey(z string) string { return strings.ToLower(strings.TrimSpace(z)) }

// newRankTable folds zone ids to lower case. Ids that fold to the same key
// with different ranks are dropped, so participants in that zone are ghosts
// whatever the map iteration order.
func newRankTable(ranks map[string]int) rankTable {
	t := make(rankTable, len(ranks))
	conflicted := map[string]bool{}
	for z, r := range ranks {
		k := zoneKey(z)
		if k == "" || conflicted[k] {
			continue
		}
		if prev, ok := t[k]; ok && prev.rank != r {
			delete(t, k)
			conflicted[k] = true
			continue
		}
		t[k] = rankEntry{zone: k, rank: r}
	}
	return t
}

func (t rankTable) lookup(zone string) (rankEntry, bool) {
	if t == nil {
		return rankEntry{}, false
	}
	e, ok := t[zoneKey(zone)]
	return e, ok
}

// resolveExplicit normalises caller-supplied inputs. Inconsistent keys never
// fail the evaluation: unmatched participants become ghosts.
func resolveExplicit(in Explicit, taxonomy rankTable) resolvedInput {
	ranks := taxonomy
	if len(in.ZoneRank) > 0 {
		ranks = newRankTable(in.ZoneRank)
	}
	zoneOf := make(map[string]string, len(in.ZoneByParticipant))
	for id, z := range in.ZoneByParticipant {
		zoneOf[strings.TrimSpace(id)] = z
	}

	seen := make(map[string]bool, len(in.ActiveParticipantIDs))
	out := resolvedInput{Participants: make([]participantInput, 0, len(in.ActiveParticipantIDs))}
	for _, raw := range in.ActiveParticipantIDs {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out.Participants = append(out.Participants, resolveOne(id, zoneOf[id], ranks))
	}
	out.Total = in.TotalCount
	if out.Total < len(out.Participants) {
		out.Total = len(out.Participants)
	}
	return out.sorted()
}

// resolveImplicit derives inputs from a roster snapshot using the chain
// resolver -> roster hint -> ghost.
func resolveImplicit(ps []roster.Participant, chain roster.Chain, taxonomy rankTable) resolvedInput {
	ids := roster.ActiveIDs(ps)
	zoneOf := chain.ZonesFor(ps)
	out := resolvedInput{Participants: make([]participantInput, 0, len(ids))}
	for _, id := range ids {
		out.Participants = append(out.Participants, resolveOne(id, zoneOf[id], taxonomy))
	}
	out.Total = len(out.Participants)
	return out.sorted()
}

func resolveOne(id, zone string, ranks rankTable) participantInput {
	p := participantInput{ID: id}
	if strings.TrimSpace(zone) == "" {
		return p
	}
	if e, ok := ranks.lookup(zone); ok {
		r := e.rank
		p.Zone = e.zone
		p.Rank = &r
	}
	return p
}

// sorted orders participants by id so that roster order and caller order
// cannot produce different digests.
func (r resolvedInput) sorted() resolvedInput {
	sort.Slice(r.Participants, func(i, j int) bool { return r.Participants[i].ID < r.Participants[j].ID })
	return r
}

func (r resolvedInput) ghosts() []string {
	var out []string
	for _, p := range r.Participants {
		if p.ghost() {
			out = append(out, p.ID)
		}
	}
	return out
}
