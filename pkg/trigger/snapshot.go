package trigger

import (
	"context"
	"sync"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
	"github.com/kckern/DaylightStation-sub013/pkg/roster"
	"github.com/kckern/DaylightStation-sub013/pkg/zones"
)

// Snapshot evaluates an explicit input built from each roster update.
type Snapshot struct {
	eval     Evaluator
	chain    roster.Chain
	taxonomy *zones.Taxonomy

	mu   sync.Mutex
	last governance.Summary
}

// SnapshotOption configures a Snapshot trigger.
type SnapshotOption func(*Snapshot)

// WithTaxonomy makes the trigger send zone ranks and display info with each
// input. Without it the engine falls back to its configured taxonomy.
func WithTaxonomy(t zones.Taxonomy) SnapshotOption {
	return func(s *Snapshot) { s.taxonomy = &t }
}

// NewSnapshot creates a snapshot trigger. resolver may be nil; it should be
// the same resolver the engine uses so both paths resolve identically.
func NewSnapshot(eval Evaluator, resolver roster.ZoneResolver, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{eval: eval, chain: roster.NewChain(roster.Recovering(resolver))}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Build assembles the explicit input for a roster snapshot.
func (s *Snapshot) Build(ps []roster.Participant) governance.Explicit {
	ids := roster.ActiveIDs(ps)
	in := governance.Explicit{
		ActiveParticipantIDs: ids,
		ZoneByParticipant:    s.chain.ZonesFor(ps),
		TotalCount:           len(ids),
	}
	if s.taxonomy != nil {
		in.ZoneRank = s.taxonomy.RankMap()
		in.ZoneInfo = s.taxonomy.InfoMap()
	}
	return in
}

// Fire evaluates ps synchronously.
func (s *Snapshot) Fire(ctx context.Context, ps []roster.Participant) governance.Summary {
	sum := s.eval.Evaluate(ctx, s.Build(ps))
	s.mu.Lock()
	s.last = sum
	s.mu.Unlock()
	return sum
}

// Last returns the summary of the most recent Fire.
func (s *Snapshot) Last() governance.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Attach subscribes the trigger to r. Every roster update is evaluated
// synchronously on the updating goroutine. The returned func detaches.
func (s *Snapshot) Attach(ctx context.Context, r *roster.Roster) (detach func()) {
	return r.Subscribe(func(ps []roster.Participant) {
		s.Fire(ctx, ps)
	})
}
