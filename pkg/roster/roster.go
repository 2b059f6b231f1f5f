// Package roster holds the participants of a governed session and the
// zone-resolution chain used to turn them into governance inputs.
package roster

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownParticipant = errors.New("roster: unknown participant")

// Participant is a roster entry. ZoneHint is a best-effort, possibly stale
// zone assignment carried with the entry; empty means none.
type Participant struct {
	ID       string `json:"id"`
	Active   bool   `json:"active"`
	ZoneHint string `json:"zone_hint,omitempty"`
}

// Source is the read side of a roster.
type Source interface {
	Snapshot() []Participant
}

// Listener is notified with a fresh snapshot after every roster change.
type Listener func(snapshot []Participant)

// Roster is an ordered, concurrency-safe participant list owned by the session controller.
type Roster struct {
	mu        sync.RWMutex
	order     []string
	entries   map[string]Participant
	listeners map[int]Listener
	nextID    int
}

// New creates a roster seeded with participants.
func New(ps ...Participant) *Roster {
	r := &Roster{
		entries:   make(map[string]Participant),
		listeners: make(map[int]Listener),
	}
	for _, p := range ps {
		r.put(p)
	}
	return r
}

// Snapshot returns a copy of the participants in roster order.
func (r *Roster) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Len returns the number of entries, active or not.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Get returns a participant by id.
func (r *Roster) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[normID(id)]
	return p, ok
}

// Upsert adds p or replaces the entry with the same id, keeping its position.
func (r *Roster) Upsert(p Participant) {
	if normID(p.ID) == "" {
		return
	}
	r.mu.Lock()
	r.put(p)
	snap := r.snapshotLocked()
	ls := r.listenersLocked()
	r.mu.Unlock()
	notify(ls, snap)
}

// Replace swaps the whole roster for ps, in the given order.
func (r *Roster) Replace(ps []Participant) {
	r.mu.Lock()
	r.order = nil
	r.entries = make(map[string]Participant, len(ps))
	for _, p := range ps {
		r.put(p)
	}
	snap := r.snapshotLocked()
	ls := r.listenersLocked()
	r.mu.Unlock()
	notify(ls, snap)
}

// UpdateZoneHint records a new zone hint for an existing participant.
func (r *Roster) UpdateZoneHint(id, zone string) error {
	return r.mutate(id, func(p *Participant) { p.ZoneHint = zone })
}

// SetActive toggles roster membership of an existing participant.
func (r *Roster) SetActive(id string, active bool) error {
	return r.mutate(id, func(p *Participant) { p.Active = active })
}

// Remove deletes a participant. Removing an unknown id is a no-op.
func (r *Roster) Remove(id string) {
	k := normID(id)
	r.mu.Lock()
	if _, ok := r.entries[k]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, k)
	for i, o := range r.order {
		if o == k {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	snap := r.snapshotLocked()
	ls := r.listenersLocked()
	r.mu.Unlock()
	notify(ls, snap)
}

// Subscribe registers l and returns a function that removes it.
// Listeners run synchronously on the goroutine that changed the roster.
func (r *Roster) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Roster) mutate(id string, fn func(*Participant)) error {
	k := normID(id)
	r.mu.Lock()
	p, ok := r.entries[k]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownParticipant
	}
	fn(&p)
	r.entries[k] = p
	snap := r.snapshotLocked()
	ls := r.listenersLocked()
	r.mu.Unlock()
	notify(ls, snap)
	return nil
}

func (r *Roster) put(p Participant) {
	k := normID(p.ID)
	if k == "" {
		return
	}
	if _, exists := r.entries[k]; !exists {
		r.order = append(r.order, k)
	}
	r.entries[k] = p
}

func (r *Roster) snapshotLocked() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

func (r *Roster) listenersLocked() []Listener {
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = r.listeners[id]
	}
	return out
}

func notify(ls []Listener, snap []Participant) {
	for _, l := range ls {
		cp := make([]Participant, len(snap))
		copy(cp, snap)
		l(cp)
	}
}

func normID(id string) string {
	return strings.TrimSpace(id)
}
