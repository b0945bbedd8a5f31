// internal/players/registry.go
//
// Per-participant pacing and presence state.
//
// Responsibilities:
//   - Lazy registration: a participant exists from first lookup until exit.
//   - Pacing: last submit time and lock expiry, written only after a
//     successful placement.
//   - Presence: live connection count per participant, never below zero.
//
// Participant ids are opaque strings declared by the client. They are a
// capability token with no verification: anyone presenting an id acts as
// that participant.

package players

import (
	"sync"
	"time"
)

// State is a copy of one participant's record.
// Zero LastSubmitAt/LockedUntil mean "never placed".
type State struct {
	ID              string `json:"participantId"`
	LastSubmitAt    int64  `json:"lastSubmitAt,omitempty"` // unix ms
	LockedUntil     int64  `json:"lockedUntil,omitempty"`  // unix ms
	ConnectionCount int    `json:"connectionCount"`
}

// Online reports whether the participant has at least one live connection.
func (s State) Online() bool { return s.ConnectionCount > 0 }

// LockedAt reports whether the participant is still cooling down at now.
// The lock holds through lockedUntil inclusive.
func (s State) LockedAt(now time.Time) bool {
	return s.LockedUntil != 0 && now.UnixMilli() <= s.LockedUntil
}

// Registry owns all participant state.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*State
	online  int // participants with ConnectionCount > 0
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*State)}
}

// Get returns the participant's state, registering it on first lookup.
func (r *Registry) Get(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.ensure(id)
}

// Peek returns the participant's state without registering it.
func (r *Registry) Peek(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.players[id]; ok {
		return *p, true
	}
	return State{ID: id}, false
}

// IsLocked reports whether id may not place at now.
func (r *Registry) IsLocked(id string, now time.Time) bool {
	return r.Get(id).LockedAt(now)
}

// RecordSubmit starts the cooldown for id at now.
// Call only after the grid mutation for id has committed.
func (r *Registry) RecordSubmit(id string, now time.Time, lock time.Duration) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensure(id)
	ms := now.UnixMilli()
	p.LastSubmitAt = ms
	p.LockedUntil = ms + lock.Milliseconds()
	return *p
}

// OnConnect records one more live connection for id.
func (r *Registry) OnConnect(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensure(id)
	p.ConnectionCount++
	if p.ConnectionCount == 1 {
		r.online++
	}
	return *p
}

// OnDisconnect records one fewer live connection for id.
func (r *Registry) OnDisconnect(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensure(id)
	if p.ConnectionCount == 0 {
		return *p
	}
	p.ConnectionCount--
	if p.ConnectionCount == 0 {
		r.online--
	}
	return *p
}

// OnlineCount returns the number of participants with a live connection.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// ensure must be called with r.mu held for writing.
func (r *Registry) ensure(id string) *State {
	p, ok := r.players[id]
	if !ok {
		p = &State{ID: id}
		r.players[id] = p
	}
	return p
}
