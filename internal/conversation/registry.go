package conversation

import (
	"sort"
	"sync"
	"time"

	"callscreen/internal/errors"
	"callscreen/internal/types"
)

// Registry owns every live Session, keyed by call id. Finalized calls leave
// a tombstone so late turns cannot resurrect them.
type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	tombstones map[string]time.Time
	expected   map[string]types.CallContext
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		tombstones: make(map[string]time.Time),
		expected:   make(map[string]types.CallContext),
	}
}

// Expect attaches candidate context to a placed call. The first webhook can
// arrive before the placer returns, so a live session that has no context
// yet receives it directly. Finalized calls are ignored.
func (r *Registry) Expect(callID string, cc types.CallContext) {
	r.mu.Lock()
	if _, dead := r.tombstones[callID]; dead {
		r.mu.Unlock()
		return
	}
	s, live := r.sessions[callID]
	if !live {
		r.expected[callID] = cc
	}
	r.mu.Unlock()

	if live {
		s.mu.Lock()
		if s.Context == (types.CallContext{}) {
			s.Context = cc
		}
		s.mu.Unlock()
	}
}

// Acquire returns the session for callID, creating it if needed.
func (r *Registry) Acquire(callID string, now time.Time) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dead := r.tombstones[callID]; dead {
		return nil, false, errors.NewInternalError(errors.ErrCodeSessionFinalized,
			"call already finalized", nil).WithContext("call_id", callID)
	}
	if s, ok := r.sessions[callID]; ok {
		return s, false, nil
	}

	cc := r.expected[callID]
	delete(r.expected, callID)
	s := newSession(callID, cc, now)
	r.sessions[callID] = s
	return s, true, nil
}

// Get returns a live session without creating one.
func (r *Registry) Get(callID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	return s, ok
}

// Evict removes a session and records a tombstone for it.
func (r *Registry) Evict(callID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
	r.tombstones[callID] = now
}

// Expired lists sessions started before cutoff.
func (r *Registry) Expired(cutoff time.Time) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for _, s := range r.sessions {
		if s.StartedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// PruneTombstones drops tombstones recorded before cutoff and returns how
// many were removed.
func (r *Registry) PruneTombstones(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, at := range r.tombstones {
		if at.Before(cutoff) {
			delete(r.tombstones, id)
			n++
		}
	}
	return n
}

// Snapshots returns copies of all live sessions ordered by start time.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Stats reports registry sizes.
func (r *Registry) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{
		"active_sessions": len(r.sessions),
		"tombstones":      len(r.tombstones),
		"expected_calls":  len(r.expected),
	}
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
