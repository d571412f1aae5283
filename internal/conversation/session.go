// Package conversation holds per-call interview state and the turn-by-turn
// state machine that drives it.
package conversation

import (
	"strings"
	"sync"
	"time"

	"callscreen/internal/types"
)

// Speaker identifies who said a turn.
type Speaker string

const (
	SpeakerCandidate   Speaker = "candidate"
	SpeakerInterviewer Speaker = "interviewer"
)

// Turn is one utterance. Turns are append-only.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// State is the termination state of a session.
type State int

const (
	StateActive State = iota
	StateTimeExpired
	StateExplicitEndRequested
	StateModelSignaledEnd
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTimeExpired:
		return "time_expired"
	case StateExplicitEndRequested:
		return "explicit_end_requested"
	case StateModelSignaledEnd:
		return "model_signaled_end"
	}
	return "unknown"
}

// Terminal reports whether no further turns are accepted.
func (s State) Terminal() bool {
	return s != StateActive
}

// Session is the in-memory state of one call. Only the Machine mutates it,
// holding mu.
type Session struct {
	CallID    string
	StartedAt time.Time
	Context   types.CallContext

	mu        sync.Mutex
	turns     []Turn
	state     State
	endedAt   time.Time
	finalized bool
}

func newSession(callID string, cc types.CallContext, now time.Time) *Session {
	return &Session{CallID: callID, StartedAt: now, Context: cc}
}

// Snapshot is an immutable copy of a session for finalization and display.
type Snapshot struct {
	CallID    string
	StartedAt time.Time
	EndedAt   time.Time
	State     State
	Turns     []Turn
	Context   types.CallContext
}

// Duration is the time between the first turn and termination.
func (s Snapshot) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Transcript renders the turns as "SPEAKER: text" lines.
func (s Snapshot) Transcript() string {
	lines := make([]string, 0, len(s.Turns))
	for _, t := range s.Turns {
		lines = append(lines, strings.ToUpper(string(t.Speaker))+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{
		CallID:    s.CallID,
		StartedAt: s.StartedAt,
		EndedAt:   s.endedAt,
		State:     s.state,
		Turns:     turns,
		Context:   s.Context,
	}
}

func (s *Session) append(speaker Speaker, text string) {
	s.turns = append(s.turns, Turn{Speaker: speaker, Text: text})
}

// terminate moves an active session to state and claims finalization.
// It returns false if the session was already terminal.
func (s *Session) terminate(state State, now time.Time) bool {
	if s.state.Terminal() || s.finalized {
		return false
	}
	s.state = state
	s.endedAt = now
	s.finalized = true
	return true
}
