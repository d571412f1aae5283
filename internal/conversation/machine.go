package conversation

import (
	"context"
	"strings"
	"time"

	"callscreen/internal/errors"
)

// Generator produces the next interviewer utterance from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Outcome is the result of one processed turn.
type Outcome struct {
	// Say is the interviewer utterance to speak. It may be empty when the
	// model ends the call with nothing left to say.
	Say string
	// Hangup is set once the session is terminal.
	Hangup bool
	State  State
	// Finalize is true for exactly one Outcome per session: the one that
	// moved it to a terminal state. Snapshot is populated alongside it.
	Finalize bool
	Snapshot Snapshot
	// Greeting marks the first turn of a call.
	Greeting bool
	// Listen asks the bridge to wait for speech right after Say.
	Listen bool
}

// Machine applies turns to sessions held in a Registry.
type Machine struct {
	registry  *Registry
	settings  Settings
	generator Generator
	logger    *errors.Logger
}

func NewMachine(registry *Registry, settings Settings, generator Generator, logger *errors.Logger) *Machine {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Machine{registry: registry, settings: settings, generator: generator, logger: logger}
}

func (m *Machine) Registry() *Registry { return m.registry }

func (m *Machine) Settings() Settings { return m.settings }

// ProcessTurn advances the session for callID with the candidate's raw
// utterance. A finalized call id yields a SESSION_FINALIZED error.
func (m *Machine) ProcessTurn(ctx context.Context, callID, raw string, now time.Time) (Outcome, error) {
	s, created, err := m.registry.Acquire(callID, now)
	if err != nil {
		return Outcome{Hangup: true}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if created {
		return Outcome{Say: m.settings.Greeting, State: StateActive, Greeting: true, Listen: true}, nil
	}
	if s.state.Terminal() {
		return Outcome{Hangup: true, State: s.state}, errors.NewInternalError(errors.ErrCodeSessionFinalized,
			"turn received after termination", nil).WithContext("call_id", callID)
	}

	if now.Sub(s.StartedAt) > m.settings.TimeLimit {
		return m.end(s, StateTimeExpired, m.settings.Expiry, now), nil
	}

	utterance := strings.TrimSpace(raw)
	if utterance == "" {
		return Outcome{Say: m.settings.Continuation, State: StateActive, Listen: true}, nil
	}

	s.append(SpeakerCandidate, utterance)
	if m.settings.requestsEnd(utterance) {
		m.logger.Info("Candidate requested end of call", "call_id", callID)
		return m.end(s, StateExplicitEndRequested, m.settings.Farewell, now), nil
	}

	reply, err := m.generator.Generate(ctx, m.settings.BuildPrompt(s))
	if err != nil {
		m.logger.LogError(err, "Interviewer reply generation failed, using fallback", "call_id", callID)
		s.append(SpeakerInterviewer, m.settings.Fallback)
		return Outcome{Say: m.settings.Fallback, State: StateActive}, nil
	}

	text, ended := m.settings.stripMarker(reply)
	s.append(SpeakerInterviewer, text)
	if ended {
		m.logger.Info("Interviewer signaled end of call", "call_id", callID)
		return m.end(s, StateModelSignaledEnd, text, now), nil
	}
	return Outcome{Say: text, State: StateActive}, nil
}

// ForceExpire terminates an active session that stopped receiving turns.
// It reports false if the session was already terminal or is unknown.
func (m *Machine) ForceExpire(callID string, now time.Time) (Outcome, bool) {
	s, ok := m.registry.Get(callID)
	if !ok {
		return Outcome{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return Outcome{}, false
	}
	return m.end(s, StateTimeExpired, "", now), true
}

func (m *Machine) end(s *Session, state State, say string, now time.Time) Outcome {
	out := Outcome{Say: say, Hangup: true, State: state}
	if s.terminate(state, now) {
		out.Finalize = true
		out.Snapshot = s.snapshotLocked()
	}
	return out
}
