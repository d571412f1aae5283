package conversation

import (
	"strings"
	"time"

	"callscreen/internal/config"
)

// DefaultPreamble is the interviewer instruction block. {role} is replaced
// with the configured role.
const DefaultPreamble = `You are an AI interviewer conducting a brief phone screening for a {role} role.
Your objective is to quickly assess the candidate by asking one or two very short, direct questions at a time.
Keep your responses under 2 sentences and avoid long explanations.
Focus on key points: technical skills, notice period, and problem-solving ability.
If the candidate seems unresponsive or requests to end the call (e.g., says 'cut the call'), wrap up immediately.`

// Settings are the call-time constants of the screening conversation.
type Settings struct {
	TimeLimit    time.Duration
	Greeting     string
	Continuation string
	Expiry       string
	Farewell     string
	Fallback     string
	EndMarker    string
	EndPhrases   []string
	Role         string
	Preamble     string
	JobContext   string
}

// SettingsFromConfig maps the screening section onto Settings.
func SettingsFromConfig(cfg config.ScreeningConfig) Settings {
	phrases := make([]string, 0, len(cfg.EndPhrases))
	for _, p := range cfg.EndPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	preamble := cfg.Preamble
	if strings.TrimSpace(preamble) == "" {
		preamble = DefaultPreamble
	}
	return Settings{
		TimeLimit:    cfg.TimeLimit,
		Greeting:     cfg.Greeting,
		Continuation: cfg.Continuation,
		Expiry:       cfg.Expiry,
		Farewell:     cfg.Farewell,
		Fallback:     cfg.Fallback,
		EndMarker:    cfg.EndMarker,
		EndPhrases:   phrases,
		Role:         cfg.Role,
		Preamble:     preamble,
		JobContext:   cfg.JobContext,
	}
}

// BuildPrompt renders the generation prompt: preamble, job and candidate
// context, the ordered transcript and the end-marker instruction.
func (st Settings) BuildPrompt(s *Session) string {
	role := st.Role
	if s.Context.JobTitle != "" {
		role = s.Context.JobTitle
	}
	jobContext := s.Context.JobContext
	if jobContext == "" {
		jobContext = st.JobContext
	}

	var b strings.Builder
	b.WriteString(strings.ReplaceAll(strings.TrimSpace(st.Preamble), "{role}", role))
	b.WriteString("\n\n")
	if jobContext != "" {
		b.WriteString("Job Description: ")
		b.WriteString(jobContext)
		b.WriteString("\n")
	}
	if s.Context.CandidateName != "" {
		b.WriteString("Candidate name: ")
		b.WriteString(s.Context.CandidateName)
		b.WriteString("\n")
	}
	b.WriteString("\nConversation so far:\n")
	for _, t := range s.turns {
		if t.Speaker == SpeakerCandidate {
			b.WriteString("Candidate: ")
		} else {
			b.WriteString("AI Interviewer: ")
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nIf you decide the interview is complete, include ")
	b.WriteString(st.EndMarker)
	b.WriteString(" in your response (without reading it aloud).")
	return b.String()
}

// requestsEnd reports whether the utterance contains an end phrase.
func (st Settings) requestsEnd(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, phrase := range st.EndPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// stripMarker removes every occurrence of the end marker.
func (st Settings) stripMarker(reply string) (string, bool) {
	if st.EndMarker == "" || !strings.Contains(reply, st.EndMarker) {
		return strings.TrimSpace(reply), false
	}
	return strings.TrimSpace(strings.ReplaceAll(reply, st.EndMarker, "")), true
}
