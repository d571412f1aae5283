package ai

import (
	"fmt"

	"callscreen/internal/config"
)

// Prompts holds the system instruction and user template of one oracle.
type Prompts struct {
	System string
	User   string
}

// DefaultPrompts provides the built-in prompts per operation. User templates
// take a single %s for the dynamic content.
var DefaultPrompts = map[config.Operation]Prompts{
	config.OperationExtract: {
		System: `You are a precise résumé parser. You read a candidate's CV and return only the facts it states.

- Never invent or infer information that is not written in the document
- Leave a field empty when the document does not mention it
- Copy degrees, job titles and durations as written`,
		User: `Extract the following information from the CV:

- Name
- Email address
- Phone number
- Education (list each degree with institution and dates)
- Work Experience (list each role with company and duration, e.g. "Backend Engineer at Acme, 4 years")
- Skills (list technical and soft skills)

Return the information as JSON.
%s`,
	},
	config.OperationInterview: {
		System: "",
		User:   "%s",
	},
	config.OperationReport: {
		System: "You are an expert HR assistant.",
		User: `Analyze the following candidate interview conversation and generate a report in a Markdown table format.
The table should have four sections:
1. Introduction: A brief summary of the interview.
2. Pros: List concise, relevant points in bullet points.
3. Cons: List any areas of concern in bullet points.
4. What AI thinks: A brief conclusion based on the interview.

Conversation:
%s

Please output the report in Markdown format.`,
	},
}

// resolvePrompts picks configured prompts over the defaults. File content has
// already replaced inline text during config loading.
func resolvePrompts(op config.Operation, cfg config.PromptConfig) Prompts {
	defaults := DefaultPrompts[op]
	return Prompts{
		System: resolvePrompt(cfg.System, defaults.System),
		User:   resolvePrompt(cfg.User, defaults.User),
	}
}

func resolvePrompt(fromConfig, fromDefault string) string {
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

// render fills the user template. Templates without a verb get the content
// appended on a new line.
func (p Prompts) render(content string) string {
	if content == "" {
		return p.User
	}
	if !containsVerb(p.User) {
		return p.User + "\n" + content
	}
	return fmt.Sprintf(p.User, content)
}

func containsVerb(template string) bool {
	for i := 0; i < len(template)-1; i++ {
		if template[i] == '%' {
			if template[i+1] == 's' {
				return true
			}
			i++
		}
	}
	return false
}
