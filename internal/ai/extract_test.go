package ai

import (
	"testing"

	"callscreen/internal/scoring"
	"callscreen/internal/types"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"generic fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"language line", "```javascript\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", "  {\"a\": 1}  ", `{"a": 1}`},
		{"inline brace after fence", "```{\"a\": 1}```", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSONBlock(tt.input); got != tt.want {
				t.Errorf("CleanJSONBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeProfile(t *testing.T) {
	raw := "```json\n" + `{
  "name": "Ada Lovelace",
  "email": "ada@example.com",
  "phone": "+44 20 7946 0000",
  "education": [
    {"degree": "Master of Science in Mathematics", "institution": "University of London", "dates": "1840-1842"}
  ],
  "experience": ["Analyst at Babbage & Co, 4 years", "Tutor, 2 years"],
  "skills": ["Python", "Go", "Mathematics"]
}` + "\n```"

	profile, err := DecodeProfile(raw)
	if err != nil {
		t.Fatalf("DecodeProfile() error = %v", err)
	}
	if profile.Name != "Ada Lovelace" || profile.Email != "ada@example.com" {
		t.Errorf("unexpected identity fields: %+v", profile)
	}
	if len(profile.Education) != 1 || profile.Education[0].Institution != "University of London" {
		t.Errorf("education not decoded: %+v", profile.Education)
	}
	if len(profile.Experience) != 2 || len(profile.Skills) != 3 {
		t.Errorf("lists not decoded: %+v", profile)
	}
}

func TestDecodeProfileRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"not json", "Sorry, I cannot read this document."},
		{"wrong type", `{"education": "PhD", "experience": [], "skills": []}`},
		{"not an object", `["Go", "Python"]`},
		{"numeric email", `{"email": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeProfile(tt.raw); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDecodeProfilePartial(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		education int
		skills    int
		email     string
	}{
		{
			name:  "missing skills",
			raw:   `{"email": "ada@example.com", "phone": "+15550100", "experience": ["Engineer, 6 years"], "education": []}`,
			email: "ada@example.com",
		},
		{
			name:      "degree-less education entry",
			raw:       `{"education": [{"institution": "MIT"}, {"degree": "BSc Physics", "institution": "ETH"}], "skills": ["Go"]}`,
			education: 1,
			skills:    1,
		},
		{
			name:   "null scalars",
			raw:    `{"name": null, "email": null, "phone": "+15550100", "skills": ["Go", null, "SQL"]}`,
			skills: 2,
		},
		{
			name: "empty object",
			raw:  `{}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := DecodeProfile(tt.raw)
			if err != nil {
				t.Fatalf("DecodeProfile() error = %v", err)
			}
			if len(profile.Education) != tt.education {
				t.Errorf("education = %+v, want %d entries", profile.Education, tt.education)
			}
			if len(profile.Skills) != tt.skills {
				t.Errorf("skills = %v, want %d", profile.Skills, tt.skills)
			}
			if profile.Email != tt.email {
				t.Errorf("email = %q, want %q", profile.Email, tt.email)
			}
		})
	}
}

func TestPartialProfileStillScores(t *testing.T) {
	profile, err := DecodeProfile(`{"email": "ada@example.com", "phone": "+15550100", "experience": ["Engineer, 6 years"]}`)
	if err != nil {
		t.Fatalf("DecodeProfile() error = %v", err)
	}
	spec := types.JobSpecification{Education: types.EducationBachelor, Experience: 3, Skills: []string{"Go"}}
	result := scoring.Evaluate(profile, spec, nil)
	if result.Total != 32.5 {
		t.Errorf("Total = %.2f, want 32.50", result.Total)
	}
}

func TestPromptRender(t *testing.T) {
	p := Prompts{User: "Conversation:\n%s\nDone."}
	if got := p.render("CANDIDATE: hi"); got != "Conversation:\nCANDIDATE: hi\nDone." {
		t.Errorf("render() = %q", got)
	}

	noVerb := Prompts{User: "Summarize the call."}
	if got := noVerb.render("CANDIDATE: hi"); got != "Summarize the call.\nCANDIDATE: hi" {
		t.Errorf("render() without verb = %q", got)
	}

	escaped := Prompts{User: "Score 100%% honestly: %s"}
	if got := escaped.render("x"); got != "Score 100% honestly: x" {
		t.Errorf("render() with escaped percent = %q", got)
	}
}
