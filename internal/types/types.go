package types

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// EducationLevel is the ordinal rank of an academic degree.
type EducationLevel int

const (
	EducationUnknown  EducationLevel = -1
	EducationDiploma  EducationLevel = 0
	EducationBachelor EducationLevel = 1
	EducationMaster   EducationLevel = 2
	EducationPhD      EducationLevel = 3
)

var educationNames = map[EducationLevel]string{
	EducationUnknown:  "unknown",
	EducationDiploma:  "diploma",
	EducationBachelor: "bachelor",
	EducationMaster:   "master",
	EducationPhD:      "phd",
}

func (l EducationLevel) String() string {
	if name, ok := educationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("EducationLevel(%d)", int(l))
}

// ParseEducationLevel accepts a level name ("master") case-insensitively.
// The empty string parses as EducationUnknown.
func ParseEducationLevel(s string) (EducationLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EducationUnknown, nil
	}
	for level, name := range educationNames {
		if name == s {
			return level, nil
		}
	}
	return EducationUnknown, fmt.Errorf("unknown education level %q", s)
}

func (l EducationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *EducationLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseEducationLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// JobSpecification is what a résumé is scored against. Skills are compared
// case-insensitively.
type JobSpecification struct {
	Education  EducationLevel `json:"education" toml:"education"`
	Experience int            `json:"experience" toml:"experience"`
	Skills     []string       `json:"skills" toml:"skills"`
}

// EducationEntry is one degree as extracted from a résumé.
type EducationEntry struct {
	Degree      string `json:"degree" mapstructure:"degree"`
	Institution string `json:"institution,omitempty" mapstructure:"institution"`
	Dates       string `json:"dates,omitempty" mapstructure:"dates"`
}

// ExtractedProfile is the structured view of a résumé produced by the
// extraction oracle. Every field may be empty.
type ExtractedProfile struct {
	Name       string           `json:"name,omitempty" mapstructure:"name"`
	Email      string           `json:"email,omitempty" mapstructure:"email"`
	Phone      string           `json:"phone,omitempty" mapstructure:"phone"`
	Education  []EducationEntry `json:"education,omitempty" mapstructure:"education"`
	Experience []string         `json:"experience,omitempty" mapstructure:"experience"`
	Skills     []string         `json:"skills,omitempty" mapstructure:"skills"`
}

// Document is an uploaded résumé.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether the document looks like a PDF by extension or
// content.
func (d Document) IsPDF() bool {
	if strings.EqualFold(filepath.Ext(d.Name), ".pdf") {
		return true
	}
	return bytes.HasPrefix(d.Data, pdfMagic)
}

// Job is a posting candidates apply to.
type Job struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Location        string           `json:"location"`
	JobType         string           `json:"jobType"`
	ExperienceLevel string           `json:"experienceLevel"`
	Salary          string           `json:"salary,omitempty"`
	Description     string           `json:"description"`
	Requirements    []string         `json:"requirements"`
	Spec            JobSpecification `json:"spec"`
	PostedAt        time.Time        `json:"postedAt"`
	Deadline        *time.Time       `json:"deadline,omitempty"`
}

// Context renders the job as the free text the interviewer prompt embeds.
func (j Job) Context() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)\n", j.Title, j.Location, j.JobType)
	if j.ExperienceLevel != "" {
		fmt.Fprintf(&b, "Experience level: %s\n", j.ExperienceLevel)
	}
	b.WriteString(strings.TrimSpace(j.Description))
	if len(j.Requirements) > 0 {
		b.WriteString("\nRequirements:\n")
		for _, r := range j.Requirements {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

type Applicant struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (a Applicant) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// ApplicationStatus tracks an application through screening.
type ApplicationStatus string

const (
	StatusSubmitted  ApplicationStatus = "submitted"
	StatusScored     ApplicationStatus = "scored"
	StatusRejected   ApplicationStatus = "rejected"
	StatusCallPlaced ApplicationStatus = "call_placed"
	StatusScreened   ApplicationStatus = "screened"
)

type Application struct {
	ID          string            `json:"id"`
	ApplicantID string            `json:"applicantId"`
	JobID       string            `json:"jobId"`
	ResumeName  string            `json:"resumeName"`
	Resume      []byte            `json:"-"`
	Status      ApplicationStatus `json:"status"`
	Score       *float64          `json:"score,omitempty"`
	CallID      string            `json:"callId,omitempty"`
	Report      string            `json:"report,omitempty"`
	AppliedAt   time.Time         `json:"appliedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Document returns the stored résumé.
func (a Application) Document() Document {
	return Document{Name: a.ResumeName, MIMEType: "application/pdf", Data: a.Resume}
}

// CallContext is what the interviewer knows about the person on a call.
type CallContext struct {
	ApplicationID string
	CandidateName string
	JobTitle      string
	JobContext    string
}
