package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"callscreen/internal/scoring"
	"callscreen/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// GlobalRegistry holds the default formatters.
var GlobalRegistry = NewFormatterRegistry()

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ScoreSummary", &ScoreTextFormatter{})
	registry.RegisterFormatter("markdown", "ScoreSummary", &ScoreMarkdownFormatter{})
	registry.RegisterFormatter("text", "JobList", &JobListTextFormatter{})
	registry.RegisterFormatter("markdown", "JobList", &JobListMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case scoring.Summary:
		return "ScoreSummary"
	case []types.Job:
		return "JobList"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func verdict(admitted bool) string {
	if admitted {
		return "ADMITTED (a screening call would be placed)"
	}
	return "REJECTED"
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// ScoreTextFormatter renders a score summary as plain text.
type ScoreTextFormatter struct{}

func (f *ScoreTextFormatter) Format(data any) (string, error) {
	s, ok := data.(scoring.Summary)
	if !ok {
		return "", fmt.Errorf("expected scoring.Summary, got %T", data)
	}
	r := s.Result

	var output strings.Builder
	output.WriteString("=== RÉSUMÉ SCORE ===\n\n")
	fmt.Fprintf(&output, "Résumé: %s\n", s.Resume)
	fmt.Fprintf(&output, "Job: %s (%s)\n\n", s.JobTitle, s.JobID)

	if !r.Extracted {
		output.WriteString("Extraction failed, the résumé scores 0.\n\n")
	}
	fmt.Fprintf(&output, "Education bonus:  %6.2f  (highest: %s)\n", r.EducationBonus, r.HighestEducation)
	fmt.Fprintf(&output, "Experience score: %6.2f  (%d years)\n", r.ExperienceScore, r.YearsExperience)
	fmt.Fprintf(&output, "Skill score:      %6.2f  (matched: %s)\n", r.SkillScore, joinOrNone(r.MatchedSkills))
	fmt.Fprintf(&output, "Contact score:    %6.2f\n", r.ContactScore)
	fmt.Fprintf(&output, "Total:            %6.2f / threshold %.2f\n\n", r.Total, s.Threshold)
	fmt.Fprintf(&output, "Decision: %s\n", verdict(s.Admitted))

	return output.String(), nil
}

func (f *ScoreTextFormatter) SupportedType() string {
	return "ScoreSummary"
}

// ScoreMarkdownFormatter renders a score summary as a markdown table.
type ScoreMarkdownFormatter struct{}

func (f *ScoreMarkdownFormatter) Format(data any) (string, error) {
	s, ok := data.(scoring.Summary)
	if !ok {
		return "", fmt.Errorf("expected scoring.Summary, got %T", data)
	}
	r := s.Result

	var output strings.Builder
	fmt.Fprintf(&output, "# Résumé Score: %s\n\n", s.Resume)
	fmt.Fprintf(&output, "**Job:** %s (`%s`)\n\n", s.JobTitle, s.JobID)
	if !r.Extracted {
		output.WriteString("> Extraction failed, the résumé scores 0.\n\n")
	}
	output.WriteString("| Component | Score | Detail |\n")
	output.WriteString("|-----------|------:|--------|\n")
	fmt.Fprintf(&output, "| Education | %.2f | %s |\n", r.EducationBonus, r.HighestEducation)
	fmt.Fprintf(&output, "| Experience | %.2f | %d years |\n", r.ExperienceScore, r.YearsExperience)
	fmt.Fprintf(&output, "| Skills | %.2f | %s |\n", r.SkillScore, joinOrNone(r.MatchedSkills))
	fmt.Fprintf(&output, "| Contact | %.2f | |\n", r.ContactScore)
	fmt.Fprintf(&output, "| **Total** | **%.2f** | threshold %.2f |\n\n", r.Total, s.Threshold)
	fmt.Fprintf(&output, "**Decision:** %s\n", verdict(s.Admitted))

	return output.String(), nil
}

func (f *ScoreMarkdownFormatter) SupportedType() string {
	return "ScoreSummary"
}

// JobListTextFormatter renders stored jobs one per line.
type JobListTextFormatter struct{}

func (f *JobListTextFormatter) Format(data any) (string, error) {
	jobs, ok := data.([]types.Job)
	if !ok {
		return "", fmt.Errorf("expected []types.Job, got %T", data)
	}
	if len(jobs) == 0 {
		return "No jobs.\n", nil
	}

	var output strings.Builder
	for _, job := range jobs {
		fmt.Fprintf(&output, "%s\t%s\t%s\tskills: %s\n",
			job.ID, job.Title, job.Location, joinOrNone(job.Spec.Skills))
	}
	return output.String(), nil
}

func (f *JobListTextFormatter) SupportedType() string {
	return "JobList"
}

// JobListMarkdownFormatter renders stored jobs as a markdown table.
type JobListMarkdownFormatter struct{}

func (f *JobListMarkdownFormatter) Format(data any) (string, error) {
	jobs, ok := data.([]types.Job)
	if !ok {
		return "", fmt.Errorf("expected []types.Job, got %T", data)
	}

	var output strings.Builder
	output.WriteString("| ID | Title | Location | Education | Experience | Skills |\n")
	output.WriteString("|----|-------|----------|-----------|-----------:|--------|\n")
	for _, job := range jobs {
		fmt.Fprintf(&output, "| %s | %s | %s | %s | %d | %s |\n",
			job.ID, job.Title, job.Location, job.Spec.Education, job.Spec.Experience, joinOrNone(job.Spec.Skills))
	}
	return output.String(), nil
}

func (f *JobListMarkdownFormatter) SupportedType() string {
	return "JobList"
}
