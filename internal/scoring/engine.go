// Package scoring turns a résumé and a job specification into a
// deterministic fitness score used to gate screening calls.
package scoring

import (
	"context"
	"fmt"
	"math"

	"callscreen/internal/errors"
	"callscreen/internal/observability"
	"callscreen/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// Extractor is the extraction oracle.
type Extractor interface {
	Extract(ctx context.Context, doc types.Document) (types.ExtractedProfile, error)
}

// Result is a score with its breakdown. Total is the rounded sum of the
// four components and is 0 when extraction failed.
type Result struct {
	Total            float64                 `json:"total"`
	EducationBonus   float64                 `json:"educationBonus"`
	ExperienceScore  float64                 `json:"experienceScore"`
	SkillScore       float64                 `json:"skillScore"`
	ContactScore     float64                 `json:"contactScore"`
	HighestEducation types.EducationLevel    `json:"highestEducation"`
	YearsExperience  int                     `json:"yearsExperience"`
	MatchedSkills    []string                `json:"matchedSkills"`
	Extracted        bool                    `json:"extracted"`
	Profile          *types.ExtractedProfile `json:"profile,omitempty"`
}

// Engine scores résumés.
type Engine struct {
	extractor Extractor
	logger    *errors.Logger
	obs       *observability.ObservabilityManager
}

// NewEngine creates a scoring engine. logger and obs may be nil.
func NewEngine(extractor Extractor, logger *errors.Logger, obs *observability.ObservabilityManager) *Engine {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Engine{extractor: extractor, logger: logger, obs: obs}
}

// Score never fails: an extraction failure yields a zero result and a
// panicking component scores 0 without affecting the others.
func (e *Engine) Score(ctx context.Context, doc types.Document, spec types.JobSpecification) Result {
	profile, err := e.extractor.Extract(ctx, doc)
	if err != nil {
		e.logger.LogError(err, "Résumé extraction failed, scoring as 0", "document", doc.Name)
		e.record(ctx, Result{}, false)
		return Result{}
	}

	result := Evaluate(profile, spec, e.logger)
	e.logger.Info("Résumé scored",
		"document", doc.Name,
		"total", result.Total,
		"education_bonus", result.EducationBonus,
		"experience", result.ExperienceScore,
		"skills", result.SkillScore,
		"contact", result.ContactScore)
	e.record(ctx, result, true)
	return result
}

// Evaluate scores an already extracted profile.
func Evaluate(profile types.ExtractedProfile, spec types.JobSpecification, logger *errors.Logger) Result {
	if logger == nil {
		logger = errors.Discard()
	}
	result := Result{Extracted: true, Profile: &profile, HighestEducation: types.EducationUnknown}

	guard(logger, "education", func() {
		result.HighestEducation = HighestEducation(profile.Education)
		result.EducationBonus = EducationBonus(result.HighestEducation, spec.Education)
	})
	guard(logger, "experience", func() {
		result.YearsExperience = YearsOfExperience(profile.Experience)
		result.ExperienceScore = ExperienceScore(result.YearsExperience)
	})
	guard(logger, "skills", func() {
		result.MatchedSkills = MatchSkills(profile.Skills, spec.Skills)
		result.SkillScore = SkillScore(len(result.MatchedSkills))
	})
	guard(logger, "contact", func() {
		result.ContactScore = ContactScore(profile.Email, profile.Phone)
	})

	result.Total = round2(result.EducationBonus + result.ExperienceScore + result.SkillScore + result.ContactScore)
	return result
}

func guard(logger *errors.Logger, component string, fn func()) {
	if logger == nil {
		logger = errors.Discard()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.LogError(fmt.Errorf("panic: %v", r), "Scoring component failed, counting it as 0",
				"component", component)
		}
	}()
	fn()
}

func (e *Engine) record(ctx context.Context, result Result, extracted bool) {
	metrics := e.obs.GetMetrics()
	metrics.RecordBusinessMetric(ctx, observability.MetricResumeScored, extracted, e.obs)
	metrics.RecordScore(ctx, result.Total, attribute.Bool("extracted", extracted))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
