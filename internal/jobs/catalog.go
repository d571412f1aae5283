// Package jobs loads job postings from a TOML catalog file into the store.
package jobs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"callscreen/internal/errors"
	"callscreen/internal/types"

	"github.com/pelletier/go-toml/v2"
)

// JobSaver is the part of the store a catalog sync needs.
type JobSaver interface {
	SaveJob(ctx context.Context, job *types.Job) error
}

// Catalog is the decoded catalog file.
type Catalog struct {
	Jobs []Entry `toml:"jobs"`
}

// Entry is one [[jobs]] table.
type Entry struct {
	ID              string                 `toml:"id"`
	Title           string                 `toml:"title"`
	Location        string                 `toml:"location"`
	JobType         string                 `toml:"jobType"`
	ExperienceLevel string                 `toml:"experienceLevel"`
	Salary          string                 `toml:"salary"`
	Description     string                 `toml:"description"`
	Requirements    []string               `toml:"requirements"`
	Deadline        string                 `toml:"deadline"`
	Spec            types.JobSpecification `toml:"spec"`
}

// Job converts the entry, validating required fields.
func (e Entry) Job() (*types.Job, error) {
	if strings.TrimSpace(e.ID) == "" {
		return nil, fmt.Errorf("job %q: id is required", e.Title)
	}
	if strings.TrimSpace(e.Title) == "" {
		return nil, fmt.Errorf("job %s: title is required", e.ID)
	}
	if e.Spec.Experience < 0 {
		return nil, fmt.Errorf("job %s: spec.experience must not be negative", e.ID)
	}

	job := &types.Job{
		ID:              e.ID,
		Title:           e.Title,
		Location:        e.Location,
		JobType:         e.JobType,
		ExperienceLevel: e.ExperienceLevel,
		Salary:          e.Salary,
		Description:     strings.TrimSpace(e.Description),
		Requirements:    e.Requirements,
		Spec:            e.Spec,
	}
	if e.Deadline != "" {
		deadline, err := time.Parse(time.DateOnly, e.Deadline)
		if err != nil {
			return nil, fmt.Errorf("job %s: deadline must be YYYY-MM-DD: %w", e.ID, err)
		}
		job.Deadline = &deadline
	}
	return job, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) ([]*types.Job, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "invalid job catalog", err)
	}

	seen := make(map[string]bool, len(c.Jobs))
	jobs := make([]*types.Job, 0, len(c.Jobs))
	for _, entry := range c.Jobs {
		job, err := entry.Job()
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat, "invalid job catalog entry", err)
		}
		if seen[job.ID] {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("duplicate job id %q in catalog", job.ID), nil)
		}
		seen[job.ID] = true
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Load reads and parses a catalog file.
func Load(path string) ([]*types.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "job catalog not found", err).
				WithContext("path", path)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "cannot read job catalog", err).
			WithContext("path", path)
	}
	return Parse(data)
}

// Sync upserts every job in the catalog at path and returns how many were
// saved.
func Sync(ctx context.Context, path string, saver JobSaver, logger *errors.Logger) (int, error) {
	jobs, err := Load(path)
	if err != nil {
		return 0, err
	}
	for i, job := range jobs {
		if err := saver.SaveJob(ctx, job); err != nil {
			return i, err
		}
	}
	if logger != nil {
		logger.Info("Job catalog synced", "path", path, "jobs", len(jobs))
	}
	return len(jobs), nil
}
