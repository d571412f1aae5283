// Package store persists jobs, applicants and applications.
package store

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"callscreen/internal/config"
	"callscreen/internal/errors"
	"callscreen/internal/types"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Store is the persistence collaborator. Lookups of missing records return
// an AppError with code NOT_FOUND.
type Store interface {
	SaveJob(ctx context.Context, job *types.Job) error
	GetJob(ctx context.Context, id string) (*types.Job, error)
	ListJobs(ctx context.Context) ([]types.Job, error)
	DeleteJob(ctx context.Context, id string) error

	// UpsertApplicant matches on email and fills in the stored ID.
	UpsertApplicant(ctx context.Context, applicant *types.Applicant) error
	GetApplicant(ctx context.Context, id string) (*types.Applicant, error)

	CreateApplication(ctx context.Context, app *types.Application) error
	// GetApplication includes the résumé bytes; ListApplications does not.
	GetApplication(ctx context.Context, id string) (*types.Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]types.Application, error)
	DeleteApplication(ctx context.Context, id string) error

	RecordScore(ctx context.Context, id string, score float64, status types.ApplicationStatus) error
	RecordCall(ctx context.Context, id, callID string) error
	SaveReport(ctx context.Context, id, report string) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// ApplicationFilter narrows ListApplications. Zero values match everything.
type ApplicationFilter struct {
	JobID  string
	Status types.ApplicationStatus
}

// Stats summarizes the stored records.
type Stats struct {
	Jobs         int                             `json:"jobs"`
	Applicants   int                             `json:"applicants"`
	Applications map[types.ApplicationStatus]int `json:"applications"`
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported store driver: %s", cfg.Driver), nil)
	}
}

func notFound(kind, id string) error {
	return errors.NewValidationError(errors.ErrCodeNotFound,
		fmt.Sprintf("%s %s not found", kind, id), nil).WithContext(kind+"_id", id)
}

func storeFailed(op string, err error) error {
	return errors.NewIOError(errors.ErrCodeStoreFailed, op, err)
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.CodeOf(err) == errors.ErrCodeNotFound
}
