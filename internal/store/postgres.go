package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callscreen/internal/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in PostgreSQL for multi-instance deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects, verifies the connection and applies pending
// migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	migrations, err := pendingMigrations(migrationsFS, "migrations/postgres", current)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("executing migration %s: %w", m.name, err)
		}
	}
	return nil
}

// SaveJob inserts or replaces a job. An empty ID is assigned a UUID.
func (s *PostgresStore) SaveJob(ctx context.Context, job *types.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.PostedAt.IsZero() {
		job.PostedAt = time.Now().UTC()
	}
	requirements, spec, err := encodeJob(job)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, location, job_type, experience_level, salary, description, requirements, spec, posted_at, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			location = EXCLUDED.location,
			job_type = EXCLUDED.job_type,
			experience_level = EXCLUDED.experience_level,
			salary = EXCLUDED.salary,
			description = EXCLUDED.description,
			requirements = EXCLUDED.requirements,
			spec = EXCLUDED.spec,
			deadline = EXCLUDED.deadline`,
		job.ID, job.Title, job.Location, job.JobType, job.ExperienceLevel, job.Salary, job.Description,
		string(requirements), string(spec), job.PostedAt, job.Deadline,
	)
	if err != nil {
		return storeFailed("saving job", err)
	}
	return nil
}

const pgJobColumns = `id, title, location, job_type, experience_level, salary, description, requirements::text, spec::text, posted_at, deadline`

// GetJob retrieves a job by ID.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*types.Job, error) {
	job, err := scanPgJob(s.pool.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("job", id)
	}
	if err != nil {
		return nil, storeFailed("getting job", err)
	}
	return job, nil
}

// ListJobs returns all jobs, newest first.
func (s *PostgresStore) ListJobs(ctx context.Context) ([]types.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgJobColumns+` FROM jobs ORDER BY posted_at DESC`)
	if err != nil {
		return nil, storeFailed("listing jobs", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanPgJob(rows)
		if err != nil {
			return nil, storeFailed("scanning job", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed("iterating jobs", err)
	}
	return jobs, nil
}

// DeleteJob removes a job and its applications.
func (s *PostgresStore) DeleteJob(ctx context.Context, id string) error {
	return s.exec(ctx, "job", id, "deleting job", "DELETE FROM jobs WHERE id = $1", id)
}

// UpsertApplicant updates the applicant with the same email or inserts a
// new one.
func (s *PostgresStore) UpsertApplicant(ctx context.Context, applicant *types.Applicant) error {
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO applicants (id, first_name, last_name, email, phone)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone
		 RETURNING id`,
		applicant.ID, applicant.FirstName, applicant.LastName, applicant.Email, applicant.Phone,
	).Scan(&applicant.ID)
	if err != nil {
		return storeFailed("saving applicant", err)
	}
	return nil
}

// GetApplicant retrieves an applicant by ID.
func (s *PostgresStore) GetApplicant(ctx context.Context, id string) (*types.Applicant, error) {
	var a types.Applicant
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, email, phone FROM applicants WHERE id = $1`, id,
	).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("applicant", id)
	}
	if err != nil {
		return nil, storeFailed("getting applicant", err)
	}
	return &a, nil
}

// CreateApplication stores a new application in status submitted.
func (s *PostgresStore) CreateApplication(ctx context.Context, app *types.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.AppliedAt.IsZero() {
		app.AppliedAt = now
	}
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = types.StatusSubmitted
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO applications (id, applicant_id, job_id, resume_name, resume, status, score, call_id, report, applied_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		app.ID, app.ApplicantID, app.JobID, app.ResumeName, app.Resume, string(app.Status),
		app.Score, app.CallID, app.Report, app.AppliedAt, app.UpdatedAt,
	)
	if err != nil {
		return storeFailed("creating application", err)
	}
	return nil
}

// GetApplication retrieves an application including the résumé.
func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*types.Application, error) {
	var app types.Application
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, applicant_id, job_id, resume_name, resume, status, score, call_id, report, applied_at, updated_at
		 FROM applications WHERE id = $1`, id,
	).Scan(&app.ID, &app.ApplicantID, &app.JobID, &app.ResumeName, &app.Resume, &status,
		&app.Score, &app.CallID, &app.Report, &app.AppliedAt, &app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("application", id)
	}
	if err != nil {
		return nil, storeFailed("getting application", err)
	}
	app.Status = types.ApplicationStatus(status)
	return &app, nil
}

// ListApplications returns matching applications, newest first.
func (s *PostgresStore) ListApplications(ctx context.Context, filter ApplicationFilter) ([]types.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, applicant_id, job_id, resume_name, status, score, call_id, report, applied_at, updated_at
		 FROM applications
		 WHERE ($1 = '' OR job_id = $1) AND ($2 = '' OR status = $2)
		 ORDER BY applied_at DESC`,
		filter.JobID, string(filter.Status),
	)
	if err != nil {
		return nil, storeFailed("listing applications", err)
	}
	defer rows.Close()

	var apps []types.Application
	for rows.Next() {
		var app types.Application
		var status string
		if err := rows.Scan(&app.ID, &app.ApplicantID, &app.JobID, &app.ResumeName, &status,
			&app.Score, &app.CallID, &app.Report, &app.AppliedAt, &app.UpdatedAt); err != nil {
			return nil, storeFailed("scanning application", err)
		}
		app.Status = types.ApplicationStatus(status)
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed("iterating applications", err)
	}
	return apps, nil
}

// DeleteApplication removes an application.
func (s *PostgresStore) DeleteApplication(ctx context.Context, id string) error {
	return s.exec(ctx, "application", id, "deleting application", "DELETE FROM applications WHERE id = $1", id)
}

// RecordScore stores the score and the status it leads to.
func (s *PostgresStore) RecordScore(ctx context.Context, id string, score float64, status types.ApplicationStatus) error {
	return s.exec(ctx, "application", id, "recording score",
		`UPDATE applications SET score = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		score, string(status), id)
}

// RecordCall stores the placed call's ID.
func (s *PostgresStore) RecordCall(ctx context.Context, id, callID string) error {
	return s.exec(ctx, "application", id, "recording call",
		`UPDATE applications SET call_id = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		callID, string(types.StatusCallPlaced), id)
}

// SaveReport stores the post-call report and marks the application screened.
func (s *PostgresStore) SaveReport(ctx context.Context, id, report string) error {
	return s.exec(ctx, "application", id, "saving report",
		`UPDATE applications SET report = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		report, string(types.StatusScreened), id)
}

// Stats counts stored records.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Applications: map[types.ApplicationStatus]int{}}
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM jobs), (SELECT COUNT(*) FROM applicants)`,
	).Scan(&stats.Jobs, &stats.Applicants)
	if err != nil {
		return stats, storeFailed("counting records", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return stats, storeFailed("counting applications", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, storeFailed("scanning application counts", err)
		}
		stats.Applications[types.ApplicationStatus(status)] = n
	}
	return stats, rows.Err()
}

func (s *PostgresStore) exec(ctx context.Context, kind, id, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return storeFailed(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

func scanPgJob(row pgx.Row) (*types.Job, error) {
	var job types.Job
	var requirements, spec string
	if err := row.Scan(&job.ID, &job.Title, &job.Location, &job.JobType, &job.ExperienceLevel,
		&job.Salary, &job.Description, &requirements, &spec, &job.PostedAt, &job.Deadline); err != nil {
		return nil, err
	}
	if err := decodeJob(&job, []byte(requirements), []byte(spec)); err != nil {
		return nil, err
	}
	return &job, nil
}
