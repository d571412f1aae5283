package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"callscreen/internal/types"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore is the default single-node store.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path and applies
// pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "callscreen.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	migrations, err := pendingMigrations(migrationsFS, "migrations/sqlite", current)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("executing migration %s: %w", m.name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.name, err)
		}
	}
	return nil
}

type migration struct {
	version int
	name    string
	sql     string
}

// pendingMigrations returns the "NNN_name.up.sql" files in dir newer than
// current, in version order.
func pendingMigrations(fsys fs.FS, dir string, current int) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var out []migration
	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}
		out = append(out, migration{version: version, name: name, sql: string(content)})
	}
	return out, nil
}

// ==================== Jobs ====================

// SaveJob inserts or replaces a job. An empty ID is assigned a UUID.
func (s *SQLiteStore) SaveJob(ctx context.Context, job *types.Job) error {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, title, location, job_type, experience_level, salary, description, requirements, spec, posted_at, deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			location = excluded.location,
			job_type = excluded.job_type,
			experience_level = excluded.experience_level,
			salary = excluded.salary,
			description = excluded.description,
			requirements = excluded.requirements,
			spec = excluded.spec,
			deadline = excluded.deadline
	`, job.ID, job.Title, job.Location, job.JobType, job.ExperienceLevel, job.Salary, job.Description,
		string(requirements), string(spec), job.PostedAt, nullTime(job.Deadline))
	if err != nil {
		return storeFailed("saving job", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*types.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, location, job_type, experience_level, salary, description, requirements, spec, posted_at, deadline
		FROM jobs WHERE id = ?
	`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("job", id)
	}
	if err != nil {
		return nil, storeFailed("getting job", err)
	}
	return job, nil
}

// ListJobs returns all jobs, newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]types.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, location, job_type, experience_level, salary, description, requirements, spec, posted_at, deadline
		FROM jobs ORDER BY posted_at DESC
	`)
	if err != nil {
		return nil, storeFailed("listing jobs", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
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
func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "jobs", "job", id)
}

// ==================== Applicants ====================

// UpsertApplicant updates the applicant with the same email or inserts a
// new one.
func (s *SQLiteStore) UpsertApplicant(ctx context.Context, applicant *types.Applicant) error {
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO applicants (id, first_name, last_name, email, phone)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone
		RETURNING id
	`, applicant.ID, applicant.FirstName, applicant.LastName, applicant.Email, applicant.Phone).Scan(&applicant.ID)
	if err != nil {
		return storeFailed("saving applicant", err)
	}
	return nil
}

// GetApplicant retrieves an applicant by ID.
func (s *SQLiteStore) GetApplicant(ctx context.Context, id string) (*types.Applicant, error) {
	var a types.Applicant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone FROM applicants WHERE id = ?
	`, id).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("applicant", id)
	}
	if err != nil {
		return nil, storeFailed("getting applicant", err)
	}
	return &a, nil
}

// ==================== Applications ====================

// CreateApplication stores a new application in status submitted.
func (s *SQLiteStore) CreateApplication(ctx context.Context, app *types.Application) error {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (id, applicant_id, job_id, resume_name, resume, status, score, call_id, report, applied_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, app.ID, app.ApplicantID, app.JobID, app.ResumeName, app.Resume, string(app.Status),
		nullFloat(app.Score), app.CallID, app.Report, app.AppliedAt, app.UpdatedAt)
	if err != nil {
		return storeFailed("creating application", err)
	}
	return nil
}

// GetApplication retrieves an application including the résumé.
func (s *SQLiteStore) GetApplication(ctx context.Context, id string) (*types.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, applicant_id, job_id, resume_name, resume, status, score, call_id, report, applied_at, updated_at
		FROM applications WHERE id = ?
	`, id)
	app, err := scanApplication(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("application", id)
	}
	if err != nil {
		return nil, storeFailed("getting application", err)
	}
	return app, nil
}

// ListApplications returns matching applications, newest first.
func (s *SQLiteStore) ListApplications(ctx context.Context, filter ApplicationFilter) ([]types.Application, error) {
	query := `
		SELECT id, applicant_id, job_id, resume_name, status, score, call_id, report, applied_at, updated_at
		FROM applications WHERE 1 = 1`
	var args []any
	if filter.JobID != "" {
		query += " AND job_id = ?"
		args = append(args, filter.JobID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY applied_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeFailed("listing applications", err)
	}
	defer rows.Close()

	var apps []types.Application
	for rows.Next() {
		app, err := scanApplication(rows, false)
		if err != nil {
			return nil, storeFailed("scanning application", err)
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed("iterating applications", err)
	}
	return apps, nil
}

// DeleteApplication removes an application.
func (s *SQLiteStore) DeleteApplication(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "applications", "application", id)
}

// RecordScore stores the score and the status it leads to.
func (s *SQLiteStore) RecordScore(ctx context.Context, id string, score float64, status types.ApplicationStatus) error {
	return s.update(ctx, id, "recording score",
		"UPDATE applications SET score = ?, status = ?, updated_at = ? WHERE id = ?",
		score, string(status), time.Now().UTC(), id)
}

// RecordCall stores the placed call's ID.
func (s *SQLiteStore) RecordCall(ctx context.Context, id, callID string) error {
	return s.update(ctx, id, "recording call",
		"UPDATE applications SET call_id = ?, status = ?, updated_at = ? WHERE id = ?",
		callID, string(types.StatusCallPlaced), time.Now().UTC(), id)
}

// SaveReport stores the post-call report and marks the application screened.
func (s *SQLiteStore) SaveReport(ctx context.Context, id, report string) error {
	return s.update(ctx, id, "saving report",
		"UPDATE applications SET report = ?, status = ?, updated_at = ? WHERE id = ?",
		report, string(types.StatusScreened), time.Now().UTC(), id)
}

// Stats counts stored records.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Applications: map[types.ApplicationStatus]int{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&stats.Jobs); err != nil {
		return stats, storeFailed("counting jobs", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM applicants").Scan(&stats.Applicants); err != nil {
		return stats, storeFailed("counting applicants", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM applications GROUP BY status")
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

func (s *SQLiteStore) update(ctx context.Context, id, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storeFailed(op, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notFound("application", id)
	}
	return nil
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table, kind, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return storeFailed("deleting "+kind, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// ==================== Helpers ====================

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*types.Job, error) {
	var job types.Job
	var requirements, spec string
	var deadline sql.NullTime
	if err := row.Scan(&job.ID, &job.Title, &job.Location, &job.JobType, &job.ExperienceLevel,
		&job.Salary, &job.Description, &requirements, &spec, &job.PostedAt, &deadline); err != nil {
		return nil, err
	}
	if err := decodeJob(&job, []byte(requirements), []byte(spec)); err != nil {
		return nil, err
	}
	if deadline.Valid {
		t := deadline.Time
		job.Deadline = &t
	}
	return &job, nil
}

func scanApplication(row scanner, withResume bool) (*types.Application, error) {
	var app types.Application
	var status string
	var score sql.NullFloat64
	dest := []any{&app.ID, &app.ApplicantID, &app.JobID, &app.ResumeName}
	if withResume {
		dest = append(dest, &app.Resume)
	}
	dest = append(dest, &status, &score, &app.CallID, &app.Report, &app.AppliedAt, &app.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	app.Status = types.ApplicationStatus(status)
	if score.Valid {
		v := score.Float64
		app.Score = &v
	}
	return &app, nil
}

func encodeJob(job *types.Job) (requirements, spec []byte, err error) {
	reqs := job.Requirements
	if reqs == nil {
		reqs = []string{}
	}
	if requirements, err = json.Marshal(reqs); err != nil {
		return nil, nil, fmt.Errorf("marshalling requirements: %w", err)
	}
	if spec, err = json.Marshal(job.Spec); err != nil {
		return nil, nil, fmt.Errorf("marshalling job specification: %w", err)
	}
	return requirements, spec, nil
}

func decodeJob(job *types.Job, requirements, spec []byte) error {
	if err := json.Unmarshal(requirements, &job.Requirements); err != nil {
		return fmt.Errorf("unmarshalling requirements: %w", err)
	}
	if err := json.Unmarshal(spec, &job.Spec); err != nil {
		return fmt.Errorf("unmarshalling job specification: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
