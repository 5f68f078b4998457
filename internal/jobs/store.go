package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voxport/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// Store manages export job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "jobs.db"))
}

// OpenPath opens a job database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create job schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new queued job and returns it with its generated id.
func (s *Store) Create(ctx context.Context, job Job) (*Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Format == "" {
		job.Format = "csv"
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO export_jobs (
            id, user_id, language, percentage, gender, age_group, education,
            domain, category, split, format, status, progress_pct, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.UserID,
		job.Language,
		job.Percentage,
		job.Gender,
		job.AgeGroup,
		job.Education,
		job.Domain,
		job.Category,
		job.Split,
		job.Format,
		StatusQueued,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.Get(ctx, job.ID)
}

// Get fetches a job by id. Returns ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimQueued atomically moves the oldest queued job to processing and
// returns it. Returns nil when nothing is queued.
func (s *Store) ClaimQueued(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM export_jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusQueued,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select queued job: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE export_jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing,
		now,
		now,
		id,
		StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job rows: %w", err)
	}
	if affected == 0 {
		// Another worker won the claim.
		return nil, nil
	}
	return s.Get(ctx, id)
}

// SetProgress records pipeline progress for a processing job.
func (s *Store) SetProgress(ctx context.Context, id string, progressPct, sampleCount, totalCount int) error {
	return s.update(
		ctx,
		`UPDATE export_jobs SET progress_pct = ?, sample_count = ?, total_count = ?, updated_at = ? WHERE id = ?`,
		progressPct,
		sampleCount,
		totalCount,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
}

// SetReady marks a job complete with its archive location and download URL.
func (s *Store) SetReady(ctx context.Context, id, archiveKey, downloadURL string, sampleCount int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.update(
		ctx,
		`UPDATE export_jobs
         SET status = ?, progress_pct = 100, archive_key = ?, download_url = ?,
             sample_count = ?, error_message = NULL, updated_at = ?, finished_at = ?
         WHERE id = ?`,
		StatusReady,
		archiveKey,
		downloadURL,
		sampleCount,
		now,
		now,
		id,
	)
}

// SetFailed marks a job failed with a human-readable reason.
func (s *Store) SetFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.update(
		ctx,
		`UPDATE export_jobs SET status = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		StatusFailed,
		message,
		now,
		now,
		id,
	)
}

// List returns jobs ordered newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM export_jobs`
	args := []any{}
	if status != "" {
		if !ValidStatus(status) {
			return nil, fmt.Errorf("unknown status %q", status)
		}
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResetStuckProcessing returns jobs left in processing by a previous run to
// the queue so they are picked up again.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE export_jobs
         SET status = ?, progress_pct = 0, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates job counts per lifecycle state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM export_jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case StatusQueued:
			stats.Queued = count
		case StatusProcessing:
			stats.Processing = count
		case StatusReady:
			stats.Ready = count
		case StatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const jobColumns = `id, user_id, language, percentage, gender, age_group, education,
    domain, category, split, format, status, progress_pct, sample_count, total_count,
    archive_key, download_url, error_message, created_at, updated_at, started_at, finished_at`

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		status       string
		archiveKey   sql.NullString
		downloadURL  sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.UserID,
		&job.Language,
		&job.Percentage,
		&job.Gender,
		&job.AgeGroup,
		&job.Education,
		&job.Domain,
		&job.Category,
		&job.Split,
		&job.Format,
		&status,
		&job.ProgressPct,
		&job.SampleCount,
		&job.TotalCount,
		&archiveKey,
		&downloadURL,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = Status(status)
	job.ArchiveKey = archiveKey.String
	job.DownloadURL = downloadURL.String
	job.ErrorMessage = errorMessage.String
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	if startedRaw.Valid {
		job.StartedAt = parseTime(startedRaw.String)
	}
	if finishedRaw.Valid {
		job.FinishedAt = parseTime(finishedRaw.String)
	}
	return &job, nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
