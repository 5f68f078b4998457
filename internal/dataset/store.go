package dataset

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"voxport/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Store provides read access to the audio record catalogue backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the record database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "records.db"))
}

// OpenPath opens a record database at an explicit path.
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
		return nil, fmt.Errorf("create record schema: %w", err)
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

// Put inserts or replaces a record. Used by ingestion and seeding.
func (s *Store) Put(ctx context.Context, record AudioRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("record id is required")
	}
	if !SupportedLanguage(record.Language) {
		return fmt.Errorf("unsupported language %q", record.Language)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO audio_records (
            id, language, category, speaker_id, transcript, duration,
            gender, age_group, education, snr, domain, split, storage_link, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		strings.ToLower(record.Language),
		string(record.Category),
		record.SpeakerID,
		nullableString(record.Transcript),
		record.Duration,
		record.Gender,
		record.AgeGroup,
		record.Education,
		record.SNR,
		record.Domain,
		record.Split,
		record.StorageLink,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Count returns the number of records matching the criteria, before any
// selector is applied.
func (s *Store) Count(ctx context.Context, criteria Criteria) (int, error) {
	where, args := buildWhere(criteria)
	var total int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audio_records`+where, args...)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return total, nil
}

// Resolve materializes the selected prefix of the matching record set,
// ordered by record id, along with the pre-selector total. Returns
// ErrNoRecords when nothing matches.
func (s *Store) Resolve(ctx context.Context, criteria Criteria, selector Selector) ([]AudioRecord, int, error) {
	total, count, err := s.resolveCount(ctx, criteria, selector)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildWhere(criteria)
	args = append(args, count)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM audio_records`+where+` ORDER BY id LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]AudioRecord, 0, count)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Stream returns a lazy cursor over the selected prefix of the matching
// record set, ordered by record id, along with the pre-selector total. The
// cursor is not safe for concurrent readers and must be closed.
func (s *Store) Stream(ctx context.Context, criteria Criteria, selector Selector) (*Cursor, int, error) {
	total, count, err := s.resolveCount(ctx, criteria, selector)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildWhere(criteria)
	args = append(args, count)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM audio_records`+where+` ORDER BY id LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	return &Cursor{rows: rows}, total, nil
}

// Preview returns the first limit matching records for playback sampling.
func (s *Store) Preview(ctx context.Context, criteria Criteria, limit int) ([]AudioRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	records, _, err := s.Resolve(ctx, criteria, LimitSelector(limit))
	return records, err
}

func (s *Store) resolveCount(ctx context.Context, criteria Criteria, selector Selector) (total, count int, err error) {
	total, err = s.Count(ctx, criteria)
	if err != nil {
		return 0, 0, err
	}
	count, err = selector.Count(total)
	if err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("%w for language %q", ErrNoRecords, criteria.Language)
	}
	return total, count, nil
}

func buildWhere(criteria Criteria) (string, []any) {
	clauses := []string{"language = ?"}
	args := []any{strings.ToLower(criteria.Language)}

	add := func(column, value string) {
		if value == "" {
			return
		}
		clauses = append(clauses, column+" = ?")
		args = append(args, value)
	}
	add("gender", criteria.Gender)
	add("age_group", criteria.AgeGroup)
	add("education", criteria.Education)
	add("domain", criteria.Domain)
	add("category", criteria.Category)
	add("split", criteria.Split)

	return " WHERE " + strings.Join(clauses, " AND "), args
}

const recordColumns = "id, language, category, speaker_id, transcript, duration, gender, age_group, education, snr, domain, split, storage_link, created_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (AudioRecord, error) {
	var (
		record     AudioRecord
		category   string
		transcript sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.Language,
		&category,
		&record.SpeakerID,
		&transcript,
		&record.Duration,
		&record.Gender,
		&record.AgeGroup,
		&record.Education,
		&record.SNR,
		&record.Domain,
		&record.Split,
		&record.StorageLink,
		&createdRaw,
	); err != nil {
		return AudioRecord{}, fmt.Errorf("scan record: %w", err)
	}
	record.Category = Category(category)
	record.Transcript = transcript.String
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
