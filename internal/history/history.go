// Package history persists one row per conversion so past runs can be
// inspected after the fact.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; old databases must be removed rather than migrated in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible
// comicreel version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Status classifies a recorded conversion.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is one finished conversion, successful or not.
type Record struct {
	ID              int64
	JobID           string
	ArchivePath     string
	ArchiveKind     string
	Title           string
	AudioPath       string
	OutputPath      string
	PagesExtracted  int
	PagesEncoded    int
	ExpectedSeconds float64
	Status          Status
	ErrorMessage    string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// ListOptions narrows a List call.
type ListOptions struct {
	// Limit caps the number of rows; values below one use a default of 20.
	Limit int
	// FailedOnly restricts results to failed conversions.
	FailedOnly bool
}

const defaultListLimit = 20

// Store manages conversion history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("history database path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
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

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Add inserts a conversion record and returns its row ID. Empty timestamps
// default to the current time.
func (s *Store) Add(ctx context.Context, rec Record) (int64, error) {
	if strings.TrimSpace(rec.ArchivePath) == "" {
		return 0, errors.New("archive path required")
	}
	if rec.Status != StatusSucceeded && rec.Status != StatusFailed {
		return 0, fmt.Errorf("unknown status %q", rec.Status)
	}

	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = now
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversions (
            job_id, archive_path, archive_kind, title, audio_path, output_path,
            pages_extracted, pages_encoded, expected_seconds,
            status, error_message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		rec.ArchivePath,
		rec.ArchiveKind,
		nullableString(rec.Title),
		nullableString(rec.AudioPath),
		nullableString(rec.OutputPath),
		rec.PagesExtracted,
		rec.PagesEncoded,
		rec.ExpectedSeconds,
		string(rec.Status),
		nullableString(rec.ErrorMessage),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert conversion: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const recordColumns = "id, job_id, archive_path, archive_kind, title, audio_path, output_path, pages_extracted, pages_encoded, expected_seconds, status, error_message, started_at, finished_at"

// List returns recent conversions, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	limit := opts.Limit
	if limit < 1 {
		limit = defaultListLimit
	}

	query := "SELECT " + recordColumns + " FROM conversions"
	args := make([]any, 0, 2)
	if opts.FailedOnly {
		query += " WHERE status = ?"
		args = append(args, string(StatusFailed))
	}
	query += " ORDER BY finished_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return records, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec         Record
		title       sql.NullString
		audioPath   sql.NullString
		outputPath  sql.NullString
		errMessage  sql.NullString
		statusStr   string
		startedRaw  string
		finishedRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.JobID,
		&rec.ArchivePath,
		&rec.ArchiveKind,
		&title,
		&audioPath,
		&outputPath,
		&rec.PagesExtracted,
		&rec.PagesEncoded,
		&rec.ExpectedSeconds,
		&statusStr,
		&errMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Record{}, err
	}

	rec.Title = title.String
	rec.AudioPath = audioPath.String
	rec.OutputPath = outputPath.String
	rec.ErrorMessage = errMessage.String
	rec.Status = Status(statusStr)
	rec.StartedAt = parseTime(startedRaw)
	rec.FinishedAt = parseTime(finishedRaw)
	return rec, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
