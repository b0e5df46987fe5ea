package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store records the history of reconciliation passes and deletions.
// The recordings index itself lives in the index document, not here.
type Store struct {
	db *sql.DB
}

// OpenOptions holds options for opening a history database
type OpenOptions struct {
	NetworkOptimized bool // history file lives on a network mount
}

// migration brings the schema from version-1 to version
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "pass and deletion history", schemaV1},
	{2, "history lookup indexes", schemaV2},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// pragmas run on every connection
var basePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// Fewer fsyncs and round-trips when the file is on SMB/NFS
var networkPragmas = []string{
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"cache_size(-64000)",
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates the history database at path and
// migrates it to the current schema
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	db, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One writer; passes and deletions are recorded one at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("history migration failed: %w", err)
	}
	return s, nil
}

func dsn(path string, opts *OpenOptions) string {
	q := url.Values{}
	for _, p := range basePragmas {
		q.Add("_pragma", p)
	}
	if opts.NetworkOptimized {
		for _, p := range networkPragmas {
			q.Add("_pragma", p)
		}
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies every migration newer than the recorded schema version
// in a single transaction
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, versionTable); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("history schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}

	return s.Transaction(ctx, func(tx *sql.Tx) error {
		for _, m := range migrations {
			if m.version <= version {
				continue
			}
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("schema v%d (%s): %w", m.version, m.name, err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("failed to record schema v%d: %w", m.version, err)
			}
		}
		return nil
	})
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Transaction runs fn in a transaction, committing only when fn succeeds
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CheckIntegrity reports every problem PRAGMA integrity_check finds
func (s *Store) CheckIntegrity(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("integrity check scan failed: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// SQLiteVersion returns the version of the linked SQLite library
func SQLiteVersion() (string, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return "", err
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}
