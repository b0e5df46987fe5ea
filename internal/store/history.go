package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Change kinds stored in pass_changes
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
)

// Pass is one recorded reconciliation pass
type Pass struct {
	ID             string
	Location       string
	StartedAt      time.Time
	Duration       time.Duration
	Added          []string
	Unchanged      int
	Removed        []string
	MetadataErrors int
	Error          string

	// Set when loaded without change lists
	AddedCount   int
	RemovedCount int
}

// Deletion is one recorded user deletion
type Deletion struct {
	ID           int64
	Location     string
	AudioFile    string
	MetadataFile string
	DeletedFiles []string
	DeletedAt    time.Time
	Error        string
}

// NewPassID returns a fresh pass identifier
func NewPassID() string {
	return uuid.NewString()
}

// RecordPass stores a pass and its change lists in one transaction
func (s *Store) RecordPass(ctx context.Context, p *Pass) error {
	if p.ID == "" {
		p.ID = NewPassID()
	}
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now()
	}

	return s.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO passes (id, location, started_at_ms, duration_ms, added, unchanged, removed, metadata_errors, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Location, p.StartedAt.UnixMilli(), p.Duration.Milliseconds(),
			len(p.Added), p.Unchanged, len(p.Removed), p.MetadataErrors, nullString(p.Error))
		if err != nil {
			return fmt.Errorf("failed to insert pass: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO pass_changes (pass_id, change, audio_file) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare change insert: %w", err)
		}
		defer stmt.Close()

		for _, name := range p.Added {
			if _, err := stmt.ExecContext(ctx, p.ID, ChangeAdded, name); err != nil {
				return fmt.Errorf("failed to insert change: %w", err)
			}
		}
		for _, name := range p.Removed {
			if _, err := stmt.ExecContext(ctx, p.ID, ChangeRemoved, name); err != nil {
				return fmt.Errorf("failed to insert change: %w", err)
			}
		}
		return nil
	})
}

// RecentPasses returns up to limit passes for location, newest first.
// An empty location matches every location.
func (s *Store) RecentPasses(ctx context.Context, location string, limit int) ([]*Pass, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location, started_at_ms, duration_ms, added, unchanged, removed,
		       metadata_errors, COALESCE(error, '')
		FROM passes
		WHERE ? = '' OR location = ?
		ORDER BY started_at_ms DESC, rowid DESC
		LIMIT ?
	`, location, location, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	var passes []*Pass
	for rows.Next() {
		p := &Pass{}
		var startedMs, durationMs int64
		if err := rows.Scan(&p.ID, &p.Location, &startedMs, &durationMs, &p.AddedCount,
			&p.Unchanged, &p.RemovedCount, &p.MetadataErrors, &p.Error); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		p.StartedAt = time.UnixMilli(startedMs)
		p.Duration = time.Duration(durationMs) * time.Millisecond
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// PassChanges loads the added and removed audio files of a pass
func (s *Store) PassChanges(ctx context.Context, passID string) (added, removed []string, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT change, audio_file FROM pass_changes
		WHERE pass_id = ?
		ORDER BY audio_file
	`, passID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var change, name string
		if err := rows.Scan(&change, &name); err != nil {
			return nil, nil, fmt.Errorf("failed to scan change: %w", err)
		}
		switch change {
		case ChangeAdded:
			added = append(added, name)
		case ChangeRemoved:
			removed = append(removed, name)
		}
	}
	return added, removed, rows.Err()
}

// RecordDeletion stores a deletion attempt
func (s *Store) RecordDeletion(ctx context.Context, d *Deletion) error {
	if d.DeletedAt.IsZero() {
		d.DeletedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO deletions (location, audio_file, metadata_file, deleted_files, deleted_at_ms, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.Location, d.AudioFile, nullString(d.MetadataFile), strings.Join(d.DeletedFiles, "\n"),
		d.DeletedAt.UnixMilli(), nullString(d.Error))
	if err != nil {
		return fmt.Errorf("failed to insert deletion: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		d.ID = id
	}
	return nil
}

// RecentDeletions returns up to limit deletions for location, newest first
func (s *Store) RecentDeletions(ctx context.Context, location string, limit int) ([]*Deletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location, audio_file, COALESCE(metadata_file, ''), COALESCE(deleted_files, ''),
		       deleted_at_ms, COALESCE(error, '')
		FROM deletions
		WHERE ? = '' OR location = ?
		ORDER BY deleted_at_ms DESC, id DESC
		LIMIT ?
	`, location, location, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deletions: %w", err)
	}
	defer rows.Close()

	var deletions []*Deletion
	for rows.Next() {
		d := &Deletion{}
		var files string
		var atMs int64
		if err := rows.Scan(&d.ID, &d.Location, &d.AudioFile, &d.MetadataFile, &files, &atMs, &d.Error); err != nil {
			return nil, fmt.Errorf("failed to scan deletion: %w", err)
		}
		if files != "" {
			d.DeletedFiles = strings.Split(files, "\n")
		}
		d.DeletedAt = time.UnixMilli(atMs)
		deletions = append(deletions, d)
	}
	return deletions, rows.Err()
}

// PrunePasses keeps the newest keep passes per location and deletes the rest
func (s *Store) PrunePasses(ctx context.Context, keep int) (int64, error) {
	var removed int64
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		const stale = `
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY location ORDER BY started_at_ms DESC, rowid DESC) AS rn
				FROM passes
			) WHERE rn > ?`
		if _, err := tx.ExecContext(ctx, `DELETE FROM pass_changes WHERE pass_id IN (`+stale+`)`, keep); err != nil {
			return fmt.Errorf("failed to prune changes: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM passes WHERE id IN (`+stale+`)`, keep)
		if err != nil {
			return fmt.Errorf("failed to prune passes: %w", err)
		}
		removed, _ = result.RowsAffected()
		return nil
	})
	return removed, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
