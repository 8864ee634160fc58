// Package storage holds the companion's local snapshot database: the
// financial context entries the host pushes for the Context Provider
// and the append-only advice history. Overlay lifecycle state never
// touches this database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SnapshotEntry is one line of the user's cached financial overview.
type SnapshotEntry struct {
	Label       string
	AmountMinor int64
	Currency    string
}

// Snapshot is the cached financial state for one user.
type Snapshot struct {
	User      string
	Entries   []SnapshotEntry
	Note      string
	UpdatedAt time.Time
}

// AdviceRecord is one completed capture-and-advice cycle.
type AdviceRecord struct {
	ID             int64
	User           string
	ContextExcerpt string
	OK             bool
	Message        string
	CreatedAt      time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReplaceSnapshot swaps the user's cached entries for a new set in one
// transaction. An empty entry list clears the snapshot.
func (r *SQLiteRepository) ReplaceSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_entries WHERE user_id = ?`, snap.User); err != nil {
		return fmt.Errorf("clear snapshot entries: %w", err)
	}
	for _, e := range snap.Entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_entries (user_id, label, amount_minor, currency, updated_at) VALUES (?, ?, ?, ?, ?)`,
			snap.User, e.Label, e.AmountMinor, e.Currency, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert snapshot entry: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_notes (user_id, note, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET note = excluded.note, updated_at = excluded.updated_at`,
		snap.User, snap.Note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert snapshot note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the user's cached financial state, or nil when
// nothing has been cached for them yet.
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, user string) (*Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT label, amount_minor, currency, updated_at FROM snapshot_entries WHERE user_id = ? ORDER BY id`, user)
	if err != nil {
		return nil, fmt.Errorf("query snapshot entries: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{User: user}
	for rows.Next() {
		var e SnapshotEntry
		var updatedAt time.Time
		if err := rows.Scan(&e.Label, &e.AmountMinor, &e.Currency, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot entry: %w", err)
		}
		if updatedAt.After(snap.UpdatedAt) {
			snap.UpdatedAt = updatedAt
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot entries: %w", err)
	}

	var note string
	var noteAt time.Time
	err = r.db.QueryRowContext(ctx,
		`SELECT note, updated_at FROM snapshot_notes WHERE user_id = ?`, user).Scan(&note, &noteAt)
	switch {
	case err == sql.ErrNoRows:
		// no note cached
	case err != nil:
		return nil, fmt.Errorf("query snapshot note: %w", err)
	default:
		snap.Note = note
		if noteAt.After(snap.UpdatedAt) {
			snap.UpdatedAt = noteAt
		}
	}

	if len(snap.Entries) == 0 && snap.Note == "" {
		return nil, nil
	}
	return snap, nil
}

// AppendAdvice records one completed cycle in the history log.
func (r *SQLiteRepository) AppendAdvice(ctx context.Context, rec AdviceRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO advice_history (user_id, context_excerpt, ok, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.User, rec.ContextExcerpt, rec.OK, rec.Message, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("append advice record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("advice record id: %w", err)
	}
	return id, nil
}

// RecentAdvice returns up to limit history records for a user, newest
// first. Operator diagnostics only; the cycle never reads this back.
func (r *SQLiteRepository) RecentAdvice(ctx context.Context, user string, limit int) ([]AdviceRecord, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, context_excerpt, ok, message, created_at
		 FROM advice_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("query advice history: %w", err)
	}
	defer rows.Close()

	var out []AdviceRecord
	for rows.Next() {
		var rec AdviceRecord
		if err := rows.Scan(&rec.ID, &rec.User, &rec.ContextExcerpt, &rec.OK, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan advice record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
