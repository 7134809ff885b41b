// Package sqlite provides the SQLite-backed registry journal and relay
// cursor store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/didregistry/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"github.com/louisbranch/didregistry/internal/services/registry/storage"
	"github.com/louisbranch/didregistry/internal/services/registry/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Store persists the registry journal in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ storage.Journal     = (*Store)(nil)
	_ storage.CursorStore = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite registry store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes appends so seq allocation never races.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendEvent seals evt against the current chain head and inserts it in one
// transaction.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event, afterSeq uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if err := evt.Validate(); err != nil {
		return event.Event{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		headSeq  int64
		headHash string
	)
	err = tx.QueryRowContext(ctx, `SELECT seq, hash FROM events ORDER BY seq DESC LIMIT 1`).Scan(&headSeq, &headHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, fmt.Errorf("load chain head: %w", err)
	}
	if uint64(headSeq) != afterSeq {
		return event.Event{}, fmt.Errorf("%w: journal head is seq %d, expected %d", event.ErrChainBroken, headSeq, afterSeq)
	}

	sealed, err := event.Seal(evt, uint64(headSeq)+1, headHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("seal event: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO events (
		   seq,
		   event_id,
		   kind,
		   did,
		   owner,
		   content_address,
		   occurred_at,
		   prev_hash,
		   hash
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(sealed.Seq),
		sealed.ID,
		string(sealed.Kind),
		sealed.DID,
		sealed.Owner,
		sealed.ContentAddress,
		toMillis(sealed.OccurredAt),
		sealed.PrevHash,
		sealed.Hash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return event.Event{}, fmt.Errorf("%w: %s", storage.ErrDuplicateEvent, sealed.ID)
		}
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}
	return sealed, nil
}

// ListEvents returns up to limit events after afterSeq in seq order. A
// non-positive limit selects the default page size.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, event_id, kind, did, owner, content_address, occurred_at, prev_hash, hash
		 FROM events
		 WHERE seq > ?
		 ORDER BY seq
		 LIMIT ?`,
		int64(afterSeq),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, limit)
	for rows.Next() {
		var (
			evt        event.Event
			seq        int64
			kind       string
			occurredAt int64
		)
		if err := rows.Scan(&seq, &evt.ID, &kind, &evt.DID, &evt.Owner, &evt.ContentAddress, &occurredAt, &evt.PrevHash, &evt.Hash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Kind = event.Kind(kind)
		evt.OccurredAt = fromMillis(occurredAt)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LatestSeq returns the highest journaled seq, or 0 for an empty journal.
func (s *Store) LatestSeq(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var seq int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return uint64(seq), nil
}

// GetCursor returns the last processed seq for name, or 0 when unset.
func (s *Store) GetCursor(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("cursor name is required")
	}
	var seq int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT seq FROM relay_cursors WHERE name = ?`, name).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor %s: %w", name, err)
	}
	return uint64(seq), nil
}

// SaveCursor upserts the cursor for name. Saving a lower seq than the one
// stored fails with storage.ErrCursorRegression; saving the same seq is a
// no-op.
func (s *Store) SaveCursor(ctx context.Context, name string, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("cursor name is required")
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO relay_cursors (name, seq, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		     seq = excluded.seq,
		     updated_at = excluded.updated_at
		 WHERE excluded.seq >= relay_cursors.seq`,
		name,
		int64(seq),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s to %d", storage.ErrCursorRegression, name, seq)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
