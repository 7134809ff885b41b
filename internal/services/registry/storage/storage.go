// Package storage defines persistence contracts for the DID registry.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/didregistry/internal/services/registry/event"
)

var (
	// ErrDuplicateEvent indicates an event id was already journaled.
	ErrDuplicateEvent = errors.New("event already journaled")
	// ErrCursorRegression indicates a cursor save that would move backwards.
	ErrCursorRegression = errors.New("cursor cannot move backwards")
)

// Journal is the append-only, hash-chained registry event log.
type Journal interface {
	// AppendEvent assigns seq, prev hash, and hash atomically and returns the
	// stored event. It writes nothing and fails with event.ErrChainBroken when
	// the journal head is not afterSeq.
	AppendEvent(ctx context.Context, evt event.Event, afterSeq uint64) (event.Event, error)
	// ListEvents returns up to limit events with seq > afterSeq, ascending.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the highest journaled seq, or 0 when empty.
	LatestSeq(ctx context.Context) (uint64, error)
}

// CursorStore tracks how far named consumers have read the journal.
type CursorStore interface {
	// GetCursor returns the last processed seq for name, or 0 when unset.
	GetCursor(ctx context.Context, name string) (uint64, error)
	// SaveCursor records seq for name. It never moves a cursor backwards.
	SaveCursor(ctx context.Context, name string, seq uint64) error
}
