package core

import (
	"context"
	"fmt"

	"github.com/louisbranch/didregistry/internal/services/registry/event"
)

// Replay applies every journal event after the last applied seq, verifying
// the hash chain as it goes. Sinks are not notified. It returns the number of
// events applied.
func (r *Registry) Replay(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := r.tracer.Start(ctx, "registry.replay")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, endSpan(span, err)
		}
		events, err := r.journal.ListEvents(ctx, r.lastSeq, replayPageSize)
		if err != nil {
			return applied, endSpan(span, fmt.Errorf("list journal events after %d: %w", r.lastSeq, err))
		}
		if len(events) == 0 {
			return applied, nil
		}
		for _, evt := range events {
			if err := r.apply(evt); err != nil {
				return applied, endSpan(span, err)
			}
			applied++
		}
	}
}

// apply folds one historical event into the mapping. Caller holds r.mu.
func (r *Registry) apply(evt event.Event) error {
	if err := event.VerifyNext(evt, r.lastSeq, r.lastHash); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptJournal, err)
	}

	rec, exists := r.records[evt.DID]
	switch evt.Kind {
	case event.KindCreated:
		if !ValidIdentifier(evt.DID, r.prefix) {
			return r.corrupt(evt, "identifier does not match prefix %q", r.prefix)
		}
		if exists {
			return r.corrupt(evt, "identifier already exists")
		}
		r.records[evt.DID] = Record{
			DID:            evt.DID,
			Owner:          Principal(evt.Owner),
			ContentAddress: evt.ContentAddress,
			Live:           true,
			CreatedAt:      evt.OccurredAt,
			UpdatedAt:      evt.OccurredAt,
			Version:        evt.Seq,
		}
	case event.KindUpdated:
		if !exists {
			return r.corrupt(evt, "identifier not found")
		}
		if rec.Owner != Principal(evt.Owner) {
			return r.corrupt(evt, "owner mismatch")
		}
		rec.ContentAddress = evt.ContentAddress
		rec.UpdatedAt = evt.OccurredAt
		rec.Version = evt.Seq
		r.records[evt.DID] = rec
	case event.KindRevoked:
		if !exists {
			return r.corrupt(evt, "identifier not found")
		}
		if rec.Owner != Principal(evt.Owner) {
			return r.corrupt(evt, "owner mismatch")
		}
		delete(r.records, evt.DID)
	default:
		return r.corrupt(evt, "unknown kind %q", evt.Kind)
	}

	r.lastSeq = evt.Seq
	r.lastHash = evt.Hash
	return nil
}

func (r *Registry) corrupt(evt event.Event, format string, args ...any) error {
	return fmt.Errorf("%w: seq %d %s %s: %s", ErrCorruptJournal, evt.Seq, evt.Kind, evt.DID, fmt.Sprintf(format, args...))
}
