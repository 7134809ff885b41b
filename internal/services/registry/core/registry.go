// Package core holds the ownership-gated DID registry: an in-memory mapping
// from identifier to pointer record, backed by a write-ahead event journal.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "github.com/louisbranch/didregistry/internal/services/registry/core"
	replayPageSize = 500
)

// Journal durably orders registry events. AppendEvent assigns Seq, PrevHash
// and Hash, and must write nothing when its head is not afterSeq; ListEvents
// returns events with seq > afterSeq in ascending order.
type Journal interface {
	AppendEvent(ctx context.Context, evt event.Event, afterSeq uint64) (event.Event, error)
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Sink receives committed events in application order. Publish must not block.
type Sink interface {
	Publish(evt event.Event)
}

// Option configures a Registry.
type Option func(*Registry)

// WithPrefix sets the required identifier prefix.
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// WithSink adds a sink notified after each committed mutation.
func WithSink(sink Sink) Option {
	return func(r *Registry) {
		if sink != nil {
			r.sinks = append(r.sinks, sink)
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.clock = now
		}
	}
}

// WithIDGenerator overrides the event id source.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// WithTracer overrides the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// Registry maps identifiers to pointer records. Every operation runs under a
// single mutex covering check, journal append, mutation and notification, so
// journal order, mapping state and sink order always agree.
type Registry struct {
	mu       sync.Mutex
	records  map[string]Record
	lastSeq  uint64
	lastHash string

	prefix  string
	journal Journal
	sinks   []Sink
	clock   func() time.Time
	newID   func() string
	tracer  trace.Tracer
}

// New creates an empty registry writing to journal. Call Replay before
// serving when the journal may already hold events; Open does both.
func New(journal Journal, opts ...Option) (*Registry, error) {
	if journal == nil {
		return nil, fmt.Errorf("journal is required")
	}
	r := &Registry{
		records: make(map[string]Record),
		prefix:  DefaultPrefix,
		journal: journal,
		clock:   time.Now,
		newID:   uuid.NewString,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if err := checkPrefix(r.prefix); err != nil {
		return nil, err
	}
	return r, nil
}

// Open creates a registry and rebuilds its state from the journal.
func Open(ctx context.Context, journal Journal, opts ...Option) (*Registry, error) {
	r, err := New(journal, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := r.Replay(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Prefix returns the required identifier prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// LastSeq returns the seq of the last applied journal event.
func (r *Registry) LastSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeq
}

// Create registers id with caller as owner.
func (r *Registry) Create(ctx context.Context, id, contentAddress string, caller Principal) (Record, error) {
	ctx, span := r.startSpan(ctx, "registry.create", id)
	defer span.End()

	rec, err := r.create(ctx, id, contentAddress, caller)
	return rec, endSpan(span, err)
}

func (r *Registry) create(ctx context.Context, id, contentAddress string, caller Principal) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !ValidIdentifier(id, r.prefix) {
		return Record{}, invalidIdentifier(id, r.prefix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; ok {
		return Record{}, alreadyExists(id)
	}
	stored, err := r.commit(ctx, event.Event{
		Kind:           event.KindCreated,
		DID:            id,
		Owner:          string(caller),
		ContentAddress: contentAddress,
	})
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		DID:            id,
		Owner:          caller,
		ContentAddress: contentAddress,
		Live:           true,
		CreatedAt:      stored.OccurredAt,
		UpdatedAt:      stored.OccurredAt,
		Version:        stored.Seq,
	}
	r.records[id] = rec
	r.publish(stored)
	return rec, nil
}

// Update replaces the content address of id. Only the owner may update.
func (r *Registry) Update(ctx context.Context, id, contentAddress string, caller Principal) (Record, error) {
	ctx, span := r.startSpan(ctx, "registry.update", id)
	defer span.End()

	rec, err := r.update(ctx, id, contentAddress, caller)
	return rec, endSpan(span, err)
}

func (r *Registry) update(ctx context.Context, id, contentAddress string, caller Principal) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.owned(id, caller)
	if err != nil {
		return Record{}, err
	}
	stored, err := r.commit(ctx, event.Event{
		Kind:           event.KindUpdated,
		DID:            id,
		Owner:          string(rec.Owner),
		ContentAddress: contentAddress,
	})
	if err != nil {
		return Record{}, err
	}
	rec.ContentAddress = contentAddress
	rec.UpdatedAt = stored.OccurredAt
	rec.Version = stored.Seq
	r.records[id] = rec
	r.publish(stored)
	return rec, nil
}

// Revoke removes id from the registry. Only the owner may revoke. The
// identifier may be created again afterwards, by any caller.
func (r *Registry) Revoke(ctx context.Context, id string, caller Principal) error {
	ctx, span := r.startSpan(ctx, "registry.revoke", id)
	defer span.End()

	return endSpan(span, r.revoke(ctx, id, caller))
}

func (r *Registry) revoke(ctx context.Context, id string, caller Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.owned(id, caller)
	if err != nil {
		return err
	}
	stored, err := r.commit(ctx, event.Event{
		Kind:  event.KindRevoked,
		DID:   id,
		Owner: string(rec.Owner),
	})
	if err != nil {
		return err
	}
	delete(r.records, id)
	r.publish(stored)
	return nil
}

// Query returns a snapshot of the live record for id.
func (r *Registry) Query(ctx context.Context, id string) (Record, error) {
	ctx, span := r.startSpan(ctx, "registry.query", id)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Record{}, endSpan(span, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, endSpan(span, notFound(id))
	}
	return rec, nil
}

// owned returns the record for id if caller owns it. Caller holds r.mu.
func (r *Registry) owned(id string, caller Principal) (Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return Record{}, notFound(id)
	}
	if rec.Owner != caller {
		return Record{}, notOwner(id)
	}
	return rec, nil
}

// commit appends evt to the journal. Caller holds r.mu. The mapping must not
// change when commit fails.
func (r *Registry) commit(ctx context.Context, evt event.Event) (event.Event, error) {
	evt.ID = r.newID()
	evt.OccurredAt = r.clock()
	stored, err := r.journal.AppendEvent(ctx, evt, r.lastSeq)
	if errors.Is(err, event.ErrChainBroken) {
		// Another writer appended to the journal.
		return event.Event{}, fmt.Errorf("%w: append %s event: %w", ErrCorruptJournal, evt.Kind, err)
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("append %s event: %w", evt.Kind, err)
	}
	if stored.Seq != r.lastSeq+1 {
		return event.Event{}, fmt.Errorf("%w: appended seq %d after %d", ErrCorruptJournal, stored.Seq, r.lastSeq)
	}
	r.lastSeq = stored.Seq
	r.lastHash = stored.Hash
	return stored, nil
}

// publish notifies sinks. Caller holds r.mu, so sinks observe commit order.
func (r *Registry) publish(evt event.Event) {
	for _, sink := range r.sinks {
		sink.Publish(evt)
	}
}

func (r *Registry) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("did", id)))
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
