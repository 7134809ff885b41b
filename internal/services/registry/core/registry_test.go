package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/didregistry/internal/platform/errors"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice Principal = "alice"
	bob   Principal = "bob"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *memJournal, *recordingSink) {
	t.Helper()
	journal := &memJournal{}
	sink := &recordingSink{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	seq := 0
	opts = append([]Option{
		WithSink(sink),
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("evt-%d", seq)
		}),
	}, opts...)
	reg, err := New(journal, opts...)
	require.NoError(t, err)
	return reg, journal, sink
}

func TestNewRequiresJournal(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNewRejectsEmptyPrefix(t *testing.T) {
	_, err := New(&memJournal{}, WithPrefix(""))
	require.Error(t, err)
}

func TestCreateThenQuery(t *testing.T) {
	reg, journal, sink := newTestRegistry(t)
	ctx := context.Background()

	rec, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)
	assert.Equal(t, "did:uminai:abc", rec.DID)
	assert.Equal(t, alice, rec.Owner)
	assert.Equal(t, "Qm1", rec.ContentAddress)
	assert.True(t, rec.Live)
	assert.Equal(t, uint64(1), rec.Version)

	got, err := reg.Query(ctx, "did:uminai:abc")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	assert.Equal(t, []event.Kind{event.KindCreated}, sink.kinds())
	events := journal.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, string(alice), events[0].Owner)
}

func TestCreateRejectsInvalidIdentifier(t *testing.T) {
	reg, journal, sink := newTestRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"", "did:uminai:", "did:other:abc", " did:uminai:abc", "DID:UMINAI:abc"} {
		_, err := reg.Create(ctx, id, "Qm1", alice)
		require.ErrorIs(t, err, ErrInvalidIdentifier, "id %q", id)
		assert.Equal(t, apperrors.CodeDIDInvalid, apperrors.GetCode(err))
	}
	assert.Empty(t, journal.snapshot())
	assert.Empty(t, sink.kinds())
	assert.Equal(t, 0, reg.Len())
}

func TestCreateAcceptsEmptyContentAddress(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rec, err := reg.Create(context.Background(), "did:uminai:x", "", alice)
	require.NoError(t, err)
	assert.Empty(t, rec.ContentAddress)
}

func TestCreateDuplicateKeepsOriginal(t *testing.T) {
	reg, journal, sink := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)

	_, err = reg.Create(ctx, "did:uminai:abc", "Qm2", bob)
	require.ErrorIs(t, err, ErrAlreadyExists)

	got, err := reg.Query(ctx, "did:uminai:abc")
	require.NoError(t, err)
	assert.Equal(t, alice, got.Owner)
	assert.Equal(t, "Qm1", got.ContentAddress)
	assert.Len(t, journal.snapshot(), 1)
	assert.Len(t, sink.kinds(), 1)
}

func TestUpdateByOwner(t *testing.T) {
	reg, _, sink := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)

	updated, err := reg.Update(ctx, "did:uminai:abc", "Qm2", alice)
	require.NoError(t, err)
	assert.Equal(t, "Qm2", updated.ContentAddress)
	assert.Equal(t, alice, updated.Owner)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, uint64(2), updated.Version)
	assert.True(t, updated.Live)

	got, err := reg.Query(ctx, "did:uminai:abc")
	require.NoError(t, err)
	assert.True(t, got.Live)
	assert.Equal(t, "Qm2", got.ContentAddress)

	// Same value still emits an event.
	_, err = reg.Update(ctx, "did:uminai:abc", "Qm2", alice)
	require.NoError(t, err)
	assert.Equal(t, []event.Kind{event.KindCreated, event.KindUpdated, event.KindUpdated}, sink.kinds())
}

func TestUpdateByNonOwner(t *testing.T) {
	reg, _, sink := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)

	_, err = reg.Update(ctx, "did:uminai:abc", "Qm2", bob)
	require.ErrorIs(t, err, ErrNotOwner)

	got, err := reg.Query(ctx, "did:uminai:abc")
	require.NoError(t, err)
	assert.Equal(t, "Qm1", got.ContentAddress)
	assert.Len(t, sink.kinds(), 1)
}

func TestUpdateMissing(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Update(ctx, "did:uminai:nope", "Qm1", alice)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Update(ctx, "not-a-did", "Qm1", alice)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeThenRecreate(t *testing.T) {
	reg, _, sink := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)

	require.NoError(t, reg.Revoke(ctx, "did:uminai:abc", alice))

	_, err = reg.Query(ctx, "did:uminai:abc")
	require.ErrorIs(t, err, ErrNotFound)

	err = reg.Revoke(ctx, "did:uminai:abc", alice)
	require.ErrorIs(t, err, ErrNotFound)

	rec, err := reg.Create(ctx, "did:uminai:abc", "Qm9", bob)
	require.NoError(t, err)
	assert.Equal(t, bob, rec.Owner)

	assert.Equal(t, []event.Kind{event.KindCreated, event.KindRevoked, event.KindCreated}, sink.kinds())
}

func TestRevokeByNonOwner(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)

	err = reg.Revoke(ctx, "did:uminai:abc", bob)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = reg.Query(ctx, "did:uminai:abc")
	require.NoError(t, err)
}

func TestRevokedEventCarriesOwner(t *testing.T) {
	reg, journal, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)
	require.NoError(t, reg.Revoke(ctx, "did:uminai:abc", alice))

	events := journal.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, event.KindRevoked, events[1].Kind)
	assert.Equal(t, string(alice), events[1].Owner)
	assert.Empty(t, events[1].ContentAddress)
}

func TestQueryMissing(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.Query(context.Background(), "did:uminai:ghost")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, apperrors.CodeDIDNotFound, apperrors.GetCode(err))
}

func TestCustomPrefix(t *testing.T) {
	reg, _, _ := newTestRegistry(t, WithPrefix("did:test:"))
	ctx := context.Background()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = reg.Create(ctx, "did:test:abc", "Qm1", alice)
	require.NoError(t, err)
	assert.Equal(t, "did:test:", reg.Prefix())
}

func TestCancelledContext(t *testing.T) {
	reg, journal, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.ErrorIs(t, err, context.Canceled)
	_, err = reg.Update(ctx, "did:uminai:abc", "Qm1", alice)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, reg.Revoke(ctx, "did:uminai:abc", alice), context.Canceled)
	_, err = reg.Query(ctx, "did:uminai:abc")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, journal.snapshot())
}

func TestJournalFailureLeavesStateUnchanged(t *testing.T) {
	reg, journal, sink := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.NoError(t, err)

	journal.appendErr = errJournalDown

	_, err = reg.Create(ctx, "did:uminai:new", "Qm1", alice)
	require.ErrorIs(t, err, errJournalDown)
	_, err = reg.Update(ctx, "did:uminai:abc", "Qm2", alice)
	require.ErrorIs(t, err, errJournalDown)
	require.ErrorIs(t, reg.Revoke(ctx, "did:uminai:abc", alice), errJournalDown)

	got, err := reg.Query(ctx, "did:uminai:abc")
	require.NoError(t, err)
	assert.Equal(t, "Qm1", got.ContentAddress)
	_, err = reg.Query(ctx, "did:uminai:new")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, sink.kinds(), 1)
	assert.Equal(t, uint64(1), reg.LastSeq())

	journal.appendErr = nil
	rec, err := reg.Update(ctx, "did:uminai:abc", "Qm2", alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Version)
}

func TestForeignAppendDetected(t *testing.T) {
	reg, journal, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := journal.appendNext(event.Event{ID: "x", Kind: event.KindCreated, DID: "did:uminai:other", Owner: "eve"})
	require.NoError(t, err)

	_, err = reg.Create(ctx, "did:uminai:abc", "Qm1", alice)
	require.ErrorIs(t, err, ErrCorruptJournal)
	_, err = reg.Query(ctx, "did:uminai:abc")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, journal.snapshot(), 1, "failed create must not reach the journal")
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	reg, journal, _ := newTestRegistry(t, WithIDGenerator(func() string { return "evt" }))
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = reg.Create(ctx, "did:uminai:race", "Qm", Principal(fmt.Sprintf("p%d", i)))
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyExists):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, journal.snapshot(), 1)
}

func TestSinkOrderMatchesJournal(t *testing.T) {
	reg, journal, sink := newTestRegistry(t, WithIDGenerator(func() string { return "evt" }))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("did:uminai:%d", i)
			owner := Principal(fmt.Sprintf("p%d", i))
			if _, err := reg.Create(ctx, id, "a", owner); err != nil {
				t.Errorf("create %s: %v", id, err)
				return
			}
			if _, err := reg.Update(ctx, id, "b", owner); err != nil {
				t.Errorf("update %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	events := journal.snapshot()
	sink.mu.Lock()
	published := append([]event.Event(nil), sink.events...)
	sink.mu.Unlock()
	require.Equal(t, events, published)
}
