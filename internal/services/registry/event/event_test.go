package event

import (
	"errors"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		ID:             "evt-1",
		Kind:           KindCreated,
		DID:            "did:uminai:abc",
		Owner:          "alice",
		ContentAddress: "cidA",
		OccurredAt:     time.Date(2026, time.March, 1, 10, 30, 0, 123456789, time.UTC),
	}
}

func TestKindIsValid(t *testing.T) {
	for _, kind := range []Kind{KindCreated, KindUpdated, KindRevoked} {
		if !kind.IsValid() {
			t.Fatalf("expected %q to be valid", kind)
		}
	}
	if Kind("did.renamed").IsValid() {
		t.Fatal("expected unknown kind to be invalid")
	}
}

func TestSealAssignsChainFields(t *testing.T) {
	sealed, err := Seal(sampleEvent(), 1, "")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed.Seq != 1 {
		t.Fatalf("seq = %d, want 1", sealed.Seq)
	}
	if sealed.Hash == "" {
		t.Fatal("expected hash")
	}
	if sealed.OccurredAt.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("expected millisecond precision, got %v", sealed.OccurredAt)
	}
	if err := VerifyNext(sealed, 0, ""); err != nil {
		t.Fatalf("verify sealed event: %v", err)
	}
}

func TestSealRejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
		seq    uint64
	}{
		{name: "zero seq", mutate: func(*Event) {}, seq: 0},
		{name: "unknown kind", mutate: func(e *Event) { e.Kind = "did.other" }, seq: 1},
		{name: "missing id", mutate: func(e *Event) { e.ID = " " }, seq: 1},
		{name: "missing did", mutate: func(e *Event) { e.DID = "" }, seq: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := sampleEvent()
			tt.mutate(&evt)
			if _, err := Seal(evt, tt.seq, ""); err == nil {
				t.Fatal("expected seal error")
			}
		})
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	first, err := ComputeHash(sampleEvent())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := ComputeHash(sampleEvent())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic hash, got %s and %s", first, second)
	}

	changed := sampleEvent()
	changed.ContentAddress = "cidB"
	third, err := ComputeHash(changed)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if third == first {
		t.Fatal("expected hash to change with content address")
	}
}

func TestVerifyNextDetectsBreaks(t *testing.T) {
	first, err := Seal(sampleEvent(), 1, "")
	if err != nil {
		t.Fatalf("seal first: %v", err)
	}
	next := sampleEvent()
	next.ID = "evt-2"
	next.Kind = KindUpdated
	next.ContentAddress = "cidB"
	second, err := Seal(next, 2, first.Hash)
	if err != nil {
		t.Fatalf("seal second: %v", err)
	}
	if err := VerifyNext(second, 1, first.Hash); err != nil {
		t.Fatalf("verify second: %v", err)
	}

	gap := second
	if err := VerifyNext(gap, 2, first.Hash); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("gap error = %v, want %v", err, ErrChainBroken)
	}
	if err := VerifyNext(second, 1, "other"); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("prev hash error = %v, want %v", err, ErrChainBroken)
	}
	tampered := second
	tampered.ContentAddress = "cidEvil"
	if err := VerifyNext(tampered, 1, first.Hash); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("tamper error = %v, want %v", err, ErrChainBroken)
	}
}
