// Package event defines the registry's change notifications and the hash
// chain that links them in the journal.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the type of a registry event.
type Kind string

const (
	// KindCreated records the creation of a pointer record.
	KindCreated Kind = "did.created"
	// KindUpdated records a content address change.
	KindUpdated Kind = "did.updated"
	// KindRevoked records the removal of a pointer record.
	KindRevoked Kind = "did.revoked"
)

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindCreated, KindUpdated, KindRevoked:
		return true
	default:
		return false
	}
}

// RoutingKey returns the broker routing key for k, e.g. "did.created".
func (k Kind) RoutingKey() string {
	return string(k)
}

// Event is one immutable entry of the registry journal.
type Event struct {
	// Seq is the journal position, starting at 1. Assigned on append.
	Seq uint64 `json:"seq"`
	// ID is a unique message identifier used for broker de-duplication.
	ID string `json:"id"`
	// Kind identifies the transition.
	Kind Kind `json:"kind"`
	// DID is the identifier the event applies to.
	DID string `json:"did"`
	// Owner is the record owner at the time of the event.
	Owner string `json:"owner"`
	// ContentAddress is set for created and updated events.
	ContentAddress string `json:"content_address,omitempty"`
	// OccurredAt is when the transition was applied.
	OccurredAt time.Time `json:"occurred_at"`
	// PrevHash is the Hash of the previous journal entry; empty for seq 1.
	PrevHash string `json:"prev_hash,omitempty"`
	// Hash chains this event to PrevHash. Assigned on append.
	Hash string `json:"hash"`
}

// ErrChainBroken reports an event whose position or hash does not follow
// its predecessor.
var ErrChainBroken = errors.New("event chain broken")

// envelope is the canonical hashed form. Field order is fixed by the struct.
type envelope struct {
	Seq            uint64 `json:"seq"`
	ID             string `json:"id"`
	Kind           Kind   `json:"kind"`
	DID            string `json:"did"`
	Owner          string `json:"owner"`
	ContentAddress string `json:"content_address"`
	OccurredAt     int64  `json:"occurred_at"`
	PrevHash       string `json:"prev_hash"`
}

// Validate checks the fields every event must carry before it is appended.
func (e Event) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if e.DID == "" {
		return fmt.Errorf("event did is required")
	}
	return nil
}

// ComputeHash returns the SHA-256 chain hash of evt.
func ComputeHash(evt Event) (string, error) {
	data, err := json.Marshal(envelope{
		Seq:            evt.Seq,
		ID:             evt.ID,
		Kind:           evt.Kind,
		DID:            evt.DID,
		Owner:          evt.Owner,
		ContentAddress: evt.ContentAddress,
		OccurredAt:     evt.OccurredAt.UTC().UnixMilli(),
		PrevHash:       evt.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("encode event envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal assigns position, predecessor hash, and hash. Timestamps are
// normalized to UTC milliseconds so the hash survives storage round trips.
func Seal(evt Event, seq uint64, prevHash string) (Event, error) {
	if seq == 0 {
		return Event{}, fmt.Errorf("event seq must be positive")
	}
	if err := evt.Validate(); err != nil {
		return Event{}, err
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	evt.OccurredAt = evt.OccurredAt.UTC().Truncate(time.Millisecond)
	evt.Seq = seq
	evt.PrevHash = prevHash
	hash, err := ComputeHash(evt)
	if err != nil {
		return Event{}, err
	}
	evt.Hash = hash
	return evt, nil
}

// VerifyNext checks that evt directly follows a predecessor at prevSeq with
// hash prevHash, and that its own hash matches its content.
func VerifyNext(evt Event, prevSeq uint64, prevHash string) error {
	if evt.Seq != prevSeq+1 {
		return fmt.Errorf("%w: seq %d follows %d", ErrChainBroken, evt.Seq, prevSeq)
	}
	if evt.PrevHash != prevHash {
		return fmt.Errorf("%w: seq %d prev hash mismatch", ErrChainBroken, evt.Seq)
	}
	want, err := ComputeHash(evt)
	if err != nil {
		return err
	}
	if evt.Hash != want {
		return fmt.Errorf("%w: seq %d hash mismatch", ErrChainBroken, evt.Seq)
	}
	return nil
}
