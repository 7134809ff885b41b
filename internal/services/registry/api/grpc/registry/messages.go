package registry

import (
	"time"

	"github.com/louisbranch/didregistry/internal/services/registry/core"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
)

// Record is the wire form of one pointer record.
type Record struct {
	DID            string    `json:"did"`
	Owner          string    `json:"owner"`
	ContentAddress string    `json:"content_address"`
	Live           bool      `json:"live"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        uint64    `json:"version"`
}

// CreateDIDRequest registers a new identifier owned by the caller.
type CreateDIDRequest struct {
	DID            string `json:"did"`
	ContentAddress string `json:"content_address"`
}

// UpdateDIDRequest replaces the content address of an owned identifier.
type UpdateDIDRequest struct {
	DID            string `json:"did"`
	ContentAddress string `json:"content_address"`
}

// RevokeDIDRequest removes an owned identifier.
type RevokeDIDRequest struct {
	DID string `json:"did"`
}

// RevokeDIDResponse echoes the revoked identifier.
type RevokeDIDResponse struct {
	DID string `json:"did"`
}

// GetDIDRequest looks up one identifier.
type GetDIDRequest struct {
	DID string `json:"did"`
}

// DIDResponse carries one record.
type DIDResponse struct {
	Record Record `json:"record"`
}

// ListEventsRequest pages through the journal.
type ListEventsRequest struct {
	AfterSeq uint64 `json:"after_seq"`
	PageSize int    `json:"page_size"`
}

// ListEventsResponse holds one journal page. NextAfterSeq is the cursor for
// the following page.
type ListEventsResponse struct {
	Events       []event.Event `json:"events"`
	NextAfterSeq uint64        `json:"next_after_seq"`
}

// WatchEventsRequest starts a stream after the given seq.
type WatchEventsRequest struct {
	AfterSeq uint64 `json:"after_seq"`
}

func recordToWire(rec core.Record) Record {
	return Record{
		DID:            rec.DID,
		Owner:          string(rec.Owner),
		ContentAddress: rec.ContentAddress,
		Live:           rec.Live,
		CreatedAt:      rec.CreatedAt.UTC(),
		UpdatedAt:      rec.UpdatedAt.UTC(),
		Version:        rec.Version,
	}
}
