package core

import "time"

// Principal is the opaque, comparable identity of a caller. The registry
// never derives or authenticates it.
type Principal string

// Record is a snapshot of one pointer record.
type Record struct {
	DID            string
	Owner          Principal
	ContentAddress string
	// Live is true for every record returned by the registry; revoked records
	// are removed rather than flagged.
	Live      bool
	CreatedAt time.Time
	UpdatedAt time.Time
	// Version is the journal seq of the last event applied to the record.
	Version uint64
}
