package domain

import (
	"context"
	"time"

	registryservice "github.com/louisbranch/didregistry/internal/services/registry/api/grpc/registry"
	"google.golang.org/grpc"
)

// RegistryClient is the subset of the registry gRPC client used by tools.
type RegistryClient interface {
	CreateDID(ctx context.Context, in *registryservice.CreateDIDRequest, opts ...grpc.CallOption) (*registryservice.DIDResponse, error)
	UpdateDID(ctx context.Context, in *registryservice.UpdateDIDRequest, opts ...grpc.CallOption) (*registryservice.DIDResponse, error)
	RevokeDID(ctx context.Context, in *registryservice.RevokeDIDRequest, opts ...grpc.CallOption) (*registryservice.RevokeDIDResponse, error)
	GetDID(ctx context.Context, in *registryservice.GetDIDRequest, opts ...grpc.CallOption) (*registryservice.DIDResponse, error)
	ListEvents(ctx context.Context, in *registryservice.ListEventsRequest, opts ...grpc.CallOption) (*registryservice.ListEventsResponse, error)
}

// DIDCreateInput represents the MCP tool input for identifier registration.
type DIDCreateInput struct {
	DID            string `json:"did" jsonschema:"decentralized identifier, e.g. did:uminai:alice"`
	ContentAddress string `json:"content_address" jsonschema:"off-chain content address the identifier points to"`
}

// DIDUpdateInput represents the MCP tool input for content address changes.
type DIDUpdateInput struct {
	DID            string `json:"did" jsonschema:"decentralized identifier owned by the caller"`
	ContentAddress string `json:"content_address" jsonschema:"replacement content address"`
}

// DIDRevokeInput represents the MCP tool input for identifier revocation.
type DIDRevokeInput struct {
	DID string `json:"did" jsonschema:"decentralized identifier owned by the caller"`
}

// DIDGetInput represents the MCP tool input for identifier lookup.
type DIDGetInput struct {
	DID string `json:"did" jsonschema:"decentralized identifier to resolve"`
}

// DIDEventsInput represents the MCP tool input for journal paging.
type DIDEventsInput struct {
	AfterSeq uint64 `json:"after_seq,omitempty" jsonschema:"return events after this sequence number"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"maximum events to return (default 50, max 500)"`
}

// DIDRecordResult represents one pointer record.
type DIDRecordResult struct {
	DID            string `json:"did" jsonschema:"decentralized identifier"`
	Owner          string `json:"owner" jsonschema:"principal that owns the identifier"`
	ContentAddress string `json:"content_address" jsonschema:"current content address"`
	Version        uint64 `json:"version" jsonschema:"number of applied changes"`
	CreatedAt      string `json:"created_at" jsonschema:"RFC3339 timestamp of registration"`
	UpdatedAt      string `json:"updated_at" jsonschema:"RFC3339 timestamp of the last change"`
}

// DIDRevokeResult represents the outcome of a revocation.
type DIDRevokeResult struct {
	DID     string `json:"did" jsonschema:"revoked identifier"`
	Revoked bool   `json:"revoked" jsonschema:"true once the identifier is removed"`
}

// DIDEventResult represents one journal entry.
type DIDEventResult struct {
	Seq            uint64 `json:"seq" jsonschema:"journal position"`
	ID             string `json:"id" jsonschema:"unique event identifier"`
	Kind           string `json:"kind" jsonschema:"did.created, did.updated or did.revoked"`
	DID            string `json:"did" jsonschema:"identifier the event applies to"`
	Owner          string `json:"owner" jsonschema:"owner at the time of the event"`
	ContentAddress string `json:"content_address,omitempty" jsonschema:"content address for created and updated events"`
	OccurredAt     string `json:"occurred_at" jsonschema:"RFC3339 timestamp"`
	Hash           string `json:"hash" jsonschema:"chain hash of this entry"`
}

// DIDEventsResult represents one journal page.
type DIDEventsResult struct {
	Events       []DIDEventResult `json:"events" jsonschema:"events in journal order"`
	NextAfterSeq uint64           `json:"next_after_seq" jsonschema:"cursor for the following page"`
}

func recordResult(rec registryservice.Record) DIDRecordResult {
	return DIDRecordResult{
		DID:            rec.DID,
		Owner:          rec.Owner,
		ContentAddress: rec.ContentAddress,
		Version:        rec.Version,
		CreatedAt:      formatTimestamp(rec.CreatedAt),
		UpdatedAt:      formatTimestamp(rec.UpdatedAt),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
