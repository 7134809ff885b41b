package domain

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/didregistry/internal/platform/errors"
	registryservice "github.com/louisbranch/didregistry/internal/services/registry/api/grpc/registry"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names exposed by the registry MCP server.
const (
	DIDCreateToolName = "did_create"
	DIDUpdateToolName = "did_update"
	DIDRevokeToolName = "did_revoke"
	DIDGetToolName    = "did_get"
	DIDEventsToolName = "did_events"
)

// DIDCreateTool defines the MCP tool schema for registering an identifier.
func DIDCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        DIDCreateToolName,
		Description: "Registers a new decentralized identifier owned by the configured caller",
	}
}

// DIDUpdateTool defines the MCP tool schema for changing a content address.
func DIDUpdateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        DIDUpdateToolName,
		Description: "Replaces the content address of an identifier owned by the configured caller",
	}
}

// DIDRevokeTool defines the MCP tool schema for revoking an identifier.
func DIDRevokeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        DIDRevokeToolName,
		Description: "Revokes an identifier owned by the configured caller",
	}
}

// DIDGetTool defines the MCP tool schema for resolving an identifier.
func DIDGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        DIDGetToolName,
		Description: "Resolves a decentralized identifier to its owner and content address",
	}
}

// DIDEventsTool defines the MCP tool schema for paging the registry journal.
func DIDEventsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        DIDEventsToolName,
		Description: "Lists registry change events in journal order",
	}
}

// DIDCreateHandler executes an identifier registration.
func DIDCreateHandler(client RegistryClient, token string) mcp.ToolHandlerFor[DIDCreateInput, DIDRecordResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DIDCreateInput) (*mcp.CallToolResult, DIDRecordResult, error) {
		did, err := requireDID(input.DID)
		if err != nil {
			return nil, DIDRecordResult{}, err
		}
		callCtx, cancel := newCallContext(ctx, token)
		defer cancel()

		response, err := client.CreateDID(callCtx, &registryservice.CreateDIDRequest{
			DID:            did,
			ContentAddress: input.ContentAddress,
		})
		if err != nil {
			return nil, DIDRecordResult{}, toolError("did create", err)
		}
		if response == nil {
			return nil, DIDRecordResult{}, fmt.Errorf("did create response is missing")
		}
		return nil, recordResult(response.Record), nil
	}
}

// DIDUpdateHandler executes a content address change.
func DIDUpdateHandler(client RegistryClient, token string) mcp.ToolHandlerFor[DIDUpdateInput, DIDRecordResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DIDUpdateInput) (*mcp.CallToolResult, DIDRecordResult, error) {
		did, err := requireDID(input.DID)
		if err != nil {
			return nil, DIDRecordResult{}, err
		}
		callCtx, cancel := newCallContext(ctx, token)
		defer cancel()

		response, err := client.UpdateDID(callCtx, &registryservice.UpdateDIDRequest{
			DID:            did,
			ContentAddress: input.ContentAddress,
		})
		if err != nil {
			return nil, DIDRecordResult{}, toolError("did update", err)
		}
		if response == nil {
			return nil, DIDRecordResult{}, fmt.Errorf("did update response is missing")
		}
		return nil, recordResult(response.Record), nil
	}
}

// DIDRevokeHandler executes an identifier revocation.
func DIDRevokeHandler(client RegistryClient, token string) mcp.ToolHandlerFor[DIDRevokeInput, DIDRevokeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DIDRevokeInput) (*mcp.CallToolResult, DIDRevokeResult, error) {
		did, err := requireDID(input.DID)
		if err != nil {
			return nil, DIDRevokeResult{}, err
		}
		callCtx, cancel := newCallContext(ctx, token)
		defer cancel()

		response, err := client.RevokeDID(callCtx, &registryservice.RevokeDIDRequest{DID: did})
		if err != nil {
			return nil, DIDRevokeResult{}, toolError("did revoke", err)
		}
		if response == nil {
			return nil, DIDRevokeResult{}, fmt.Errorf("did revoke response is missing")
		}
		return nil, DIDRevokeResult{DID: response.DID, Revoked: true}, nil
	}
}

// DIDGetHandler resolves an identifier.
func DIDGetHandler(client RegistryClient, token string) mcp.ToolHandlerFor[DIDGetInput, DIDRecordResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DIDGetInput) (*mcp.CallToolResult, DIDRecordResult, error) {
		did, err := requireDID(input.DID)
		if err != nil {
			return nil, DIDRecordResult{}, err
		}
		callCtx, cancel := newCallContext(ctx, token)
		defer cancel()

		response, err := client.GetDID(callCtx, &registryservice.GetDIDRequest{DID: did})
		if err != nil {
			return nil, DIDRecordResult{}, toolError("did get", err)
		}
		if response == nil {
			return nil, DIDRecordResult{}, fmt.Errorf("did get response is missing")
		}
		return nil, recordResult(response.Record), nil
	}
}

// DIDEventsHandler pages through the registry journal.
func DIDEventsHandler(client RegistryClient, token string) mcp.ToolHandlerFor[DIDEventsInput, DIDEventsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DIDEventsInput) (*mcp.CallToolResult, DIDEventsResult, error) {
		if input.PageSize < 0 {
			return nil, DIDEventsResult{}, fmt.Errorf("page_size must not be negative")
		}
		callCtx, cancel := newCallContext(ctx, token)
		defer cancel()

		response, err := client.ListEvents(callCtx, &registryservice.ListEventsRequest{
			AfterSeq: input.AfterSeq,
			PageSize: input.PageSize,
		})
		if err != nil {
			return nil, DIDEventsResult{}, toolError("did events", err)
		}
		if response == nil {
			return nil, DIDEventsResult{}, fmt.Errorf("did events response is missing")
		}

		result := DIDEventsResult{
			Events:       make([]DIDEventResult, 0, len(response.Events)),
			NextAfterSeq: response.NextAfterSeq,
		}
		for _, evt := range response.Events {
			result.Events = append(result.Events, DIDEventResult{
				Seq:            evt.Seq,
				ID:             evt.ID,
				Kind:           string(evt.Kind),
				DID:            evt.DID,
				Owner:          evt.Owner,
				ContentAddress: evt.ContentAddress,
				OccurredAt:     formatTimestamp(evt.OccurredAt),
				Hash:           evt.Hash,
			})
		}
		return nil, result, nil
	}
}

// requireDID rejects an empty identifier. Any other value is forwarded
// unchanged; the registry decides whether it is well formed.
func requireDID(did string) (string, error) {
	if did == "" {
		return "", fmt.Errorf("did is required")
	}
	return did, nil
}

// toolError prefixes the registry reason code so MCP clients can branch on
// it without parsing status details.
func toolError(op string, err error) error {
	if reason := apperrors.ReasonFromStatus(err); reason != apperrors.CodeUnknown {
		return fmt.Errorf("%s failed (%s): %w", op, reason, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
