package service

import (
	"github.com/louisbranch/didregistry/internal/services/registrymcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools adds every registry tool to server. All calls share token as
// the caller identity.
func registerTools(server *mcp.Server, client domain.RegistryClient, token string) {
	mcp.AddTool(server, domain.DIDCreateTool(), domain.DIDCreateHandler(client, token))
	mcp.AddTool(server, domain.DIDUpdateTool(), domain.DIDUpdateHandler(client, token))
	mcp.AddTool(server, domain.DIDRevokeTool(), domain.DIDRevokeHandler(client, token))
	mcp.AddTool(server, domain.DIDGetTool(), domain.DIDGetHandler(client, token))
	mcp.AddTool(server, domain.DIDEventsTool(), domain.DIDEventsHandler(client, token))
}
