// Package domain maps MCP tool calls onto registry gRPC requests.
//
// Each tool resolves one registry operation. Handlers attach the configured
// bearer token, bound every call with a timeout and return structured results
// that MCP clients can render.
package domain
