// Package service wires MCP transports to the registry tool handlers.
//
// It runs the MCP server over stdio or streamable HTTP and delegates tool
// semantics to the domain package.
package service
