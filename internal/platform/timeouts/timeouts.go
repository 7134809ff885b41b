// Package timeouts defines shared timeout constants used across registry
// processes.
package timeouts

import "time"

// GRPCDial caps the wait for a registry connection to report SERVING.
const GRPCDial = 5 * time.Second

// GRPCRequest caps one registry call made by the MCP server.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// RelayInterval is the default delay between outbox relay polls.
const RelayInterval = 2 * time.Second
