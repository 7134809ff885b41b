package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/didregistry/internal/platform/grpc"
	"github.com/louisbranch/didregistry/internal/platform/timeouts"
	registryservice "github.com/louisbranch/didregistry/internal/services/registry/api/grpc/registry"
	"github.com/louisbranch/didregistry/internal/services/registrymcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "didregistry MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
	// defaultHTTPAddr keeps HTTP transport on loopback unless configured.
	defaultHTTPAddr = "localhost:8096"
	// healthInterval is how often HTTP mode checks the registry connection.
	healthInterval = 30 * time.Second
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// ParseTransport maps a flag value onto a TransportKind.
func ParseTransport(value string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(TransportStdio):
		return TransportStdio, nil
	case string(TransportHTTP):
		return TransportHTTP, nil
	default:
		return "", fmt.Errorf("invalid transport %q: must be 'stdio' or 'http'", value)
	}
}

// Config configures the MCP server.
type Config struct {
	RegistryAddr string
	// Token is sent as the bearer on every registry call. Empty means
	// anonymous, which limits the server to read tools.
	Token     string
	Transport TransportKind
	HTTPAddr  string
}

// Server hosts the MCP server and its registry connection.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// New dials the registry, waits for it to report SERVING and registers the
// registry tools.
func New(ctx context.Context, cfg Config) (*Server, error) {
	conn, err := dialRegistry(ctx, cfg.RegistryAddr)
	if err != nil {
		return nil, err
	}
	server := newServer(registryservice.NewClient(conn), cfg.Token)
	server.conn = conn
	return server, nil
}

func newServer(client domain.RegistryClient, token string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(mcpServer, client, token)
	return &Server{mcpServer: mcpServer}
}

// Run is the service entrypoint and blocks until ctx ends or the transport
// closes.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	if cfg.Transport != TransportStdio && cfg.Transport != TransportHTTP {
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Transport == TransportHTTP {
		defer server.Close()
		healthCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go server.monitorHealth(healthCtx)
		return server.ServeHTTP(ctx, cfg.HTTPAddr)
	}
	return server.Serve(ctx)
}

// Serve runs the MCP server on stdio until it stops or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the registry connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	return nil
}

// serveWithTransport runs the MCP server on transport. The registry connection
// is closed on the same exit path for every transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close registry connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close registry connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// monitorHealth logs registry health regressions while HTTP mode runs.
// Requests keep flowing; failing calls surface as tool errors.
func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

func (s *Server) checkHealth(ctx context.Context) {
	if s.conn == nil {
		log.Printf("registry connection is nil, health check skipped")
		return
	}
	healthClient := grpc_health_v1.NewHealthClient(s.conn)
	callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: registryservice.ServiceName})
	cancel()

	if err != nil {
		log.Printf("registry health check failed: %v", err)
	} else if response.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		log.Printf("registry health check status: %s", response.GetStatus().String())
	}
}

func dialRegistry(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("registry address is required")
	}
	logf := func(format string, args ...any) {
		log.Printf("registry %s", fmt.Sprintf(format, args...))
	}
	conn, err := platformgrpc.DialWithHealth(ctx, addr, timeouts.GRPCDial, logf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) {
			if dialErr.Stage == platformgrpc.DialStageConnect {
				return nil, fmt.Errorf("connect to registry at %s: %w", addr, dialErr.Err)
			}
			return nil, dialErr.Err
		}
		return nil, err
	}
	return conn, nil
}
