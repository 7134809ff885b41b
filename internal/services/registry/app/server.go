// Package server wires the registry runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/didregistry/internal/services/registry/api/grpc/interceptors"
	registryservice "github.com/louisbranch/didregistry/internal/services/registry/api/grpc/registry"
	"github.com/louisbranch/didregistry/internal/services/registry/auth"
	"github.com/louisbranch/didregistry/internal/services/registry/core"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"github.com/louisbranch/didregistry/internal/services/registry/relay"
	"github.com/louisbranch/didregistry/internal/services/registry/relay/rabbitmq"
	registrysqlite "github.com/louisbranch/didregistry/internal/services/registry/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultDBPath = "data/registry.db"

// Config holds the registry runtime settings.
type Config struct {
	Addr   string
	DBPath string
	Prefix string
	Auth   auth.Config

	// AMQPURL enables the broker relay when set.
	AMQPURL       string
	AMQPExchange  string
	RelayInterval time.Duration
}

// Server hosts the registry gRPC API, its journal, and the broker relay.
type Server struct {
	listener    net.Listener
	grpcServer  *grpc.Server
	health      *health.Server
	store       *registrysqlite.Store
	registry    *core.Registry
	broadcaster *event.Broadcaster
	relay       *relay.Relay
	publisher   *rabbitmq.Publisher
}

// New opens storage, replays the journal, and prepares the gRPC server.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	store, err := openRegistryStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	broadcaster := event.NewBroadcaster()
	opts := []core.Option{core.WithSink(broadcaster)}
	if prefix := strings.TrimSpace(cfg.Prefix); prefix != "" {
		opts = append(opts, core.WithPrefix(prefix))
	}
	reg, err := core.Open(ctx, store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("replay registry journal: %w", err)
	}
	log.Printf("registry replayed %d records through seq %d", reg.Len(), reg.LastSeq())

	s := &Server{store: store, registry: reg, broadcaster: broadcaster}

	if strings.TrimSpace(cfg.AMQPURL) != "" {
		publisher, err := rabbitmq.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange, log.Printf)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		s.publisher = publisher
		s.relay, err = relay.New(store, store, publisher, relay.Config{Interval: cfg.RelayInterval})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("configure relay: %w", err)
		}
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.UnaryAuthInterceptor(verifier)),
		grpc.ChainStreamInterceptor(interceptors.StreamAuthInterceptor(verifier)),
	)
	s.health = health.NewServer()
	registryservice.RegisterDIDRegistryServer(s.grpcServer, registryservice.NewService(reg, store, broadcaster))
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(registryservice.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return s, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Registry returns the in-process registry.
func (s *Server) Registry() *core.Registry {
	return s.registry
}

// Run creates and serves a registry server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC server and relay until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	var wg sync.WaitGroup
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer func() {
		stopRelay()
		wg.Wait()
	}()
	if s.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("relay stopped: %v", err)
			}
		}()
		log.Printf("registry relay publishing to exchange %s", s.publisher.Exchange())
	}

	log.Printf("registry server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		// End watch streams so GracefulStop is not held open by them.
		s.broadcaster.Close()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close releases registry server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("close broker publisher: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close registry store: %v", err)
		}
	}
}

func openRegistryStore(ctx context.Context, path string) (*registrysqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := registrysqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open registry sqlite store: %w", err)
	}
	return store, nil
}
