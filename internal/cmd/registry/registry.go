// Package registry parses registry service flags and launches the service.
package registry

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/didregistry/internal/platform/cmd"
	server "github.com/louisbranch/didregistry/internal/services/registry/app"
	"github.com/louisbranch/didregistry/internal/services/registry/auth"
)

// Config holds registry command configuration.
type Config struct {
	Port          int           `env:"PORT" envDefault:"8095"`
	DBPath        string        `env:"DB_PATH" envDefault:"data/registry.db"`
	Prefix        string        `env:"DID_PREFIX" envDefault:"did:uminai:"`
	AMQPURL       string        `env:"AMQP_URL"`
	AMQPExchange  string        `env:"AMQP_EXCHANGE" envDefault:"did.registry"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL" envDefault:"2s"`
	Auth          auth.Settings
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The registry gRPC server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the registry journal database")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Required identifier prefix")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServerConfig validates cfg and converts it into runtime settings.
func (c Config) ServerConfig() (server.Config, error) {
	authCfg, err := c.Auth.Config()
	if err != nil {
		return server.Config{}, err
	}
	if c.Port <= 0 {
		return server.Config{}, fmt.Errorf("port must be positive, got %d", c.Port)
	}
	return server.Config{
		Addr:          fmt.Sprintf(":%d", c.Port),
		DBPath:        c.DBPath,
		Prefix:        c.Prefix,
		Auth:          authCfg,
		AMQPURL:       c.AMQPURL,
		AMQPExchange:  c.AMQPExchange,
		RelayInterval: c.RelayInterval,
	}, nil
}

// Run starts the registry gRPC service.
func Run(ctx context.Context, cfg Config) error {
	serverCfg, err := cfg.ServerConfig()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistry, func(ctx context.Context) error {
		return server.Run(ctx, serverCfg)
	})
}
