// Package registrymcp parses MCP command flags and selects stdio or HTTP
// transport.
package registrymcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/didregistry/internal/platform/cmd"
	"github.com/louisbranch/didregistry/internal/services/registrymcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	Addr      string `env:"ADDR"          envDefault:"localhost:8095"`
	HTTPAddr  string `env:"MCP_HTTP_ADDR" envDefault:"localhost:8096"`
	Transport string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	Token     string `env:"MCP_TOKEN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "registry server address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServiceConfig validates cfg and converts it into MCP runtime settings.
func (c Config) ServiceConfig() (service.Config, error) {
	transport, err := service.ParseTransport(c.Transport)
	if err != nil {
		return service.Config{}, err
	}
	return service.Config{
		RegistryAddr: c.Addr,
		Token:        c.Token,
		Transport:    transport,
		HTTPAddr:     c.HTTPAddr,
	}, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	serviceCfg, err := cfg.ServiceConfig()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistryMCP, func(ctx context.Context) error {
		return service.Run(ctx, serviceCfg)
	})
}
