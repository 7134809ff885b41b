// Package registrytoken mints bearer tokens for registry callers.
package registrytoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/didregistry/internal/services/registry/auth"
)

// Config holds configuration for token minting.
type Config struct {
	Subject string
	TTL     time.Duration
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{TTL: auth.DefaultTTL}
	fs.StringVar(&cfg.Subject, "sub", "", "principal the token identifies (required)")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run signs a token for cfg.Subject with authCfg and writes it to out as the
// MCP token env assignment.
func Run(cfg Config, authCfg auth.Config, out io.Writer) error {
	if strings.TrimSpace(cfg.Subject) == "" {
		return errors.New("sub is required")
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	issuer, err := auth.NewIssuer(authCfg, cfg.TTL)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(strings.TrimSpace(cfg.Subject))
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintf(out, "DIDREGISTRY_MCP_TOKEN=%s\n", token)
	return err
}
