package main

import (
	"flag"
	"os"

	"github.com/louisbranch/didregistry/internal/platform/config"
	"github.com/louisbranch/didregistry/internal/services/registry/auth"
	"github.com/louisbranch/didregistry/internal/tools/registrytoken"
)

func main() {
	cfg, err := registrytoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	authCfg, err := auth.LoadConfigFromEnv()
	if err != nil {
		config.Exitf("load auth config: %v", err)
	}
	if err := registrytoken.Run(cfg, authCfg, os.Stdout); err != nil {
		config.Exitf("mint token: %v", err)
	}
}
