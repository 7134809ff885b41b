package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("DIDREGISTRY_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("DIDREGISTRY_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil config error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestLogPrefix(t *testing.T) {
	if got := LogPrefix(ServiceRegistryMCP); got != "[REGISTRY-MCP] " {
		t.Fatalf("log prefix = %q", got)
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceRegistry, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryAndOptionsShutsDownAfterRun(t *testing.T) {
	var shutdownCalled bool
	runErr := errors.New("run failed")
	err := RunWithTelemetryAndOptions(context.Background(), ServiceRegistry, RunOptions{
		SetupTelemetry: func(context.Context, string) (func(context.Context) error, error) {
			return func(context.Context) error {
				shutdownCalled = true
				return nil
			}, nil
		},
	}, func(context.Context) error { return runErr })
	if !errors.Is(err, runErr) {
		t.Fatalf("run error = %v, want %v", err, runErr)
	}
	if !shutdownCalled {
		t.Fatal("expected telemetry shutdown")
	}
}

func TestRunWithTelemetryAndOptionsPropagatesSetupError(t *testing.T) {
	setupErr := errors.New("no exporter")
	err := RunWithTelemetryAndOptions(context.Background(), ServiceRegistry, RunOptions{
		SetupTelemetry: func(context.Context, string) (func(context.Context) error, error) {
			return nil, setupErr
		},
	}, func(context.Context) error {
		t.Fatal("run must not be called")
		return nil
	})
	if !errors.Is(err, setupErr) {
		t.Fatalf("setup error = %v, want %v", err, setupErr)
	}
}
