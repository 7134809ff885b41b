package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/didregistry/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("DIDREGISTRY_OTEL_ENDPOINT", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("DIDREGISTRY_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("DIDREGISTRY_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_RejectsInvalidEnabledFlag(t *testing.T) {
	t.Setenv("DIDREGISTRY_OTEL_ENABLED", "sometimes")

	if _, err := otel.Setup(context.Background(), "test-service"); err == nil {
		t.Fatal("expected parse error for invalid boolean")
	}
}

func TestSetupWith_RejectsSampleRatioOutOfRange(t *testing.T) {
	_, err := otel.SetupWith(context.Background(), "test-service", otel.Settings{
		Enabled:     true,
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: 1.5,
	})
	if err == nil {
		t.Fatal("expected sample ratio error")
	}
}

func TestSetupWith_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export happens before shutdown.
	shutdown, err := otel.SetupWith(context.Background(), "test-service", otel.Settings{
		Enabled:     true,
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
