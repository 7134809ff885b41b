package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// BackoffPolicy bounds the delay between health checks.
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff doubles from 200ms up to one second.
var DefaultBackoff = BackoffPolicy{Initial: 200 * time.Millisecond, Max: time.Second}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	return WaitForHealthWithBackoff(ctx, conn, service, DefaultBackoff, logf)
}

// WaitForHealthWithBackoff is WaitForHealth with an explicit retry policy.
func WaitForHealthWithBackoff(ctx context.Context, conn *gogrpc.ClientConn, service string, policy BackoffPolicy, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if policy.Initial <= 0 {
		policy.Initial = DefaultBackoff.Initial
	}
	if policy.Max < policy.Initial {
		policy.Max = policy.Initial
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := policy.Initial
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			logf("gRPC health check is SERVING")
			return nil
		}
		if err != nil {
			logf("waiting for gRPC health: %v", err)
		} else {
			logf("waiting for gRPC health: status %s", response.GetStatus().String())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > policy.Max {
			backoff = policy.Max
		}
	}
}
