package domain

import (
	"context"

	"github.com/louisbranch/didregistry/internal/platform/timeouts"
	"github.com/louisbranch/didregistry/internal/services/registry/api/grpc/interceptors"
)

// grpcCallTimeout caps the time for a single registry call from a tool handler.
const grpcCallTimeout = timeouts.GRPCRequest

// newCallContext bounds ctx by grpcCallTimeout and attaches token as the
// outgoing bearer. An empty token leaves the call anonymous.
func newCallContext(ctx context.Context, token string) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
	return interceptors.WithBearer(callCtx, token), cancel
}
