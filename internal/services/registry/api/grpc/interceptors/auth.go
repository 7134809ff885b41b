// Package interceptors attaches the authenticated caller to inbound registry
// calls.
package interceptors

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/didregistry/internal/platform/errors"
	"github.com/louisbranch/didregistry/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// AuthorizationHeader is the metadata key carrying "Bearer <token>".
const AuthorizationHeader = "authorization"

const bearerScheme = "bearer"

// TokenVerifier resolves a bearer token to a caller principal.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

var errMalformedAuthorization = apperrors.New(apperrors.CodeCallerUnauthenticated, "authorization must use the Bearer scheme")

// BearerToken returns the token from the first authorization value. found is
// false when no authorization metadata is present.
func BearerToken(md metadata.MD) (token string, found bool, err error) {
	values := md.Get(AuthorizationHeader)
	if len(values) == 0 {
		return "", false, nil
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) || strings.TrimSpace(token) == "" {
		return "", true, errMalformedAuthorization
	}
	return strings.TrimSpace(token), true, nil
}

// WithBearer returns ctx with outgoing authorization metadata for token.
func WithBearer(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, AuthorizationHeader, "Bearer "+token)
}

// authenticate stores the verified caller in ctx. Calls without credentials
// pass through anonymous; handlers decide whether a caller is required.
func authenticate(ctx context.Context, verifier TokenVerifier) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	token, found, err := BearerToken(md)
	if !found {
		return ctx, nil
	}
	if err == nil {
		var caller string
		caller, err = verifier.Verify(token)
		if err == nil {
			return requestctx.WithCaller(ctx, caller), nil
		}
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		domainErr = apperrors.Wrap(apperrors.CodeCallerUnauthenticated, "caller is not authenticated", err)
	}
	return nil, domainErr.ToGRPCStatus()
}

// UnaryAuthInterceptor verifies bearer tokens on unary calls.
func UnaryAuthInterceptor(verifier TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		authed, err := authenticate(ctx, verifier)
		if err != nil {
			return nil, err
		}
		return handler(authed, req)
	}
}

// StreamAuthInterceptor verifies bearer tokens on streaming calls.
func StreamAuthInterceptor(verifier TokenVerifier) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		authed, err := authenticate(stream.Context(), verifier)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: stream, ctx: authed})
	}
}

// wrappedServerStream overrides the context for a gRPC stream.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
