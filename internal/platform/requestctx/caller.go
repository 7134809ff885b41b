// Package requestctx carries the authenticated caller through request contexts.
package requestctx

import "context"

// callerContextKey is the context key for the authenticated caller principal.
type callerContextKey struct{}

// WithCaller stores a caller principal in context.
func WithCaller(ctx context.Context, caller string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller principal stored in context and
// whether one was present.
func CallerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(callerContextKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
