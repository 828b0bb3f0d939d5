package orchestrator

import "context"

type callerKey struct{}

// WithCaller attaches the caller identity to ctx. The single-tenant
// deployment records it on reports and in logs only.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller identity in ctx, or "".
func CallerFrom(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}
