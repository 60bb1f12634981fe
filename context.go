// Request-scoped metadata accessors.
//
// Client IP and User-Agent are ambient request attributes, not flow inputs, so they
// travel on the context rather than in request structs. The engine reads them for
// lockout accounting, ban checks, and session records; absent values degrade to the
// empty string and never fail a flow.
package authcore

import "context"

type clientIPContextKey struct{}

type userAgentContextKey struct{}

// WithClientIP describes the with client ip operation and its observable behavior.
//
// WithClientIP does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent describes the with user agent operation and its observable behavior.
//
// WithUserAgent does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, ua)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(clientIPContextKey{}).(string); ok {
		return v
	}
	return ""
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userAgentContextKey{}).(string); ok {
		return v
	}
	return ""
}
