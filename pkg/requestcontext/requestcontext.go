// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware and job handlers set them; services read
// them without pulling in net/http.
//
// Usage in services:
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithRequestID attaches a correlation token to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation token, or "" when none is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTime pins the request clock, mainly for deterministic tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time if present, otherwise the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
