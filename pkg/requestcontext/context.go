// Package requestcontext carries per-request values from middleware to services without
// services importing net/http.
//
//	actor := requestcontext.ActorEmail(ctx)  // "" when anonymous
//	now := requestcontext.Now(ctx)           // pinned once per request
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	keyActorEmail key = iota
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func stringValue(ctx context.Context, k key) string {
	s, _ := value[string](ctx, k)
	return s
}

// ActorEmail is the normalized email of the verified bearer token.
func ActorEmail(ctx context.Context) string { return stringValue(ctx, keyActorEmail) }

func WithActorEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyActorEmail, email)
}

func ClientIP(ctx context.Context) string  { return stringValue(ctx, keyClientIP) }
func UserAgent(ctx context.Context) string { return stringValue(ctx, keyUserAgent) }

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return context.WithValue(context.WithValue(ctx, keyClientIP, clientIP), keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string { return stringValue(ctx, keyRequestID) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now returns the time pinned by the requesttime middleware, or the wall clock outside a
// request. Every timestamp written while serving one request uses the same value.
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, keyRequestTime); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
