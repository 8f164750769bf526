package testutil

import (
	"context"
	"net/http"

	"bloodlink/pkg/requestcontext"
)

// WithActor adds an authenticated caller email to the request context.
// This simulates what the auth middleware does after verifying a bearer token.
// An empty email leaves the request anonymous.
func WithActor(req *http.Request, email string) *http.Request {
	if email == "" {
		return req
	}
	return req.WithContext(requestcontext.WithActorEmail(req.Context(), email))
}

// ActorContext returns a background context carrying the caller email, for service tests.
func ActorContext(email string) context.Context {
	return requestcontext.WithActorEmail(context.Background(), email)
}
