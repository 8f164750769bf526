package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassRead: listings and lookups.
	ClassRead EndpointClass = "read"
	// ClassWrite: registrations and donation request mutations.
	ClassWrite EndpointClass = "write"
	// ClassPayment: pledge checkout and confirmation, which call the payment processor.
	ClassPayment EndpointClass = "payment"
)

func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassRead, ClassWrite, ClassPayment:
		return true
	}
	return false
}

// Limit is a sliding window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// BucketKey builds the store key for a client in a class.
func BucketKey(class EndpointClass, client string) string {
	return "rl:" + string(class) + ":" + SanitizeKeySegment(client)
}

// SanitizeKeySegment escapes ':' so a client identifier cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
