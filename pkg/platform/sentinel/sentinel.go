// Package sentinel names the storage facts every backend reports the same way.
//
// Memory, Postgres, Redis and DynamoDB stores wrap their driver errors into these so the
// services map one set of values to domain error codes. Input validation never uses them;
// that is what pkg/domain-errors is for.
package sentinel

import "errors"

var (
	// ErrNotFound: no account, donation request or ledger entry under the key.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed: a unique key is taken (account email, ledger transaction id).
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: a conditional write found the document in another status,
	// e.g. a claim racing another claim.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: the backend or the payment processor could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
