// Package authz is the single authorization check used by every service before a scoped
// read or write. Callers name a Requirement; the Guard resolves the actor from the request
// context and, when the requirement involves admin rights, looks the actor up in the
// identity store.
package authz

import (
	"context"
	"errors"

	"bloodlink/internal/identity/models"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

type Requirement int

const (
	// RequireNone lets anonymous callers through.
	RequireNone Requirement = iota
	// RequireAuthenticated needs any verified caller.
	RequireAuthenticated
	// RequireIdentityMatch needs the caller's email to equal the subject email.
	RequireIdentityMatch
	// RequireAdmin needs an active admin account.
	RequireAdmin
	// RequireIdentityMatchOrAdmin accepts either of the above.
	RequireIdentityMatchOrAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireNone:
		return "none"
	case RequireAuthenticated:
		return "authenticated"
	case RequireIdentityMatch:
		return "identity_match"
	case RequireAdmin:
		return "admin"
	case RequireIdentityMatchOrAdmin:
		return "identity_match_or_admin"
	}
	return "unknown"
}

// AccountLookup resolves the caller's account for role checks.
type AccountLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

type Guard struct {
	accounts AccountLookup
}

func NewGuard(accounts AccountLookup) *Guard {
	return &Guard{accounts: accounts}
}

// Check enforces req for the actor in ctx against subjectEmail. subjectEmail is ignored
// for requirements that do not compare identities.
func (g *Guard) Check(ctx context.Context, req Requirement, subjectEmail string) error {
	if req == RequireNone {
		return nil
	}
	actor := requestcontext.ActorEmail(ctx)
	if actor == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	switch req {
	case RequireAuthenticated:
		return nil
	case RequireIdentityMatch:
		if matches(actor, subjectEmail) {
			return nil
		}
		return dErrors.New(dErrors.CodeForbidden, "caller identity does not match requested email")
	case RequireAdmin:
		return g.requireAdmin(ctx, actor)
	case RequireIdentityMatchOrAdmin:
		if matches(actor, subjectEmail) {
			return nil
		}
		return g.requireAdmin(ctx, actor)
	}
	return dErrors.New(dErrors.CodeInternal, "unknown authorization requirement")
}

// IsAdmin reports whether the actor in ctx holds an active admin account.
func (g *Guard) IsAdmin(ctx context.Context) (bool, error) {
	actor := requestcontext.ActorEmail(ctx)
	if actor == "" {
		return false, nil
	}
	err := g.requireAdmin(ctx, actor)
	if err == nil {
		return true, nil
	}
	if dErrors.HasCode(err, dErrors.CodeForbidden) {
		return false, nil
	}
	return false, err
}

func (g *Guard) requireAdmin(ctx context.Context, actor string) error {
	acc, err := g.accounts.FindByEmail(ctx, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "admin role required")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve caller role")
	}
	if !acc.IsAdmin() || !acc.IsActive() {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}

func matches(actor, subject string) bool {
	return subject != "" && actor == email.Normalize(subject)
}
