package models

import (
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Role is an account's authorization role.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleVolunteer Role = "volunteer"
	RoleAdmin     Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleDonor, RoleVolunteer, RoleAdmin:
		return true
	}
	return false
}

// AccountStatus gates what an account may do. Blocked accounts cannot create donation requests.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
)

func (s AccountStatus) IsValid() bool {
	return s == AccountStatusActive || s == AccountStatusBlocked
}

// Account is a registered donor, volunteer or administrator.
//
// Invariants:
//   - Email is normalized (trimmed, lower-cased) and unique across accounts
//   - Role and Status hold only their enumerated values
//   - Accounts are never hard-deleted; blocking is the terminal sanction
type Account struct {
	ID         id.AccountID  `json:"id"`
	Email      string        `json:"email"`
	Name       string        `json:"name"`
	AvatarURL  string        `json:"avatar_url,omitempty"`
	District   string        `json:"district,omitempty"`
	Upazila    string        `json:"upazila,omitempty"`
	BloodGroup id.BloodGroup `json:"blood_group,omitempty"`
	Role       Role          `json:"role"`
	Status     AccountStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// NewAccount builds a freshly registered account: role donor, status active.
func NewAccount(accountID id.AccountID, email, name string, now time.Time) (*Account, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account email cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account name cannot be empty")
	}
	return &Account{
		ID:        accountID,
		Email:     email,
		Name:      name,
		Role:      RoleDonor,
		Status:    AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ProfileUpdate names the profile fields to change; nil fields are left untouched.
type ProfileUpdate struct {
	Name       *string
	AvatarURL  *string
	District   *string
	Upazila    *string
	BloodGroup *id.BloodGroup
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.AvatarURL == nil && u.District == nil && u.Upazila == nil && u.BloodGroup == nil
}

// Apply copies the named fields onto the account.
func (u ProfileUpdate) Apply(a *Account, now time.Time) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.AvatarURL != nil {
		a.AvatarURL = *u.AvatarURL
	}
	if u.District != nil {
		a.District = *u.District
	}
	if u.Upazila != nil {
		a.Upazila = *u.Upazila
	}
	if u.BloodGroup != nil {
		a.BloodGroup = *u.BloodGroup
	}
	a.UpdatedAt = now
}

// AccountFilter narrows List. An empty Email lists every account.
type AccountFilter struct {
	Email string
}
