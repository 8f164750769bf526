package domain

import (
	"github.com/google/uuid"

	dErrors "bloodlink/pkg/domain-errors"
)

// Typed identifiers. Distinct types stop an account id from being passed where a
// donation request id is expected.
type (
	AccountID         uuid.UUID
	DonationRequestID uuid.UUID
)

// NewAccountID generates a fresh account id.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewDonationRequestID generates a fresh donation request id.
func NewDonationRequestID() DonationRequestID { return DonationRequestID(uuid.New()) }

// ParseAccountID parses external input into an AccountID.
//
// Errors: CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account id")
	return AccountID(u), err
}

// ParseDonationRequestID parses external input into a DonationRequestID.
//
// Errors: CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseDonationRequestID(s string) (DonationRequestID, error) {
	u, err := parseUUID(s, "donation request id")
	return DonationRequestID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}

func (id AccountID) String() string { return uuid.UUID(id).String() }
func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DonationRequestID) String() string { return uuid.UUID(id).String() }
func (id DonationRequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id AccountID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AccountID) UnmarshalText(b []byte) error {
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id DonationRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *DonationRequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseDonationRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
