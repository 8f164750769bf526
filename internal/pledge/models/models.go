package models

import (
	"strings"

	ledger "bloodlink/internal/ledger/models"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
)

// Metadata keys attached to every processor session.
const (
	MetaDonorName  = "donor_name"
	MetaDonorEmail = "donor_email"
	MetaAmount     = "amount"
)

// PaymentStatePaid is the processor payment state of a completed session.
const PaymentStatePaid = "paid"

// MaxAmount caps a single pledge in major units.
const MaxAmount = 1_000_000

// SessionRequest is what the processor needs to open a hosted payment page.
type SessionRequest struct {
	AmountMinor int64
	Currency    string
	BuyerEmail  string
	Label       string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type Session struct {
	ID          string
	RedirectURL string
}

// PaymentSession is the processor's view of a session at confirmation time.
type PaymentSession struct {
	ID            string
	TransactionID string
	PaymentState  string
	AmountTotal   int64
	Currency      string
	BuyerEmail    string
	Metadata      map[string]string
}

func (p *PaymentSession) IsPaid() bool {
	return p.PaymentState == PaymentStatePaid
}

// DonorEmail prefers the buyer email the processor collected.
func (p *PaymentSession) DonorEmail() string {
	if p.BuyerEmail != "" {
		return email.Normalize(p.BuyerEmail)
	}
	return email.Normalize(p.Metadata[MetaDonorEmail])
}

// InitiateRequest starts a pledge. Amount is in major currency units.
type InitiateRequest struct {
	Amount     int64  `json:"amount"`
	DonorName  string `json:"donor_name"`
	DonorEmail string `json:"donor_email"`
}

func (r *InitiateRequest) Normalize() {
	if r == nil {
		return
	}
	r.DonorName = strings.TrimSpace(r.DonorName)
	r.DonorEmail = email.Normalize(r.DonorEmail)
}

func (r *InitiateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.DonorName) > 100 {
		return dErrors.New(dErrors.CodeValidation, "donor_name must be at most 100 characters")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	if r.Amount > MaxAmount {
		return dErrors.New(dErrors.CodeValidation, "amount is too large")
	}
	if r.DonorName == "" {
		return dErrors.New(dErrors.CodeValidation, "donor_name is required")
	}
	if _, err := email.Parse(r.DonorEmail); err != nil {
		return err
	}
	return nil
}

// Label is the line item name shown on the payment page.
func (r *InitiateRequest) Label() string {
	return "Donation by " + r.DonorName
}

type ConfirmRequest struct {
	SessionID string `json:"session_id"`
}

func (r *ConfirmRequest) Normalize() {
	if r == nil {
		return
	}
	r.SessionID = strings.TrimSpace(r.SessionID)
}

func (r *ConfirmRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.SessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "session_id is required")
	}
	if len(r.SessionID) > 255 {
		return dErrors.New(dErrors.CodeValidation, "session_id is too long")
	}
	return nil
}

type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Outcome of a confirmation. None of them is an error.
type Outcome string

const (
	OutcomeRecorded        Outcome = "recorded"
	OutcomeAlreadyRecorded Outcome = "already_recorded"
	OutcomeUnpaid          Outcome = "unpaid"
)

type ConfirmResult struct {
	Outcome Outcome              `json:"outcome"`
	Pledge  *ledger.PledgeRecord `json:"pledge,omitempty"`
}
