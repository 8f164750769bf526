package models

import (
	"time"

	dErrors "bloodlink/pkg/domain-errors"
)

// PledgeRecord is one confirmed monetary pledge. TransactionID is the processor's payment
// id and is unique across the ledger; a record is never mutated or removed once stored.
type PledgeRecord struct {
	TransactionID string    `json:"transaction_id"`
	SessionID     string    `json:"session_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	DonorName     string    `json:"donor_name"`
	DonorEmail    string    `json:"donor_email"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// NewPledgeRecord validates the record invariants. amount is in minor currency units.
func NewPledgeRecord(transactionID, sessionID string, amount int64, currency, donorName, donorEmail string, recordedAt time.Time) (*PledgeRecord, error) {
	if transactionID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transaction id cannot be empty")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "pledge amount must be positive")
	}
	if donorEmail == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "donor email cannot be empty")
	}
	return &PledgeRecord{
		TransactionID: transactionID,
		SessionID:     sessionID,
		Amount:        amount,
		Currency:      currency,
		DonorName:     donorName,
		DonorEmail:    donorEmail,
		RecordedAt:    recordedAt,
	}, nil
}

// Summary aggregates the ledger for the funding page.
type Summary struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
	Count    int    `json:"count"`
}
