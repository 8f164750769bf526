package models

import (
	"strings"
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Status is the donation request lifecycle state.
//
//	pending -> inprogress -> done
//	pending -> done | cancelled
//	inprogress -> cancelled
//
// done and cancelled are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Claiming is the usual way out of pending; the requester or an admin may also close a
// pending request directly.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusDone, StatusCancelled},
	StatusInProgress: {StatusDone, StatusCancelled},
}

// ParseStatus accepts a status name, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "donation_status must be one of pending, inprogress, done, cancelled")
	}
	return s, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesOf returns every state that may move to target.
func SourcesOf(target Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusInProgress} {
		if from.CanTransitionTo(target) {
			out = append(out, from)
		}
	}
	return out
}

// Donor is the volunteer who claimed a request. Name and email are always set together.
type Donor struct {
	Name  string `json:"donor_name"`
	Email string `json:"donor_email"`
}

// DonationRequest asks donors for blood on behalf of a recipient.
//
// Invariants:
//   - RequesterEmail never changes after creation
//   - Status follows the lifecycle above; terminal states are final
//   - Donor is nil until the request is claimed
type DonationRequest struct {
	ID                  id.DonationRequestID `json:"id"`
	RequesterEmail      string               `json:"requester_email"`
	RequesterName       string               `json:"requester_name"`
	RecipientName       string               `json:"recipient_name"`
	RecipientBloodGroup id.BloodGroup        `json:"recipient_blood_group"`
	HospitalName        string               `json:"hospital_name"`
	District            string               `json:"district"`
	Upazila             string               `json:"upazila"`
	FullAddress         string               `json:"full_address"`
	DonationDate        string               `json:"donation_date"`
	DonationTime        string               `json:"donation_time"`
	RequestMessage      string               `json:"request_message,omitempty"`
	Status              Status               `json:"donation_status"`
	Donor               *Donor               `json:"donor,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// NewDonationRequest builds a pending request from validated input.
func NewDonationRequest(requestID id.DonationRequestID, requesterEmail, requesterName string, in CreateRequestInput, now time.Time) (*DonationRequest, error) {
	if requesterEmail == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester email cannot be empty")
	}
	group, err := id.ParseBloodGroup(in.RecipientBloodGroup)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient blood group is invalid")
	}
	return &DonationRequest{
		ID:                  requestID,
		RequesterEmail:      requesterEmail,
		RequesterName:       requesterName,
		RecipientName:       in.RecipientName,
		RecipientBloodGroup: group,
		HospitalName:        in.HospitalName,
		District:            in.District,
		Upazila:             in.Upazila,
		FullAddress:         in.FullAddress,
		DonationDate:        in.DonationDate,
		DonationTime:        in.DonationTime,
		RequestMessage:      in.RequestMessage,
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func (r *DonationRequest) IsOwnedBy(email string) bool {
	return r.RequesterEmail == email
}

// CanEdit reports whether the request fields may still change.
func (r *DonationRequest) CanEdit() error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "request can only be edited while pending")
	}
	return nil
}

func (r *DonationRequest) ApplyEdit(u RequestUpdate, now time.Time) {
	if u.RecipientName != nil {
		r.RecipientName = *u.RecipientName
	}
	if u.RecipientBloodGroup != nil {
		r.RecipientBloodGroup = *u.RecipientBloodGroup
	}
	if u.HospitalName != nil {
		r.HospitalName = *u.HospitalName
	}
	if u.District != nil {
		r.District = *u.District
	}
	if u.Upazila != nil {
		r.Upazila = *u.Upazila
	}
	if u.FullAddress != nil {
		r.FullAddress = *u.FullAddress
	}
	if u.DonationDate != nil {
		r.DonationDate = *u.DonationDate
	}
	if u.DonationTime != nil {
		r.DonationTime = *u.DonationTime
	}
	if u.RequestMessage != nil {
		r.RequestMessage = *u.RequestMessage
	}
	r.UpdatedAt = now
}

// CanClaim reports whether a donor may take the request.
func (r *DonationRequest) CanClaim() error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "request is no longer pending")
	}
	return nil
}

// ApplyClaim stamps the donor and moves the request to inprogress in one step.
func (r *DonationRequest) ApplyClaim(donor Donor, now time.Time) {
	r.Donor = &donor
	r.Status = StatusInProgress
	r.UpdatedAt = now
}

// CanTransition reports whether the request may move to next.
func (r *DonationRequest) CanTransition(next Status) error {
	if r.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeConflict, "request is already "+string(r.Status))
	}
	if !r.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeConflict, "cannot move request from "+string(r.Status)+" to "+string(next))
	}
	return nil
}

func (r *DonationRequest) ApplyTransition(next Status, now time.Time) {
	r.Status = next
	r.UpdatedAt = now
}

// RequestUpdate names the fields to change; nil fields are left untouched.
type RequestUpdate struct {
	RecipientName       *string
	RecipientBloodGroup *id.BloodGroup
	HospitalName        *string
	District            *string
	Upazila             *string
	FullAddress         *string
	DonationDate        *string
	DonationTime        *string
	RequestMessage      *string
}

// RequestFilter narrows List and Count. Limit 0 means unbounded.
type RequestFilter struct {
	RequesterEmail string
	Statuses       []Status
	Limit          int
	Offset         int
}

// CreateOutcome separates a business refusal from a mechanical failure. When Eligible is
// false nothing was stored and Message explains why.
type CreateOutcome struct {
	Eligible bool             `json:"eligible"`
	Message  string           `json:"message,omitempty"`
	Request  *DonationRequest `json:"request,omitempty"`
}

// RequestPage is one page of an unscoped listing.
type RequestPage struct {
	Items  []*DonationRequest `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}
