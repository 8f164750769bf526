package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers account governance and money movement.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine lifecycle activity on donation requests.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic after a mutation commits. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	Action     string
	Subject    string // id of the affected document (request id, account id, transaction id)
	ActorEmail string // authenticated caller
	RequestID  string // Correlation ID from HTTP request context
	Detail     string // human-readable change, e.g. "pending->inprogress"
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Donation request events
	EventRequestCreated       AuditEvent = "request.created"
	EventRequestUpdated       AuditEvent = "request.updated"
	EventRequestClaimed       AuditEvent = "request.claimed"
	EventRequestStatusChanged AuditEvent = "request.status_changed"
	EventRequestDeleted       AuditEvent = "request.deleted"

	// Account events
	EventAccountRegistered    AuditEvent = "account.registered"
	EventAccountStatusChanged AuditEvent = "account.status_changed"
	EventAccountRoleChanged   AuditEvent = "account.role_changed"

	// Ledger events
	EventPledgeRecorded AuditEvent = "pledge.recorded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAccountRegistered:    CategoryCompliance,
	EventAccountStatusChanged: CategoryCompliance,
	EventAccountRoleChanged:   CategoryCompliance,
	EventPledgeRecorded:       CategoryCompliance,
	EventRequestDeleted:       CategoryCompliance,

	EventRequestCreated:       CategoryOperations,
	EventRequestUpdated:       CategoryOperations,
	EventRequestClaimed:       CategoryOperations,
	EventRequestStatusChanged: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Fanout appends every event to each store in order and returns the first error.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
