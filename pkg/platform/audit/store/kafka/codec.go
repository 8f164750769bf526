package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	audit "bloodlink/pkg/platform/audit"
)

type payload struct {
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action"`
	Subject    string `json:"subject"`
	ActorEmail string `json:"actor_email,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func encode(event audit.Event) ([]byte, error) {
	return json.Marshal(payload{
		Category:   string(event.Category),
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:     event.Action,
		Subject:    event.Subject,
		ActorEmail: event.ActorEmail,
		RequestID:  event.RequestID,
		Detail:     event.Detail,
	})
}

// Decode parses a record value written by Store. A missing category is derived from the
// action.
func Decode(value []byte) (audit.Event, error) {
	var p payload
	if err := json.Unmarshal(value, &p); err != nil {
		return audit.Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	if p.Action == "" {
		return audit.Event{}, fmt.Errorf("audit payload has no action")
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("audit payload timestamp: %w", err)
	}
	category := audit.EventCategory(p.Category)
	if category == "" {
		category = audit.AuditEvent(p.Action).Category()
	}
	return audit.Event{
		Category:   category,
		Timestamp:  ts,
		Action:     p.Action,
		Subject:    p.Subject,
		ActorEmail: p.ActorEmail,
		RequestID:  p.RequestID,
		Detail:     p.Detail,
	}, nil
}
