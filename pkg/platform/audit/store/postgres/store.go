// Package postgres is the durable audit trail read by operators and written by the audit sink.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "bloodlink/pkg/platform/audit"
)

// eventNamespace seeds the name-based ids of audit rows.
var eventNamespace = uuid.MustParse("1f6f3c8e-6d0b-4a54-9a51-7e2f2f0f6b21")

// Store appends audit events to audit_events. Appends are idempotent: an event delivered
// twice by Kafka hashes to the same id and the second insert is ignored.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EventID derives the row id from the fields that identify one emission.
func EventID(event audit.Event) uuid.UUID {
	key := event.Action + "\x00" + event.Subject + "\x00" + event.RequestID + "\x00" +
		event.Timestamp.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(eventNamespace, []byte(key))
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	const query = `
		INSERT INTO audit_events (id, category, occurred_at, action, subject, actor_email, request_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query,
		EventID(event), string(event.Category), event.Timestamp.UTC(), event.Action,
		event.Subject, event.ActorEmail, event.RequestID, event.Detail,
	); err != nil {
		return fmt.Errorf("append audit event %s: %w", event.Action, err)
	}
	return nil
}

// ListBySubject returns one document's history, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	const query = `
		SELECT category, occurred_at, action, subject, actor_email, request_id, detail
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at, action`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events for %s: %w", subject, err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
		)
		if err := rows.Scan(&category, &e.Timestamp, &e.Action, &e.Subject, &e.ActorEmail, &e.RequestID, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	return events, rows.Err()
}
