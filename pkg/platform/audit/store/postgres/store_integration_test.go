//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "bloodlink/pkg/platform/audit"
	"bloodlink/pkg/testutil/containers"
)

type AuditPostgresSuite struct {
	suite.Suite
	store *Store
}

func TestAuditPostgresSuite(t *testing.T) {
	suite.Run(t, new(AuditPostgresSuite))
}

func (s *AuditPostgresSuite) SetupTest() {
	pg := containers.GetManager().GetPostgres(s.T())
	_, err := pg.DB.ExecContext(context.Background(), "TRUNCATE audit_events")
	s.Require().NoError(err)
	s.store = New(pg.DB)
}

func (s *AuditPostgresSuite) TestAppendIsIdempotent() {
	ctx := context.Background()
	at := time.Date(2030, 1, 15, 10, 30, 0, 0, time.UTC)
	claimed := audit.Event{
		Category:   audit.CategoryOperations,
		Timestamp:  at,
		Action:     "request.claimed",
		Subject:    "req-1",
		ActorEmail: "b@x.com",
		RequestID:  "r-1",
		Detail:     "pending->inprogress",
	}
	created := claimed
	created.Action = "request.created"
	created.Timestamp = at.Add(-time.Hour)
	created.RequestID = "r-0"

	s.Require().NoError(s.store.Append(ctx, claimed))
	s.Require().NoError(s.store.Append(ctx, claimed))
	s.Require().NoError(s.store.Append(ctx, created))

	events, err := s.store.ListBySubject(ctx, "req-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("request.created", events[0].Action)
	s.Equal("request.claimed", events[1].Action)
	s.Equal(audit.CategoryOperations, events[1].Category)
	s.True(at.Equal(events[1].Timestamp))
}
