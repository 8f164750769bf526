package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	audit "bloodlink/pkg/platform/audit"
)

func TestEventIDIsStablePerEmission(t *testing.T) {
	at := time.Date(2030, 1, 15, 10, 30, 0, 0, time.UTC)
	event := audit.Event{Action: "request.claimed", Subject: "req-1", RequestID: "r-1", Timestamp: at}

	redelivered := event
	redelivered.Timestamp = at.In(time.FixedZone("BDT", 6*3600))
	assert.Equal(t, EventID(event), EventID(redelivered), "zone does not change identity")

	other := event
	other.RequestID = "r-2"
	assert.NotEqual(t, EventID(event), EventID(other))
}
