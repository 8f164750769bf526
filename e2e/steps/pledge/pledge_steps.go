package pledge

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	MarkSessionPaid(sessionID string, amount int64, transactionID, donorEmail string)
	LedgerCount(ctx context.Context) (int, error)
	Saved(key string) (string, error)
}

// RegisterSteps registers pledge checkout and reconciliation steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &pledgeSteps{tc: tc}

	ctx.Step(`^I start a checkout for (\d+) as "([^"]*)" with email "([^"]*)"$`, steps.startCheckout)
	ctx.Step(`^the processor reports session "([^"]*)" paid with amount (\d+) and transaction "([^"]*)" for "([^"]*)"$`, steps.sessionPaid)
	ctx.Step(`^the processor reports the saved session "([^"]*)" paid with amount (\d+) and transaction "([^"]*)" for "([^"]*)"$`, steps.savedSessionPaid)
	ctx.Step(`^I confirm the pledge for session "([^"]*)"$`, steps.confirm)
	ctx.Step(`^I confirm the pledge for the saved session "([^"]*)"$`, steps.confirmSaved)
	ctx.Step(`^the ledger should hold (\d+) pledges?$`, steps.ledgerShouldHold)
}

type pledgeSteps struct {
	tc TestContext
}

func (s *pledgeSteps) startCheckout(ctx context.Context, amount int, name, email string) error {
	return s.tc.POST("/pledges/checkout", map[string]any{
		"amount":      amount,
		"donor_name":  name,
		"donor_email": email,
	})
}

func (s *pledgeSteps) sessionPaid(ctx context.Context, sessionID string, amount int, txID, email string) error {
	s.tc.MarkSessionPaid(sessionID, int64(amount), txID, email)
	return nil
}

func (s *pledgeSteps) savedSessionPaid(ctx context.Context, key string, amount int, txID, email string) error {
	sessionID, err := s.tc.Saved(key)
	if err != nil {
		return err
	}
	return s.sessionPaid(ctx, sessionID, amount, txID, email)
}

func (s *pledgeSteps) confirm(ctx context.Context, sessionID string) error {
	return s.tc.POST("/pledges/confirm", map[string]any{"session_id": sessionID})
}

func (s *pledgeSteps) confirmSaved(ctx context.Context, key string) error {
	sessionID, err := s.tc.Saved(key)
	if err != nil {
		return err
	}
	return s.confirm(ctx, sessionID)
}

func (s *pledgeSteps) ledgerShouldHold(ctx context.Context, expected int) error {
	count, err := s.tc.LedgerCount(ctx)
	if err != nil {
		return err
	}
	if count != expected {
		return fmt.Errorf("expected %d pledges in the ledger, got %d", expected, count)
	}
	return nil
}
