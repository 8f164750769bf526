package identity

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAs(email string) error
	POST(path string, body any) error
	PATCH(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Saved(key string) (string, error)
}

// RegisterSteps registers account registration and administration steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &identitySteps{tc: tc}

	ctx.Step(`^I register my account as "([^"]*)"$`, steps.registerMyAccount)
	ctx.Step(`^"([^"]*)" has registered an account$`, steps.hasRegistered)
	ctx.Step(`^the admin sets the status of "([^"]*)" to "([^"]*)"$`, steps.adminSetsStatus)
	ctx.Step(`^"([^"]*)" sets the status of "([^"]*)" to "([^"]*)"$`, steps.setsStatus)
}

// adminEmail matches the bootstrap admin configured by the harness.
const adminEmail = "admin@x.com"

type identitySteps struct {
	tc TestContext
}

func accountKey(email string) string {
	return "account:" + email
}

func (s *identitySteps) registerMyAccount(ctx context.Context, email string) error {
	if err := s.tc.POST("/users", map[string]any{"email": email}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 201 {
		return s.rememberAccount(email)
	}
	return nil
}

func (s *identitySteps) hasRegistered(ctx context.Context, email string) error {
	if err := s.tc.AuthenticateAs(email); err != nil {
		return err
	}
	if err := s.registerMyAccount(ctx, email); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 201 {
		return fmt.Errorf("register %s: status %d: %s", email, status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *identitySteps) rememberAccount(email string) error {
	v, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	accountID, ok := v.(string)
	if !ok {
		return fmt.Errorf("account id is not a string: %v", v)
	}
	s.tc.Save(accountKey(email), accountID)
	return nil
}

// adminSetsStatus registers the bootstrap admin on first use, then patches the account.
func (s *identitySteps) adminSetsStatus(ctx context.Context, email, status string) error {
	accountID, err := s.tc.Saved(accountKey(email))
	if err != nil {
		return err
	}
	if err := s.tc.AuthenticateAs(adminEmail); err != nil {
		return err
	}
	if _, err := s.tc.Saved(accountKey(adminEmail)); err != nil {
		if err := s.hasRegistered(ctx, adminEmail); err != nil {
			return err
		}
	}
	return s.tc.PATCH("/users/"+accountID+"/status", map[string]any{"status": status})
}

func (s *identitySteps) setsStatus(ctx context.Context, actor, email, status string) error {
	accountID, err := s.tc.Saved(accountKey(email))
	if err != nil {
		return err
	}
	if err := s.tc.AuthenticateAs(actor); err != nil {
		return err
	}
	return s.tc.PATCH("/users/"+accountID+"/status", map[string]any{"status": status})
}
