package donation

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetResponseArray() ([]map[string]any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Saved(key string) (string, error)
}

// RegisterSteps registers donation request steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &donationSteps{tc: tc}

	ctx.Step(`^I create a donation request for "([^"]*)" with blood group "([^"]*)"$`, steps.createRequest)
	ctx.Step(`^I claim the last donation request as "([^"]*)" with email "([^"]*)"$`, steps.claimLast)
	ctx.Step(`^I list donation requests for "([^"]*)"$`, steps.listFor)
	ctx.Step(`^the listed requests should be newest first$`, steps.listedNewestFirst)
	ctx.Step(`^every listed request should belong to "([^"]*)"$`, steps.everyListedBelongsTo)
}

type donationSteps struct {
	tc TestContext
}

const lastRequestKey = "donation:last"

func (s *donationSteps) createRequest(ctx context.Context, recipient, bloodGroup string) error {
	body := map[string]any{
		"recipient_name":        recipient,
		"recipient_blood_group": bloodGroup,
		"hospital_name":         "Dhaka Medical College",
		"district":              "Dhaka",
		"upazila":               "Ramna",
		"full_address":          "Ward 4, Bed 12",
		"donation_date":         "2030-01-15",
		"donation_time":         "10:30",
	}
	if err := s.tc.POST("/donation-requests", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return nil
	}
	v, err := s.tc.GetResponseField("request.id")
	if err != nil {
		return err
	}
	requestID, ok := v.(string)
	if !ok {
		return fmt.Errorf("request id is not a string: %v", v)
	}
	s.tc.Save(lastRequestKey, requestID)
	return nil
}

func (s *donationSteps) claimLast(ctx context.Context, name, email string) error {
	requestID, err := s.tc.Saved(lastRequestKey)
	if err != nil {
		return err
	}
	return s.tc.POST("/donation-requests/"+requestID+"/claim", map[string]any{
		"donor_name":  name,
		"donor_email": email,
	})
}

func (s *donationSteps) listFor(ctx context.Context, email string) error {
	return s.tc.GET("/donation-requests?email=" + url.QueryEscape(email))
}

func (s *donationSteps) listedNewestFirst(ctx context.Context) error {
	items, err := s.tc.GetResponseArray()
	if err != nil {
		return err
	}
	var prev time.Time
	for i, item := range items {
		raw, _ := item["created_at"].(string)
		cur, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("item %d created_at: %w", i, err)
		}
		if i > 0 && cur.After(prev) {
			return fmt.Errorf("item %d (%s) is newer than item %d", i, raw, i-1)
		}
		prev = cur
	}
	return nil
}

func (s *donationSteps) everyListedBelongsTo(ctx context.Context, email string) error {
	items, err := s.tc.GetResponseArray()
	if err != nil {
		return err
	}
	for i, item := range items {
		if item["requester_email"] != email {
			return fmt.Errorf("item %d belongs to %v", i, item["requester_email"])
		}
	}
	return nil
}
