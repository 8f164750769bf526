package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"bloodlink/internal/authz"
	donationhandler "bloodlink/internal/donation/handler"
	donationservice "bloodlink/internal/donation/service"
	"bloodlink/internal/donation/store/request"
	identityhandler "bloodlink/internal/identity/handler"
	identityservice "bloodlink/internal/identity/service"
	"bloodlink/internal/identity/store/account"
	jwttoken "bloodlink/internal/jwt_token"
	ledgerpledge "bloodlink/internal/ledger/store/pledge"
	pledgehandler "bloodlink/internal/pledge/handler"
	"bloodlink/internal/pledge/models"
	pledgeservice "bloodlink/internal/pledge/service"
	httptransport "bloodlink/internal/transport/http"
	"bloodlink/pkg/platform/audit/publisher"
	auditmemory "bloodlink/pkg/platform/audit/store/memory"
	"bloodlink/pkg/platform/sentinel"
)

// AdminEmail registers with role admin in every scenario.
const AdminEmail = "admin@x.com"

// TestContext holds one scenario's in-process server and the last response seen.
type TestContext struct {
	server    *httptest.Server
	tokens    *jwttoken.JWTService
	Processor *FakeProcessor
	Ledger    *ledgerpledge.InMemoryStore
	Audits    *auditmemory.InMemoryStore

	token        string
	lastStatus   int
	lastBody     []byte
	lastResponse map[string]any
	saved        map[string]string
}

// NewTestContext wires the HTTP stack on memory stores behind an httptest server.
func NewTestContext() *TestContext {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwttoken.NewJWTService("e2e-signing-key", "bloodlink", "bloodlink-api")

	accounts := account.NewInMemory()
	requests := request.NewInMemory()
	ledger := ledgerpledge.NewInMemory()
	audits := auditmemory.NewInMemoryStore()
	auditPublisher := publisher.NewPublisher(audits)
	guard := authz.NewGuard(accounts)
	processor := NewFakeProcessor()

	identity := identityservice.New(accounts, guard,
		identityservice.WithLogger(logger),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithBootstrapAdmins(AdminEmail),
	)
	donation := donationservice.New(requests, accounts, guard,
		donationservice.WithLogger(logger),
		donationservice.WithAuditPublisher(auditPublisher),
	)
	pledge := pledgeservice.New(ledger, processor, guard,
		pledgeservice.Settings{Currency: "usd", SuccessURL: "http://localhost/ok", CancelURL: "http://localhost/cancel"},
		pledgeservice.WithLogger(logger),
		pledgeservice.WithAuditPublisher(auditPublisher),
	)

	router := httptransport.NewRouter(httptransport.Options{Logger: logger},
		identityhandler.New(identity, logger, tokens),
		donationhandler.New(donation, logger, tokens),
		pledgehandler.New(pledge, logger, tokens),
	)

	return &TestContext{
		server:    httptest.NewServer(router),
		tokens:    tokens,
		Processor: processor,
		Ledger:    ledger,
		Audits:    audits,
		saved:     map[string]string{},
	}
}

func (tc *TestContext) Close() {
	tc.server.Close()
}

// AuthenticateAs mints a token for email and uses it on later requests.
func (tc *TestContext) AuthenticateAs(email string) error {
	token, err := tc.tokens.GenerateAccessToken(email, time.Hour)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	tc.token = token
	return nil
}

// ClearAuthentication makes later requests anonymous.
func (tc *TestContext) ClearAuthentication() {
	tc.token = ""
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) PATCH(path string, body any) error {
	return tc.do(http.MethodPatch, path, body)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.server.URL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tc.lastResponse = nil
	var obj map[string]any
	if json.Unmarshal(tc.lastBody, &obj) == nil {
		tc.lastResponse = obj
	}
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

// GetResponseField resolves a dotted path such as "request.donation_status" in the last
// JSON object response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastResponse == nil {
		return nil, fmt.Errorf("last response is not a JSON object: %s", tc.lastBody)
	}
	var cur any = tc.lastResponse
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
	}
	return cur, nil
}

// GetResponseArray decodes the last response as a JSON array.
func (tc *TestContext) GetResponseArray() ([]map[string]any, error) {
	var items []map[string]any
	if err := json.Unmarshal(tc.lastBody, &items); err != nil {
		return nil, fmt.Errorf("last response is not a JSON array: %s", tc.lastBody)
	}
	return items, nil
}

// Save stores a value under key for later steps.
func (tc *TestContext) Save(key, value string) {
	tc.saved[key] = value
}

func (tc *TestContext) Saved(key string) (string, error) {
	v, ok := tc.saved[key]
	if !ok {
		return "", fmt.Errorf("nothing saved under %q", key)
	}
	return v, nil
}

func (tc *TestContext) MarkSessionPaid(sessionID string, amount int64, transactionID, donorEmail string) {
	tc.Processor.MarkPaid(sessionID, amount, transactionID, donorEmail)
}

func (tc *TestContext) LedgerCount(ctx context.Context) (int, error) {
	_, count, err := tc.Ledger.Total(ctx)
	return count, err
}

// FakeProcessor is an in-memory payment processor whose sessions start unpaid.
type FakeProcessor struct {
	mu       sync.Mutex
	next     int
	sessions map[string]*models.PaymentSession
}

func NewFakeProcessor() *FakeProcessor {
	return &FakeProcessor{sessions: map[string]*models.PaymentSession{}}
}

func (p *FakeProcessor) CreateSession(_ context.Context, req models.SessionRequest) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	sessionID := "cs_test_" + strconv.Itoa(p.next)
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	p.sessions[sessionID] = &models.PaymentSession{
		ID:          sessionID,
		AmountTotal: req.AmountMinor,
		Currency:    req.Currency,
		BuyerEmail:  req.BuyerEmail,
		Metadata:    meta,
	}
	return &models.Session{ID: sessionID, RedirectURL: "https://pay.test/" + sessionID}, nil
}

func (p *FakeProcessor) GetSession(_ context.Context, sessionID string) (*models.PaymentSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// MarkPaid settles sessionID, creating it when the scenario skipped checkout.
func (p *FakeProcessor) MarkPaid(sessionID string, amount int64, transactionID, donorEmail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[sessionID]
	if !ok {
		sess = &models.PaymentSession{
			ID:       sessionID,
			Currency: "usd",
			Metadata: map[string]string{
				models.MetaDonorName:  "Donor",
				models.MetaDonorEmail: donorEmail,
			},
		}
		p.sessions[sessionID] = sess
	}
	sess.PaymentState = models.PaymentStatePaid
	sess.AmountTotal = amount
	sess.TransactionID = transactionID
	sess.BuyerEmail = donorEmail
}
