package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/platform/config"
	"bloodlink/internal/pledge/models"
	"bloodlink/pkg/platform/circuit"
	"bloodlink/pkg/platform/sentinel"
)

func newTestStripe(t *testing.T, handler http.HandlerFunc, opts ...Option) *Stripe {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStripe(config.Stripe{SecretKey: "sk_test_123", APIURL: srv.URL}, opts...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestCreateSession(t *testing.T) {
	var form map[string]string
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		writeJSON(w, http.StatusOK, `{"id":"cs_1","object":"checkout.session","url":"https://pay.example/cs_1"}`)
	})

	sess, err := s.CreateSession(context.Background(), models.SessionRequest{
		AmountMinor: 5000,
		Currency:    "usd",
		BuyerEmail:  "b@x.com",
		Label:       "Donation by B",
		SuccessURL:  "https://app.example/ok",
		CancelURL:   "https://app.example/cancel",
		Metadata:    map[string]string{models.MetaDonorName: "B", models.MetaAmount: "50"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", sess.ID)
	assert.Equal(t, "https://pay.example/cs_1", sess.RedirectURL)

	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "b@x.com", form["customer_email"])
	assert.Equal(t, "5000", form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, "Donation by B", form["line_items[0][price_data][product_data][name]"])
	assert.Equal(t, "1", form["line_items[0][quantity]"])
	assert.Equal(t, "B", form["metadata[donor_name]"])
}

func TestGetSession(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/checkout/sessions/cs_paid":
			writeJSON(w, http.StatusOK, `{
				"id":"cs_paid","object":"checkout.session",
				"payment_intent":"pi_1","payment_status":"paid",
				"amount_total":5000,"currency":"usd",
				"customer_details":{"email":"b@x.com"},
				"metadata":{"donor_name":"B","donor_email":"b@x.com","amount":"50"}
			}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`)
		}
	})

	t.Run("paid session", func(t *testing.T) {
		sess, err := s.GetSession(context.Background(), "cs_paid")
		require.NoError(t, err)
		assert.Equal(t, "pi_1", sess.TransactionID)
		assert.True(t, sess.IsPaid())
		assert.Equal(t, int64(5000), sess.AmountTotal)
		assert.Equal(t, "b@x.com", sess.BuyerEmail)
		assert.Equal(t, "B", sess.Metadata[models.MetaDonorName])
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := s.GetSession(context.Background(), "cs_missing")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestBreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, `{"error":{"type":"api_error","message":"boom"}}`)
	}, WithBreaker(circuit.New("stripe", circuit.WithFailureThreshold(2))))

	for i := 0; i < 2; i++ {
		_, err := s.GetSession(context.Background(), "cs_1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	}

	_, err := s.GetSession(context.Background(), "cs_1")
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}
