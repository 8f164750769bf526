package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	ledger "bloodlink/internal/ledger/models"
	"bloodlink/internal/pledge/handler/mocks"
	"bloodlink/internal/pledge/models"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type stubVerifier map[string]string

func (v stubVerifier) Verify(token string) (string, error) {
	if email, ok := v[token]; ok {
		return email, nil
	}
	return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

type PledgeHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestPledgeHandlerSuite(t *testing.T) {
	suite.Run(t, new(PledgeHandlerSuite))
}

func (s *PledgeHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.DiscardHandler), stubVerifier{"tok-b": "b@x.com"}).Register(s.router)
}

func (s *PledgeHandlerSuite) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithBearer(req, token))
}

func (s *PledgeHandlerSuite) TestCheckout() {
	s.Run("opens a session", func() {
		s.service.EXPECT().Initiate(gomock.Any(), &models.InitiateRequest{Amount: 50, DonorName: "Bina", DonorEmail: "b@x.com"}).
			Return(&models.Checkout{SessionID: "cs_1", URL: "https://pay.example/cs_1"}, nil)
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/checkout", map[string]any{
			"amount": 50, "donor_name": " Bina ", "donor_email": "B@x.com",
		}), "tok-b")
		s.Equal(http.StatusCreated, rr.Code)
		s.JSONEq(`{"session_id":"cs_1","url":"https://pay.example/cs_1"}`, rr.Body.String())
	})

	s.Run("non-positive amount never reaches the service", func() {
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/checkout", map[string]any{
			"amount": 0, "donor_name": "Bina", "donor_email": "b@x.com",
		}), "tok-b")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("processor failure is 502", func() {
		s.service.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("timeout"), dErrors.CodeUpstream, "payment processor unavailable"))
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/checkout", map[string]any{
			"amount": 5, "donor_name": "Bina", "donor_email": "b@x.com",
		}), "tok-b")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadGateway, "upstream_error")
	})

	s.Run("anonymous is 401", func() {
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/checkout", map[string]any{
			"amount": 5, "donor_name": "Bina", "donor_email": "b@x.com",
		}), "")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *PledgeHandlerSuite) TestConfirm() {
	rec := &ledger.PledgeRecord{
		TransactionID: "tx_1",
		SessionID:     "sess_1",
		Amount:        5000,
		Currency:      "usd",
		DonorName:     "Bina",
		DonorEmail:    "b@x.com",
		RecordedAt:    time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	s.Run("recorded is 201", func() {
		s.service.EXPECT().Confirm(gomock.Any(), &models.ConfirmRequest{SessionID: "sess_1"}).
			Return(&models.ConfirmResult{Outcome: models.OutcomeRecorded, Pledge: rec}, nil)
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/confirm", map[string]string{"session_id": "sess_1"}), "tok-b")
		s.Equal(http.StatusCreated, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "outcome", "recorded")
	})

	s.Run("already recorded is 200", func() {
		s.service.EXPECT().Confirm(gomock.Any(), gomock.Any()).
			Return(&models.ConfirmResult{Outcome: models.OutcomeAlreadyRecorded, Pledge: rec}, nil)
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/confirm", map[string]string{"session_id": "sess_1"}), "tok-b")
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "outcome", "already_recorded")
	})

	s.Run("unpaid is 200 without a pledge", func() {
		s.service.EXPECT().Confirm(gomock.Any(), gomock.Any()).
			Return(&models.ConfirmResult{Outcome: models.OutcomeUnpaid}, nil)
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/confirm", map[string]string{"session_id": "sess_2"}), "tok-b")
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"outcome":"unpaid"}`, rr.Body.String())
	})

	s.Run("unknown session is 400", func() {
		s.service.EXPECT().Confirm(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidSession, "payment session not found"))
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/confirm", map[string]string{"session_id": "nope"}), "tok-b")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_session")
	})

	s.Run("missing session id", func() {
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/pledges/confirm", map[string]string{}), "tok-b")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *PledgeHandlerSuite) TestListAndSummary() {
	s.Run("scoped list", func() {
		s.service.EXPECT().List(gomock.Any(), "b@x.com").Return(nil, nil)
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/pledges?email=b@x.com"), "tok-b")
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`[]`, rr.Body.String())
	})

	s.Run("forbidden scope", func() {
		s.service.EXPECT().List(gomock.Any(), "c@x.com").Return(nil, dErrors.New(dErrors.CodeForbidden, "forbidden"))
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/pledges?email=c@x.com"), "tok-b")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("summary is public", func() {
		s.service.EXPECT().Summary(gomock.Any()).Return(&ledger.Summary{Total: 12500, Currency: "usd", Count: 3}, nil)
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/pledges/summary"), "")
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"total":12500,"currency":"usd","count":3}`, rr.Body.String())
	})
}
