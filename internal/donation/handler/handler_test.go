package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bloodlink/internal/donation/handler/mocks"
	"bloodlink/internal/donation/models"
	id "bloodlink/pkg/domain"
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

type DonationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestDonationHandlerSuite(t *testing.T) {
	suite.Run(t, new(DonationHandlerSuite))
}

func (s *DonationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.DiscardHandler), stubVerifier{"tok-a": "a@x.com", "tok-b": "b@x.com"}).Register(s.router)
}

func (s *DonationHandlerSuite) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithBearer(req, token))
}

func createBody() map[string]string {
	return map[string]string{
		"recipient_name":        "Karim",
		"recipient_blood_group": "O+",
		"hospital_name":         "Popular",
		"district":              "Khulna",
		"upazila":               "Sonadanga",
		"full_address":          "Cabin 12",
		"donation_date":         "2025-08-05",
		"donation_time":         "11:00",
	}
}

func (s *DonationHandlerSuite) TestCreate() {
	s.Run("eligible create is 201", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&models.CreateOutcome{
			Eligible: true,
			Request:  &models.DonationRequest{ID: id.NewDonationRequestID(), Status: models.StatusPending},
		}, nil)
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/donation-requests", createBody()), "tok-a")
		s.Equal(http.StatusCreated, rr.Code)

		body := testutil.DecodeBody[map[string]any](s.T(), rr)
		s.Equal(true, body["eligible"])
		s.Equal("pending", body["request"].(map[string]any)["donation_status"])
	})

	s.Run("ineligible create is a 200 refusal", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&models.CreateOutcome{
			Eligible: false,
			Message:  "not eligible to create a request",
		}, nil)
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/donation-requests", createBody()), "tok-a")
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"eligible":false,"message":"not eligible to create a request"}`, rr.Body.String())
	})

	s.Run("missing fields never reach the service", func() {
		body := createBody()
		delete(body, "hospital_name")
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/donation-requests", body), "tok-a")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("anonymous create is 401", func() {
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/donation-requests", createBody()), "")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *DonationHandlerSuite) TestList() {
	s.Run("public listing parses filters", func() {
		s.service.EXPECT().
			ListPublic(gomock.Any(), []models.Status{models.StatusPending, models.StatusInProgress}, 5, 10).
			Return(&models.RequestPage{Limit: 5, Offset: 10}, nil)
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/donation-requests?status=Pending,inprogress&limit=5&offset=10"), "")
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"items":[],"total":0,"limit":5,"offset":10}`, rr.Body.String())
	})

	s.Run("unknown status is rejected", func() {
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/donation-requests?status=archived"), "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("bad limit is rejected", func() {
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/donation-requests?limit=-1"), "")
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("scoped recent listing", func() {
		s.service.EXPECT().ListByRequester(gomock.Any(), "a@x.com", true, nil).
			Return([]*models.DonationRequest{{ID: id.NewDonationRequestID()}}, nil)
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/donation-requests?email=a@x.com&recent=true"), "tok-a")
		s.Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeBody[[]map[string]any](s.T(), rr)
		s.Len(body, 1)
	})

	s.Run("scoped listing with another identity is 403", func() {
		s.service.EXPECT().ListByRequester(gomock.Any(), "a@x.com", false, nil).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "caller identity does not match requested email"))
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/donation-requests?email=a@x.com"), "tok-b")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("bad token on public listing is still 401", func() {
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/donation-requests"), "forged")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *DonationHandlerSuite) TestMutations() {
	requestID := id.NewDonationRequestID()
	path := "/donation-requests/" + requestID.String()

	s.Run("claim conflict is 409", func() {
		s.service.EXPECT().Claim(gomock.Any(), requestID, &models.ClaimInput{DonorName: "B", DonorEmail: "b@x.com"}).
			Return(nil, dErrors.New(dErrors.CodeConflict, "request is no longer pending"))
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/claim",
			map[string]string{"donor_name": "B", "donor_email": "B@x.com"}), "tok-b")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("status to inprogress is a validation error", func() {
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPatch, path+"/status",
			map[string]string{"donation_status": "inprogress"}), "tok-a")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("status done", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), requestID, &models.SetStatusInput{Status: models.StatusDone}).
			Return(&models.DonationRequest{ID: requestID, Status: models.StatusDone}, nil)
		rr := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPatch, path+"/status",
			map[string]string{"donation_status": "done"}), "tok-a")
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("delete is 204", func() {
		s.service.EXPECT().Delete(gomock.Any(), requestID).Return(nil)
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodDelete, path), "tok-a")
		s.Equal(http.StatusNoContent, rr.Code)
	})

	s.Run("get unknown is 404", func() {
		s.service.EXPECT().Get(gomock.Any(), requestID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "donation request not found"))
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, path), "tok-a")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id is 400", func() {
		rr := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/donation-requests/xyz"), "tok-a")
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}
