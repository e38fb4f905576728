package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/kyc"
	"lending-engine/internal/pkg/apperrors"
)

const customerNumber = "234774784"

func customerRouter(subs *MockSubscriptionService, loans *MockLoanService) http.Handler {
	h := NewCustomerHandler(subs, loans, logger)
	r := chi.NewRouter()
	r.Route("/customers/{customerNumber}", func(r chi.Router) {
		r.Get("/subscription", h.GetSubscription)
		r.Post("/subscription", h.Subscribe)
		r.Delete("/subscription", h.Unsubscribe)
		r.Get("/active-loan", h.GetActiveLoan)
		r.Get("/loans", h.ListLoans)
		r.Get("/loans/latest", h.GetLatestLoan)
	})
	return r
}

func TestNewCustomerHandler_PanicsOnNilServices(t *testing.T) {
	assert.Panics(t, func() { NewCustomerHandler(nil, new(MockLoanService), logger) })
	assert.Panics(t, func() { NewCustomerHandler(new(MockSubscriptionService), new(MockLoanService), nil) })
}

func TestCustomerHandler_Subscription(t *testing.T) {
	t.Run("reports subscription state", func(t *testing.T) {
		subs := new(MockSubscriptionService)
		subs.On("IsSubscribed", mock.Anything, customerNumber).Return(true, nil).Once()

		rec := doRequest(customerRouter(subs, new(MockLoanService)), http.MethodGet, "/customers/"+customerNumber+"/subscription", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"customerNumber":"234774784","subscribed":true}`, rec.Body.String())
	})

	t.Run("rejects a malformed customer number", func(t *testing.T) {
		subs := new(MockSubscriptionService)
		rec := doRequest(customerRouter(subs, new(MockLoanService)), http.MethodGet, "/customers/abc/subscription", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		subs.AssertNotCalled(t, "IsSubscribed", mock.Anything, mock.Anything)
	})

	t.Run("subscribes and returns the profile", func(t *testing.T) {
		subs := new(MockSubscriptionService)
		subs.On("Enroll", mock.Anything, customerNumber).
			Return(&kyc.Profile{CustomerNumber: customerNumber, FirstName: "Sarah", Country: "Kenya"}, nil).Once()

		rec := doRequest(customerRouter(subs, new(MockLoanService)), http.MethodPost, "/customers/"+customerNumber+"/subscription", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.SubscriptionResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Subscribed)
		require.NotNil(t, resp.Profile)
		assert.Equal(t, "Sarah", resp.Profile.FirstName)
	})

	t.Run("maps identity outage to 503", func(t *testing.T) {
		subs := new(MockSubscriptionService)
		subs.On("Enroll", mock.Anything, customerNumber).
			Return(nil, fmt.Errorf("%w: soap fault", apperrors.ErrIdentityUnavailable)).Once()

		rec := doRequest(customerRouter(subs, new(MockLoanService)), http.MethodPost, "/customers/"+customerNumber+"/subscription", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unsubscribes", func(t *testing.T) {
		subs := new(MockSubscriptionService)
		subs.On("Unsubscribe", mock.Anything, customerNumber).Return(true, nil).Once()

		rec := doRequest(customerRouter(subs, new(MockLoanService)), http.MethodDelete, "/customers/"+customerNumber+"/subscription", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"customerNumber":"234774784","subscribed":false}`, rec.Body.String())
	})

	t.Run("unsubscribing an unknown customer is 404", func(t *testing.T) {
		subs := new(MockSubscriptionService)
		subs.On("Unsubscribe", mock.Anything, customerNumber).Return(false, nil).Once()

		rec := doRequest(customerRouter(subs, new(MockLoanService)), http.MethodDelete, "/customers/"+customerNumber+"/subscription", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store failures surface as 500", func(t *testing.T) {
		subs := new(MockSubscriptionService)
		subs.On("IsSubscribed", mock.Anything, customerNumber).Return(false, errors.New("boom")).Once()

		rec := doRequest(customerRouter(subs, new(MockLoanService)), http.MethodGet, "/customers/"+customerNumber+"/subscription", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "An unexpected error occurred.", decodeError(t, rec).Error.Message)
	})
}

func TestCustomerHandler_Loans(t *testing.T) {
	t.Run("active loan flag", func(t *testing.T) {
		loans := new(MockLoanService)
		loans.On("HasActiveLoan", mock.Anything, customerNumber).Return(true, nil).Once()

		rec := doRequest(customerRouter(new(MockSubscriptionService), loans), http.MethodGet, "/customers/"+customerNumber+"/active-loan", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"customerNumber":"234774784","hasActiveLoan":true}`, rec.Body.String())
	})

	t.Run("lists loans newest first as returned", func(t *testing.T) {
		loans := new(MockLoanService)
		first, second := pendingLoan(), pendingLoan()
		second.ID, second.Status = "LOAN00OLD", loan.StatusCompleted
		loans.On("GetCustomerLoans", mock.Anything, customerNumber).Return([]*loan.Loan{first, second}, nil).Once()

		rec := doRequest(customerRouter(new(MockSubscriptionService), loans), http.MethodGet, "/customers/"+customerNumber+"/loans", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []dto.LoanResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "LOAN01JNQ", resp[0].ID)
		assert.Equal(t, "COMPLETED", resp[1].Status)
	})

	t.Run("empty history is an empty array", func(t *testing.T) {
		loans := new(MockLoanService)
		loans.On("GetCustomerLoans", mock.Anything, customerNumber).Return([]*loan.Loan{}, nil).Once()

		rec := doRequest(customerRouter(new(MockSubscriptionService), loans), http.MethodGet, "/customers/"+customerNumber+"/loans", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("latest loan", func(t *testing.T) {
		loans := new(MockLoanService)
		loans.On("GetLatestLoan", mock.Anything, customerNumber).Return(pendingLoan(), nil).Once()

		rec := doRequest(customerRouter(new(MockSubscriptionService), loans), http.MethodGet, "/customers/"+customerNumber+"/loans/latest", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"LOAN01JNQ"`)
	})

	t.Run("latest loan for a customer without loans is 404", func(t *testing.T) {
		loans := new(MockLoanService)
		loans.On("GetLatestLoan", mock.Anything, customerNumber).
			Return(nil, fmt.Errorf("%w: no loans for customer", apperrors.ErrNotFound)).Once()

		rec := doRequest(customerRouter(new(MockSubscriptionService), loans), http.MethodGet, "/customers/"+customerNumber+"/loans/latest", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
