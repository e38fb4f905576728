package handler

import (
	"log/slog"
	"net/http"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/domain/subscription"
)

// CustomerHandler serves the per-customer resources: the lending
// subscription and the customer's loan history.
type CustomerHandler struct {
	subscriptions subscription.SubscriptionService
	loans         loan.LoanService
	logger        *slog.Logger
}

func NewCustomerHandler(subs subscription.SubscriptionService, loans loan.LoanService, l *slog.Logger) *CustomerHandler {
	if subs == nil || loans == nil {
		panic("customer handler services cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		subscriptions: subs,
		loans:         loans,
		logger:        l.With("component", "CustomerHandler"),
	}
}

// GetSubscription handles GET /customers/{customerNumber}/subscription
// @Summary Check subscription
// @Description Reports whether the customer is subscribed to the lending product.
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid customer number"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerNumber}/subscription [get]
// @Security BearerAuth
func (h *CustomerHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	customerNumber, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	subscribed, err := h.subscriptions.IsSubscribed(r.Context(), customerNumber)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to check subscription", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.SubscriptionResponse{CustomerNumber: customerNumber, Subscribed: subscribed})
}

// Subscribe handles POST /customers/{customerNumber}/subscription
// @Summary Subscribe a customer
// @Description Looks up the customer's identity and subscribes them to the lending product. Idempotent.
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} dto.SubscriptionResponse "Customer subscribed"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer number"
// @Failure 503 {object} dto.ErrorResponse "Identity data unavailable"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerNumber}/subscription [post]
// @Security BearerAuth
func (h *CustomerHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	customerNumber, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	profile, err := h.subscriptions.Enroll(r.Context(), customerNumber)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Subscription failed", slog.String("customerNumber", customerNumber), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer subscribed", slog.String("customerNumber", customerNumber))
	respondJSON(w, http.StatusOK, dto.SubscriptionResponse{CustomerNumber: customerNumber, Subscribed: true, Profile: profile})
}

// Unsubscribe handles DELETE /customers/{customerNumber}/subscription
// @Summary Unsubscribe a customer
// @Description Removes the subscription. Existing loans are not affected.
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} dto.SubscriptionResponse "subscribed=false"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer number"
// @Failure 404 {object} dto.ErrorResponse "Customer was not subscribed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerNumber}/subscription [delete]
// @Security BearerAuth
func (h *CustomerHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	customerNumber, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	removed, err := h.subscriptions.Unsubscribe(r.Context(), customerNumber)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to unsubscribe", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if !removed {
		respondJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: dto.ErrorDetail{Message: "Customer is not subscribed."}})
		return
	}
	respondJSON(w, http.StatusOK, dto.SubscriptionResponse{CustomerNumber: customerNumber, Subscribed: false})
}

// GetActiveLoan handles GET /customers/{customerNumber}/active-loan
// @Summary Check for an active loan
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} dto.ActiveLoanResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid customer number"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerNumber}/active-loan [get]
// @Security BearerAuth
func (h *CustomerHandler) GetActiveLoan(w http.ResponseWriter, r *http.Request) {
	customerNumber, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	active, err := h.loans.HasActiveLoan(r.Context(), customerNumber)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to check active loan", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ActiveLoanResponse{CustomerNumber: customerNumber, HasActiveLoan: active})
}

// ListLoans handles GET /customers/{customerNumber}/loans
// @Summary List a customer's loans
// @Description Returns every loan of the customer, newest first.
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {array} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid customer number"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerNumber}/loans [get]
// @Security BearerAuth
func (h *CustomerHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	customerNumber, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	loans, err := h.loans.GetCustomerLoans(r.Context(), customerNumber)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list customer loans", slog.Any("error", err))
		respondError(w, err)
		return
	}
	h.logger.DebugContext(r.Context(), "Customer loans listed", slog.Int("count", len(loans)))
	respondJSON(w, http.StatusOK, dto.NewLoanListResponse(loans))
}

// GetLatestLoan handles GET /customers/{customerNumber}/loans/latest
// @Summary Latest loan of a customer
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid customer number"
// @Failure 404 {object} dto.ErrorResponse "Customer has no loans"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerNumber}/loans/latest [get]
// @Security BearerAuth
func (h *CustomerHandler) GetLatestLoan(w http.ResponseWriter, r *http.Request) {
	customerNumber, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	latest, err := h.loans.GetLatestLoan(r.Context(), customerNumber)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Failed to get latest loan", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(latest))
}
