package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/pkg/apperrors"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

// RequestLoan handles POST /loans.
//
// @Summary Request a loan
// @Description Validates the request synchronously and returns the PENDING loan. Scoring, decision and disbursement continue in the background; poll GET /loans/{loanID} for the outcome.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan request payload"
// @Success 202 {object} dto.LoanResponse "Loan accepted for scoring"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 403 {object} dto.ErrorResponse "Customer is not subscribed"
// @Failure 409 {object} dto.ErrorResponse "Customer already has an active loan"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	amount, _ := req.ParsedAmount()

	created, err := h.service.RequestLoan(r.Context(), req.CustomerNumber, amount)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Loan request refused",
			slog.String("customerNumber", req.CustomerNumber), slog.Any("error", err))
		respondError(w, err)
		return
	}

	w.Header().Set("Location", "/loans/"+created.ID)
	respondJSON(w, http.StatusAccepted, dto.NewLoanResponse(created))
}

// GetLoan handles GET /loans/{loanID}.
//
// @Summary Get a loan
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	l, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Failed to get loan", slog.String("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

// CancelLoan handles POST /loans/{loanID}/cancel.
//
// @Summary Cancel a loan
// @Description Stops the scoring workflow, if running, and moves an active loan to CANCELED.
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Loan canceled"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan is no longer active"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/cancel [post]
// @Security BearerAuth
func (h *LoanHandler) CancelLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	canceled, err := h.service.CancelLoan(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Failed to cancel loan", slog.String("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(canceled))
}

// CompleteLoan handles POST /loans/{loanID}/complete.
//
// @Summary Complete a loan
// @Description Marks a DISBURSED loan as repaid.
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Loan completed"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan is not disbursed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/complete [post]
// @Security BearerAuth
func (h *LoanHandler) CompleteLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := loanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	completed, err := h.service.CompleteLoan(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Failed to complete loan", slog.String("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(completed))
}
