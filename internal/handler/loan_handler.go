package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/dafibh/loanbook/loanbook-backend/internal/service"
	"github.com/dafibh/loanbook/loanbook-backend/internal/util"
	"github.com/dafibh/loanbook/loanbook-backend/internal/view"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService *service.LoanService
	now         func() time.Time
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService, now: time.Now}
}

// LoanSummaryResponse is the ledger breakdown of a loan
type LoanSummaryResponse struct {
	ID               string `json:"_id"`
	TotalInterest    string `json:"totalInterest"`
	TotalPayments    string `json:"totalPayments"`
	TotalPenalties   string `json:"totalPenalties"`
	RemainingBalance string `json:"remainingBalance"`
	Status           string `json:"status"`
}

// GetLoans godoc
// @Summary List loans
// @Description List all loans newest first, or fetch one loan when id is given
// @Tags loans
// @Produce json
// @Param id query string false "Loan ID"
// @Success 200 {array} view.LoanResponse
// @Failure 404 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /loans [get]
func (h *LoanHandler) GetLoans(c echo.Context) error {
	ctx := c.Request().Context()

	if raw := c.QueryParam("id"); raw != "" {
		id, ok := parseLoanID(raw)
		if !ok {
			return NewNotFoundError(c, "Loan not found")
		}
		loan, err := h.loanService.GetLoanByID(ctx, id)
		if err != nil {
			return respondLoanError(c, err, "Failed to get loan", id)
		}
		return c.JSON(http.StatusOK, h.toLoanResponse(loan))
	}

	loans, err := h.loanService.GetLoans(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get loans")
		return NewInternalError(c, "Failed to get loans")
	}

	response := make([]view.LoanResponse, len(loans))
	for i, loan := range loans {
		response[i] = h.toLoanResponse(loan)
	}
	return c.JSON(http.StatusOK, response)
}

// GetLoanSummary godoc
// @Summary Loan summary
// @Description Get the interest, payments, penalties and balance of a loan
// @Tags loans
// @Produce json
// @Param id query string true "Loan ID"
// @Success 200 {object} LoanSummaryResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /loans/summary [get]
func (h *LoanHandler) GetLoanSummary(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return respondLoanError(c, err, "Failed to get loan summary", uuid.Nil)
	}

	summary, err := h.loanService.GetLoanSummary(c.Request().Context(), id)
	if err != nil {
		return respondLoanError(c, err, "Failed to get loan summary", id)
	}

	return c.JSON(http.StatusOK, LoanSummaryResponse{
		ID:               id.String(),
		TotalInterest:    view.Money(summary.TotalInterest),
		TotalPayments:    view.Money(summary.TotalPayments),
		TotalPenalties:   view.Money(summary.TotalPenalties),
		RemainingBalance: view.Money(summary.RemainingBalance),
		Status:           string(summary.Status),
	})
}

// CreateLoan godoc
// @Summary Create loan
// @Description Create a loan. The opening balance is principal plus flat interest.
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLoanRequest true "Loan details"
// @Success 201 {object} view.LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 429 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	intent := service.CreateLoanIntent{
		Name:           req.Name,
		Contact:        req.Contact,
		Address:        req.Address,
		Principal:      req.LoanAmount.Decimal(),
		TermMonths:     req.Term.Int32(),
		InterestRate:   req.InterestRate.Decimal(),
		InterestPeriod: domain.ParseInterestPeriod(req.InterestType),
		MonthlyPayment: req.MonthlyPayment.Decimal(),
	}
	if req.NextDueDate != nil && strings.TrimSpace(*req.NextDueDate) != "" {
		due, err := util.ParseDate(*req.NextDueDate)
		if err != nil {
			return NewValidationError(c, "Invalid due date", []ValidationError{
				{Field: "nextDueDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		intent.NextDueDate = &due
	}

	loan, err := h.loanService.CreateLoan(c.Request().Context(), intent)
	if err != nil {
		return respondLoanError(c, err, "Failed to create loan", uuid.Nil)
	}

	return c.JSON(http.StatusCreated, h.toLoanResponse(loan))
}

// UpdateLoan godoc
// @Summary Update loan
// @Description Record a payment, record a penalty, or edit loan details. Only the first of payment, penalty and borrowerUpdate is applied.
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id query string true "Loan ID"
// @Param request body UpdateLoanRequest true "Update"
// @Success 200 {object} view.LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 429 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /loans [put]
func (h *LoanHandler) UpdateLoan(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return respondLoanError(c, err, "Failed to update loan", uuid.Nil)
	}

	var req UpdateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	intent, fieldErr := buildUpdateIntent(req)
	if fieldErr != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{*fieldErr})
	}

	loan, err := h.loanService.Apply(c.Request().Context(), id, intent)
	if err != nil {
		return respondLoanError(c, err, "Failed to update loan", id)
	}

	return c.JSON(http.StatusOK, h.toLoanResponse(loan))
}

// DeleteLoan godoc
// @Summary Delete loan
// @Description Delete a loan and its history
// @Tags loans
// @Security BearerAuth
// @Param id query string true "Loan ID"
// @Success 204
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 429 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /loans [delete]
func (h *LoanHandler) DeleteLoan(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return respondLoanError(c, err, "Failed to delete loan", uuid.Nil)
	}

	if err := h.loanService.DeleteLoan(c.Request().Context(), id); err != nil {
		return respondLoanError(c, err, "Failed to delete loan", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// buildUpdateIntent picks the intent for an update body. A nil intent means
// the body named no recognized operation.
func buildUpdateIntent(req UpdateLoanRequest) (service.Intent, *ValidationError) {
	switch {
	case req.Payment != nil:
		if !req.Payment.Amount.Valid {
			return nil, &ValidationError{Field: "payment.amount", Message: "Amount must be a number"}
		}
		intent := service.RecordPaymentIntent{
			Amount:         req.Payment.Amount.Value,
			Note:           req.Payment.Note,
			AdvanceDueDate: req.UpdateDueDate,
		}
		if req.Payment.Date != nil && strings.TrimSpace(*req.Payment.Date) != "" {
			date, err := util.ParseDate(*req.Payment.Date)
			if err != nil {
				return nil, &ValidationError{Field: "payment.date", Message: "Must be in YYYY-MM-DD format"}
			}
			intent.Date = &date
		}
		return intent, nil

	case req.Penalty != nil:
		return service.RecordPenaltyIntent{
			Amount: req.Penalty.Amount.Decimal(),
			Reason: req.Penalty.Reason,
		}, nil

	case req.BorrowerUpdate != nil:
		b := req.BorrowerUpdate
		update := service.TermsUpdate{
			Name:           b.Name,
			Contact:        b.Contact,
			Address:        b.Address,
			Principal:      decimalField(b.LoanAmount),
			InterestRate:   decimalField(b.InterestRate),
			MonthlyPayment: decimalField(b.MonthlyPayment),
		}
		if b.Term.Present {
			term := b.Term.Int32()
			update.TermMonths = &term
		}
		if b.InterestType != nil {
			period := domain.ParseInterestPeriod(*b.InterestType)
			update.InterestPeriod = &period
		}
		if b.NextDueDate != nil && strings.TrimSpace(*b.NextDueDate) != "" {
			due, err := util.ParseDate(*b.NextDueDate)
			if err != nil {
				return nil, &ValidationError{Field: "borrowerUpdate.nextDueDate", Message: "Must be in YYYY-MM-DD format"}
			}
			update.NextDueDate = &due
		}
		return service.EditTermsIntent{Update: update}, nil
	}

	return nil, nil
}

// decimalField returns nil for an absent key and zero for a malformed one
func decimalField(n Number) *decimal.Decimal {
	if !n.Present {
		return nil
	}
	d := n.Decimal()
	return &d
}

// loanIDParam reads the required id query parameter. Ids that are not
// UUIDs cannot name a stored loan and are reported as not found.
func loanIDParam(c echo.Context) (uuid.UUID, error) {
	raw := c.QueryParam("id")
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, domain.ErrLoanIDRequired
	}
	id, ok := parseLoanID(raw)
	if !ok {
		return uuid.Nil, domain.ErrLoanNotFound
	}
	return id, nil
}

func parseLoanID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (h *LoanHandler) toLoanResponse(loan *domain.Loan) view.LoanResponse {
	return view.NewLoanResponse(loan, h.now())
}
