package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types. 401 and 429 problems are written by the middleware package.
const (
	ErrorTypeValidation = "https://loanbook.app/errors/validation"
	ErrorTypeNotFound   = "https://loanbook.app/errors/not-found"
	ErrorTypeInternal   = "https://loanbook.app/errors/internal"
)

func writeProblem(c echo.Context, status int, problemType, title, detail string, errs []ValidationError) error {
	return c.JSON(status, ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errs,
	})
}

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errs []ValidationError) error {
	return writeProblem(c, http.StatusBadRequest, ErrorTypeValidation, "Validation Error", detail, errs)
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusNotFound, ErrorTypeNotFound, "Not Found", detail, nil)
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return writeProblem(c, http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error", detail, nil)
}

// respondLoanError maps a loan error to a problem response. Errors that are
// neither not found nor validation are logged and reported as msg.
func respondLoanError(c echo.Context, err error, msg string, id uuid.UUID) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, "Loan not found")
	case errors.Is(err, domain.ErrValidation):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: validationField(err), Message: validationMessage(err)},
		})
	}

	event := log.Error().Err(err)
	if id != uuid.Nil {
		event = event.Str("loan_id", id.String())
	}
	event.Msg(msg)
	return NewInternalError(c, msg)
}

func validationField(err error) string {
	switch {
	case errors.Is(err, domain.ErrNameRequired):
		return "name"
	case errors.Is(err, domain.ErrContactRequired):
		return "contact"
	case errors.Is(err, domain.ErrAddressRequired):
		return "address"
	case errors.Is(err, domain.ErrPaymentAmountInvalid):
		return "payment.amount"
	case errors.Is(err, domain.ErrLoanIDRequired):
		return "id"
	default:
		return "body"
	}
}

// validationMessage strips the shared "validation failed: " prefix
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, domain.ErrValidation.Error()) {
		return msg[i+2:]
	}
	return msg
}
