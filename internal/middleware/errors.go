package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// problemDetails represents an RFC 7807 Problem Details response
type problemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error types
const (
	errorTypeUnauthorized = "https://loanbook.app/errors/unauthorized"
	errorTypeRateLimit    = "https://loanbook.app/errors/rate-limit"
)

// unauthorizedError creates an unauthorized error response
func unauthorizedError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnauthorized, problemDetails{
		Type:     errorTypeUnauthorized,
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// rateLimitError creates a too many requests error response
func rateLimitError(c echo.Context, detail string) error {
	return c.JSON(http.StatusTooManyRequests, problemDetails{
		Type:     errorTypeRateLimit,
		Title:    "Rate Limit Exceeded",
		Status:   http.StatusTooManyRequests,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}
