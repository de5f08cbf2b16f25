package handler

import (
	"github.com/dafibh/loanbook/loanbook-backend/internal/middleware"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// RegisterRoutes sets up all API routes. authMiddleware may be nil, in which
// case mutating loan routes are only rate limited.
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, healthHandler *HealthHandler, openAPIHandler *OpenAPIHandler, loanHandler *LoanHandler, wsHandler *WebSocketHandler) {
	e.GET("/health", healthHandler.Check)

	// API docs
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/openapi.json", openAPIHandler.Serve)

	// Live loan events
	e.GET("/ws", wsHandler.HandleWS)

	api := e.Group("/api")

	// Loan routes (reads are public)
	loans := api.Group("/loans")
	loans.GET("", loanHandler.GetLoans)
	loans.GET("/summary", loanHandler.GetLoanSummary)

	mutating := []echo.MiddlewareFunc{middleware.RateLimitMiddleware(rateLimiter)}
	if authMiddleware != nil {
		mutating = append(mutating, authMiddleware.Authenticate())
	}
	loans.POST("", loanHandler.CreateLoan, mutating...)
	loans.PUT("", loanHandler.UpdateLoan, mutating...)
	loans.DELETE("", loanHandler.DeleteLoan, mutating...)
}
