package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// BackendReporter reports which storage backend is serving requests
type BackendReporter interface {
	Backend() string
}

// HealthHandler serves the health check
type HealthHandler struct {
	storage BackendReporter
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(storage BackendReporter) *HealthHandler {
	return &HealthHandler{storage: storage}
}

// HealthResponse is the health check body
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// Check handles GET /health
func (h *HealthHandler) Check(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Storage: h.storage.Backend(),
	})
}
