package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anventec/dlpal/internal/app"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	orch *app.Orchestrator
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orch *app.Orchestrator) *HealthHandler {
	return &HealthHandler{
		orch: orch,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Session struct {
		Active bool `json:"active"`
	} `json:"session"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	response.Session.Active = h.orch.CurrentSession() != nil

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
