package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anventec/dlpal/internal/app"
	"github.com/anventec/dlpal/internal/domain"
)

// SessionHandler handles download session requests
type SessionHandler struct {
	orch   *app.Orchestrator
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(orch *app.Orchestrator, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		orch:   orch,
		logger: logger,
	}
}

// BeginSession handles POST /api/v1/session. The response only confirms
// acceptance; all further feedback arrives on the progress stream.
func (h *SessionHandler) BeginSession(c *gin.Context) {
	var req domain.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The session outlives the request; it must not die with it.
	id, err := h.orch.Begin(context.Background(), req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": verr.Field})
			return
		}

		var serr *domain.StateError
		if errors.As(err, &serr) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		h.logger.Error("Failed to begin session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"session_id": id})
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	snap := h.orch.CurrentSession()
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	c.JSON(http.StatusOK, snap)
}

// ResetSession handles DELETE /api/v1/session
func (h *SessionHandler) ResetSession(c *gin.Context) {
	if err := h.orch.ResetSession(); err != nil {
		var serr *domain.StateError
		if errors.As(err, &serr) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		h.logger.Error("Failed to reset session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session reset"})
}
