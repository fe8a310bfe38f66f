package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anventec/dlpal/internal/app"
	"github.com/anventec/dlpal/internal/domain"
)

// MetadataHandler handles video metadata resolution requests
type MetadataHandler struct {
	orch   *app.Orchestrator
	logger *zap.Logger
}

// NewMetadataHandler creates a new metadata handler
func NewMetadataHandler(orch *app.Orchestrator, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{
		orch:   orch,
		logger: logger,
	}
}

// ResolveMetadataRequest represents a request to resolve a video URL
type ResolveMetadataRequest struct {
	URL string `json:"url" binding:"required"`
}

// ResolveMetadata handles POST /api/v1/metadata
func (h *MetadataHandler) ResolveMetadata(c *gin.Context) {
	var req ResolveMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := h.orch.FetchMetadata(c.Request.Context(), req.URL)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var rerr *domain.ResolutionError
		if errors.As(err, &rerr) {
			status := http.StatusUnprocessableEntity
			if rerr.Kind == domain.ResolutionPrivate {
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{"error": err.Error(), "kind": string(rerr.Kind)})
			return
		}

		h.logger.Error("Failed to resolve metadata", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, meta)
}
