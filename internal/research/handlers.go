package research

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quorumhq/quorum/internal/auth"
	apierrors "github.com/quorumhq/quorum/internal/errors"
	"github.com/quorumhq/quorum/internal/logger"
)

// Handler exposes the saved-research CRUD routes.
type Handler struct {
	storage *Storage
	logger  *logger.Logger
}

// NewHandler creates a research handler.
func NewHandler(storage *Storage, log *logger.Logger) *Handler {
	return &Handler{
		storage: storage,
		logger:  log.WithComponent("research-handler"),
	}
}

// RegisterRoutes mounts the CRUD routes on an authenticated group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/research", h.Save)
	group.GET("/research", h.List)
	group.GET("/research/:id", h.Get)
	group.DELETE("/research/:id", h.Delete)
}

// Save persists one completed run for the authenticated user.
func (h *Handler) Save(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "authentication required")
		return
	}

	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}

	record, err := h.storage.Save(c.Request.Context(), userID, req)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to save research")
		apierrors.AbortWithInternal(c, "failed to save research", nil)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// List returns the authenticated user's saved research.
func (h *Handler) List(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "authentication required")
		return
	}

	records, err := h.storage.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to list research")
		apierrors.AbortWithInternal(c, "failed to list research", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"research": records})
}

// Get returns one saved research record.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "authentication required")
		return
	}

	record, err := h.storage.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			apierrors.AbortWithNotFound(c, "saved research not found")
			return
		}
		h.logger.LogError(c.Request.Context(), err, "failed to get research")
		apierrors.AbortWithInternal(c, "failed to get research", nil)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Delete removes one saved research record.
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierrors.AbortWithUnauthorized(c, "authentication required")
		return
	}

	if err := h.storage.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			apierrors.AbortWithNotFound(c, "saved research not found")
			return
		}
		h.logger.LogError(c.Request.Context(), err, "failed to delete research")
		apierrors.AbortWithInternal(c, "failed to delete research", nil)
		return
	}

	c.Status(http.StatusNoContent)
}
