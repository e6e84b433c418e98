package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/devportal/internal/application/dto"
	appservice "github.com/turtacn/devportal/internal/application/service"
	"github.com/turtacn/devportal/pkg/errors"
	"github.com/turtacn/devportal/pkg/logger"
)

// APIKeyHandler exposes the key lifecycle on the admin plane.
type APIKeyHandler struct {
	keys   appservice.APIKeyAppService
	logger logger.Logger
}

// NewAPIKeyHandler creates the handler.
func NewAPIKeyHandler(keys appservice.APIKeyAppService, log logger.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, logger: log}
}

// CreateKey issues a new key for the authenticated user. The response is the
// only time the plaintext secret is visible.
func (h *APIKeyHandler) CreateKey(c *gin.Context) {
	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}
	req.UserID = c.GetString("user_id")

	resp, err := h.keys.CreateKey(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListKeys returns the authenticated user's keys.
func (h *APIKeyHandler) ListKeys(c *gin.Context) {
	resp, err := h.keys.ListKeys(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": resp})
}

// GetKey returns one key's safe view.
func (h *APIKeyHandler) GetKey(c *gin.Context) {
	resp, err := h.keys.GetKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if resp.UserID != c.GetString("user_id") {
		respondError(c, errors.ErrNotFound("api key"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RotateKey replaces a key's credentials, revoking the old key atomically.
func (h *APIKeyHandler) RotateKey(c *gin.Context) {
	resp, err := h.keys.RotateKey(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RevokeKey permanently disables a key.
func (h *APIKeyHandler) RevokeKey(c *gin.Context) {
	if err := h.keys.RevokeKey(c.Request.Context(), c.Param("id"), c.GetString("user_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
