package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/pkg/errors"
	"github.com/turtacn/devportal/pkg/logger"
)

// RateLimitHandler exposes rule administration and limiter introspection.
type RateLimitHandler struct {
	limiter service.RateLimitService
	logger  logger.Logger
}

// NewRateLimitHandler creates the handler.
func NewRateLimitHandler(limiter service.RateLimitService, log logger.Logger) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, logger: log}
}

// ListRules returns every registered rule.
func (h *RateLimitHandler) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.limiter.ListRules()})
}

// GetRule returns one rule by name.
func (h *RateLimitHandler) GetRule(c *gin.Context) {
	rule, ok := h.limiter.GetRule(c.Param("name"))
	if !ok {
		respondError(c, errors.ErrNotFound("rate limit rule"))
		return
	}
	c.JSON(http.StatusOK, rule)
}

// CreateRule registers a new rule, replacing any same-named rule.
func (h *RateLimitHandler) CreateRule(c *gin.Context) {
	var rule models.RateLimitRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		respondError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}
	if err := h.limiter.AddRule(&rule); err != nil {
		respondError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}
	h.logger.Info(c.Request.Context(), "rate limit rule created", logger.String("rule", rule.Name))
	c.JSON(http.StatusCreated, rule)
}

// UpdateRule mutates a registered rule in place. Existing buckets pick up the
// new capacity and rate on their next check.
func (h *RateLimitHandler) UpdateRule(c *gin.Context) {
	var rule models.RateLimitRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		respondError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}
	rule.Name = c.Param("name")
	if err := h.limiter.UpdateRule(&rule); err != nil {
		respondError(c, errors.ErrNotFound("rate limit rule").WithCause(err))
		return
	}
	h.logger.Info(c.Request.Context(), "rate limit rule updated", logger.String("rule", rule.Name))
	c.JSON(http.StatusOK, rule)
}

// RemoveRule deletes a rule and all bucket state derived from it.
func (h *RateLimitHandler) RemoveRule(c *gin.Context) {
	name := c.Param("name")
	if err := h.limiter.RemoveRule(name); err != nil {
		respondError(c, errors.ErrNotFound("rate limit rule").WithCause(err))
		return
	}
	h.logger.Info(c.Request.Context(), "rate limit rule removed", logger.String("rule", name))
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// Status returns the administrative view of one bucket.
func (h *RateLimitHandler) Status(c *gin.Context) {
	ruleName := c.Query("rule")
	identifier := c.Query("identifier")
	if ruleName == "" || identifier == "" {
		respondError(c, errors.ErrInvalidRequest("rule and identifier query parameters are required"))
		return
	}

	status, err := h.limiter.Status(c.Request.Context(), ruleName, identifier)
	if err != nil {
		respondError(c, errors.ErrNotFound("bucket").WithCause(err))
		return
	}
	c.JSON(http.StatusOK, status)
}

// Analytics aggregates check outcomes over a trailing window.
func (h *RateLimitHandler) Analytics(c *gin.Context) {
	ruleName := c.Query("rule")
	identifier := c.Query("identifier")
	if ruleName == "" || identifier == "" {
		respondError(c, errors.ErrInvalidRequest("rule and identifier query parameters are required"))
		return
	}

	windowMinutes := 0
	if raw := c.Query("window_minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, errors.ErrInvalidRequest("window_minutes must be a non-negative integer"))
			return
		}
		windowMinutes = parsed
	}

	c.JSON(http.StatusOK, h.limiter.Analytics(ruleName, identifier, windowMinutes))
}

// ResetBucket refills one bucket to capacity.
func (h *RateLimitHandler) ResetBucket(c *gin.Context) {
	var req struct {
		Rule       string `json:"rule" binding:"required"`
		Identifier string `json:"identifier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	if err := h.limiter.ResetBucket(c.Request.Context(), req.Rule, req.Identifier); err != nil {
		respondError(c, errors.ErrServerError("failed to reset bucket").WithCause(err))
		return
	}
	h.logger.Info(c.Request.Context(), "bucket reset",
		logger.String("rule", req.Rule),
		logger.String("identifier", req.Identifier))
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// SystemStats summarizes limiter state across all rules.
func (h *RateLimitHandler) SystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.limiter.SystemStats())
}
