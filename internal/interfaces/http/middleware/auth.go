// Package middleware provides the gin middleware chain: API key auth, admin
// JWT auth, rate limiting, and observability.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/devportal/internal/application/dto"
	appservice "github.com/turtacn/devportal/internal/application/service"
	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/pkg/constants"
	"github.com/turtacn/devportal/pkg/errors"
	"github.com/turtacn/devportal/pkg/logger"
)

// APIKeyAuth authenticates requests presenting "Authorization: Bearer sk_...".
// The validated key lands in the gin context under constants.ContextKeyAPIKey.
func APIKeyAuth(keys appservice.APIKeyAppService, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret, ok := bearerToken(c)
		if !ok {
			abortWithError(c, errors.ErrUnauthorized("missing API key"))
			return
		}

		key, err := keys.ValidateKey(c.Request.Context(), &dto.ValidateKeyRequest{
			SecretKey: secret,
			ClientIP:  c.ClientIP(),
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(string(constants.ContextKeyAPIKey), key)
		c.Next()
	}
}

// RequirePermission gates a route on one "resource:action" permission,
// resolved through the key's scopes.
func RequirePermission(permissions service.PermissionService, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := APIKeyFromContext(c)
		if key == nil {
			abortWithError(c, errors.ErrUnauthorized("missing API key"))
			return
		}
		if !permissions.HasPermission(key.Scopes, resource, action) {
			abortWithError(c, errors.ErrForbidden(resource+":"+action))
			return
		}
		c.Next()
	}
}

// APIKeyFromContext returns the authenticated key, or nil.
func APIKeyFromContext(c *gin.Context) *models.APIKey {
	value, ok := c.Get(string(constants.ContextKeyAPIKey))
	if !ok {
		return nil
	}
	key, ok := value.(*models.APIKey)
	if !ok {
		return nil
	}
	return key
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// abortWithError renders an AppError as its JSON body and HTTP status.
func abortWithError(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	body := gin.H{
		"error":   string(appErr.Code()),
		"message": appErr.Error(),
	}
	if meta := appErr.Metadata(); len(meta) > 0 {
		body["metadata"] = meta
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), body)
}
