// Package handlers implements the HTTP endpoints of the developer portal:
// key lifecycle, rate-limit administration, permission introspection, health.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/devportal/pkg/errors"
)

// respondError renders an AppError as its JSON body and HTTP status. Non-app
// errors collapse to a 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	body := gin.H{
		"error":   string(appErr.Code()),
		"message": appErr.Error(),
	}
	if meta := appErr.Metadata(); len(meta) > 0 {
		body["metadata"] = meta
	}
	c.JSON(appErr.HTTPStatus(), body)
}
