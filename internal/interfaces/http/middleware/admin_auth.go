package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/devportal/pkg/errors"
	"github.com/turtacn/devportal/pkg/logger"
)

// AdminClaims are the claims carried by admin-plane bearer tokens.
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AdminJWTAuth guards the admin plane with HS256 bearer tokens signed by the
// portal. The subject claim is exposed as "user_id" for handlers.
func AdminJWTAuth(secret string, log logger.Logger) gin.HandlerFunc {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abortWithError(c, errors.ErrUnauthorized("missing admin token"))
			return
		}

		claims := &AdminClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, keyFunc,
			jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			log.Warn(c.Request.Context(), "admin token rejected",
				logger.String("client_ip", c.ClientIP()))
			abortWithError(c, errors.ErrUnauthorized("invalid admin token"))
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("admin_role", claims.Role)
		c.Next()
	}
}
