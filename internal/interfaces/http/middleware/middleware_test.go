package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/infrastructure/ratelimit"
	"github.com/turtacn/devportal/pkg/constants"
	"github.com/turtacn/devportal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRateLimitedEngine(t *testing.T, capacity float64) *gin.Engine {
	t.Helper()
	limiter, err := ratelimit.NewManager(ratelimit.ManagerOptions{}, logger.NewNoopLogger())
	require.NoError(t, err)
	// Near-zero refill so the bucket does not recover mid-test.
	require.NoError(t, limiter.AddRule(&models.RateLimitRule{
		Name:            "per_ip",
		Scope:           constants.RateLimitScopeIP,
		TokensPerSecond: 0.001,
		MaxTokens:       capacity,
		Action:          constants.RateLimitActionReject,
		Enabled:         true,
	}))

	engine := gin.New()
	engine.Use(RateLimit(limiter, nil, logger.NewNoopLogger()))
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return engine
}

func TestRateLimitMiddlewareAllowsWithinCapacity(t *testing.T) {
	engine := newRateLimitedEngine(t, 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "per_ip", rec.Header().Get("X-RateLimit-Rule"))
	}
}

func TestRateLimitMiddlewareRejectsOverCapacity(t *testing.T) {
	engine := newRateLimitedEngine(t, 1)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "per_ip", rec.Header().Get("X-RateLimit-Rule"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestRateLimitMiddlewareSkipsUnregisteredRules(t *testing.T) {
	// Only the global and per_ip rules are evaluated for anonymous requests;
	// neither is registered here, so everything passes.
	limiter, err := ratelimit.NewManager(ratelimit.ManagerOptions{}, logger.NewNoopLogger())
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(RateLimit(limiter, nil, logger.NewNoopLogger()))
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func signAdminToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
		Role: "admin",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAdminEngine(secret string) *gin.Engine {
	engine := gin.New()
	engine.Use(AdminJWTAuth(secret, logger.NewNoopLogger()))
	engine.GET("/admin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	return engine
}

func TestAdminJWTAuthAcceptsSignedToken(t *testing.T) {
	engine := newAdminEngine("jwt-secret")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, "jwt-secret", "admin-1", time.Hour))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin-1")
}

func TestAdminJWTAuthRejectsMissingToken(t *testing.T) {
	engine := newAdminEngine("jwt-secret")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTAuthRejectsWrongSecret(t *testing.T) {
	engine := newAdminEngine("jwt-secret")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, "other-secret", "admin-1", time.Hour))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTAuthRejectsExpiredToken(t *testing.T) {
	engine := newAdminEngine("jwt-secret")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, "jwt-secret", "admin-1", -time.Minute))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), "a request id is generated when absent")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-supplied")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "req-supplied", rec.Header().Get("X-Request-ID"), "a supplied request id is honored")
}
