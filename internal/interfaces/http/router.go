// Package http assembles the gin engine: middleware chain, route groups, and
// server lifecycle.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	appservice "github.com/turtacn/devportal/internal/application/service"
	"github.com/turtacn/devportal/internal/config"
	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/internal/infrastructure/monitoring"
	"github.com/turtacn/devportal/internal/interfaces/http/handlers"
	"github.com/turtacn/devportal/internal/interfaces/http/middleware"
	"github.com/turtacn/devportal/pkg/logger"
)

// Router owns the gin engine and the HTTP server lifecycle.
type Router struct {
	engine  *gin.Engine
	config  *config.Config
	logger  logger.Logger
	server  *http.Server
	tracer  trace.Tracer
	metrics *monitoring.Metrics

	limiter     service.RateLimitService
	permissions service.PermissionService
	keys        appservice.APIKeyAppService

	healthHandler     *handlers.HealthHandler
	apiKeyHandler     *handlers.APIKeyHandler
	rateLimitHandler  *handlers.RateLimitHandler
	permissionHandler *handlers.PermissionHandler
}

// NewRouter wires the engine. Call SetupRoutes before Start.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	tracer trace.Tracer,
	metrics *monitoring.Metrics,
	limiter service.RateLimitService,
	permissions service.PermissionService,
	keys appservice.APIKeyAppService,
	healthHandler *handlers.HealthHandler,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:            gin.New(),
		config:            cfg,
		logger:            log.WithComponent("http"),
		tracer:            tracer,
		metrics:           metrics,
		limiter:           limiter,
		permissions:       permissions,
		keys:              keys,
		healthHandler:     healthHandler,
		apiKeyHandler:     handlers.NewAPIKeyHandler(keys, log),
		rateLimitHandler:  handlers.NewRateLimitHandler(limiter, log),
		permissionHandler: handlers.NewPermissionHandler(permissions),
	}
}

// SetupRoutes installs the middleware chain and route groups.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(r.tracer, middleware.NewHTTPMetrics(), r.logger))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.engine.GET("/health/live", r.healthHandler.Liveness)
	r.engine.GET("/health/ready", r.healthHandler.Readiness)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.config.Monitoring.PprofEnabled {
		pprof.Register(r.engine)
	}

	adminAuth := middleware.AdminJWTAuth(r.config.Auth.AdminJWTSecret, r.logger)

	v1 := r.engine.Group("/api/v1")
	{
		// Key lifecycle, admin plane.
		keys := v1.Group("/keys", adminAuth)
		{
			keys.POST("", r.apiKeyHandler.CreateKey)
			keys.GET("", r.apiKeyHandler.ListKeys)
			keys.GET("/:id", r.apiKeyHandler.GetKey)
			keys.POST("/:id/rotate", r.apiKeyHandler.RotateKey)
			keys.DELETE("/:id", r.apiKeyHandler.RevokeKey)
		}

		// Rate-limit administration.
		ratelimit := v1.Group("/admin/ratelimit", adminAuth)
		{
			ratelimit.GET("/rules", r.rateLimitHandler.ListRules)
			ratelimit.POST("/rules", r.rateLimitHandler.CreateRule)
			ratelimit.GET("/rules/:name", r.rateLimitHandler.GetRule)
			ratelimit.PUT("/rules/:name", r.rateLimitHandler.UpdateRule)
			ratelimit.DELETE("/rules/:name", r.rateLimitHandler.RemoveRule)
			ratelimit.GET("/status", r.rateLimitHandler.Status)
			ratelimit.GET("/analytics", r.rateLimitHandler.Analytics)
			ratelimit.POST("/reset", r.rateLimitHandler.ResetBucket)
			ratelimit.GET("/stats", r.rateLimitHandler.SystemStats)
		}

		// Scope/permission introspection for the portal UI.
		permissions := v1.Group("/permissions", adminAuth)
		{
			permissions.GET("/effective", r.permissionHandler.EffectivePermissions)
			permissions.GET("/suggest", r.permissionHandler.SuggestScopes)
			permissions.GET("/conflicts", r.permissionHandler.ScopeConflicts)
		}

		// Data plane: API-key authenticated, rate limited, usage recorded.
		data := v1.Group("",
			middleware.APIKeyAuth(r.keys, r.logger),
			middleware.RateLimit(r.limiter, r.metrics, r.logger),
			middleware.UsageRecorder(r.keys, r.logger),
		)
		{
			data.GET("/whoami", r.whoami)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "the requested resource was not found",
		})
	})
}

// whoami echoes the authenticated key's identity and effective permissions.
func (r *Router) whoami(c *gin.Context) {
	key := middleware.APIKeyFromContext(c)

	effective := r.permissions.EffectivePermissions(key.Scopes)
	permissions := make([]string, 0, len(effective))
	for perm := range effective {
		permissions = append(permissions, perm)
	}
	sort.Strings(permissions)

	c.JSON(http.StatusOK, gin.H{
		"key_id":      key.KeyID,
		"user_id":     key.UserID,
		"scopes":      key.Scopes,
		"permissions": permissions,
	})
}

// Start runs the HTTP server until it is shut down.
func (r *Router) Start() error {
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(context.Background(), "starting http server", logger.String("address", addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and stops the server.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "stopping http server")
	return r.server.Shutdown(ctx)
}

// Engine exposes the engine for tests.
func (r *Router) Engine() *gin.Engine { return r.engine }
