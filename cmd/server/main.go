package main

import (
	"context"
	stdlog "log"
	"os/signal"
	"syscall"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	appservice "github.com/turtacn/devportal/internal/application/service"
	"github.com/turtacn/devportal/internal/config"
	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/infrastructure/audit"
	"github.com/turtacn/devportal/internal/infrastructure/crypto"
	"github.com/turtacn/devportal/internal/infrastructure/monitoring"
	"github.com/turtacn/devportal/internal/infrastructure/persistence/postgres"
	redisconn "github.com/turtacn/devportal/internal/infrastructure/persistence/redis"
	"github.com/turtacn/devportal/internal/infrastructure/policy"
	"github.com/turtacn/devportal/internal/infrastructure/ratelimit"
	httpserver "github.com/turtacn/devportal/internal/interfaces/http"
	"github.com/turtacn/devportal/internal/interfaces/http/handlers"
	"github.com/turtacn/devportal/pkg/constants"
	"github.com/turtacn/devportal/pkg/logger"
)

func main() {
	startupLogger, err := logger.NewZapLogger("info")
	if err != nil {
		stdlog.Fatalf("failed to create startup logger: %v", err)
	}

	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	log, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		stdlog.Fatalf("failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := monitoring.NewTracingManager(cfg, log)
	if err != nil {
		log.Fatal(ctx, "failed to initialize tracing", err)
	}

	db, err := postgres.NewDBConnection(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal(ctx, "failed to connect to database", err)
	}
	defer db.Close()

	var redisClient redislib.UniversalClient
	if cfg.Redis.Enabled {
		redisClient, err = redisconn.NewClient(ctx, &cfg.Redis, log)
		if err != nil {
			log.Fatal(ctx, "failed to connect to redis", err)
		}
		defer redisClient.Close()
	}

	appSecret, err := crypto.LoadAppSecret(ctx, cfg, log)
	if err != nil {
		log.Fatal(ctx, "failed to load app secret", err)
	}
	hasher, err := crypto.NewAPIKeyHasher(appSecret)
	if err != nil {
		log.Fatal(ctx, "failed to create key hasher", err)
	}

	limiterOpts := ratelimit.ManagerOptions{MaxBuckets: cfg.RateLimit.MaxBuckets}
	if cfg.RateLimit.Backend == "redis" {
		limiterOpts.RedisClient = redisClient
	}
	limiter, err := ratelimit.NewManager(limiterOpts, log)
	if err != nil {
		log.Fatal(ctx, "failed to create rate limiter", err)
	}
	for _, rc := range cfg.RateLimit.Rules {
		if err := limiter.AddRule(ruleFromConfig(rc)); err != nil {
			log.Fatal(ctx, "invalid rate limit rule", err, logger.String("rule", rc.Name))
		}
	}
	config.WatchRules(log, func(rules []config.RuleConfig) {
		replacement := make([]*models.RateLimitRule, 0, len(rules))
		for _, rc := range rules {
			replacement = append(replacement, ruleFromConfig(rc))
		}
		if err := limiter.ReplaceRules(replacement); err != nil {
			log.Error(ctx, "rule hot reload rejected", err)
		}
	})

	permissions := policy.NewScopePermissionEngine()

	auditSink := audit.NewNoopSink()
	if cfg.Kafka.Enabled {
		auditSink = audit.NewKafkaProducer(&cfg.Kafka, log)
	}
	defer auditSink.Close()

	metrics := monitoring.NewMetrics(func() float64 {
		return float64(limiter.SystemStats().ActiveBuckets)
	})

	keyRepo := postgres.NewAPIKeyRepository(db.Gorm())
	keyService := appservice.NewAPIKeyAppService(keyRepo, hasher, permissions, auditSink, metrics, log)

	healthDeps := map[string]handlers.Pinger{"database": db}
	if redisClient != nil {
		healthDeps["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler := handlers.NewHealthHandler(log, healthDeps)

	router := httpserver.NewRouter(cfg, log, tracing.Tracer(), metrics,
		limiter, permissions, keyService, healthHandler)
	router.SetupRoutes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(router.Start)
	g.Go(func() error {
		limiter.RunCleanup(gctx, cfg.RateLimit.CleanupInterval, cfg.RateLimit.BucketIdleTTL)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := router.Stop(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "http shutdown failed", err)
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "tracing shutdown failed", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal(context.Background(), "server exited with error", err)
	}
	log.Info(context.Background(), "server stopped")
}

func ruleFromConfig(rc config.RuleConfig) *models.RateLimitRule {
	return &models.RateLimitRule{
		Name:            rc.Name,
		Scope:           constants.RateLimitScope(rc.Scope),
		TokensPerSecond: rc.TokensPerSecond,
		MaxTokens:       rc.MaxTokens,
		BurstMultiplier: rc.BurstMultiplier,
		Action:          constants.RateLimitAction(rc.Action),
		Enabled:         rc.Enabled,
		Progressive:     rc.Progressive,
		Adaptive:        rc.Adaptive,
		PenaltyFactor:   rc.PenaltyFactor,
		RecoveryFactor:  rc.RecoveryFactor,
		MinLimit:        rc.MinLimit,
		MaxLimit:        rc.MaxLimit,
	}
}
