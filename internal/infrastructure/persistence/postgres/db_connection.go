// Package postgres provides PostgreSQL persistence for the developer portal:
// connection lifecycle over a pgx pool and gorm-backed repositories.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/devportal/internal/config"
	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/pkg/logger"
)

// DBConnection manages the PostgreSQL connection pool and the ORM handle on
// top of it. The pgx pool carries pool sizing and health checking; gorm rides
// the same DSN for repository access.
type DBConnection struct {
	pool   *pgxpool.Pool
	gormDB *gorm.DB
	logger logger.Logger
}

// NewDBConnection connects to PostgreSQL, verifies the connection, and runs
// schema migration for the portal tables.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Minute
	poolConfig.MaxConnIdleTime = time.Duration(cfg.MaxConnIdleTime) * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnTimeout)*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("opening orm connection: %w", err)
	}

	if err := gormDB.AutoMigrate(&models.APIKey{}, &models.APIKeyUsage{}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	log.Info(ctx, "database connected",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
		logger.Int("max_conns", cfg.MaxConns),
	)

	return &DBConnection{pool: pool, gormDB: gormDB, logger: log}, nil
}

// Gorm returns the ORM handle for repositories.
func (c *DBConnection) Gorm() *gorm.DB { return c.gormDB }

// Ping verifies database liveness, used by the readiness probe.
func (c *DBConnection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases the connection pool.
func (c *DBConnection) Close() {
	c.pool.Close()
	if sqlDB, err := c.gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
