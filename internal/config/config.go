package config

import (
	"fmt"
	"time"

	"github.com/turtacn/devportal/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`      // seconds
	WriteTimeout    int    `mapstructure:"write_timeout"`     // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`  // seconds
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"`  // minutes
	MaxConnIdleTime int    `mapstructure:"max_conn_idle_time"` // minutes
	ConnTimeout     int    `mapstructure:"conn_timeout"`       // seconds
}

// DSN builds the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Addresses    []string `mapstructure:"addresses"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	PoolSize     int      `mapstructure:"pool_size"`
	MinIdleConns int      `mapstructure:"min_idle_conns"`
}

type VaultConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// AuthConfig configures key hashing and the admin plane.
type AuthConfig struct {
	// AppSecret is the HMAC key for hashing API secrets. Overridden by Vault
	// when vault.enabled is set.
	AppSecret string `mapstructure:"app_secret"`

	// AdminJWTSecret signs admin-plane bearer tokens.
	AdminJWTSecret string `mapstructure:"admin_jwt_secret"`

	// AdminTokenTTL is the admin token lifetime in seconds.
	AdminTokenTTL int `mapstructure:"admin_token_ttl"`
}

// RuleConfig describes one rate-limit rule loaded at startup.
type RuleConfig struct {
	Name            string  `mapstructure:"name"`
	Scope           string  `mapstructure:"scope"`
	TokensPerSecond float64 `mapstructure:"tokens_per_second"`
	MaxTokens       float64 `mapstructure:"max_tokens"`
	BurstMultiplier float64 `mapstructure:"burst_multiplier"`
	Action          string  `mapstructure:"action"`
	Enabled         bool    `mapstructure:"enabled"`
	Progressive     bool    `mapstructure:"progressive"`
	Adaptive        bool    `mapstructure:"adaptive"`
	PenaltyFactor   float64 `mapstructure:"penalty_factor"`
	RecoveryFactor  float64 `mapstructure:"recovery_factor"`
	MinLimit        float64 `mapstructure:"min_limit"`
	MaxLimit        float64 `mapstructure:"max_limit"`
}

type RateLimitConfig struct {
	// Backend selects the bucket store: "memory" or "redis".
	Backend string `mapstructure:"backend"`

	// MaxBuckets bounds the in-memory bucket and limiter maps.
	MaxBuckets int `mapstructure:"max_buckets"`

	// BucketIdleTTL is how long untouched buckets survive cleanup.
	BucketIdleTTL time.Duration `mapstructure:"bucket_idle_ttl"`

	// CleanupInterval is how often idle buckets are evicted.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// Rules are the rules registered at startup.
	Rules []RuleConfig `mapstructure:"rules"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type MonitoringConfig struct {
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Validate checks essential configuration values.
func (c *Config) Validate() error {
	if c.Auth.AppSecret == "" && !c.Vault.Enabled {
		return fmt.Errorf("auth.app_secret is required when vault is disabled")
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("rate_limit.backend must be \"memory\" or \"redis\", got %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("rate_limit.backend=redis requires redis.enabled")
	}
	for _, r := range c.RateLimit.Rules {
		if r.Name == "" {
			return fmt.Errorf("rate_limit.rules entries require a name")
		}
		if r.Progressive {
			if r.PenaltyFactor <= 0 || r.PenaltyFactor > 1 {
				return fmt.Errorf("rule %q: penalty_factor must be in (0, 1]", r.Name)
			}
			if r.RecoveryFactor < 1 {
				return fmt.Errorf("rule %q: recovery_factor must be >= 1", r.Name)
			}
		}
	}
	return nil
}

// DefaultRules returns the rule set registered when none are configured.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{
			Name:            "global",
			Scope:           string(constants.RateLimitScopeGlobal),
			TokensPerSecond: 1000,
			MaxTokens:       5000,
			BurstMultiplier: 1.5,
			Action:          string(constants.RateLimitActionReject),
			Enabled:         true,
		},
		{
			Name:            "per_api_key",
			Scope:           string(constants.RateLimitScopeAPIKey),
			TokensPerSecond: 50,
			MaxTokens:       200,
			BurstMultiplier: 2.0,
			Action:          string(constants.RateLimitActionReject),
			Enabled:         true,
			Progressive:     true,
			PenaltyFactor:   0.5,
			RecoveryFactor:  1.2,
			MinLimit:        0.1,
			MaxLimit:        2.0,
		},
		{
			Name:            "per_ip",
			Scope:           string(constants.RateLimitScopeIP),
			TokensPerSecond: 20,
			MaxTokens:       100,
			BurstMultiplier: 1.5,
			Action:          string(constants.RateLimitActionReject),
			Enabled:         true,
		},
	}
}
