package config

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/devportal/pkg/constants"
	"github.com/turtacn/devportal/pkg/logger"
)

// LoadConfig loads the configuration from file and environment variables.
// File keys are overridable through DEVPORTAL_-prefixed environment variables,
// e.g. DEVPORTAL_SERVER_PORT=9090.
func LoadConfig(log logger.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/devportal/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info(context.Background(), "no config file found, using defaults and environment")
	}

	v.SetEnvPrefix("DEVPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.RateLimit.Rules) == 0 {
		cfg.RateLimit.Rules = DefaultRules()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WatchRules re-reads the rate-limit rule section whenever the config file
// changes on disk and hands the new rules to onChange. Rules are the only
// hot-reloadable section; everything else requires a restart.
func WatchRules(log logger.Logger, onChange func([]RuleConfig)) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/devportal/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			log.Error(context.Background(), "config reload failed", err,
				logger.String("file", e.Name))
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Error(context.Background(), "reloaded config is invalid, keeping current rules", err)
			return
		}
		log.Info(context.Background(), "rate limit rules reloaded",
			logger.Int("rules", len(cfg.RateLimit.Rules)))
		onChange(cfg.RateLimit.Rules)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", 60)
	v.SetDefault("database.max_conn_idle_time", 10)
	v.SetDefault("database.conn_timeout", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "devportal/app")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.audit_topic", "devportal.audit")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", time.Second)
	v.SetDefault("kafka.write_timeout", 10*time.Second)
	v.SetDefault("kafka.required_acks", 1)

	v.SetDefault("auth.admin_token_ttl", 3600)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.max_buckets", constants.DefaultMaxBuckets)
	v.SetDefault("rate_limit.bucket_idle_ttl", constants.DefaultBucketIdleTTL)
	v.SetDefault("rate_limit.cleanup_interval", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "devportal")
	v.SetDefault("tracing.sampling_rate", 0.1)

	v.SetDefault("monitoring.pprof_enabled", false)
}
