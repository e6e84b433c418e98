package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/devportal/pkg/logger"
)

func writeConfigFile(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	t.Chdir(dir)
}

func TestLoadConfigFromFile(t *testing.T) {
	writeConfigFile(t, `
server:
  port: 9090
auth:
  app_secret: file-secret
rate_limit:
  backend: memory
  rules:
    - name: per_ip
      scope: ip
      tokens_per_second: 20
      max_tokens: 100
      action: reject
      enabled: true
`)

	cfg, err := LoadConfig(logger.NewNoopLogger())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys fall back to defaults")
	assert.Equal(t, "file-secret", cfg.Auth.AppSecret)
	require.Len(t, cfg.RateLimit.Rules, 1)
	assert.Equal(t, "per_ip", cfg.RateLimit.Rules[0].Name)
	assert.Equal(t, 20.0, cfg.RateLimit.Rules[0].TokensPerSecond)
}

func TestLoadConfigAppliesDefaultRules(t *testing.T) {
	writeConfigFile(t, `
auth:
  app_secret: file-secret
`)

	cfg, err := LoadConfig(logger.NewNoopLogger())
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.RateLimit.Rules))
	for _, rule := range cfg.RateLimit.Rules {
		names = append(names, rule.Name)
	}
	assert.ElementsMatch(t, []string{"global", "per_api_key", "per_ip"}, names)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	writeConfigFile(t, `
auth:
  app_secret: file-secret
`)
	t.Setenv("DEVPORTAL_SERVER_PORT", "7070")

	cfg, err := LoadConfig(logger.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadConfigRejectsMissingAppSecret(t *testing.T) {
	writeConfigFile(t, `
server:
  port: 8080
`)

	_, err := LoadConfig(logger.NewNoopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app_secret")
}

func TestValidateBackendConstraints(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.AppSecret = "s"
	cfg.RateLimit.Backend = "memcached"
	assert.Error(t, cfg.Validate())

	cfg.RateLimit.Backend = "redis"
	assert.Error(t, cfg.Validate(), "redis backend requires redis.enabled")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestValidateProgressiveRuleBounds(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.AppSecret = "s"
	cfg.RateLimit.Backend = "memory"
	cfg.RateLimit.Rules = []RuleConfig{{
		Name:           "strict",
		Progressive:    true,
		PenaltyFactor:  1.5,
		RecoveryFactor: 1.2,
	}}
	assert.Error(t, cfg.Validate(), "penalty factor above 1 is invalid")

	cfg.RateLimit.Rules[0].PenaltyFactor = 0.5
	cfg.RateLimit.Rules[0].RecoveryFactor = 0.9
	assert.Error(t, cfg.Validate(), "recovery factor below 1 is invalid")

	cfg.RateLimit.Rules[0].RecoveryFactor = 1.2
	assert.NoError(t, cfg.Validate())
}
