package crypto

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/devportal/internal/config"
	"github.com/turtacn/devportal/pkg/logger"
)

// LoadAppSecret resolves the HMAC application secret. When Vault is enabled
// the secret comes from the configured KV v2 path (field "app_secret");
// otherwise the config value is used directly.
func LoadAppSecret(ctx context.Context, cfg *config.Config, log logger.Logger) (string, error) {
	if !cfg.Vault.Enabled {
		return cfg.Auth.AppSecret, nil
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Vault.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return "", fmt.Errorf("creating vault client: %w", err)
	}
	client.SetToken(cfg.Vault.Token)

	secret, err := client.KVv2(cfg.Vault.MountPath).Get(ctx, cfg.Vault.SecretPath)
	if err != nil {
		return "", fmt.Errorf("reading app secret from vault: %w", err)
	}

	value, ok := secret.Data["app_secret"].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("vault secret %s/%s has no app_secret field",
			cfg.Vault.MountPath, cfg.Vault.SecretPath)
	}

	log.Info(ctx, "app secret loaded from vault",
		logger.String("mount", cfg.Vault.MountPath),
		logger.String("path", cfg.Vault.SecretPath))
	return value, nil
}
