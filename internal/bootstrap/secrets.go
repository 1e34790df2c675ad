package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/kevin07696/membership-service/internal/adapters/secrets"
	"github.com/kevin07696/membership-service/internal/config"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// liveKeyPrefix marks gateway keys that act on the production account
const liveKeyPrefix = "sk_live_"

// GatewaySecrets returns the gateway API key and webhook secret from the configured source.
// With the env source both come straight from the config. In test mode the sandbox key
// is read and a live key is refused.
func GatewaySecrets(ctx context.Context, cfg *config.Config, logger ports.Logger) (apiKey, webhookSecret string, err error) {
	if cfg.Gateway.SecretSource == config.SecretSourceEnv {
		apiKey = cfg.Gateway.ActiveSecretKey()
		if err := checkTestModeKey(cfg, apiKey); err != nil {
			return "", "", err
		}
		return apiKey, cfg.Gateway.WebhookSecret, nil
	}

	path := cfg.Gateway.ActiveSecretPath()
	if path == "" {
		return "", "", fmt.Errorf("no gateway key path for secret source %q (test mode %t)",
			cfg.Gateway.SecretSource, cfg.Gateway.TestMode)
	}

	provider, err := SecretProvider(ctx, cfg, logger)
	if err != nil {
		return "", "", err
	}

	apiKey, err = provider.GetSecret(ctx, path)
	if err != nil {
		return "", "", fmt.Errorf("read gateway key: %w", err)
	}
	if err := checkTestModeKey(cfg, apiKey); err != nil {
		return "", "", err
	}

	webhookSecret = cfg.Gateway.WebhookSecret
	if cfg.Gateway.WebhookSecretPath != "" {
		webhookSecret, err = provider.GetSecret(ctx, cfg.Gateway.WebhookSecretPath)
		if err != nil {
			return "", "", fmt.Errorf("read webhook secret: %w", err)
		}
	}

	logger.Info("Gateway secrets resolved",
		ports.String("source", cfg.Gateway.SecretSource),
		ports.Bool("test_mode", cfg.Gateway.TestMode))
	return apiKey, webhookSecret, nil
}

func checkTestModeKey(cfg *config.Config, apiKey string) error {
	if cfg.Gateway.TestMode && strings.HasPrefix(apiKey, liveKeyPrefix) {
		return fmt.Errorf("test mode resolved a live gateway key")
	}
	return nil
}

// SecretProvider builds the provider named by the gateway secret source, behind a TTL cache
func SecretProvider(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.SecretProvider, error) {
	var (
		provider ports.SecretProvider
		err      error
	)

	switch cfg.Gateway.SecretSource {
	case config.SecretSourceAWS:
		provider, err = secrets.NewAWSProvider(ctx, secrets.AWSConfig{
			Region:   cfg.Secrets.AWSRegion,
			Endpoint: cfg.Secrets.AWSEndpoint,
		}, logger)
	case config.SecretSourceVault:
		provider, err = secrets.NewVaultProvider(secrets.VaultConfig{
			Address:   cfg.Secrets.VaultAddr,
			Token:     cfg.Secrets.VaultToken,
			MountPath: cfg.Secrets.VaultMount,
		}, logger)
	case config.SecretSourceLocal:
		logger.Warn("Using local secret files, not for production use",
			ports.String("path", cfg.Secrets.LocalPath))
		provider = secrets.NewLocalProvider(cfg.Secrets.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown secret source %q", cfg.Gateway.SecretSource)
	}
	if err != nil {
		return nil, err
	}

	return secrets.NewCachedProvider(provider, cfg.Secrets.CacheTTL), nil
}
