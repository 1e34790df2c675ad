package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/membership-service/internal/config"
	"github.com/kevin07696/membership-service/internal/testutil/mocks"
)

func TestGatewaySecrets_Env(t *testing.T) {
	cfg := &config.Config{Gateway: config.GatewayConfig{
		SecretSource:  config.SecretSourceEnv,
		SecretKey:     "sk_live_1",
		TestSecretKey: "sk_test_1",
		WebhookSecret: "whsec_1",
		TestMode:      true,
	}}

	key, webhook, err := GatewaySecrets(context.Background(), cfg, mocks.NewMockLogger())

	require.NoError(t, err)
	assert.Equal(t, "sk_test_1", key)
	assert.Equal(t, "whsec_1", webhook)
}

func TestGatewaySecrets_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stripe"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stripe", "api_key"), []byte("sk_live_file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stripe", "webhook"), []byte(`{"value":"whsec_file"}`), 0o600))

	cfg := &config.Config{
		Gateway: config.GatewayConfig{
			SecretSource:      config.SecretSourceLocal,
			SecretPath:        "stripe/api_key",
			WebhookSecretPath: "stripe/webhook",
			WebhookSecret:     "whsec_env",
		},
		Secrets: config.SecretsConfig{LocalPath: dir, CacheTTL: time.Minute},
	}
	logger := mocks.NewMockLogger()

	key, webhook, err := GatewaySecrets(context.Background(), cfg, logger)

	require.NoError(t, err)
	assert.Equal(t, "sk_live_file", key)
	assert.Equal(t, "whsec_file", webhook)
	assert.True(t, logger.HasWarn("Using local secret files, not for production use"))
}

func TestGatewaySecrets_TestModeReadsSandboxPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "live"), []byte("sk_live_prod"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sandbox"), []byte("sk_test_sandbox"), 0o600))

	newConfig := func(testPath string) *config.Config {
		return &config.Config{
			Gateway: config.GatewayConfig{
				SecretSource:   config.SecretSourceLocal,
				SecretPath:     "live",
				TestSecretPath: testPath,
				TestSecretKey:  "sk_test_env",
				WebhookSecret:  "whsec_env",
				TestMode:       true,
			},
			Secrets: config.SecretsConfig{LocalPath: dir},
		}
	}

	t.Run("sandbox path", func(t *testing.T) {
		key, _, err := GatewaySecrets(context.Background(), newConfig("sandbox"), mocks.NewMockLogger())
		require.NoError(t, err)
		assert.Equal(t, "sk_test_sandbox", key)
	})

	t.Run("no sandbox path", func(t *testing.T) {
		key, _, err := GatewaySecrets(context.Background(), newConfig(""), mocks.NewMockLogger())
		assert.Error(t, err)
		assert.Empty(t, key)
	})

	t.Run("sandbox path holds a live key", func(t *testing.T) {
		key, _, err := GatewaySecrets(context.Background(), newConfig("live"), mocks.NewMockLogger())
		assert.Error(t, err)
		assert.Empty(t, key)
	})
}

func TestGatewaySecrets_EnvTestModeRefusesLiveKey(t *testing.T) {
	cfg := &config.Config{Gateway: config.GatewayConfig{
		SecretSource:  config.SecretSourceEnv,
		TestSecretKey: "sk_live_pasted_by_mistake",
		TestMode:      true,
	}}

	_, _, err := GatewaySecrets(context.Background(), cfg, mocks.NewMockLogger())

	assert.Error(t, err)
}

func TestGatewaySecrets_MissingFile(t *testing.T) {
	cfg := &config.Config{
		Gateway: config.GatewayConfig{SecretSource: config.SecretSourceLocal, SecretPath: "missing"},
		Secrets: config.SecretsConfig{LocalPath: t.TempDir()},
	}

	_, _, err := GatewaySecrets(context.Background(), cfg, mocks.NewMockLogger())

	assert.Error(t, err)
}

func TestSecretProvider_UnknownSource(t *testing.T) {
	cfg := &config.Config{Gateway: config.GatewayConfig{SecretSource: "ssm"}}

	_, err := SecretProvider(context.Background(), cfg, mocks.NewMockLogger())

	assert.Error(t, err)
}

func TestBatchOptions(t *testing.T) {
	opts := BatchOptions(config.BatchConfig{
		Concurrency:       6,
		RequestsPerSecond: 12.5,
		InterBatchDelay:   time.Second,
		MaxRetries:        3,
		DryRun:            true,
	})

	assert.Equal(t, 6, opts.Concurrency)
	assert.Equal(t, 12.5, opts.RequestsPerSecond)
	assert.Equal(t, time.Second, opts.InterBatchDelay)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.True(t, opts.DryRun)
	assert.Equal(t, 100, opts.PageSize)
}
