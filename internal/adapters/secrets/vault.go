package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// VaultConfig contains configuration for the HashiCorp Vault provider
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string

	// KV v2 secrets engine mount path (default: "secret")
	MountPath string

	// Field read from the secret's data (default: "value")
	Field string
}

// VaultProvider reads secrets from a KV v2 engine with token auth
type VaultProvider struct {
	client *vault.Client
	mount  string
	field  string
	logger ports.Logger
}

// NewVaultProvider creates a Vault client authenticated with a token
func NewVaultProvider(cfg VaultConfig, logger ports.Logger) (*VaultProvider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required for token auth")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	field := cfg.Field
	if field == "" {
		field = "value"
	}

	logger.Info("Vault provider initialized",
		ports.String("address", cfg.Address),
		ports.String("mount_path", mount))

	return &VaultProvider{client: client, mount: mount, field: field, logger: logger}, nil
}

// GetSecret reads the configured field of the latest version at path
func (p *VaultProvider) GetSecret(ctx context.Context, path string) (string, error) {
	secret, err := p.client.KVv2(p.mount).Get(ctx, path)
	if err != nil {
		p.logger.Error("Failed to read secret from Vault", ports.String("path", path), ports.Err(err))
		return "", fmt.Errorf("failed to read secret %s: %w", path, err)
	}

	raw, ok := secret.Data[p.field]
	if !ok {
		return "", fmt.Errorf("secret %s has no field %q", path, p.field)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("secret %s field %q is not a string", path, p.field)
	}
	return value, nil
}

var _ ports.SecretProvider = (*VaultProvider)(nil)
