package ports

import "context"

// SecretProvider resolves secrets such as the gateway API key at startup
type SecretProvider interface {
	// GetSecret returns the plain secret value stored at path
	GetSecret(ctx context.Context, path string) (string, error)
}
