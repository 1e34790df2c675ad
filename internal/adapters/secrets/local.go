package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// LocalProvider reads secrets from files under basePath.
// Development only: production deployments use AWS or Vault.
type LocalProvider struct {
	basePath string
	logger   ports.Logger
}

// NewLocalProvider creates a filesystem secret provider
func NewLocalProvider(basePath string, logger ports.Logger) *LocalProvider {
	return &LocalProvider{basePath: basePath, logger: logger}
}

// GetSecret reads the file at path. Both plain text and {"value": "..."} JSON are accepted.
func (p *LocalProvider) GetSecret(_ context.Context, path string) (string, error) {
	filePath := filepath.Join(p.basePath, filepath.Clean("/"+path))

	p.logger.Debug("Reading secret from filesystem", ports.String("path", path))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret not found: %s", path)
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Value != "" {
		return wrapped.Value, nil
	}
	return strings.TrimSpace(string(data)), nil
}

var _ ports.SecretProvider = (*LocalProvider)(nil)
