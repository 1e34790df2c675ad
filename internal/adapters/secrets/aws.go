package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// AWSConfig contains configuration for the AWS Secrets Manager provider
type AWSConfig struct {
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: custom endpoint (for LocalStack testing)
	Endpoint string

	// Optional: static credentials; the default chain is used when empty
	AccessKeyID     string
	SecretAccessKey string
}

// AWSProvider reads secret strings from AWS Secrets Manager
type AWSProvider struct {
	client *secretsmanager.Client
	logger ports.Logger
}

// NewAWSProvider loads the AWS SDK config and creates a Secrets Manager client
func NewAWSProvider(ctx context.Context, cfg AWSConfig, logger ports.Logger) (*AWSProvider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOptions []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager provider initialized", ports.String("region", cfg.Region))

	return &AWSProvider{
		client: secretsmanager.NewFromConfig(awsConfig, clientOptions...),
		logger: logger,
	}, nil
}

// GetSecret retrieves the current secret string by name or ARN
func (p *AWSProvider) GetSecret(ctx context.Context, path string) (string, error) {
	start := time.Now()
	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		p.logger.Error("Failed to retrieve secret", ports.String("path", path), ports.Err(err))
		return "", fmt.Errorf("failed to get secret %s: %w", path, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", path)
	}

	p.logger.Debug("Secret retrieved",
		ports.String("path", path),
		ports.Duration("elapsed", time.Since(start)))
	return aws.ToString(result.SecretString), nil
}

var _ ports.SecretProvider = (*AWSProvider)(nil)
