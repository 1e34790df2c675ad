package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Secret sources for the gateway key
const (
	SecretSourceEnv   = "env"
	SecretSourceAWS   = "aws"
	SecretSourceVault = "vault"
	SecretSourceLocal = "local"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	Membership MembershipConfig
	Batch      BatchConfig
	Logger     LoggerConfig
	Secrets    SecretsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string
	CronSecret  string // Secret token for authenticating cron requests
	Port        int
	MetricsPort int
	// RequestsPerSecond and Burst limit member API calls per member
	RequestsPerSecond float64
	Burst             int
	ShutdownTimeout   time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string // DATABASE_URL wins over the discrete fields when set
	Host     string
	User     string
	Password string
	Database string
	SSLMode  string
	Port     int
	MaxConns int32
	MinConns int32
}

// RedisConfig holds the lock and snapshot cache store. Disabled falls back to
// in-process locks and no snapshot cache, which is only safe for one instance.
type RedisConfig struct {
	Addr      string
	Password  string
	KeyPrefix string
	DB        int
	Enabled   bool
}

// GatewayConfig holds payment gateway configuration
type GatewayConfig struct {
	SecretKey     string
	TestSecretKey string
	WebhookSecret string
	// SecretSource selects where SecretKey comes from: env, aws, vault or local
	SecretSource string
	SecretPath   string
	// TestSecretPath is the sandbox key's path, read instead of SecretPath in test mode
	TestSecretPath string
	// WebhookSecretPath reads the webhook secret from the same provider when set
	WebhookSecretPath string
	Currency          string
	MaxNetworkRetries int64
	TestMode          bool
}

// ActiveSecretKey returns the key matching the configured mode
func (g *GatewayConfig) ActiveSecretKey() string {
	if g.TestMode {
		return g.TestSecretKey
	}
	return g.SecretKey
}

// ActiveSecretPath returns the provider path of the key matching the configured mode
func (g *GatewayConfig) ActiveSecretPath() string {
	if g.TestMode {
		return g.TestSecretPath
	}
	return g.SecretPath
}

// MembershipConfig holds command handler settings
type MembershipConfig struct {
	TrialYears     int
	LockTTL        time.Duration
	StatusCacheTTL time.Duration
}

// BatchConfig holds the batch job defaults; cron requests and CLI flags override them
type BatchConfig struct {
	Concurrency       int
	RequestsPerSecond float64
	InterBatchDelay   time.Duration
	MaxRetries        int
	PageSize          int
	DryRun            bool
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// SecretsConfig holds the secret provider settings
type SecretsConfig struct {
	AWSRegion   string
	AWSEndpoint string
	VaultAddr   string
	VaultToken  string
	VaultMount  string
	LocalPath   string
	CacheTTL    time.Duration
}

// Load reads an optional .env file and then the environment
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// Variables already set in the environment take precedence
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			MetricsPort:       getEnvAsInt("METRICS_PORT", 9090),
			CronSecret:        getEnv("CRON_SECRET", ""),
			RequestsPerSecond: getEnvAsFloat("API_RATE_LIMIT_RPS", 2),
			Burst:             getEnvAsInt("API_RATE_LIMIT_BURST", 5),
			ShutdownTimeout:   getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseFromEnv(),
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "membership"),
			Enabled:   getEnvAsBool("REDIS_ENABLED", true),
		},
		Gateway: GatewayConfig{
			SecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
			TestSecretKey:     getEnv("STRIPE_TEST_SECRET_KEY", ""),
			WebhookSecret:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SecretSource:      getEnv("STRIPE_SECRET_SOURCE", SecretSourceEnv),
			SecretPath:        getEnv("STRIPE_SECRET_PATH", ""),
			TestSecretPath:    getEnv("STRIPE_TEST_SECRET_PATH", ""),
			WebhookSecretPath: getEnv("STRIPE_WEBHOOK_SECRET_PATH", ""),
			Currency:          getEnv("MEMBERSHIP_CURRENCY", "usd"),
			MaxNetworkRetries: int64(getEnvAsInt("STRIPE_MAX_NETWORK_RETRIES", 2)),
			TestMode:          getEnvAsBool("STRIPE_TEST_MODE", false),
		},
		Membership: MembershipConfig{
			TrialYears:     getEnvAsInt("MEMBERSHIP_TRIAL_YEARS", 1),
			LockTTL:        getEnvAsDuration("MEMBERSHIP_LOCK_TTL", 30*time.Second),
			StatusCacheTTL: getEnvAsDuration("STATUS_CACHE_TTL", time.Minute),
		},
		Batch: BatchConfig{
			Concurrency:       getEnvAsInt("BATCH_CONCURRENCY", 4),
			RequestsPerSecond: getEnvAsFloat("BATCH_REQUESTS_PER_SECOND", 20),
			InterBatchDelay:   getEnvAsDuration("BATCH_INTER_BATCH_DELAY", 0),
			MaxRetries:        getEnvAsInt("BATCH_MAX_RETRIES", 5),
			PageSize:          getEnvAsInt("BATCH_PAGE_SIZE", 100),
			DryRun:            getEnvAsBool("BATCH_DRY_RUN", false),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Secrets: SecretsConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			AWSEndpoint: getEnv("AWS_ENDPOINT_URL", ""),
			VaultAddr:   getEnv("VAULT_ADDR", ""),
			VaultToken:  getEnv("VAULT_TOKEN", ""),
			VaultMount:  getEnv("VAULT_MOUNT", "secret"),
			LocalPath:   getEnv("LOCAL_SECRETS_PATH", "./secrets"),
			CacheTTL:    getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabaseFromEnv reads only the database settings, for tools that need nothing else
func DatabaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		URL:      getEnv("DATABASE_URL", ""),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Database: getEnv("DB_NAME", "membership_service"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
	}
}

// Validate checks the settings every binary needs
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD or DATABASE_URL is required")
	}

	switch c.Gateway.SecretSource {
	case SecretSourceEnv:
		if c.Gateway.TestMode && c.Gateway.TestSecretKey == "" {
			return fmt.Errorf("STRIPE_TEST_SECRET_KEY is required in test mode")
		}
		if !c.Gateway.TestMode && c.Gateway.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required unless STRIPE_TEST_MODE is set")
		}
	case SecretSourceAWS, SecretSourceLocal:
		if err := c.validateSecretPath(); err != nil {
			return err
		}
	case SecretSourceVault:
		if err := c.validateSecretPath(); err != nil {
			return err
		}
		if c.Secrets.VaultAddr == "" || c.Secrets.VaultToken == "" {
			return fmt.Errorf("VAULT_ADDR and VAULT_TOKEN are required for secret source %q", c.Gateway.SecretSource)
		}
	default:
		return fmt.Errorf("unknown STRIPE_SECRET_SOURCE %q", c.Gateway.SecretSource)
	}

	if c.Membership.TrialYears < 0 {
		return fmt.Errorf("MEMBERSHIP_TRIAL_YEARS must not be negative")
	}
	if c.Membership.LockTTL <= 0 {
		return fmt.Errorf("MEMBERSHIP_LOCK_TTL must be positive")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1")
	}
	return nil
}

func (c *Config) validateSecretPath() error {
	if c.Gateway.TestMode && c.Gateway.TestSecretPath == "" {
		return fmt.Errorf("STRIPE_TEST_SECRET_PATH is required in test mode for secret source %q", c.Gateway.SecretSource)
	}
	if !c.Gateway.TestMode && c.Gateway.SecretPath == "" {
		return fmt.Errorf("STRIPE_SECRET_PATH is required for secret source %q", c.Gateway.SecretSource)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs
func (c *Config) ValidateServer() error {
	if c.Server.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if c.Gateway.WebhookSecret == "" && (c.Gateway.SecretSource == SecretSourceEnv || c.Gateway.WebhookSecretPath == "") {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET_PATH is required")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection URL
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
