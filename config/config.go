package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	LLM     LLMConfig
	Image   ImageConfig
	Gateway GatewayConfig
	Storage StorageConfig
	Sentry  SentryConfig
	App     AppConfig
}

type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" default:"8080"`
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

type DBConfig struct {
	Driver   string `envconfig:"DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"quecocinohoy"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`

	// SQLitePath is only used with DB_DRIVER=sqlite.
	SQLitePath string `envconfig:"DB_SQLITE_PATH" default:"quecocinohoy.db"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	URL      string `envconfig:"REDIS_URL"`
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type LLMConfig struct {
	APIKey  string        `envconfig:"DEEPSEEK_API_KEY"`
	APIURL  string        `envconfig:"DEEPSEEK_API_URL" default:"https://api.deepseek.com/v1/chat/completions" validate:"url"`
	Model   string        `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`
	Timeout time.Duration `envconfig:"DEEPSEEK_TIMEOUT" default:"60s"`
}

type ImageConfig struct {
	APIKey  string        `envconfig:"OPENAI_API_KEY"`
	APIURL  string        `envconfig:"OPENAI_IMAGES_API_URL" default:"https://api.openai.com/v1/images/generations" validate:"url"`
	Model   string        `envconfig:"OPENAI_IMAGE_MODEL" default:"dall-e-3"`
	Timeout time.Duration `envconfig:"IMAGE_GENERATION_TIMEOUT" default:"25s"`
}

type GatewayConfig struct {
	AccessToken string `envconfig:"MERCADOPAGO_ACCESS_TOKEN"`
	BaseURL     string `envconfig:"MERCADOPAGO_BASE_URL" default:"https://api.mercadopago.com" validate:"url"`
}

type StorageConfig struct {
	Region     string `envconfig:"AWS_REGION" default:"us-east-1"`
	BucketName string `envconfig:"S3_BUCKET_NAME" default:"quecocinohoy-recipe-images"`

	// Endpoint overrides the S3 endpoint (minio, localstack).
	Endpoint string `envconfig:"S3_ENDPOINT"`
}

type SentryConfig struct {
	DSN        string  `envconfig:"SENTRY_DSN"`
	SampleRate float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"0.2"`
}

type AppConfig struct {
	FrontendURL               string `envconfig:"FRONTEND_URL" default:"http://localhost:5173" validate:"url"`
	FreeGenerationsPerHour    int    `envconfig:"FREE_GENERATIONS_PER_HOUR" default:"5" validate:"gte=0"`
	PremiumGenerationsPerHour int    `envconfig:"PREMIUM_GENERATIONS_PER_HOUR" default:"50" validate:"gte=0"`
}

// Environment returns the parsed runtime environment
func (c *Config) Environment() Environment {
	return ParseEnvironment(c.Env)
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; real deployments use the environment and secrets.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if os.Getenv("CI") == "true" {
		cfg.Env = string(CI)
	}

	loadSecrets(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadSecrets fills sensitive values that were not provided through the
// environment from Docker secrets
func loadSecrets(cfg *Config) {
	secrets := map[string]*string{
		"db_password":              &cfg.DB.Password,
		"jwt_secret":               &cfg.JWT.Secret,
		"redis_password":           &cfg.Redis.Password,
		"redis_url":                &cfg.Redis.URL,
		"deepseek_api_key":         &cfg.LLM.APIKey,
		"openai_api_key":           &cfg.Image.APIKey,
		"mercadopago_access_token": &cfg.Gateway.AccessToken,
		"sentry_dsn":               &cfg.Sentry.DSN,
	}
	for name, target := range secrets {
		if *target != "" {
			continue
		}
		*target = readSecret(name)
	}
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
