package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, populated from the environment.
type Config struct {
	Server  ServerConfig
	Model   ModelConfig
	Storage StorageConfig
	Engine  EngineConfig
	Auth    AuthConfig
	Archive ArchiveConfig
}

type ServerConfig struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

type ModelConfig struct {
	// Deployment keeps the original setting name used by the function app.
	Deployment string        `env:"CHAT_MODEL_DEPLOYMENT_NAME" envDefault:"gpt-4o-mini"`
	APIKey     string        `env:"OPENAI_API_KEY"`
	BaseURL    string        `env:"OPENAI_BASE_URL"`
	Timeout    time.Duration `env:"MODEL_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"MODEL_MAX_RETRIES" envDefault:"3"`
}

type StorageConfig struct {
	// Backend selects the session store: memory, postgres or redis.
	Backend       string `env:"STORAGE_BACKEND" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

type EngineConfig struct {
	// ConflictRetries bounds re-reads after a lost compare-and-swap append.
	ConflictRetries int `env:"POST_CONFLICT_RETRIES" envDefault:"3"`
}

type AuthConfig struct {
	// FunctionKeyHash is a bcrypt hash of the shared function key. Empty
	// disables key auth.
	FunctionKeyHash string `env:"FUNCTION_KEY_HASH"`
	// JWTSecret enables HS256 bearer tokens as an alternative credential.
	JWTSecret string `env:"JWT_SECRET"`
}

type ArchiveConfig struct {
	Bucket string `env:"ARCHIVE_BUCKET"`
	Prefix string `env:"ARCHIVE_PREFIX" envDefault:"chats"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q (want memory, postgres or redis)", c.Storage.Backend)
	}
	if c.Engine.ConflictRetries < 0 {
		return fmt.Errorf("POST_CONFLICT_RETRIES must be >= 0")
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("MODEL_MAX_RETRIES must be >= 0")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// AuthEnabled reports whether any request credential is configured.
func (c *Config) AuthEnabled() bool {
	return c.Auth.FunctionKeyHash != "" || c.Auth.JWTSecret != ""
}
