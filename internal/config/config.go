package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// JWTConfig defines issuer/secret/audience for admin token verification.
type JWTConfig struct {
	Secret   string `env:"AUTH_JWT_SECRET"`
	Issuer   string `env:"AUTH_JWT_ISSUER"`
	Audience string `env:"AUTH_JWT_AUDIENCE"`
}

// Enabled reports whether admin routes should be mounted.
func (c JWTConfig) Enabled() bool {
	return strings.TrimSpace(c.Secret) != ""
}

// StoreConfig selects and parameterises the key-value backend.
type StoreConfig struct {
	Driver         string        `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI       string        `env:"MONGO_URI" envDefault:"mongodb://mongo:27017"`
	MongoDatabase  string        `env:"MONGO_DB" envDefault:"form-intake"`
	Collection     string        `env:"KV_COLLECTION" envDefault:"kv"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	BoltPath       string        `env:"BOLT_PATH" envDefault:"intake.db"`
	Bucket         string        `env:"KV_BUCKET" envDefault:"kv"`
}

// Config holds runtime configuration shared across the application.
type Config struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	ProjectName       string        `env:"PROJECT_NAME"`
	StagingHostSuffix string        `env:"STAGING_HOST_SUFFIX" envDefault:".pages.dev"`
	TurnstileSecret   string        `env:"TURNSTILE_SECRET"`
	TurnstileEndpoint string        `env:"TURNSTILE_ENDPOINT" envDefault:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`
	TokenField        string        `env:"TURNSTILE_TOKEN_FIELD" envDefault:"cf-turnstile-response"`
	EmailConfig       string        `env:"EMAIL_CONFIG"`
	MailgunBaseURL    string        `env:"MAILGUN_BASE_URL" envDefault:"https://api.mailgun.net/v3"`
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	MaxFormBytes      int64         `env:"MAX_FORM_BYTES" envDefault:"1048576"`
	Store             StoreConfig
	JWT               JWTConfig
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	return cfg, nil
}

// Validate checks the settings the intake API cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.EmailConfig) == "" {
		return errors.New("EMAIL_CONFIG must be configured")
	}
	if c.MaxFormBytes <= 0 {
		return fmt.Errorf("MAX_FORM_BYTES must be positive, got %d", c.MaxFormBytes)
	}
	switch c.Store.Driver {
	case DriverMongo, DriverRedis, DriverBolt, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

// StagingHost is the preview hostname whose requests are refused, or "" when
// PROJECT_NAME is unset.
func (c Config) StagingHost() string {
	name := strings.TrimSpace(c.ProjectName)
	if name == "" {
		return ""
	}
	return name + c.StagingHostSuffix
}
