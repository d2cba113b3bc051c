// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// APIConfig points at the job-application backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type PurchasesConfig struct {
	Backend         string        `yaml:"backend"` // revenuecat | memory
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	AppUserID       string        `yaml:"app_user_id"`
	Platform        string        `yaml:"platform"`    // X-Platform sent to RevenueCat
	Entitlement     string        `yaml:"entitlement"` // entitlement that unlocks premium features
	Preview         bool          `yaml:"preview"`     // purchase UI disabled
	Sandbox         bool          `yaml:"sandbox"`     // use the sandbox store front
	WebhookSecret   string        `yaml:"webhook_secret"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // 0 disables periodic refresh
}

type SessionConfig struct {
	Store string `yaml:"store"` // memory | redis
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type HTTPConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"` // bearer key for /api/v1; empty leaves it open
	Locale string `yaml:"locale"`  // language of user-facing error messages
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Purchases PurchasesConfig `yaml:"purchases"`
	Session   SessionConfig   `yaml:"session"`
	Redis     RedisConfig     `yaml:"redis"`
	HTTP      HTTPConfig      `yaml:"http"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Environment variables that override secrets from the YAML file.
const (
	EnvPurchasesAPIKey  = "PURCHASES_API_KEY"
	EnvWebhookSecret    = "PURCHASES_WEBHOOK_SECRET"
	EnvEncryptionKey    = "SECURITY_ENCRYPTION_KEY"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvHTTPAPIKey       = "HTTP_API_KEY"
	defaultPurchasesURL = "https://api.revenuecat.com"
)

// LoadConfig reads the YAML file at path, overlays secrets from the process
// environment (and a .env file next to the working directory, if present),
// and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	return Parse(b, dev)
}

// Parse decodes a YAML document and finalizes it like LoadConfig.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.Purchases.Backend == "" {
		cfg.Purchases.Backend = "revenuecat"
	}
	if cfg.Purchases.BaseURL == "" {
		cfg.Purchases.BaseURL = defaultPurchasesURL
	}
	if cfg.Purchases.Platform == "" {
		cfg.Purchases.Platform = "ios"
	}
	if cfg.Purchases.Entitlement == "" {
		cfg.Purchases.Entitlement = "Pro"
	}
	if cfg.Purchases.AppUserID == "" {
		cfg.Purchases.AppUserID = "$RCAnonymousID:" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if cfg.Purchases.RefreshInterval < 0 {
		cfg.Purchases.RefreshInterval = 0
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "applyassist"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.Locale == "" {
		cfg.HTTP.Locale = "en"
	}

	// Minimal validation. A missing purchases key is reported by the
	// coordinator at initialization, not here.
	if cfg.API.BaseURL == "" {
		return nil, errors.New("api.base_url is required")
	}
	switch cfg.Purchases.Backend {
	case "revenuecat", "memory":
	default:
		return nil, fmt.Errorf("purchases.backend %q not supported", cfg.Purchases.Backend)
	}
	switch cfg.Session.Store {
	case "memory":
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, errors.New("redis.url is required when session.store=redis")
		}
	default:
		return nil, fmt.Errorf("session.store %q not supported", cfg.Session.Store)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPurchasesAPIKey); v != "" {
		cfg.Purchases.APIKey = v
	}
	if v := os.Getenv(EnvWebhookSecret); v != "" {
		cfg.Purchases.WebhookSecret = v
	}
	if v := os.Getenv(EnvEncryptionKey); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv(EnvHTTPAPIKey); v != "" {
		cfg.HTTP.APIKey = v
	}
}
