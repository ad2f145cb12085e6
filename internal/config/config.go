package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrNotConfigured marks a request that needs a setting which is empty.
var ErrNotConfigured = errors.New("required setting is not configured")

// Config holds process-wide settings. Secrets are optional at load time;
// handlers that need one report a configuration error when it is empty.
type Config struct {
	ServerAddr    string `env:"SERVER_ADDR" envDefault:":8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	AllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
	SelfBaseURL   string `env:"SELF_BASE_URL"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`

	CronSecret        string `env:"CRON_SECRET"`
	InternalAPISecret string `env:"INTERNAL_API_SECRET"`
	AdminAPISecret    string `env:"ADMIN_API_SECRET"`

	BackupLogPath string `env:"BACKUP_LOG_PATH" envDefault:"stripe-emails.log"`

	Sync      Sync      `envPrefix:"SYNC_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
}

// Sync configures the subscription reconciliation job.
type Sync struct {
	Interval   time.Duration `env:"INTERVAL" envDefault:"0s"`
	BatchSize  int           `env:"BATCH_SIZE" envDefault:"5"`
	BatchPause time.Duration `env:"BATCH_PAUSE" envDefault:"100ms"`
}

// RateLimit configures the per-IP limiter and the forgot-password limiter.
type RateLimit struct {
	Requests             int           `env:"REQUESTS" envDefault:"120"`
	Window               time.Duration `env:"WINDOW" envDefault:"1m"`
	ForgotPassword       int           `env:"FORGOT_PASSWORD" envDefault:"5"`
	ForgotPasswordWindow time.Duration `env:"FORGOT_PASSWORD_WINDOW" envDefault:"15m"`
}

func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ResetRedirectURL is where recovery emails send the user.
func (c *Config) ResetRedirectURL() string {
	return c.PublicBaseURL + "/reset-password"
}

// InternalBaseURL is how the service reaches its own routes. It defaults to
// the loopback address on the listening port.
func (c *Config) InternalBaseURL() string {
	if c.SelfBaseURL != "" {
		return strings.TrimRight(c.SelfBaseURL, "/")
	}
	if strings.HasPrefix(c.ServerAddr, ":") {
		return "http://127.0.0.1" + c.ServerAddr
	}
	return "http://" + c.ServerAddr
}

// Presence reports which settings are set, keyed by environment name.
// Values are never exposed.
func (c *Config) Presence() map[string]bool {
	return map[string]bool{
		"DATABASE_URL":              c.DatabaseURL != "",
		"REDIS_URL":                 c.RedisURL != "",
		"STRIPE_SECRET_KEY":         c.StripeSecretKey != "",
		"STRIPE_WEBHOOK_SECRET":     c.StripeWebhookSecret != "",
		"SUPABASE_URL":              c.SupabaseURL != "",
		"SUPABASE_SERVICE_ROLE_KEY": c.SupabaseServiceKey != "",
		"PUBLIC_BASE_URL":           c.PublicBaseURL != "",
		"CRON_SECRET":               c.CronSecret != "",
		"INTERNAL_API_SECRET":       c.InternalAPISecret != "",
		"ADMIN_API_SECRET":          c.AdminAPISecret != "",
	}
}
