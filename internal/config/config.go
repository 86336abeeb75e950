// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DBConfig holds PostgreSQL connection settings used when DATABASE_URL is unset.
type DBConfig struct {
	Host     string `env:"DB_HOST"     envDefault:"localhost"`
	Port     string `env:"DB_PORT"     envDefault:"5432"`
	User     string `env:"DB_USER"     envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME"     envDefault:"campusevents"`
	SSLMode  string `env:"DB_SSLMODE"  envDefault:"disable"`
}

// URL builds a postgres:// connection string. Both pgx and golang-migrate
// accept this form.
func (c DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Config is the full service configuration.
type Config struct {
	Port        string `env:"PORT"         envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	DB          DBConfig
	DBMaxConns  int32 `env:"DB_MAX_CONNS" envDefault:"20"`

	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL"     envDefault:"1h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`

	// AdminBootstrapKey enables PATCH /admin/users/{id}/role. Empty disables it.
	AdminBootstrapKey string `env:"ADMIN_BOOTSTRAP_KEY"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	PaymentCheckoutBaseURL string `env:"PAYMENT_CHECKOUT_BASE_URL" envDefault:"https://mockpay.local/checkout"`
	PaymentWebhookSecret   string `env:"PAYMENT_WEBHOOK_SECRET"`

	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`
	LogLevel      string `env:"LOG_LEVEL"      envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT"     envDefault:"json"`
}

// Load reads envFile (if present) into the process environment without
// overriding variables that are already set, then parses and validates.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromMap parses configuration from an explicit environment map.
func FromMap(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(strings.TrimSpace(c.JWTSecret)) < 16 {
		return fmt.Errorf("config: JWT_SECRET is required and must be at least 16 bytes")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("config: DB_MAX_CONNS must be positive")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		c.DatabaseURL = c.DB.URL()
	}
	parsed, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return fmt.Errorf("config: DATABASE_URL invalid: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: DATABASE_URL invalid: missing scheme or host")
	}

	base, err := url.Parse(c.PaymentCheckoutBaseURL)
	if err != nil || base.Scheme == "" {
		return fmt.Errorf("config: PAYMENT_CHECKOUT_BASE_URL must be an absolute URL")
	}
	c.PaymentCheckoutBaseURL = strings.TrimRight(c.PaymentCheckoutBaseURL, "/")

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
