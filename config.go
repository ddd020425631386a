package lemystere

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SiteConfig holds all configuration for a Le Mystere server.
type SiteConfig struct {
	Name        string // Site name (default "Le Mystere")
	URL         string // Public URL of this server, used for feed links (default "http://localhost:3000")
	Description string // Site description for the RSS feed

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/lemystere.db")
	UploadDir    string // Directory for uploaded images (default "data/uploads")
	Timezone     string // Zone for datetime-local event times (default "UTC")

	AdminEmail    string // Bootstrap admin account, upserted at start when set
	AdminPassword string
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	Environment string // "development" or "production"
	LogLevel    string // debug, info, warn, error

	PostCacheTTL time.Duration // Published post cache TTL (default 5min)

	location *time.Location
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Le Mystere"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/lemystere.db"
	}
	if c.UploadDir == "" {
		c.UploadDir = "data/uploads"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

func (c *SiteConfig) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("lemystere: SessionSecret is required")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("lemystere: AdminEmail and AdminPassword must be set together")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("lemystere: timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location returns the zone used for zone-less event timestamps.
func (c SiteConfig) Location() *time.Location {
	if c.location == nil {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
		return time.UTC
	}
	return c.location
}

// LoadConfig reads the configuration from environment variables. Outside
// production a .env file in the working directory is loaded first.
func LoadConfig() (SiteConfig, error) {
	env := EnvOr("GO_ENV", "development")
	if env != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return SiteConfig{}, fmt.Errorf("lemystere: load .env: %w", err)
		}
	}
	ttl := 5 * time.Minute
	if v := os.Getenv("POST_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return SiteConfig{}, fmt.Errorf("lemystere: POST_CACHE_TTL: %w", err)
		}
		ttl = d
	}
	cfg := SiteConfig{
		Name:          os.Getenv("SITE_NAME"),
		URL:           os.Getenv("SITE_URL"),
		Description:   os.Getenv("SITE_DESCRIPTION"),
		Addr:          os.Getenv("ADDR"),
		DatabasePath:  os.Getenv("DATABASE_PATH"),
		UploadDir:     os.Getenv("UPLOAD_DIR"),
		Timezone:      os.Getenv("TZ"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		CookieSecure:  strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		Environment:   env,
		LogLevel:      os.Getenv("LOG_LEVEL"),
		PostCacheTTL:  ttl,
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithStore makes the App use an already opened store instead of opening
// DatabasePath. The App does not close a store it did not open.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
		a.externalStore = true
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
