// Package config loads deployment configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything cmd/api needs to wire the process.
type Config struct {
	Port string

	// StorageBackend selects the repository adapters: "memory" or
	// "postgres".
	StorageBackend string
	DatabaseURL    string

	// AuthMode is "jwt" for real token verification or "dev" for the local
	// X-Debug-User bypass.
	AuthMode    string
	DevUsername string

	JWTSecret string
	TokenTTL  time.Duration

	CASValidateURL string
	// ServiceURL is this deployment's callback URL registered with CAS.
	ServiceURL string

	// BaseURL is the frontend origin used for ride links in emails.
	BaseURL string

	// MailMode selects the mail gateway: "mock" or "gmail".
	MailMode string
	MailFrom string

	ReminderPollInterval time.Duration
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:                 getenv("PORT", "8080"),
		StorageBackend:       getenv("STORAGE_BACKEND", "memory"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		AuthMode:             getenv("AUTH_MODE", "jwt"),
		DevUsername:          getenv("DEV_USERNAME", "devuser"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		TokenTTL:             30 * 24 * time.Hour,
		CASValidateURL:       getenv("CAS_VALIDATE_URL", "https://idp.rice.edu/cas/serviceValidate"),
		ServiceURL:           getenv("SERVICE_URL", "https://carpool.riceapps.org/auth"),
		BaseURL:              getenv("BASE_URL", "https://carpool.riceapps.org"),
		MailMode:             getenv("MAIL_MODE", "mock"),
		MailFrom:             getenv("MAIL_FROM", "Rice Carpool <carpool.riceapps@gmail.com>"),
		ReminderPollInterval: time.Minute,
	}

	if cfg.AuthMode != "dev" && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing required env var: JWT_SECRET")
	}
	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("STORAGE_BACKEND=postgres requires DATABASE_URL")
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("TOKEN_TTL must be a duration (e.g. 720h): %w", err)
		}
		cfg.TokenTTL = d
	}
	if v := os.Getenv("REMINDER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("REMINDER_POLL_INTERVAL must be a duration (e.g. 1m): %w", err)
		}
		cfg.ReminderPollInterval = d
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
