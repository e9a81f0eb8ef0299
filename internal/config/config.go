package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lorrc/realtime-relay/internal/core/routing"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Firebase service account credentials for the upstream store
	Firebase FirebaseConfig

	// Relay behavior configuration
	Relay RelayConfig

	// WebSocket configuration
	WebSocket WebSocketConfig

	// Auth configuration for the WebSocket endpoint
	Auth AuthConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig holds the service-account credential fields for the
// upstream document store. All fields come from the environment; see
// MissingFields for which ones are required.
type FirebaseConfig struct {
	ProjectID           string
	PrivateKeyID        string
	PrivateKey          string
	ClientEmail         string
	ClientID            string
	AuthURI             string
	TokenURI            string
	AuthProviderCertURL string
	ClientCertURL       string
}

// RelayConfig holds relay behavior configuration
type RelayConfig struct {
	// Mode selects room-scoped fan-out or plain broadcast-to-all.
	Mode routing.Mode

	// RequireUpstream makes missing/unusable upstream credentials fatal at
	// startup. When false the service starts degraded: connections are
	// accepted but no upstream events flow, and a warning is logged.
	RequireUpstream bool

	// EventBuffer is the size of the hub's inbound event channel.
	EventBuffer int
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
}

// AuthConfig holds the optional JWT gate for /ws. An empty secret disables
// authentication entirely.
type AuthConfig struct {
	Secret string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "3000"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Firebase: FirebaseConfig{
			ProjectID:           os.Getenv("FIREBASE_PROJECT_ID"),
			PrivateKeyID:        os.Getenv("FIREBASE_PRIVATE_KEY_ID"),
			PrivateKey:          normalizePrivateKey(os.Getenv("FIREBASE_PRIVATE_KEY")),
			ClientEmail:         os.Getenv("FIREBASE_CLIENT_EMAIL"),
			ClientID:            os.Getenv("FIREBASE_CLIENT_ID"),
			AuthURI:             getEnvOrDefault("FIREBASE_AUTH_URI", "https://accounts.google.com/o/oauth2/auth"),
			TokenURI:            getEnvOrDefault("FIREBASE_TOKEN_URI", "https://oauth2.googleapis.com/token"),
			AuthProviderCertURL: getEnvOrDefault("FIREBASE_AUTH_PROVIDER_CERT_URL", "https://www.googleapis.com/oauth2/v1/certs"),
			ClientCertURL:       os.Getenv("FIREBASE_CLIENT_CERT_URL"),
		},
		Relay: RelayConfig{
			Mode:            routing.Mode(getEnvOrDefault("RELAY_MODE", string(routing.ModeRooms))),
			RequireUpstream: getBoolOrDefault("RELAY_REQUIRE_UPSTREAM", false),
			EventBuffer:     getIntOrDefault("RELAY_EVENT_BUFFER", 256),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  getStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:  getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
			SendBuffer:      getIntOrDefault("WS_SEND_BUFFER", 256),
			PingInterval:    getDurationOrDefault("WS_PING_INTERVAL", 54*time.Second),
			PongWait:        getDurationOrDefault("WS_PONG_WAIT", 60*time.Second),
		},
		Auth: AuthConfig{
			Secret: os.Getenv("WS_AUTH_SECRET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "realtime-relay"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration. Missing upstream credentials are
// deliberately NOT an error here; the startup policy for those lives in
// main, driven by Relay.RequireUpstream.
func (c *Config) Validate() error {
	var errs []string

	if !c.Relay.Mode.Valid() {
		errs = append(errs, fmt.Sprintf("RELAY_MODE must be %q or %q", routing.ModeRooms, routing.ModeBroadcast))
	}

	if c.App.Environment == "production" && len(c.WebSocket.AllowedOrigins) == 0 {
		errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
	}

	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		errs = append(errs, "WS_PING_INTERVAL must be less than WS_PONG_WAIT")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Server.Port, ":") {
		return c.Server.Port
	}
	return ":" + c.Server.Port
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// MissingFields lists the required credential fields that are absent.
// An empty result means the upstream client can be constructed.
func (f FirebaseConfig) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"FIREBASE_PROJECT_ID", f.ProjectID},
		{"FIREBASE_PRIVATE_KEY_ID", f.PrivateKeyID},
		{"FIREBASE_PRIVATE_KEY", f.PrivateKey},
		{"FIREBASE_CLIENT_EMAIL", f.ClientEmail},
	}
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// ServiceAccountJSON assembles the credential fields into the JSON document
// the Google client libraries expect.
func (f FirebaseConfig) ServiceAccountJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":                        "service_account",
		"project_id":                  f.ProjectID,
		"private_key_id":              f.PrivateKeyID,
		"private_key":                 f.PrivateKey,
		"client_email":                f.ClientEmail,
		"client_id":                   f.ClientID,
		"auth_uri":                    f.AuthURI,
		"token_uri":                   f.TokenURI,
		"auth_provider_x509_cert_url": f.AuthProviderCertURL,
		"client_x509_cert_url":        f.ClientCertURL,
	})
}

// normalizePrivateKey undoes the literal "\n" escaping that PEM keys pick up
// when stored in single-line environment variables.
func normalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %s, Mode: %s, Project: %s, Key: [REDACTED], Environment: %s}",
		c.Server.Port,
		c.Relay.Mode,
		c.Firebase.ProjectID,
		c.App.Environment,
	)
}
