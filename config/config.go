package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/cfaccess/access"
	"github.com/upb/cfaccess/utils"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Access        AccessConfig
	Observability ObservabilityConfig
	UpstreamURL   string `validate:"omitempty,url"`
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int `validate:"min=1,max=65535"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Explicit browser origins allowed to make credentialed requests; empty disables CORS
	CORSAllowedOrigins []string `validate:"dive,url"`
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	InitSchema       bool
}

// AccessConfig holds the edge access authentication settings
type AccessConfig struct {
	AuthURL            string `validate:"omitempty,url"`
	Audience           string
	RequireAccount     bool
	AssignAccount      bool
	Contexts           string
	Obfuscate          bool
	SiteContext        string `validate:"required"`
	HTTPTimeout        time.Duration
	KeySetTTL          time.Duration
	NegativeTTL        time.Duration
	MinRefreshInterval time.Duration
	ClockSkew          time.Duration `validate:"min=0"`
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),

			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		Database: loadDatabaseConfig(),
		Access: AccessConfig{
			AuthURL:            getEnv("CFACCESS_AUTH_URL", ""),
			Audience:           getEnv("CFACCESS_AUTH_AUD", ""),
			RequireAccount:     getEnvAsBool("CFACCESS_REQUIRE_ACCOUNT", false),
			AssignAccount:      getEnvAsBool("CFACCESS_ASSIGN_ACCOUNT", false),
			Contexts:           getEnv("CFACCESS_CONTEXTS", ""),
			Obfuscate:          getEnvAsBool("CFACCESS_OBFUSCATE", true),
			SiteContext:        getEnv("CFACCESS_SITE_CONTEXT", "web"),
			HTTPTimeout:        getEnvAsDuration("CFACCESS_HTTP_TIMEOUT", 10*time.Second),
			KeySetTTL:          getEnvAsDuration("CFACCESS_KEYSET_TTL", 10*time.Minute),
			NegativeTTL:        getEnvAsDuration("CFACCESS_NEGATIVE_TTL", 30*time.Second),
			MinRefreshInterval: getEnvAsDuration("CFACCESS_MIN_REFRESH_INTERVAL", 30*time.Second),
			ClockSkew:          getEnvAsDuration("CFACCESS_CLOCK_SKEW", 0),
		},
		UpstreamURL: getEnv("UPSTREAM_URL", ""),
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set.
// A missing provider URL or audience is not an error: requests fail closed.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	if c.Access.RequireAccount && !c.Database.Enabled() {
		return fmt.Errorf("database configuration required when CFACCESS_REQUIRE_ACCOUNT is set: set DATABASE_URL or DB_HOST")
	}
	if c.Database.Enabled() && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	for _, origin := range c.Server.CORSAllowedOrigins {
		if strings.Contains(origin, "*") {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must list explicit origins, got %q", origin)
		}
	}

	if c.IsProduction() && c.Access.AuthURL == "" {
		return fmt.Errorf("CFACCESS_AUTH_URL is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	if err := utils.ValidateOneOf(c.Observability.LogFormat, "LOG_FORMAT", []string{"json", "console", "text"}); err != nil {
		return err
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Settings converts the access configuration into pipeline settings
func (c *AccessConfig) Settings() access.Settings {
	return access.Settings{
		ProviderURL:    c.AuthURL,
		Audience:       c.Audience,
		RequireAccount: c.RequireAccount,
		AssignAccount:  c.AssignAccount,
		Contexts:       access.ParseContexts(c.Contexts),
		Obfuscate:      c.Obfuscate,
	}
}

// CacheConfig returns the key-set cache timings
func (c *AccessConfig) CacheConfig() access.CacheConfig {
	return access.CacheConfig{
		TTL:                c.KeySetTTL,
		NegativeTTL:        c.NegativeTTL,
		MinRefreshInterval: c.MinRefreshInterval,
	}
}

// Enabled reports whether an account database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Leaving both unset disables account lookups.
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      getEnvAsBool("DB_INIT_SCHEMA", false),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}

	cfg.Host = getEnv("DB_HOST", "")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

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

// getEnvAsList splits a comma-separated variable, dropping blanks and duplicates
func getEnvAsList(key string) []string {
	values := access.ParseContexts(os.Getenv(key))
	if len(values) == 0 {
		return nil
	}
	return values
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
