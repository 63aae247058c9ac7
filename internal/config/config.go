package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jarvis/MissionControl/api/internal/validation"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Spend     SpendConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AcquireTimeout  time.Duration
	ConnectRetries  int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	ControlPlaneSecret   string
	ControlPlaneTokenTTL time.Duration
}

// RateLimitConfig bounds requests per credential
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SpendConfig holds spend reporting defaults
type SpendConfig struct {
	DefaultMonthlyBudget float64
}

var defaults = map[string]interface{}{
	"DATABASE_URL":            "",
	"DB_HOST":                 "localhost",
	"DB_PORT":                 "5432",
	"DB_USER":                 "missioncontrol",
	"DB_PASSWORD":             "missioncontrol",
	"DB_NAME":                 "missioncontrol",
	"DB_SSLMODE":              "disable",
	"DB_MAX_OPEN_CONNS":       25,
	"DB_MAX_IDLE_CONNS":       5,
	"DB_CONN_MAX_LIFETIME":    5 * time.Minute,
	"DB_CONN_MAX_IDLE_TIME":   5 * time.Minute,
	"DB_ACQUIRE_TIMEOUT":      5 * time.Second,
	"DB_CONNECT_RETRIES":      3,
	"SERVER_HOST":             "0.0.0.0",
	"SERVER_PORT":             "8000",
	"SERVER_READ_TIMEOUT":     30 * time.Second,
	"SERVER_WRITE_TIMEOUT":    30 * time.Second,
	"SERVER_SHUTDOWN_TIMEOUT": 30 * time.Second,
	"MAX_REQUEST_BODY_BYTES":  int64(1 << 20),
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "json",
	"LOG_OUTPUT":              "stdout",
	"CORS_ALLOWED_ORIGINS":    "http://localhost:5173",
	"CORS_ALLOWED_METHODS":    "GET,POST,PATCH,OPTIONS",
	"CORS_ALLOWED_HEADERS":    "Content-Type,Authorization,X-Agent-Token,X-Control-Plane-Token,X-Request-Id",
	"CONTROL_PLANE_SECRET":    "",
	"CONTROL_PLANE_TOKEN_TTL": time.Hour,
	"RATE_LIMIT_REQUESTS":     600,
	"RATE_LIMIT_WINDOW":       time.Minute,
	"DEFAULT_MONTHLY_BUDGET":  1000.0,
}

// Load loads configuration from environment variables
func Load() *Config {
	return fromViper(newViper())
}

// LoadFile loads configuration from a YAML file, with environment variables
// taking precedence over file values.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return fromViper(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			AcquireTimeout:  v.GetDuration("DB_ACQUIRE_TIMEOUT"),
			ConnectRetries:  v.GetInt("DB_CONNECT_RETRIES"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			MaxBodyBytes:    v.GetInt64("MAX_REQUEST_BODY_BYTES"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			AllowedMethods: splitList(v.GetString("CORS_ALLOWED_METHODS")),
			AllowedHeaders: splitList(v.GetString("CORS_ALLOWED_HEADERS")),
		},
		Auth: AuthConfig{
			ControlPlaneSecret:   v.GetString("CONTROL_PLANE_SECRET"),
			ControlPlaneTokenTTL: v.GetDuration("CONTROL_PLANE_TOKEN_TTL"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Spend: SpendConfig{
			DefaultMonthlyBudget: v.GetFloat64("DEFAULT_MONTHLY_BUDGET"),
		},
	}
}

// splitList parses a comma-separated value, dropping blanks
func splitList(value string) []string {
	parts := []string{}
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate checks the settings the server cannot run without
func (c *Config) Validate() error {
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("database settings are missing: set DATABASE_URL or DB_HOST and DB_NAME")
	}
	if err := validation.ValidateDSN(c.Database.DSN(), "DATABASE_URL"); err != nil {
		return err
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.AcquireTimeout <= 0 {
		return fmt.Errorf("DB_ACQUIRE_TIMEOUT must be positive, got %s", c.Database.AcquireTimeout)
	}
	if c.Auth.ControlPlaneSecret == "" {
		return fmt.Errorf("CONTROL_PLANE_SECRET is required")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if err := validation.ValidateOrigins(c.CORS.AllowedOrigins, "CORS_ALLOWED_ORIGINS"); err != nil {
		return err
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Name, c.SSLMode)
}

// Address returns the listen address
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}
