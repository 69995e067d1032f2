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
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Sheets        SheetsConfig
	Email         EmailConfig
	Auth          AuthConfig
	Scheduler     SchedulerConfig
	Monitor       MonitorConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
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
	AutoMigrate      bool
}

// SheetsConfig holds the spreadsheet collaborator configuration
type SheetsConfig struct {
	APIKey        string
	SpreadsheetID string
	Range         string // A1 notation, e.g. "Members!A2:D"
	BaseURL       string
	Timeout       time.Duration
}

// EmailConfig holds the transactional email collaborator configuration
type EmailConfig struct {
	Provider      string // resend or smtp
	APIKey        string
	BaseURL       string
	From          string
	ReplyTo       string
	Timeout       time.Duration
	WebhookSecret string
	SMTP          SMTPConfig
}

// SMTPConfig holds SMTP relay settings for the smtp provider
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	SkipTLSVerify bool
}

// AuthConfig holds session verification and cron trigger settings
type AuthConfig struct {
	SessionSecret string
	SessionIssuer string
	CronSecret    string
	AdminRoles    []string
}

// SchedulerConfig holds cron specs for the periodic jobs
type SchedulerConfig struct {
	Enabled      bool
	ScanSpec     string
	DispatchSpec string
	Timezone     string
	JobTimeout   time.Duration
}

// MonitorConfig holds the activity monitoring policy
type MonitorConfig struct {
	DefaultThreshold int
	RoleAliases      map[string][]string // template bucket -> role aliases
	SubjectPrefix    string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),
		},
		Database: loadDatabaseConfig(),
		Sheets: SheetsConfig{
			APIKey:        getEnv("GOOGLE_SHEETS_API_KEY", ""),
			SpreadsheetID: getEnv("GOOGLE_SHEET_ID", ""),
			Range:         getEnv("GOOGLE_SHEET_RANGE", ""),
			BaseURL:       getEnv("GOOGLE_SHEETS_BASE_URL", "https://sheets.googleapis.com/v4"),
			Timeout:       getEnvAsDuration("GOOGLE_SHEETS_TIMEOUT", 15*time.Second),
		},
		Email: EmailConfig{
			Provider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "resend")),
			APIKey:        getEnv("RESEND_API_KEY", ""),
			BaseURL:       getEnv("RESEND_BASE_URL", "https://api.resend.com"),
			From:          getEnv("EMAIL_FROM", ""),
			ReplyTo:       getEnv("EMAIL_REPLY_TO", ""),
			Timeout:       getEnvAsDuration("EMAIL_TIMEOUT", 15*time.Second),
			WebhookSecret: getEnv("RESEND_WEBHOOK_SECRET", ""),
			SMTP: SMTPConfig{
				Host:          getEnv("SMTP_HOST", ""),
				Port:          getEnvAsInt("SMTP_PORT", 587),
				Username:      getEnv("SMTP_USERNAME", ""),
				Password:      getEnv("SMTP_PASSWORD", ""),
				SkipTLSVerify: getEnvAsBool("SMTP_SKIP_TLS_VERIFY", false),
			},
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", ""),
			SessionIssuer: getEnv("SESSION_ISSUER", ""),
			CronSecret:    getEnv("CRON_SECRET", ""),
			AdminRoles:    getEnvAsList("ADMIN_ROLES", []string{"admin"}),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnvAsBool("SCHEDULER_ENABLED", true),
			ScanSpec:     getEnv("CRON_SPEC_SCAN", "0 9 * * 1"),
			DispatchSpec: getEnv("CRON_SPEC_DISPATCH", "*/15 * * * *"),
			Timezone:     getEnv("SCHEDULER_TIMEZONE", "UTC"),
			JobTimeout:   getEnvAsDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
		},
		Monitor: MonitorConfig{
			DefaultThreshold: getEnvAsInt("DEFAULT_ACTIVITY_THRESHOLD", 5),
			RoleAliases: map[string][]string{
				"executive": getEnvAsList("ROLE_ALIASES_EXECUTIVE", []string{"executive", "exec", "president", "vice president", "treasurer", "secretary", "board"}),
				"officer":   getEnvAsList("ROLE_ALIASES_OFFICER", []string{"officer", "coordinator", "chair", "lead", "committee"}),
				"member":    getEnvAsList("ROLE_ALIASES_MEMBER", []string{"member", "general member", "general", "associate"}),
			},
			SubjectPrefix: getEnv("EMAIL_SUBJECT_PREFIX", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set.
// Sheet range and provider keys are checked again at call time so a misconfigured
// deployment still serves the dashboard and reports the problem per operation.
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Monitor.DefaultThreshold < 0 {
		return fmt.Errorf("default activity threshold must not be negative")
	}

	switch c.Email.Provider {
	case "resend", "smtp":
	default:
		return fmt.Errorf("unsupported email provider %q", c.Email.Provider)
	}

	if !c.IsDevelopment() {
		if c.Auth.SessionSecret == "" {
			return fmt.Errorf("session secret is required outside development")
		}
		if c.Auth.CronSecret == "" {
			return fmt.Errorf("cron secret is required outside development")
		}
		if c.Email.WebhookSecret == "" {
			return fmt.Errorf("email webhook secret is required outside development")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
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

func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", true),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "club_activity"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
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

// getEnvAsList splits a comma-separated variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
