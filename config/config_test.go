package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"ENVIRONMENT", "PORT", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
	"DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_NAME", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	"GOOGLE_SHEET_ID", "GOOGLE_SHEET_RANGE", "GOOGLE_SHEETS_API_KEY",
	"EMAIL_PROVIDER", "RESEND_API_KEY", "EMAIL_FROM", "RESEND_WEBHOOK_SECRET",
	"SESSION_SECRET", "CRON_SECRET", "ADMIN_ROLES",
	"CRON_SPEC_SCAN", "CRON_SPEC_DISPATCH", "DEFAULT_ACTIVITY_THRESHOLD", "ROLE_ALIASES_OFFICER",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "dev", cfg.Database.User)
				assert.Equal(t, "resend", cfg.Email.Provider)
				assert.Equal(t, 5, cfg.Monitor.DefaultThreshold)
				assert.Equal(t, []string{"admin"}, cfg.Auth.AdminRoles)
				assert.Contains(t, cfg.Monitor.RoleAliases["executive"], "president")
			},
		},
		{
			name: "production configuration with secrets",
			envVars: map[string]string{
				"ENVIRONMENT":           "production",
				"SERVER_PORT":           "9000",
				"DB_HOST":               "prod-db.example.com",
				"DB_PORT":               "5433",
				"SESSION_SECRET":        "session-secret",
				"CRON_SECRET":           "cron-secret",
				"RESEND_WEBHOOK_SECRET": "whsec_c2VjcmV0",
				"GOOGLE_SHEET_RANGE":    "Members!A2:D",
				"ADMIN_ROLES":           "admin, president ,",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "prod-db.example.com", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "Members!A2:D", cfg.Sheets.Range)
				assert.Equal(t, []string{"admin", "president"}, cfg.Auth.AdminRoles)
			},
		},
		{
			name: "production without cron secret",
			envVars: map[string]string{
				"ENVIRONMENT":    "production",
				"SESSION_SECRET": "session-secret",
			},
			wantErr: true,
		},
		{
			name: "production without webhook secret",
			envVars: map[string]string{
				"ENVIRONMENT":    "production",
				"SESSION_SECRET": "session-secret",
				"CRON_SECRET":    "cron-secret",
			},
			wantErr: true,
		},
		{
			name: "unsupported email provider",
			envVars: map[string]string{
				"EMAIL_PROVIDER": "pigeon",
			},
			wantErr: true,
		},
		{
			name: "custom timeouts and pool settings",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
				"DB_MAX_OPEN_CONNS":    "50",
				"DB_MAX_IDLE_CONNS":    "10",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
				assert.Equal(t, 10, cfg.Database.MaxIdleConns)
			},
		},
		{
			name: "monitor and scheduler overrides",
			envVars: map[string]string{
				"DEFAULT_ACTIVITY_THRESHOLD": "3",
				"ROLE_ALIASES_OFFICER":       "Officer,Captain",
				"CRON_SPEC_SCAN":             "0 8 * * *",
				"EMAIL_PROVIDER":             "SMTP",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.Monitor.DefaultThreshold)
				assert.Equal(t, []string{"Officer", "Captain"}, cfg.Monitor.RoleAliases["officer"])
				assert.Equal(t, "0 8 * * *", cfg.Scheduler.ScanSpec)
				assert.Equal(t, "smtp", cfg.Email.Provider)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "console",
				"METRICS_ENABLED": "false",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "console", cfg.Observability.LogFormat)
				assert.False(t, cfg.Observability.MetricsEnabled)
			},
		},
		{
			name: "database url takes precedence",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://u:p@db.internal:6543/club?sslmode=require",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://u:p@db.internal:6543/club?sslmode=require", cfg.Database.DSN())
				assert.Equal(t, "host=db.internal port=6543 database=club", cfg.Database.LogString())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}

			cfg, err := New(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable", cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
}

func TestGetEnvAsList(t *testing.T) {
	clearConfigEnv(t)
	os.Setenv("ADMIN_ROLES", " , ")
	assert.Equal(t, []string{"admin"}, getEnvAsList("ADMIN_ROLES", []string{"admin"}))
}
