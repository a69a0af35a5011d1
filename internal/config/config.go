package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Ledger    LedgerConfig
	Reporting ReportingConfig
	WhatsApp  WhatsAppConfig
	MongoDB   MongoDBConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LedgerConfig locates the company workbooks.
type LedgerConfig struct {
	Dir       string
	BackupDir string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	BackupSchedule string
	ReportSchedule string
	Timezone       string
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API.
// Notifications are sent only when Enabled reports true.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	ReportRecipient string
	BaseURL         string
	APIVersion      string
}

// Enabled reports whether every credential needed to notify is present.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && c.ReportRecipient != ""
}

// MongoDBConfig holds settings for the optional summary archive.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// LogConfig selects the logger level.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// missing .env is fine, values may come from the environment
		_ = godotenv.Load()
	}

	ledgerDir := getenvWithDefault("LEDGER_DIR", filepath.Join("data", "chicken_stock"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Ledger: LedgerConfig{
			Dir:       ledgerDir,
			BackupDir: getenvWithDefault("BACKUP_DIR", filepath.Join(ledgerDir, "backups")),
		},
		Reporting: ReportingConfig{
			BackupSchedule: getenvWithDefault("BACKUP_CRON_SCHEDULE", "0 21 * * *"),
			ReportSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:       getenvWithDefault("TIMEZONE", "Asia/Kolkata"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			ReportRecipient: os.Getenv("WHATSAPP_REPORT_RECIPIENT"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "chicken_stock"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch {
	case c.Server.Port == "":
		return errors.New("APP_PORT must be provided")
	case c.Ledger.Dir == "":
		return errors.New("LEDGER_DIR must be provided")
	case c.Ledger.BackupDir == "":
		return errors.New("BACKUP_DIR must be provided")
	case c.Reporting.BackupSchedule == "":
		return errors.New("BACKUP_CRON_SCHEDULE must be provided")
	case c.Reporting.ReportSchedule == "":
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.MongoDB.URI != "" && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided when MONGODB_URI is set")
	}

	return nil
}

// Location resolves the configured scheduler timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Reporting.Timezone == "" {
		return nil, errors.New("TIMEZONE must be provided")
	}
	return time.LoadLocation(c.Reporting.Timezone)
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
