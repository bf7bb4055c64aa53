package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendFile   = "file"
)

// DefaultPassword is used when APP_PASSWORD is not set.
const DefaultPassword = "chronoly"

type Config struct {
	// HTTP Server
	Port                   string `yaml:"port"`
	CookieSecure           bool   `yaml:"cookie_secure"`
	RateLimitPerMinute     int    `yaml:"rate_limit_per_minute"`
	LoginAttemptsPerMinute int    `yaml:"login_attempts_per_minute"`
	// TrustedProxies are addresses or CIDRs whose X-Forwarded-For is believed.
	// Loopback is always trusted.
	TrustedProxies []string `yaml:"trusted_proxies"`

	// Gate
	AppPassword string `yaml:"app_password"`
	SessionKey  string `yaml:"session_key"`

	// Backend selection
	DataBackend   string `yaml:"data_backend"`
	SQLiteDBPath  string `yaml:"sqlite_db_path"`
	BadgerPath    string `yaml:"badger_path"`
	DataFilePath  string `yaml:"data_file_path"`
	EncryptionKey string `yaml:"encryption_key"`
	SeedFile      string `yaml:"seed_file"`

	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets export
	GoogleSpreadsheetID   string `yaml:"google_spreadsheet_id"`
	GoogleSheetName       string `yaml:"google_sheet_name"`
	GoogleCredentialsJSON string `yaml:"google_service_account_json"`
	GoogleCredentialsFile string `yaml:"google_service_account_file"`

	// Worker
	ExportInterval time.Duration `yaml:"export_interval"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	dataDir := filepath.Join(xdg.DataHome, "chronoly")
	return &Config{
		Port:                   "8080",
		RateLimitPerMinute:     60,
		LoginAttemptsPerMinute: 10,
		AppPassword:            DefaultPassword,
		DataBackend:            BackendMemory,
		SQLiteDBPath:           filepath.Join(dataDir, "chronoly.db"),
		BadgerPath:             filepath.Join(dataDir, "badger"),
		DataFilePath:           filepath.Join(dataDir, "data.enc"),
		Timezone:               "Local",
		LogLevel:               "info",
		AMQPExchange:           "chronoly",
		AMQPQueue:              "weekly_totals",
		GoogleSheetName:        "Weekly Totals",
		ExportInterval:         15 * time.Minute,
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CHRONOLY_CONFIG_PATH, then environment variables, in that order.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CHRONOLY_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.LoginAttemptsPerMinute = getEnvInt("LOGIN_ATTEMPTS_PER_MINUTE", cfg.LoginAttemptsPerMinute)
	cfg.TrustedProxies = getEnvList("TRUSTED_PROXIES", cfg.TrustedProxies)

	cfg.AppPassword = getEnv("APP_PASSWORD", cfg.AppPassword)
	cfg.SessionKey = getEnv("SESSION_KEY", cfg.SessionKey)

	cfg.DataBackend = strings.ToLower(getEnv("DATA_BACKEND", cfg.DataBackend))
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.BadgerPath = getEnv("BADGER_PATH", cfg.BadgerPath)
	cfg.DataFilePath = getEnv("DATA_FILE_PATH", cfg.DataFilePath)
	cfg.EncryptionKey = getEnv("ENCRYPTION_KEY", cfg.EncryptionKey)
	cfg.SeedFile = getEnv("SEED_FILE", cfg.SeedFile)

	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.GoogleCredentialsJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleCredentialsJSON)
	cfg.GoogleCredentialsFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", cfg.GoogleCredentialsFile)
	if cfg.GoogleCredentialsFile == "" {
		cfg.GoogleCredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}

	cfg.ExportInterval = getEnvDuration("EXPORT_INTERVAL", cfg.ExportInterval)

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Location resolves Timezone. "Local" and "" mean the process time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AMQPEnabled reports whether change events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether weekly totals go to a spreadsheet.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// SharedStore reports whether a second process opening the same store sees this
// process's writes. Only sqlite qualifies: memory lives in one process, badger
// locks its directory and the file backend decrypts once at open.
func (c *Config) SharedStore() bool {
	return c.DataBackend == BackendSQLite
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.AppPassword == "" {
		errors = append(errors, "app password cannot be empty")
	}

	// Validate data backend
	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendBadger:
		if c.BadgerPath == "" {
			errors = append(errors, "Badger path cannot be empty when using badger backend")
		}
	case BackendFile:
		if c.DataFilePath == "" {
			errors = append(errors, "data file path cannot be empty when using file backend")
		}
		if c.EncryptionKey == "" {
			errors = append(errors, "ENCRYPTION_KEY is required when using file backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends()))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be an address or CIDR", p))
			}
		}
	}

	if c.LoginAttemptsPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid login attempt limit %d: must not be negative", c.LoginAttemptsPerMinute))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
	}

	if c.ExportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 minute", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Backends lists the accepted DATA_BACKEND values.
func Backends() []string {
	return []string{BackendMemory, BackendSQLite, BackendBadger, BackendFile}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
