package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"stock-chatbot/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file
const (
	EnvTelegramToken    = "TELEGRAM_BOT_TOKEN"
	EnvPrivilegedUserID = "PRIVILEGED_USER_ID"
)

var symbolsRefPattern = regexp.MustCompile(`^\w+\.\w+$`)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file. A `.env` file in
// the working directory, when present, is loaded first so secrets can stay out
// of the YAML.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 3. Secrets from the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Default returns a valid configuration with every default applied and no
// external transport enabled.
func Default() *Config {
	c := &Config{MConfig: &models.MConfig{
		Name:     "stock-chatbot",
		Host:     "127.0.0.1",
		Port:     8080,
		LogLevel: "INFO",
		Storage:  models.MStorageConfig{DBType: "none"},
	}}
	c.ApplyDefaults()
	return c
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills every zero value that has a sensible default
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcHost == "" {
		c.GrpcHost = "127.0.0.1"
	}
	if c.Telegram.PollTimeoutSeconds == 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
	if c.Telegram.MaxConcurrent == 0 {
		c.Telegram.MaxConcurrent = 8
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 7
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 5
	}
	if c.Quote.FetchTimeoutSeconds == 0 {
		c.Quote.FetchTimeoutSeconds = 5
	}
	if c.Quote.NaverPollingURL == "" {
		c.Quote.NaverPollingURL = "https://polling.finance.naver.com/api/realtime"
	}
	if c.Quote.NaverPopularURL == "" {
		c.Quote.NaverPopularURL = "https://m.stock.naver.com/api/stocks/popular/DOMESTIC"
	}
	if c.Quote.YahooChartURL == "" {
		c.Quote.YahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = 10
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 5
	}
	if c.Cache.PurgeIntervalSeconds == 0 {
		c.Cache.PurgeIntervalSeconds = 60
	}
	if c.Alert.IntervalSeconds == 0 {
		c.Alert.IntervalSeconds = 10
	}
	if c.Alert.SnapshotScope == "" {
		c.Alert.SnapshotScope = "symbol"
	}
	if c.Monitor.IntervalSeconds == 0 {
		c.Monitor.IntervalSeconds = 10
	}
	if c.Scheduler.MaxConcurrency == 0 {
		c.Scheduler.MaxConcurrency = 4
	}
	if c.Scheduler.JournalCleanupMinutes == 0 {
		c.Scheduler.JournalCleanupMinutes = 60
	}
	if c.Delivery.MaxPayload == 0 {
		c.Delivery.MaxPayload = 4096
	}
	if c.Delivery.PartDelayMS == 0 {
		c.Delivery.PartDelayMS = 100
	}
	if c.CLI.MaxLines == 0 {
		c.CLI.MaxLines = 20
	}
	if c.CLI.TimeoutSeconds == 0 {
		c.CLI.TimeoutSeconds = 30
	}
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides secrets from the process environment
func (c *Config) ApplyEnv() error {
	if token := strings.TrimSpace(os.Getenv(EnvTelegramToken)); token != "" {
		c.Telegram.Token = token
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPrivilegedUserID)); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", EnvPrivilegedUserID, raw, err)
		}
		c.PrivilegedUserID = id
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Telegram
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram is enabled but no token is set (yaml telegram.token or %s)", EnvTelegramToken)
	}

	// Storage
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
		if c.Storage.SymbolsRef != "" && !symbolsRefPattern.MatchString(c.Storage.SymbolsRef) {
			return fmt.Errorf("symbols_ref must look like schema.table, got '%s'", c.Storage.SymbolsRef)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be greater than 0")
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Lifetimes and intervals
	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("session ttl must be greater than 0")
	}
	if c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache ttl must be greater than 0")
	}
	if c.Cache.PurgeIntervalSeconds <= 0 {
		return fmt.Errorf("cache purge interval must be greater than 0")
	}
	if c.Alert.IntervalSeconds <= 0 || c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("sweep intervals must be greater than 0")
	}
	if c.Alert.SnapshotScope != "symbol" && c.Alert.SnapshotScope != "user" {
		return fmt.Errorf("alert snapshot scope must be 'symbol' or 'user', got '%s'", c.Alert.SnapshotScope)
	}
	if c.Scheduler.MaxConcurrency <= 0 {
		return fmt.Errorf("scheduler concurrency must be greater than 0")
	}

	// Delivery
	if c.Delivery.MaxPayload < 64 {
		return fmt.Errorf("max payload must be at least 64, got %d", c.Delivery.MaxPayload)
	}
	if c.Delivery.PartDelayMS < 0 {
		return fmt.Errorf("part delay cannot be negative")
	}

	// CLI passthrough
	if c.CLI.MaxLines <= 0 || c.CLI.TimeoutSeconds <= 0 {
		return fmt.Errorf("cli caps must be greater than 0")
	}

	// Symbol directory
	for i, sym := range c.Symbols {
		if sym.Name == "" || sym.Code == "" {
			return fmt.Errorf("symbol %d must have a name and a code", i)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
