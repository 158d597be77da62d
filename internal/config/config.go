package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds every tunable of the service. Values come from defaults, then
// an optional YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	StorageDriver string `yaml:"storage_driver"`
	DBHost        string `yaml:"db_host"`
	DBPort        string `yaml:"db_port"`
	DBUser        string `yaml:"db_user"`
	DBPassword    string `yaml:"db_password"`
	DBName        string `yaml:"db_name"`
	DBSSLMode     string `yaml:"db_sslmode"`
	TxMaxAttempts int    `yaml:"tx_max_attempts"`

	ServerPort         string   `yaml:"server_port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	TokenSecret  string        `yaml:"token_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	UserCacheTTL time.Duration `yaml:"user_cache_ttl"`

	LoanPeriod          time.Duration `yaml:"loan_period"`
	PenaltyPerDay       string        `yaml:"penalty_per_day"`
	OverdueScanEnabled  bool          `yaml:"overdue_scan_enabled"`
	OverdueScanInterval time.Duration `yaml:"overdue_scan_interval"`

	RabbitURL                string        `yaml:"rabbitmq_url"`
	NotificationQueue        string        `yaml:"notification_queue"`
	NotificationMaxAttempts  int           `yaml:"notification_max_attempts"`
	NotificationRetryBackoff time.Duration `yaml:"notification_retry_backoff"`
	NotificationBuffer       int           `yaml:"notification_buffer"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		StorageDriver: StoragePostgres,
		DBHost:        "localhost",
		DBPort:        "5432",
		DBUser:        "postgres",
		DBPassword:    "password",
		DBName:        "library_catalog",
		DBSSLMode:     "disable",
		TxMaxAttempts: 5,

		ServerPort:         "8080",
		CORSAllowedOrigins: []string{"*"},

		TokenSecret:  "change-me",
		TokenTTL:     time.Hour,
		UserCacheTTL: 30 * time.Second,

		LoanPeriod:          14 * 24 * time.Hour,
		PenaltyPerDay:       "0.50",
		OverdueScanEnabled:  true,
		OverdueScanInterval: 24 * time.Hour,

		NotificationQueue:        "library.notifications",
		NotificationMaxAttempts:  3,
		NotificationRetryBackoff: 2 * time.Second,
		NotificationBuffer:       1024,
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.StorageDriver = getenv("STORAGE_DRIVER", c.StorageDriver)
	c.DBHost = getenv("DB_HOST", c.DBHost)
	c.DBPort = getenv("DB_PORT", c.DBPort)
	c.DBUser = getenv("DB_USER", c.DBUser)
	c.DBPassword = getenv("DB_PASSWORD", c.DBPassword)
	c.DBName = getenv("DB_NAME", c.DBName)
	c.DBSSLMode = getenv("DB_SSLMODE", c.DBSSLMode)
	c.ServerPort = getenv("SERVER_PORT", c.ServerPort)
	c.TokenSecret = getenv("TOKEN_SECRET", c.TokenSecret)
	c.PenaltyPerDay = getenv("PENALTY_PER_DAY", c.PenaltyPerDay)
	c.RabbitURL = getenv("RABBITMQ_URL", c.RabbitURL)
	c.NotificationQueue = getenv("NOTIFICATION_QUEUE", c.NotificationQueue)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}

	var err error
	if c.TxMaxAttempts, err = getenvInt("TX_MAX_ATTEMPTS", c.TxMaxAttempts); err != nil {
		return err
	}
	if c.NotificationMaxAttempts, err = getenvInt("NOTIFICATION_MAX_ATTEMPTS", c.NotificationMaxAttempts); err != nil {
		return err
	}
	if c.NotificationBuffer, err = getenvInt("NOTIFICATION_BUFFER", c.NotificationBuffer); err != nil {
		return err
	}
	if c.OverdueScanEnabled, err = getenvBool("OVERDUE_SCAN_ENABLED", c.OverdueScanEnabled); err != nil {
		return err
	}
	if c.TokenTTL, err = getenvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.UserCacheTTL, err = getenvDuration("USER_CACHE_TTL", c.UserCacheTTL); err != nil {
		return err
	}
	if c.LoanPeriod, err = getenvDuration("LOAN_PERIOD", c.LoanPeriod); err != nil {
		return err
	}
	if c.OverdueScanInterval, err = getenvDuration("OVERDUE_SCAN_INTERVAL", c.OverdueScanInterval); err != nil {
		return err
	}
	if c.NotificationRetryBackoff, err = getenvDuration("NOTIFICATION_RETRY_BACKOFF", c.NotificationRetryBackoff); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.TokenSecret == "" {
		return fmt.Errorf("token secret must not be empty")
	}
	if c.LoanPeriod <= 0 {
		return fmt.Errorf("loan period must be positive")
	}
	if c.OverdueScanEnabled && c.OverdueScanInterval <= 0 {
		return fmt.Errorf("overdue scan interval must be positive")
	}
	if c.NotificationMaxAttempts <= 0 {
		return fmt.Errorf("notification max attempts must be positive")
	}
	if c.TxMaxAttempts <= 0 {
		return fmt.Errorf("transaction max attempts must be positive")
	}
	return nil
}

// GetDBConnectionString returns the lib/pq connection string.
func (c *Config) GetDBConnectionString() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
