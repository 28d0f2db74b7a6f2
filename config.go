package dbquery

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config describes a backend target. It feeds Open, which resolves the
// dialect through the driver registry.
type Config struct {
	// Dialect is the backend name: "sqlite", "postgres" or "mysql".
	Dialect string `yaml:"dialect"`
	// DSN is the backend-specific data source name.
	DSN string `yaml:"dsn"`
	// Retry is the number of attempts a call makes before giving up.
	Retry int `yaml:"retry"`
}

// Validate checks the configuration for the fields Open needs.
func (c Config) Validate() error {
	if c.Dialect == "" {
		return fmt.Errorf("dbquery: config: dialect is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("dbquery: config: dsn is required")
	}
	if c.Retry < 0 {
		return fmt.Errorf("dbquery: config: retry must not be negative, got %d", c.Retry)
	}
	return nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("dbquery: config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("dbquery: config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromEnv builds a Config from DBQUERY_DIALECT, DBQUERY_DSN and
// DBQUERY_RETRY. Any given .env files are loaded first; already-set process
// variables win over file values.
func ConfigFromEnv(files ...string) (Config, error) {
	if len(files) > 0 {
		_ = godotenv.Load(files...)
	} else {
		_ = godotenv.Load()
	}
	cfg := Config{
		Dialect: getEnv("DBQUERY_DIALECT", ""),
		DSN:     getEnv("DBQUERY_DSN", ""),
		Retry:   getEnvInt("DBQUERY_RETRY", 0),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
