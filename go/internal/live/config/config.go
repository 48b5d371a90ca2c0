// Package config loads the live client settings from an optional YAML file
// overlaid by LIVE_* and DB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

var ErrMissingSetting = errors.New("missing required setting")

type Config struct {
	BaseURL       string `yaml:"base_url"`
	GameID        string `yaml:"game_id"`
	Username      string `yaml:"username"`
	CSRFToken     string `yaml:"csrf_token"`
	SessionCookie string `yaml:"session_cookie"`
	Observer      bool   `yaml:"observer"`
	LogLevel      string `yaml:"log_level"`

	Transport string `yaml:"transport"`
	NATS      struct {
		URL    string `yaml:"url"`
		Stream string `yaml:"stream"`
	} `yaml:"nats"`

	TickInterval   time.Duration `yaml:"tick_interval"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	InspectAddr    string        `yaml:"inspect_addr"`

	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds Postgres connection settings for the flash store.
// Without a host the in-memory store is used.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a Postgres flash store is configured
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Default returns the built-in settings
func Default() Config {
	cfg := Config{
		BaseURL:        "http://localhost:8000",
		LogLevel:       "info",
		Transport:      TransportWebSocket,
		TickInterval:   250 * time.Millisecond,
		CommandTimeout: 30 * time.Second,
	}
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.Database = DatabaseConfig{
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "bizmonopoly",
		SSLMode:  "disable",
	}
	return cfg
}

// Load reads path if it is not empty, then applies the environment
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnv("LIVE_BASE_URL", c.BaseURL)
	c.GameID = getEnv("LIVE_GAME_ID", c.GameID)
	c.Username = getEnv("LIVE_USERNAME", c.Username)
	c.CSRFToken = getEnv("LIVE_CSRF_TOKEN", c.CSRFToken)
	c.SessionCookie = getEnv("LIVE_SESSION_COOKIE", c.SessionCookie)
	c.Observer = getEnvAsBool("LIVE_OBSERVER", c.Observer)
	c.LogLevel = getEnv("LIVE_LOG_LEVEL", c.LogLevel)
	c.Transport = strings.ToLower(getEnv("LIVE_TRANSPORT", c.Transport))
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Stream = getEnv("LIVE_NATS_STREAM", c.NATS.Stream)
	c.TickInterval = getEnvAsDuration("LIVE_TICK_INTERVAL", c.TickInterval)
	c.CommandTimeout = getEnvAsDuration("LIVE_COMMAND_TIMEOUT", c.CommandTimeout)
	c.InspectAddr = getEnv("LIVE_INSPECT_ADDR", c.InspectAddr)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
}

// Validate checks the settings a session cannot start without
func (c Config) Validate() error {
	if c.GameID == "" {
		return fmt.Errorf("%w: game_id", ErrMissingSetting)
	}
	if _, err := uuid.Parse(c.GameID); err != nil {
		return fmt.Errorf("invalid game_id %q: %w", c.GameID, err)
	}
	if c.Username == "" {
		return fmt.Errorf("%w: username", ErrMissingSetting)
	}
	switch c.Transport {
	case TransportWebSocket, TransportNATS:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.TickInterval <= 0 || c.TickInterval >= time.Second {
		return fmt.Errorf("tick_interval must be between 0 and 1s, got %s", c.TickInterval)
	}
	return nil
}

// ParsedGameID returns the game id; call after Validate
func (c Config) ParsedGameID() uuid.UUID {
	return uuid.MustParse(c.GameID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
