// Package config loads newsd and newsclient settings: built-in defaults,
// then an optional TOML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("config: invalid")

type NewsAPIConfig struct {
	BaseURL           string        `env:"NEWS_API_BASE_URL"`
	APIKey            string        `env:"NEWS_API_KEY"`
	PageSize          int           `env:"NEWS_API_PAGE_SIZE"`
	Timeout           time.Duration `env:"NEWS_API_TIMEOUT"`
	RequestsPerSecond float64       `env:"NEWS_API_RPS"`
}

type ServerConfig struct {
	Addr            string        `env:"NEWSWIRE_ADDR"`
	AdminAddr       string        `env:"NEWSWIRE_ADMIN_ADDR"`
	AdminToken      string        `env:"NEWSWIRE_ADMIN_TOKEN"`
	GroupID         string        `env:"NEWSWIRE_GROUP_ID"`
	OutputDir       string        `env:"NEWSWIRE_OUTPUT_DIR"`
	PersistEnabled  bool          `env:"NEWSWIRE_PERSIST"`
	ReadTimeout     time.Duration `env:"NEWSWIRE_READ_TIMEOUT"`
	WriteTimeout    time.Duration `env:"NEWSWIRE_WRITE_TIMEOUT"`
	FetchTimeout    time.Duration `env:"NEWSWIRE_FETCH_TIMEOUT"`
	MaxPayloadBytes uint32        `env:"NEWSWIRE_MAX_PAYLOAD_BYTES"`
	MaxSessions     int           `env:"NEWSWIRE_MAX_SESSIONS"`
	NewsAPI         NewsAPIConfig
}

type ClientConfig struct {
	Addr            string        `env:"NEWSWIRE_ADDR"`
	Name            string        `env:"NEWSWIRE_NAME"`
	ConnectAttempts int           `env:"NEWSWIRE_CONNECT_ATTEMPTS"`
	ConnectTimeout  time.Duration `env:"NEWSWIRE_CONNECT_TIMEOUT"`
	ListLimit       int           `env:"NEWSWIRE_LIST_LIMIT"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "127.0.0.1:5000",
		GroupID:         "GB5",
		OutputDir:       "output",
		PersistEnabled:  true,
		FetchTimeout:    15 * time.Second,
		MaxPayloadBytes: 8 << 20,
		NewsAPI: NewsAPIConfig{
			BaseURL:           "https://newsapi.org/v2",
			PageSize:          15,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
		},
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:            "127.0.0.1:5000",
		ConnectAttempts: 3,
		ConnectTimeout:  5 * time.Second,
		ListLimit:       15,
	}
}

// LoadServerConfig resolves server settings. An empty path skips the file.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if strings.TrimSpace(path) != "" {
		if err := overlayServerFile(path, &cfg); err != nil {
			return ServerConfig{}, fmt.Errorf("load newsd config: %w", err)
		}
	}
	if err := parseEnv(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("load newsd config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadClientConfig resolves client settings. An empty path skips the file.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if strings.TrimSpace(path) != "" {
		if err := overlayClientFile(path, &cfg); err != nil {
			return ClientConfig{}, fmt.Errorf("load newsclient config: %w", err)
		}
	}
	if err := parseEnv(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("load newsclient config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if c.PersistEnabled && strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("%w: output_dir is required when persist_enabled", ErrInvalidConfig)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.FetchTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("%w: max_sessions must not be negative", ErrInvalidConfig)
	}
	if c.NewsAPI.PageSize < 1 || c.NewsAPI.PageSize > 100 {
		return fmt.Errorf("%w: newsapi_page_size must be in 1..100", ErrInvalidConfig)
	}
	if c.NewsAPI.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: newsapi_requests_per_second must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if c.ConnectAttempts < 1 {
		return fmt.Errorf("%w: connect_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.ListLimit < 1 {
		return fmt.Errorf("%w: list_limit must be at least 1", ErrInvalidConfig)
	}
	return nil
}

func parseEnv(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}
	return nil
}
