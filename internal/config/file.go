package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type serverFile struct {
	Addr                     string  `toml:"addr"`
	AdminAddr                string  `toml:"admin_addr"`
	GroupID                  string  `toml:"group_id"`
	OutputDir                string  `toml:"output_dir"`
	PersistEnabled           bool    `toml:"persist_enabled"`
	ReadTimeout              string  `toml:"read_timeout"`
	WriteTimeout             string  `toml:"write_timeout"`
	FetchTimeout             string  `toml:"fetch_timeout"`
	MaxPayloadBytes          int64   `toml:"max_payload_bytes"`
	MaxSessions              int     `toml:"max_sessions"`
	NewsAPIBaseURL           string  `toml:"newsapi_base_url"`
	NewsAPIPageSize          int     `toml:"newsapi_page_size"`
	NewsAPITimeout           string  `toml:"newsapi_timeout"`
	NewsAPIRequestsPerSecond float64 `toml:"newsapi_requests_per_second"`
}

type clientFile struct {
	Addr            string `toml:"addr"`
	Name            string `toml:"name"`
	ConnectAttempts int    `toml:"connect_attempts"`
	ConnectTimeout  string `toml:"connect_timeout"`
	ListLimit       int    `toml:"list_limit"`
}

func overlayServerFile(path string, cfg *ServerConfig) error {
	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("group_id") {
		if v := strings.TrimSpace(raw.GroupID); v != "" {
			cfg.GroupID = v
		}
	}
	if meta.IsDefined("output_dir") {
		cfg.OutputDir = strings.TrimSpace(raw.OutputDir)
	}
	if meta.IsDefined("persist_enabled") {
		cfg.PersistEnabled = raw.PersistEnabled
	}
	if meta.IsDefined("read_timeout") {
		if cfg.ReadTimeout, err = parseDuration("read_timeout", raw.ReadTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.WriteTimeout, err = parseDuration("write_timeout", raw.WriteTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("fetch_timeout") {
		if cfg.FetchTimeout, err = parseDuration("fetch_timeout", raw.FetchTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return fmt.Errorf("%w: max_payload_bytes out of range", ErrInvalidConfig)
		}
		cfg.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}
	if meta.IsDefined("max_sessions") {
		cfg.MaxSessions = raw.MaxSessions
	}
	if meta.IsDefined("newsapi_base_url") {
		cfg.NewsAPI.BaseURL = strings.TrimSpace(raw.NewsAPIBaseURL)
	}
	if meta.IsDefined("newsapi_page_size") {
		cfg.NewsAPI.PageSize = raw.NewsAPIPageSize
	}
	if meta.IsDefined("newsapi_timeout") {
		if cfg.NewsAPI.Timeout, err = parseDuration("newsapi_timeout", raw.NewsAPITimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("newsapi_requests_per_second") {
		cfg.NewsAPI.RequestsPerSecond = raw.NewsAPIRequestsPerSecond
	}
	return nil
}

func overlayClientFile(path string, cfg *ClientConfig) error {
	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("connect_attempts") {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}
	if meta.IsDefined("connect_timeout") {
		if cfg.ConnectTimeout, err = parseDuration("connect_timeout", raw.ConnectTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("list_limit") {
		cfg.ListLimit = raw.ListLimit
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
