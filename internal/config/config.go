package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds perch's runtime settings.
type Config struct {
	APIURL            string
	PollSeconds       int
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	RequestBurst      int
	UserID            int64
	LogFile           string
	LogLevel          string
	MetricsAddr       string
}

const (
	defaultConfigPath        = "~/.config/perch/config.toml"
	defaultAPIURL            = "http://127.0.0.1:8080/api"
	defaultPollSeconds       = 5
	defaultRequestTimeoutSec = 10
	defaultRequestsPerSecond = 10
	defaultRequestBurst      = 5
	defaultLogFile           = "~/.local/state/perch/perch.log"
	defaultLogLevel          = "info"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:            defaultAPIURL,
		PollSeconds:       defaultPollSeconds,
		RequestTimeout:    defaultRequestTimeoutSec * time.Second,
		RequestsPerSecond: defaultRequestsPerSecond,
		RequestBurst:      defaultRequestBurst,
		LogFile:           mustExpand(defaultLogFile),
		LogLevel:          defaultLogLevel,
	}
}

// Load locates and parses the perch config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL                string  `toml:"api_url"`
		PollSeconds           int     `toml:"poll_seconds"`
		RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
		RequestsPerSecond     float64 `toml:"requests_per_second"`
		RequestBurst          int     `toml:"request_burst"`
		UserID                int64   `toml:"user_id"`
		LogFile               string  `toml:"log_file"`
		LogLevel              string  `toml:"log_level"`
		MetricsAddr           string  `toml:"metrics_addr"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if raw.PollSeconds > 0 {
		cfg.PollSeconds = raw.PollSeconds
	}
	if raw.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(raw.RequestTimeoutSeconds) * time.Second
	}
	if raw.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = raw.RequestsPerSecond
	}
	if raw.RequestBurst > 0 {
		cfg.RequestBurst = raw.RequestBurst
	}
	if raw.UserID > 0 {
		cfg.UserID = raw.UserID
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	return cfg, nil
}

// PollInterval returns the notification poll cadence.
func (c Config) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return defaultPollSeconds * time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// LogPath returns the client log file, defaulting when unset.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogFile) == "" {
		return mustExpand(defaultLogFile)
	}
	return c.LogFile
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
