package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// cliConfig carries the settings the mcrcon command needs to reach a server. Connection
// establishment and retry policy live here, outside the rcon package, which only consumes the
// resulting stream.
type cliConfig struct {
	Address         string
	Password        string
	Timeout         time.Duration
	LogLevel        string
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

type fileConfig struct {
	Address         string `toml:"address"`
	Password        string `toml:"password"`
	Timeout         string `toml:"timeout"`
	LogLevel        string `toml:"log_level"`
	ConnectAttempts int    `toml:"connect_attempts"`
	ConnectBackoff  string `toml:"connect_backoff"`
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Address:         "localhost:25575",
		Timeout:         15 * time.Second,
		LogLevel:        "info",
		ConnectAttempts: 3,
		ConnectBackoff:  500 * time.Millisecond,
	}
}

func loadCLIConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load mcrcon config: %w", err)
	}

	if meta.IsDefined("address") {
		addr := strings.TrimSpace(raw.Address)
		if addr != "" {
			cfg.Address = addr
		}
	}

	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}

	if meta.IsDefined("connect_attempts") {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}

	if meta.IsDefined("connect_backoff") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectBackoff))
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse connect_backoff: %w", err)
		}
		cfg.ConnectBackoff = d
	}

	if err := validateCLIConfig(cfg); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func validateCLIConfig(cfg cliConfig) error {
	if cfg.Address == "" {
		return fmt.Errorf("mcrcon config: address must not be empty")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("mcrcon config: timeout must be positive")
	}
	if cfg.ConnectAttempts < 1 {
		return fmt.Errorf("mcrcon config: connect_attempts must be at least 1")
	}
	if cfg.ConnectBackoff < 0 {
		return fmt.Errorf("mcrcon config: connect_backoff must not be negative")
	}
	return nil
}
