package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// ConfigDir is the directory under ~/.config holding the config file
	ConfigDir = "kalender"

	// ConfigFileName is the name of the config file
	ConfigFileName = "config.toml"

	defaultLanguage    = "de"
	defaultLogLevel    = "info"
	defaultServerHost  = "127.0.0.1"
	defaultServerPort  = 8420
	defaultRemindSpec  = "@every 1m"
	defaultRemindAhead = 15 * time.Minute
)

// Config is the resolved configuration after defaults were applied.
type Config struct {
	Database    string
	Language    string
	LogLevel    string
	ServerHost  string
	ServerPort  int
	RemindSpec  string
	RemindAhead time.Duration
}

// configFile is the raw TOML structure
type configFile struct {
	Database string       `toml:"database"`
	Language string       `toml:"language"`
	Log      logConfig    `toml:"log"`
	Server   serverConfig `toml:"server"`
}

type logConfig struct {
	Level string `toml:"level"`
}

type serverConfig struct {
	Host        string `toml:"host"`
	Port        *int   `toml:"port"`
	Remind      string `toml:"remind"`
	RemindAhead string `toml:"remind_ahead"`
}

func DefaultConfig(homeDir string) *Config {
	return &Config{
		Database:    filepath.Join(homeDir, ".local", "share", "kalender", "calendar.db"),
		Language:    defaultLanguage,
		LogLevel:    defaultLogLevel,
		ServerHost:  defaultServerHost,
		ServerPort:  defaultServerPort,
		RemindSpec:  defaultRemindSpec,
		RemindAhead: defaultRemindAhead,
	}
}

// DefaultConfigPath returns ~/.config/kalender/config.toml.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, ".config", ConfigDir, ConfigFileName)
}

// LoadConfig reads the config file at path on top of the defaults.
// A missing file is not an error.
func LoadConfig(path, homeDir string) (*Config, error) {
	cfg := DefaultConfig(homeDir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var raw configFile
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config TOML: %w", err)
	}

	if raw.Database != "" {
		cfg.Database = expandHome(raw.Database, homeDir)
	}
	if raw.Language != "" {
		if !SupportedLanguage(raw.Language) {
			return nil, fmt.Errorf("unsupported language %q, use de or en", raw.Language)
		}
		cfg.Language = raw.Language
	}
	if raw.Log.Level != "" {
		cfg.LogLevel = raw.Log.Level
	}
	if raw.Server.Host != "" {
		cfg.ServerHost = raw.Server.Host
	}
	if raw.Server.Port != nil {
		if *raw.Server.Port < 1 || *raw.Server.Port > 65535 {
			return nil, fmt.Errorf("invalid server port %d", *raw.Server.Port)
		}
		cfg.ServerPort = *raw.Server.Port
	}
	if raw.Server.Remind != "" {
		cfg.RemindSpec = raw.Server.Remind
	}
	if raw.Server.RemindAhead != "" {
		d, err := time.ParseDuration(raw.Server.RemindAhead)
		if err != nil {
			return nil, fmt.Errorf("invalid remind_ahead: %w", err)
		}
		cfg.RemindAhead = d
	}

	return cfg, nil
}

func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
