package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"levelup/internal/storage"
)

const envPrefix = "LEVELUP"

// Config holds everything the CLI needs to build a service.
type Config struct {
	DBPath   string `mapstructure:"db_path"`
	User     string `mapstructure:"user"`
	Timezone string `mapstructure:"timezone"`
	Log      Log    `mapstructure:"log"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

// Dir returns the directory searched for config.{yaml,toml,json}.
func Dir() string {
	if x := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); x != "" {
		return filepath.Join(x, "levelup")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "levelup")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "levelup")
}

func setDefaults(v *viper.Viper) {
	dbPath, err := storage.ResolveDBPath()
	if err != nil {
		dbPath = filepath.Join(dataDir(), "levelup.db")
	}
	v.SetDefault("db_path", dbPath)
	v.SetDefault("user", storage.MainPlayerKey)
	v.SetDefault("timezone", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dataDir(), "levelup.log"))
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.console", false)
}

// Load reads the config file (explicit path or the default search dir), then
// applies LEVELUP_* environment overrides. A missing default file is fine; a
// missing explicit file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Dir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	Normalize(&cfg)
	return &cfg, nil
}

var levels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Normalize trims values and replaces invalid ones with defaults.
func Normalize(cfg *Config) {
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	if cfg.DBPath == "" {
		if p, err := storage.DefaultDBPath(); err == nil {
			cfg.DBPath = p
		}
	}
	cfg.User = strings.TrimSpace(cfg.User)
	if cfg.User == "" {
		cfg.User = storage.MainPlayerKey
	}
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			cfg.Timezone = ""
		}
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if !levels[cfg.Log.Level] {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups < 0 {
		cfg.Log.MaxBackups = 0
	}
	if cfg.Log.MaxAgeDays < 0 {
		cfg.Log.MaxAgeDays = 0
	}
}

// Location resolves the configured zone; empty means the machine's local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
