// Package config loads server settings from defaults, an optional YAML file
// and CODEWORDS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads, with dots
// in keys replaced by underscores: server.address is CODEWORDS_SERVER_ADDRESS.
const EnvPrefix = "CODEWORDS"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Board     BoardConfig     `mapstructure:"board"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// AllowedOrigins restricts websocket upgrades by Origin header. Empty
	// allows any origin.
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type TransportConfig struct {
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	PingInterval    time.Duration `mapstructure:"pingInterval"`
	SendBuffer      int           `mapstructure:"sendBuffer"`
	MaxMessageBytes int64         `mapstructure:"maxMessageBytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	// URL is a Postgres DSN. Empty disables the audit log.
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
}

type BoardConfig struct {
	// WordPack names a pack in the words table to deal boards from. Empty
	// uses the built-in word list.
	WordPack string `mapstructure:"wordPack"`
}

var defaults = map[string]any{
	"server.address":            ":8002",
	"server.allowedOrigins":     []string{},
	"transport.readTimeout":     "60s",
	"transport.writeTimeout":    "10s",
	"transport.pingInterval":    "30s",
	"transport.sendBuffer":      64,
	"transport.maxMessageBytes": 64 << 10,
	"log.level":                 "info",
	"log.format":                "json",
	"database.url":              "",
	"database.maxOpenConns":     10,
	"database.maxIdleConns":     10,
	"database.connMaxLifetime":  "300s",
	"database.connMaxIdleTime":  "60s",
	"board.wordPack":            "",
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:        ":8002",
			AllowedOrigins: []string{},
		},
		Transport: TransportConfig{
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			PingInterval:    30 * time.Second,
			SendBuffer:      64,
			MaxMessageBytes: 64 << 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: 300 * time.Second,
			ConnMaxIdleTime: 60 * time.Second,
		},
	}
}

// Load reads configuration from fileName (without extension) in the given
// directories, falling back to the working directory, then applies
// environment overrides. A missing file is not an error.
func Load(logger zerolog.Logger, fileName string, dirs ...string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return Config{}, fmt.Errorf("bind database url: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		logger.Debug().Str("file", fileName).Msg("config file not found, using defaults and env")
	} else {
		logger.Info().Str("file", v.ConfigFileUsed()).Msg("config file loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Server.Address == "":
		return errors.New("server.address must be set")
	case c.Transport.ReadTimeout <= 0:
		return errors.New("transport.readTimeout must be positive")
	case c.Transport.WriteTimeout <= 0:
		return errors.New("transport.writeTimeout must be positive")
	case c.Transport.PingInterval <= 0 || c.Transport.PingInterval >= c.Transport.ReadTimeout:
		return errors.New("transport.pingInterval must be positive and shorter than transport.readTimeout")
	case c.Transport.SendBuffer <= 0:
		return errors.New("transport.sendBuffer must be positive")
	case c.Transport.MaxMessageBytes <= 0:
		return errors.New("transport.maxMessageBytes must be positive")
	case c.Board.WordPack != "" && c.Database.URL == "":
		return errors.New("board.wordPack requires database.url")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
