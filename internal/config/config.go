// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads dobotlink settings from a YAML file, DOBOTLINK_*
// environment variables and built-in defaults, in that order of precedence
// below command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides (DOBOTLINK_SERIAL_PORT, ...)
const EnvPrefix = "DOBOTLINK"

// SerialConfig selects the serial port
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// TransportConfig selects a network bridge instead of a local port
type TransportConfig struct {
	URL      string `mapstructure:"url"`      // ws:// or wss:// serial bridge
	TCP      string `mapstructure:"tcp"`      // host:port of a raw TCP serial server
	Username string `mapstructure:"username"` // HTTP Basic auth (WebSocket only)
	Insecure bool   `mapstructure:"insecure"` // skip TLS verification
}

// EngineConfig tunes the transaction engine
type EngineConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	RateLimit    float64       `mapstructure:"rateLimit"` // transactions per second, 0 = unlimited
	RateBurst    int           `mapstructure:"rateBurst"`
}

// LumberjackConfig configures the rolling log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures log level and outputs
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint of the HTTP bridge
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// HTTPConfig configures the HTTP bridge
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// CaptureConfig configures the transaction journal
type CaptureConfig struct {
	File string `mapstructure:"file"`
}

// Config is the top-level configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	Transport TransportConfig `mapstructure:"transport"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Capture   CaptureConfig   `mapstructure:"capture"`
}

// Load reads configuration from path (any format viper understands).
// With an empty path it looks for dobotlink.yaml in the working directory
// and in $HOME/.config/dobotlink; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dobotlink")
		v.SetConfigName("dobotlink")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects settings the engine cannot use
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Engine.ReadTimeout <= 0 || c.Engine.WriteTimeout <= 0 {
		return fmt.Errorf("engine timeouts must be positive (read %v, write %v)", c.Engine.ReadTimeout, c.Engine.WriteTimeout)
	}
	if c.Engine.RateLimit < 0 {
		return fmt.Errorf("engine.rateLimit must not be negative, got %v", c.Engine.RateLimit)
	}
	if c.Transport.URL != "" && c.Transport.TCP != "" {
		return fmt.Errorf("transport.url and transport.tcp are mutually exclusive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)

	v.SetDefault("transport.url", "")
	v.SetDefault("transport.tcp", "")
	v.SetDefault("transport.username", "")
	v.SetDefault("transport.insecure", false)

	v.SetDefault("engine.readTimeout", "500ms")
	v.SetDefault("engine.writeTimeout", "500ms")
	v.SetDefault("engine.rateLimit", 0)
	v.SetDefault("engine.rateBurst", 1)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("capture.file", "")
}
