// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.WriteTimeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dobotlink.yaml")
	err := os.WriteFile(path, []byte(`
serial:
  port: /dev/ttyUSB0
  baud: 9600
engine:
  readTimeout: 1s
  rateLimit: 20
logging:
  level: debug
  file:
    filename: /tmp/dobotlink.log
`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, time.Second, cfg.Engine.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, 20.0, cfg.Engine.RateLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/dobotlink.log", cfg.Logging.File.Filename)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOBOTLINK_SERIAL_PORT", "/dev/ttyACM3")
	t.Setenv("DOBOTLINK_ENGINE_READTIMEOUT", "2s")

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM3", cfg.Serial.Port)
	assert.Equal(t, 2*time.Second, cfg.Engine.ReadTimeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero baud", func(c *Config) { c.Serial.Baud = 0 }},
		{"zero read timeout", func(c *Config) { c.Engine.ReadTimeout = 0 }},
		{"negative rate", func(c *Config) { c.Engine.RateLimit = -1 }},
		{"two bridges", func(c *Config) { c.Transport.URL = "ws://x"; c.Transport.TCP = "x:1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
