package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envConfig holds configuration from OGCARD_* environment variables.
// Provides container-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string `env:"OGCARD_CONFIG"`

	Addr          string `env:"OGCARD_ADDR"`
	PublicBaseURL string `env:"OGCARD_PUBLIC_BASE_URL"`

	Workers     int    `env:"OGCARD_WORKERS"`
	TimeoutMs   int    `env:"OGCARD_RENDER_TIMEOUT_MS"`
	JPEGQuality int    `env:"OGCARD_JPEG_QUALITY"`
	EnginePath  string `env:"OGCARD_ENGINE_PATH"`
	NoSandbox   bool   `env:"OGCARD_NO_SANDBOX"`

	ImageMode      string `env:"OGCARD_IMAGE_MODE"`
	UploadDir      string `env:"OGCARD_UPLOAD_DIR"`
	MaxUploadBytes int64  `env:"OGCARD_MAX_UPLOAD_BYTES"`
}

// knownEnvVars lists valid OGCARD_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"OGCARD_CONFIG":            true,
	"OGCARD_ADDR":              true,
	"OGCARD_PUBLIC_BASE_URL":   true,
	"OGCARD_WORKERS":           true,
	"OGCARD_RENDER_TIMEOUT_MS": true,
	"OGCARD_JPEG_QUALITY":      true,
	"OGCARD_ENGINE_PATH":       true,
	"OGCARD_NO_SANDBOX":        true,
	"OGCARD_IMAGE_MODE":        true,
	"OGCARD_UPLOAD_DIR":        true,
	"OGCARD_MAX_UPLOAD_BYTES":  true,
}

// loadEnvConfig reads configuration from environment variables.
func loadEnvConfig() (*envConfig, error) {
	cfg := &envConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// warnUnknownEnvVars logs warnings for unrecognized OGCARD_* variables.
// Helps catch typos like OGCARD_TIMEOUT instead of OGCARD_RENDER_TIMEOUT_MS.
func warnUnknownEnvVars(w io.Writer) {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "OGCARD_") {
			name := strings.SplitN(e, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values on top of the
// config file. CLI flags are applied later and win over both.
func applyEnvConfig(e *envConfig, cfg *Config) {
	if e.Addr != "" {
		cfg.Server.Addr = e.Addr
	}
	if e.PublicBaseURL != "" {
		cfg.Server.PublicBaseURL = e.PublicBaseURL
	}
	if e.Workers > 0 {
		cfg.Render.Workers = e.Workers
	}
	if e.TimeoutMs > 0 {
		cfg.Render.TimeoutMs = e.TimeoutMs
	}
	if e.JPEGQuality > 0 {
		cfg.Render.JPEGQuality = e.JPEGQuality
	}
	if e.EnginePath != "" {
		cfg.Render.EnginePath = e.EnginePath
	}
	if e.NoSandbox {
		cfg.Render.NoSandbox = true
	}
	if e.ImageMode != "" {
		cfg.Image.Mode = e.ImageMode
	}
	if e.UploadDir != "" {
		cfg.Image.UploadDir = e.UploadDir
	}
	if e.MaxUploadBytes > 0 {
		cfg.Image.MaxUploadBytes = e.MaxUploadBytes
	}
}
