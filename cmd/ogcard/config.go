package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/alnah/go-ogcard"
	"github.com/alnah/go-ogcard/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrInvalidViewport = errors.New("viewport is fixed at 1200x630")
)

// Image delivery modes: inline embeds uploads as data URIs, disk
// persists them and lets the engine fetch them by URL.
const (
	ImageModeInline = "inline"
	ImageModeDisk   = "disk"
)

// defaultMaxUploadBytes caps multipart request bodies (10MB).
const defaultMaxUploadBytes = 10 << 20

// hexColorPattern mirrors the library's style validation so a bad
// config fails with an error instead of a panic at option time.
var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)

// Config holds all configuration for the card server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Render RenderConfig `yaml:"render"`
	Image  ImageConfig  `yaml:"image"`
	Style  StyleConfig  `yaml:"style"`
}

// ServerConfig defines the HTTP listener options.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`           // listen address (default :3001)
	PublicBaseURL  string   `yaml:"publicBaseUrl"`  // externally reachable base URL, required in disk mode
	AllowedOrigins []string `yaml:"allowedOrigins"` // CORS origins (default *)
}

// RenderConfig defines rendering pipeline options.
type RenderConfig struct {
	Workers        int    `yaml:"workers"`        // max concurrent renders (0 = auto from CPU)
	TimeoutMs      int    `yaml:"timeoutMs"`      // per-render timeout (default 30000)
	JPEGQuality    int    `yaml:"jpegQuality"`    // screenshot quality 1-100 (default 80)
	EnginePath     string `yaml:"enginePath"`     // Chrome/Chromium binary override
	NoSandbox      bool   `yaml:"noSandbox"`      // disable Chrome sandbox (containers)
	ViewportWidth  int    `yaml:"viewportWidth"`  // recognized but fixed at 1200
	ViewportHeight int    `yaml:"viewportHeight"` // recognized but fixed at 630
}

// ImageConfig defines upload handling options.
type ImageConfig struct {
	Mode           string   `yaml:"mode"`           // "inline" or "disk" (default inline)
	UploadDir      string   `yaml:"uploadDir"`      // disk mode storage dir (default uploads)
	MaxUploadBytes int64    `yaml:"maxUploadBytes"` // request body cap (default 10MB)
	AllowedTypes   []string `yaml:"allowedTypes"`   // MIME allowlist override
}

// StyleConfig defines the card styling knobs.
type StyleConfig struct {
	Badge      string `yaml:"badge"`      // badge label (default BLOGGER)
	Accent     string `yaml:"accent"`     // hex accent color
	AccentAlt  string `yaml:"accentAlt"`  // hex secondary accent color
	Background string `yaml:"background"` // hex page background
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":3001",
			AllowedOrigins: []string{"*"},
		},
		Render: RenderConfig{
			TimeoutMs:   30000,
			JPEGQuality: ogcard.DefaultJPEGQuality,
		},
		Image: ImageConfig{
			Mode:           ImageModeInline,
			UploadDir:      "uploads",
			MaxUploadBytes: defaultMaxUploadBytes,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the
// defaults. An empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints after all sources merged.
func (c *Config) Validate() error {
	if c.Render.ViewportWidth != 0 && c.Render.ViewportWidth != ogcard.CardWidth {
		return fmt.Errorf("%w: got width %d", ErrInvalidViewport, c.Render.ViewportWidth)
	}
	if c.Render.ViewportHeight != 0 && c.Render.ViewportHeight != ogcard.CardHeight {
		return fmt.Errorf("%w: got height %d", ErrInvalidViewport, c.Render.ViewportHeight)
	}
	if c.Render.TimeoutMs <= 0 {
		return fmt.Errorf("%w: timeoutMs must be positive", ErrInvalidConfig)
	}
	if c.Render.JPEGQuality < ogcard.MinJPEGQuality || c.Render.JPEGQuality > ogcard.MaxJPEGQuality {
		return fmt.Errorf("%w: jpegQuality must be between 1 and 100", ErrInvalidConfig)
	}
	if c.Image.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: maxUploadBytes must be positive", ErrInvalidConfig)
	}

	for name, color := range map[string]string{
		"style.accent":     c.Style.Accent,
		"style.accentAlt":  c.Style.AccentAlt,
		"style.background": c.Style.Background,
	} {
		if color != "" && !hexColorPattern.MatchString(color) {
			return fmt.Errorf("%w: %s must be a hex color like #ff7e5f", ErrInvalidConfig, name)
		}
	}

	switch c.Image.Mode {
	case ImageModeInline:
	case ImageModeDisk:
		if c.Server.PublicBaseURL == "" {
			return fmt.Errorf("%w: publicBaseUrl is required in disk image mode", ErrInvalidConfig)
		}
		if c.Image.UploadDir == "" {
			return fmt.Errorf("%w: uploadDir is required in disk image mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: image mode must be %q or %q, got %q",
			ErrInvalidConfig, ImageModeInline, ImageModeDisk, c.Image.Mode)
	}

	return nil
}

// Timeout returns the render timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Render.TimeoutMs) * time.Millisecond
}

// ServiceOptions translates the config into library options.
func (c *Config) ServiceOptions() []ogcard.Option {
	opts := []ogcard.Option{
		ogcard.WithTimeout(c.Timeout()),
		ogcard.WithJPEGQuality(c.Render.JPEGQuality),
		ogcard.WithStyle(ogcard.Style{
			BadgeText:  c.Style.Badge,
			Accent:     c.Style.Accent,
			AccentAlt:  c.Style.AccentAlt,
			Background: c.Style.Background,
		}),
	}
	if c.Render.EnginePath != "" {
		opts = append(opts, ogcard.WithBrowserBin(c.Render.EnginePath))
	}
	if c.Render.NoSandbox {
		opts = append(opts, ogcard.WithNoSandbox())
	}
	if c.Server.PublicBaseURL != "" {
		opts = append(opts, ogcard.WithBaseURL(c.Server.PublicBaseURL))
	}
	if len(c.Image.AllowedTypes) > 0 {
		opts = append(opts, ogcard.WithAllowedImageTypes(c.Image.AllowedTypes...))
	}
	return opts
}
