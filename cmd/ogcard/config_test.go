package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ogcard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30000, cfg.Render.TimeoutMs)
	assert.Equal(t, 80, cfg.Render.JPEGQuality)
	assert.Equal(t, ImageModeInline, cfg.Image.Mode)
	assert.Equal(t, int64(defaultMaxUploadBytes), cfg.Image.MaxUploadBytes)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty path returns defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, `
server:
  addr: ":8080"
  publicBaseUrl: "http://cards.example.com"
render:
  workers: 4
  timeoutMs: 5000
image:
  mode: disk
  uploadDir: /var/lib/ogcard/uploads
style:
  badge: NEWS
  accent: "#112233"
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, 4, cfg.Render.Workers)
		assert.Equal(t, 5000, cfg.Render.TimeoutMs)
		assert.Equal(t, ImageModeDisk, cfg.Image.Mode)
		assert.Equal(t, "NEWS", cfg.Style.Badge)
		// Untouched values keep their defaults.
		assert.Equal(t, 80, cfg.Render.JPEGQuality)

		require.NoError(t, cfg.Validate())
		assert.Equal(t, 5*time.Second, cfg.Timeout())
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, "server:\n  adres: \":8080\"\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigParse)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "viewport pinned to card width",
			mutate: func(c *Config) {
				c.Render.ViewportWidth = 800
			},
			wantErr: ErrInvalidViewport,
		},
		{
			name: "viewport pinned to card height",
			mutate: func(c *Config) {
				c.Render.ViewportHeight = 600
			},
			wantErr: ErrInvalidViewport,
		},
		{
			name: "matching viewport accepted",
			mutate: func(c *Config) {
				c.Render.ViewportWidth = 1200
				c.Render.ViewportHeight = 630
			},
		},
		{
			name: "zero timeout rejected",
			mutate: func(c *Config) {
				c.Render.TimeoutMs = 0
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "quality out of range",
			mutate: func(c *Config) {
				c.Render.JPEGQuality = 101
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "zero upload cap rejected",
			mutate: func(c *Config) {
				c.Image.MaxUploadBytes = 0
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "bad style color rejected",
			mutate: func(c *Config) {
				c.Style.Accent = "red; } body { display: none"
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "unknown image mode rejected",
			mutate: func(c *Config) {
				c.Image.Mode = "s3"
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "disk mode requires base URL",
			mutate: func(c *Config) {
				c.Image.Mode = ImageModeDisk
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "disk mode with base URL accepted",
			mutate: func(c *Config) {
				c.Image.Mode = ImageModeDisk
				c.Server.PublicBaseURL = "http://localhost:3001"
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	applyEnvConfig(&envConfig{
		Addr:           ":9000",
		PublicBaseURL:  "http://cards.internal",
		Workers:        3,
		TimeoutMs:      12000,
		NoSandbox:      true,
		ImageMode:      ImageModeDisk,
		MaxUploadBytes: 1 << 20,
	}, cfg)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "http://cards.internal", cfg.Server.PublicBaseURL)
	assert.Equal(t, 3, cfg.Render.Workers)
	assert.Equal(t, 12000, cfg.Render.TimeoutMs)
	assert.True(t, cfg.Render.NoSandbox)
	assert.Equal(t, ImageModeDisk, cfg.Image.Mode)
	assert.Equal(t, int64(1<<20), cfg.Image.MaxUploadBytes)
	// Values without an env override keep their previous setting.
	assert.Equal(t, 80, cfg.Render.JPEGQuality)
}

func TestMergeFlags(t *testing.T) {
	t.Parallel()

	t.Run("flags override config", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Server.Addr = ":7000"
		err := mergeFlags(&serverFlags{
			addr:    ":7070",
			workers: 2,
			timeout: "45s",
			quality: 60,
		}, cfg)
		require.NoError(t, err)
		assert.Equal(t, ":7070", cfg.Server.Addr)
		assert.Equal(t, 2, cfg.Render.Workers)
		assert.Equal(t, 45000, cfg.Render.TimeoutMs)
		assert.Equal(t, 60, cfg.Render.JPEGQuality)
	})

	t.Run("zero flags leave config alone", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		require.NoError(t, mergeFlags(&serverFlags{}, cfg))
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("bad timeout rejected", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		err := mergeFlags(&serverFlags{timeout: "soon"}, cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("negative timeout rejected", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		err := mergeFlags(&serverFlags{timeout: "-5s"}, cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestServiceOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Server.PublicBaseURL = "http://localhost:3001"
	cfg.Render.EnginePath = "/usr/bin/chromium"
	cfg.Render.NoSandbox = true
	cfg.Image.AllowedTypes = []string{"image/png"}

	// Options must construct without panicking after Validate passes.
	require.NoError(t, cfg.Validate())
	opts := cfg.ServiceOptions()
	assert.NotEmpty(t, opts)
}
