package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
)

// serverFlags holds all flags for the server.
type serverFlags struct {
	config  string
	quiet   bool
	verbose bool
	version bool

	addr    string
	baseURL string

	workers    int
	timeout    string
	quality    int
	enginePath string
	noSandbox  bool

	imageMode string
	uploadDir string
}

// newFlagSet builds the server flag set.
func newFlagSet(f *serverFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("ogcard", flag.ContinueOnError)

	fs.StringVarP(&f.config, "config", "c", "", "config file path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logging")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	fs.StringVarP(&f.addr, "addr", "a", "", "listen address (default :3001)")
	fs.StringVar(&f.baseURL, "base-url", "", "public base URL for stored uploads")

	fs.IntVarP(&f.workers, "workers", "w", 0, "max concurrent renders (0 = auto)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-render timeout (e.g. 30s)")
	fs.IntVar(&f.quality, "quality", 0, "JPEG quality (1-100)")
	fs.StringVar(&f.enginePath, "engine-path", "", "Chrome/Chromium binary path")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox")

	fs.StringVar(&f.imageMode, "image-mode", "", "image delivery: inline or disk")
	fs.StringVar(&f.uploadDir, "upload-dir", "", "upload directory for disk mode")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ogcard [flags]\n\nFlags:\n%s", fs.FlagUsages())
	}
	return fs
}

// mergeFlags merges CLI flags into config. CLI values override config
// and environment values.
func mergeFlags(f *serverFlags, cfg *Config) error {
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.baseURL != "" {
		cfg.Server.PublicBaseURL = f.baseURL
	}

	if f.workers > 0 {
		cfg.Render.Workers = f.workers
	}
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: invalid timeout %q", ErrInvalidConfig, f.timeout)
		}
		cfg.Render.TimeoutMs = int(d / time.Millisecond)
	}
	if f.quality > 0 {
		cfg.Render.JPEGQuality = f.quality
	}
	if f.enginePath != "" {
		cfg.Render.EnginePath = f.enginePath
	}
	if f.noSandbox {
		cfg.Render.NoSandbox = true
	}

	if f.imageMode != "" {
		cfg.Image.Mode = f.imageMode
	}
	if f.uploadDir != "" {
		cfg.Image.UploadDir = f.uploadDir
	}
	return nil
}
