package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/alnah/go-ogcard"
	"github.com/alnah/go-ogcard/internal/uploads"
	"github.com/alnah/go-ogcard/internal/yamlutil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownGrace is how long in-flight renders get to finish after a
// termination signal.
const shutdownGrace = 15 * time.Second

func main() {
	flags := &serverFlags{}
	fs := newFlagSet(flags)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.version {
		fmt.Printf("ogcard %s\n", Version)
		return
	}

	log := newLogger(flags)

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	if err := run(flags, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Verbose enables debug lines,
// quiet drops everything but errors.
func newLogger(flags *serverFlags) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case flags.verbose:
		level = slog.LevelDebug
	case flags.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(flags *serverFlags, log *slog.Logger) error {
	warnUnknownEnvVars(os.Stderr)

	envCfg, err := loadEnvConfig()
	if err != nil {
		return err
	}

	configPath := flags.config
	if configPath == "" {
		configPath = envCfg.ConfigPath
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	applyEnvConfig(envCfg, cfg)
	if err := mergeFlags(flags, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if flags.verbose {
		if dump, err := yamlutil.Marshal(cfg); err == nil {
			log.Debug("effective configuration", "config", string(dump))
		}
	}

	poolSize := ogcard.ResolvePoolSize(cfg.Render.Workers)
	pool := ogcard.NewRenderPool(poolSize, cfg.ServiceOptions()...)
	defer func() {
		if err := pool.Close(); err != nil {
			log.Warn("closing render pool", "error", err)
		}
	}()

	srv := &server{
		log:            log,
		pool:           pool,
		imageMode:      cfg.Image.Mode,
		maxUploadBytes: cfg.Image.MaxUploadBytes,
		allowedTypes:   allowedTypeSet(cfg.Image.AllowedTypes),
	}
	if cfg.Image.Mode == ImageModeDisk {
		store, err := uploads.NewStore(cfg.Image.UploadDir)
		if err != nil {
			return fmt.Errorf("initializing upload store: %w", err)
		}
		srv.store = store
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.routes(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			"addr", cfg.Server.Addr,
			"workers", poolSize,
			"imageMode", cfg.Image.Mode,
			"version", Version,
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "grace", shutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
