package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alnah/go-ogcard"
	"github.com/alnah/go-ogcard/internal/uploads"
)

// cardGenerator renders card requests. Satisfied by *ogcard.RenderPool;
// swapped for a mock in handler tests.
type cardGenerator interface {
	Generate(ctx context.Context, req ogcard.Request) (*ogcard.Output, error)
}

// server wires the HTTP surface to the render pool and upload store.
type server struct {
	log            *slog.Logger
	pool           cardGenerator
	store          *uploads.Store // nil in inline image mode
	imageMode      string
	maxUploadBytes int64
	allowedTypes   map[string]bool
}

// allowedTypeSet builds the MIME allowlist lookup. An empty list means
// the library default. The resolver applies the same gate on the
// inline path; disk mode needs it before anything is persisted.
func allowedTypeSet(types []string) map[string]bool {
	if len(types) == 0 {
		types = ogcard.DefaultAllowedImageTypes()
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// routes builds the HTTP handler tree.
func (s *server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/api/generate-og-image", s.handleGenerate)
	r.Get("/healthz", s.handleHealth)
	if s.store != nil {
		r.Get("/uploads/{name}", s.handleUpload)
	}

	return r
}

// requestLogger logs one line per request with method, path, status
// and duration.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleUpload serves a stored upload by name. The store validates the
// name shape, so traversal attempts never reach the filesystem.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.store.Path(name)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "upload not found")
		return
	}
	http.ServeFile(w, r, path)
}
