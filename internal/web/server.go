package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/souq/internal/config"
	"github.com/hpungsan/souq/internal/table"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the Souq web UI.
func NewServer(db *sql.DB, cfg *config.Config, version, bind string, port int) (*http.Server, error) {
	h, err := newHandlers(db, cfg, version)
	if err != nil {
		return nil, err
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           routes(h, staticSub),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// routes registers the UI routes on a new mux.
func routes(h *Handlers, static fs.FS) http.Handler {
	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/runs", http.StatusFound)
	})
	mux.HandleFunc("GET /runs", h.HandleRuns)
	mux.HandleFunc("POST /runs", h.HandleStartRun)
	mux.HandleFunc("POST /runs/purge", h.HandlePurge)
	mux.HandleFunc("GET /runs/{id}", h.HandleDetail)
	mux.HandleFunc("GET /runs/{id}/daily", h.HandleDaily)
	mux.HandleFunc("GET /runs/{id}/export", h.HandleExport)
	mux.HandleFunc("GET /charts/{file}", h.HandleChart)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return securityHeaders(mux)
}

// newHandlers parses the embedded templates and builds the route handlers.
func newHandlers(db *sql.DB, cfg *config.Config, version string) (*Handlers, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	renderer, err := NewRenderer(templateSub, version)
	if err != nil {
		return nil, err
	}
	return &Handlers{
		db:       db,
		cfg:      cfg,
		cache:    table.NewCache(),
		renderer: renderer,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully when ctx is
// cancelled or the process receives SIGINT/SIGTERM.
func Run(ctx context.Context, srv *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("souq UI running", slog.String("url", "http://"+srv.Addr))
	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]") || strings.HasPrefix(srv.Addr, ":") {
		slog.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
