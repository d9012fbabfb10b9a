// Package server exposes scene storage and visibility queries over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /v1/scenes
//	POST   /v1/scenes                    store a scene document, attach it
//	GET    /v1/scenes/{id}               fetch a stored scene
//	DELETE /v1/scenes/{id}               detach and delete
//	POST   /v1/scenes/{id}/visibility    {"observer": [x, y]} → region
//
// Scene documents are JSON by default; YAML and TOML bodies are accepted
// when the Content-Type says so. Errors are returned as
// {"code": ..., "message": ...} with a status derived from the code.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/pipeline"
	"github.com/matzehuels/sightline/pkg/store"
)

// Defaults for Options.
const (
	DefaultMaxBodyBytes    = 4 << 20
	DefaultRequestTimeout  = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Query holds the defaults applied to every visibility request.
	Query pipeline.Options

	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Server is the HTTP front end of the visibility pipeline.
type Server struct {
	store    store.Store
	runner   *pipeline.Runner
	registry *Registry
	logger   *log.Logger
	opts     Options
	router   chi.Router
}

// New creates a server over st. Queries go through runner, so its cache is
// shared with every request.
func New(st store.Store, runner *pipeline.Runner, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	s := &Server{
		store:    st,
		runner:   runner,
		registry: NewRegistry(runner, opts.Query, logger),
		logger:   logger,
		opts:     opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1/scenes", func(r chi.Router) {
		r.Get("/", s.handleListScenes)
		r.Post("/", s.handleCreateScene)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetScene)
			r.Delete("/", s.handleDeleteScene)
			r.Post("/visibility", s.handleVisibility)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errNotFound(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		err := errMethod(r.Method, r.URL.Path)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Code: errors.GetCode(err), Message: errors.UserMessage(err)})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry returns the server's adapter registry.
func (s *Server) Registry() *Registry { return s.registry }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.registry.Close()
	return err
}
