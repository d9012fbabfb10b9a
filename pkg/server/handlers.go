package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/sightline/pkg/buildinfo"
	"github.com/matzehuels/sightline/pkg/cdt"
	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/geom"
	"github.com/matzehuels/sightline/pkg/observability"
	"github.com/matzehuels/sightline/pkg/pipeline"
	"github.com/matzehuels/sightline/pkg/scene"
	"github.com/matzehuels/sightline/pkg/store"
)

// =============================================================================
// Wire types
// =============================================================================

// SceneSummary describes a stored scene without its geometry.
type SceneSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Fingerprint   string     `json:"fingerprint"`
	CreatedAt     time.Time  `json:"created_at"`
	Triangulation *cdt.Stats `json:"triangulation,omitempty"`
}

func summarize(rec *store.Record) SceneSummary {
	return SceneSummary{ID: rec.ID, Name: rec.Name, Fingerprint: rec.Fingerprint, CreatedAt: rec.CreatedAt}
}

// VisibilityRequest selects the query point: either an explicit position or
// the name of one of the scene's observers.
type VisibilityRequest struct {
	Observer   *geom.Point `json:"observer,omitempty"`
	Name       string      `json:"name,omitempty"`
	Regularize *bool       `json:"regularize,omitempty"`
}

// VisibilityResponse is a region plus whether it was served from cache.
type VisibilityResponse struct {
	pipeline.Region
	Cached bool `json:"cached"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildinfo.Version,
		"attached": s.registry.Len(),
	})
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]SceneSummary, len(recs))
	for i, rec := range recs {
		out[i] = summarize(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	format, err := bodyFormat(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body"))
		return
	}
	sc, err := scene.Decode(data, format)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	rec, err := s.store.Put(ctx, sc)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := s.registry.Acquire(ctx, rec)
	if err != nil {
		if derr := s.store.Delete(ctx, rec.ID); derr != nil {
			s.logger.Warn("could not remove unattachable scene", "id", rec.ID, "error", derr)
		}
		writeError(w, err)
		return
	}
	stats, err := a.Stats()
	if err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("stored scene", "id", rec.ID, "name", rec.Name, "faces", stats.Faces)
	out := summarize(rec)
	out.Triangulation = &stats
	w.Header().Set("Location", "/v1/scenes/"+rec.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.registry.Remove(id)
	s.logger.Info("deleted scene", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode visibility request"))
		return
	}

	ctx := r.Context()
	rec, err := s.store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := resolveObserver(rec.Scene, req)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := s.registry.Acquire(ctx, rec)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := s.opts.Query
	if req.Regularize != nil {
		opts.Regularize = *req.Regularize
	}
	regions, hits, err := s.runner.Regions(ctx, a, rec.Fingerprint, []scene.Observer{o}, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VisibilityResponse{Region: regions[0], Cached: hits > 0})
}

func resolveObserver(sc *scene.Scene, req VisibilityRequest) (scene.Observer, error) {
	switch {
	case req.Observer != nil && req.Name != "":
		return scene.Observer{}, errors.New(errors.ErrCodeInvalidInput, "give either observer or name, not both")
	case req.Observer != nil:
		return scene.Observer{Name: "q", At: scene.C(*req.Observer)}, nil
	case req.Name != "":
		o, ok := sc.Observer(req.Name)
		if !ok {
			return scene.Observer{}, errors.New(errors.ErrCodeInvalidObserver, "scene has no observer %q", req.Name)
		}
		return o, nil
	}
	return scene.Observer{}, errors.New(errors.ErrCodeInvalidInput, "observer is required")
}

// bodyFormat picks the scene format from a Content-Type header. An empty
// header means JSON.
func bodyFormat(contentType string) (scene.Format, error) {
	if contentType == "" {
		return scene.FormatJSON, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidFormat, "bad content type %q", contentType)
	}
	switch mt {
	case "application/json":
		return scene.FormatJSON, nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return scene.FormatYAML, nil
	case "application/toml":
		return scene.FormatTOML, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported content type %q", mt)
}

// =============================================================================
// Middleware
// =============================================================================

// observe reports every request to the HTTP hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, route, status, d)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", d)
	})
}
