package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/artifact"
	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// ManifestSource returns the manifest of the current publication.
type ManifestSource interface {
	Manifest() (domain.Manifest, error)
}

// RunTrigger starts a pipeline run on demand.
type RunTrigger interface {
	RunOnce(ctx context.Context, acquire bool) (domain.Manifest, error)
}

// Server exposes health, readiness, metrics and dataset endpoints.
type Server struct {
	httpServer *http.Server
	manifests  ManifestSource
	runner     RunTrigger
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// GET /manifest and POST /runs routes. runner may be nil, in which case
// on-demand runs are not offered.
func NewServer(addr string, ready sharedobs.ReadinessChecker, manifests ManifestSource, runner RunTrigger, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		manifests: manifests,
		runner:    runner,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /manifest", s.handleManifest)
	if runner != nil {
		mux.HandleFunc("POST /runs", s.handleRun)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	m, err := s.manifests.Manifest()
	switch {
	case errors.Is(err, artifact.ErrNotPublished):
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		s.logger.Error("read manifest", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		sharedobs.WriteJSON(w, http.StatusOK, m)
	}
}

// handleRun rebuilds from the files already on disk. Acquisition is left to
// the schedule since a CDS job can outlive any request.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	m, err := s.runner.RunOnce(r.Context(), false)
	if err != nil && m.RunID == "" {
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		// Published, but a downstream sink failed.
		sharedobs.WriteJSON(w, http.StatusAccepted, map[string]any{"manifest": m, "error": err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, map[string]any{"manifest": m})
}
