// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/models"
	"github.com/fitfact-ai/fitfact/pkg/pipeline"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Sweeper runs one maintenance sweep.
type Sweeper interface {
	Sweep(ctx context.Context, opts models.SweepOptions) (models.SweepReport, error)
}

// StatsReader reports cache statistics.
type StatsReader interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// Server is the FitFact HTTP API.
type Server struct {
	listen    string
	processor *pipeline.Processor
	sweeper   Sweeper
	stats     StatsReader
	sweepOpts models.SweepOptions
	logger    *zap.Logger
	router    chi.Router
}

// Options configures a Server.
type Options struct {
	Listen    string
	Processor *pipeline.Processor
	Sweeper   Sweeper
	Stats     StatsReader
	SweepOpts models.SweepOptions
	Logger    *zap.Logger
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		listen:    opts.Listen,
		processor: opts.Processor,
		sweeper:   opts.Sweeper,
		stats:     opts.Stats,
		sweepOpts: opts.SweepOpts,
		logger:    opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/v1/ask", s.handleAsk)
	r.Get("/v1/cache/stats", s.handleCacheStats)
	r.Post("/v1/maintenance/sweep", s.handleSweep)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts down gracefully when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("fitfact API listening", zap.String("addr", s.listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type askRequest struct {
	Question string             `json:"question"`
	Detail   models.DetailLevel `json:"detail,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Detail == "" {
		req.Detail = models.DetailStandard
	}
	if !req.Detail.Valid() {
		s.writeError(w, http.StatusBadRequest, "detail must be brief, standard or detailed")
		return
	}

	answer, err := s.processor.Ask(r.Context(), req.Question, req.Detail)
	if errors.Is(err, pipeline.ErrNoPapers) {
		s.writeError(w, http.StatusNotFound,
			"no relevant research papers found; try rephrasing or ask about a different fitness topic")
		return
	}
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "answer generation failed")
		return
	}

	s.writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cache stats unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type sweepRequest struct {
	AgeThresholdDays   int `json:"age_threshold_days,omitempty"`
	UsageFloor         int `json:"usage_floor,omitempty"`
	PromotionThreshold int `json:"promotion_threshold,omitempty"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	opts := s.sweepOpts

	var req sweepRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.AgeThresholdDays > 0 {
		opts.AgeThresholdDays = req.AgeThresholdDays
	}
	if req.UsageFloor > 0 {
		opts.UsageFloor = req.UsageFloor
	}
	if req.PromotionThreshold > 0 {
		opts.PromotionThreshold = req.PromotionThreshold
	}

	report, err := s.sweeper.Sweep(r.Context(), opts)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger attaches a request ID and logs each request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
