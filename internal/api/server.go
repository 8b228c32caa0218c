package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/batch"
	"github.com/JakeFAU/logo-resolver/internal/clock"
	"github.com/JakeFAU/logo-resolver/internal/logging"
	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/metrics"
	"github.com/JakeFAU/logo-resolver/internal/storage/memory"
)

const (
	maxWorkers     = 64
	maxURLs        = 10000
	requestTimeout = 30 * time.Second
)

// Options bounds what callers may request.
type Options struct {
	MaxWorkers int
	MaxURLs    int
}

// Server wires HTTP handlers to the batch orchestrator and registry.
type Server struct {
	router       chi.Router
	batches      *memory.BatchStore
	orchestrator *batch.Orchestrator
	idGen        logo.IDGenerator
	clock        logo.Clock
	opts         Options
	logger       *zap.Logger
	draining     atomic.Bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	batches *memory.BatchStore,
	orchestrator *batch.Orchestrator,
	idGen logo.IDGenerator,
	clk logo.Clock,
	opts Options,
	logger *zap.Logger,
) *Server {
	if clk == nil {
		clk = clock.System{}
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = maxWorkers
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = maxURLs
	}
	s := &Server{
		batches:      batches,
		orchestrator: orchestrator,
		idGen:        idGen,
		clock:        clk,
		opts:         opts,
		logger:       logging.OrNop(logger),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/batches", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		r.Post("/", s.submitBatch)
		r.Get("/", s.listBatches)
		r.Route("/{batch_id}", func(r chi.Router) {
			r.Get("/", s.getBatch)
			r.Post("/cancel", s.cancelBatch)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Drain marks the server unready and stops every running batch.
func (s *Server) Drain() {
	s.draining.Store(true)
	s.batches.CancelAll()
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		writeError(w, http.StatusServiceUnavailable, "draining")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRequest struct {
	URLs              []string `json:"urls"`
	WorkerCount       *int     `json:"worker_count"`
	PacingDelayMillis *int     `json:"pacing_delay_millis"`
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	urls, opts, err := s.toBatchOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("generate batch id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate batch id")
		return
	}

	// The batch outlives the request that submitted it.
	ctx, cancel := context.WithCancel(context.Background())
	run := s.orchestrator.WithOptions(opts).Start(ctx, id, urls)
	rec := memory.BatchRecord{
		ID:          id,
		SubmittedAt: s.clock.Now(),
		Workers:     opts.Workers,
		PacingDelay: opts.PacingDelay,
		Run:         run,
	}
	if err := s.batches.Create(rec, cancel); err != nil {
		cancel()
		s.logger.Error("register batch failed", zap.String("batch_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to register batch")
		return
	}
	go func() {
		<-run.Done()
		cancel()
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": id,
		"total":    run.Total(),
	})
}

func (s *Server) toBatchOptions(req submitRequest) ([]string, batch.Options, error) {
	// Entries pass through untouched so the report is keyed by the caller's
	// input and blank ones come back as invalid_url.
	urls := append([]string(nil), req.URLs...)
	if len(urls) == 0 {
		return nil, batch.Options{}, errors.New("urls required")
	}
	if len(urls) > s.opts.MaxURLs {
		return nil, batch.Options{}, fmt.Errorf("at most %d urls per batch", s.opts.MaxURLs)
	}
	opts := s.orchestrator.Options()
	opts.QueueDepth = 0
	if req.WorkerCount != nil {
		if *req.WorkerCount < 1 || *req.WorkerCount > s.opts.MaxWorkers {
			return nil, batch.Options{}, fmt.Errorf("worker_count must be between 1 and %d", s.opts.MaxWorkers)
		}
		opts.Workers = *req.WorkerCount
	}
	if req.PacingDelayMillis != nil {
		if *req.PacingDelayMillis < 0 {
			return nil, batch.Options{}, errors.New("pacing_delay_millis must be >= 0")
		}
		opts.PacingDelay = time.Duration(*req.PacingDelayMillis) * time.Millisecond
	}
	return urls, opts, nil
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	rec, err := s.batches.Get(chi.URLParam(r, "batch_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(rec, true))
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultBatchLimit, maxBatchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	all := s.batches.List()
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))
	out := make([]batchDTO, 0, end-offset)
	for _, rec := range all[offset:end] {
		out = append(out, toBatchDTO(rec, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": out})
}

func (s *Server) cancelBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batch_id")
	rec, err := s.batches.Cancel(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	s.logger.Info("batch cancel requested", zap.String("batch_id", id))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"batch_id": id,
		"state":    rec.Run.State(),
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
