// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package httpapi serves composeguard analysis over HTTP.
//
// Routes:
//
//	POST /v1/analyze      analysis report as JSON
//	POST /v1/patch        patched document and change records
//	POST /v1/sarif        SARIF 2.1.0 log
//	GET  /v1/rules        rule catalogue
//	GET  /v1/rules/{id}   one rule
//	GET  /metrics         Prometheus metrics
//	GET  /health          liveness
//
// POST bodies are either the raw compose document or a JSON object
// {"content": "..."} when Content-Type is application/json.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/fileutil"
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/metrics"
	"github.com/jongio/composeguard/rules"
	"github.com/jongio/composeguard/sarif"
	"github.com/jongio/composeguard/yamlutil"
	"golang.org/x/time/rate"
)

// Default per-client limits.
const (
	DefaultRateLimit = 10.0
	DefaultBurst     = 20
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Limiter bookkeeping. Clients idle longer than limiterIdleTTL are forgotten,
// and the table never holds more than maxClients entries.
const (
	limiterIdleTTL = 10 * time.Minute
	maxClients     = 10000
)

// Options configures a Server.
type Options struct {
	Analyzer *analysis.Analyzer
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	Burst     int
	Version   string
}

// Server is the HTTP API.
type Server struct {
	analyzer  *analysis.Analyzer
	rateLimit float64
	burst     int
	version   string
	log       *logutil.ComponentLogger

	mu        sync.RWMutex
	limiters  map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// New creates a Server. A nil analyzer analyzes without a cache.
func New(opts Options) *Server {
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.New(metrics.SourceHTTP, nil)
	}
	if opts.Burst <= 0 {
		opts.Burst = max(1, int(opts.RateLimit*2))
	}
	return &Server{
		analyzer:  opts.Analyzer,
		rateLimit: opts.RateLimit,
		burst:     opts.Burst,
		version:   opts.Version,
		log:       logutil.NewLogger("httpapi"),
		limiters:  make(map[string]*clientLimiter),
		now:       time.Now,
	}
}

// Handler returns the routed handler with metrics and rate limiting applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	metrics.Register(mux)

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	api.HandleFunc("POST /v1/patch", s.handlePatch)
	api.HandleFunc("POST /v1/sarif", s.handleSARIF)
	api.HandleFunc("GET /v1/rules", s.handleRules)
	api.HandleFunc("GET /v1/rules/{id}", s.handleRule)

	mux.Handle("/v1/", s.instrument(s.limit(api)))
	return mux
}

// ListenAndServe serves on port until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := metrics.NewServer(port, s.Handler())

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	}
}

// getOrCreateLimiter returns the limiter for a client, or nil when limiting is off.
func (s *Server) getOrCreateLimiter(client string) *rate.Limiter {
	if s.rateLimit <= 0 {
		return nil
	}

	now := s.now()

	s.mu.RLock()
	entry, exists := s.limiters[client]
	s.mu.RUnlock()
	if exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, exists := s.limiters[client]; exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	s.sweep(now)
	entry = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.rateLimit), s.burst)}
	entry.lastSeen.Store(now.UnixNano())
	s.limiters[client] = entry
	return entry.limiter
}

// sweep drops idle clients and, when the table is still full, the least
// recently seen one. Caller must hold mu.
func (s *Server) sweep(now time.Time) {
	if len(s.limiters) < maxClients && now.Sub(s.lastSweep) < limiterIdleTTL/2 {
		return
	}
	s.lastSweep = now

	cutoff := now.Add(-limiterIdleTTL).UnixNano()
	for client, entry := range s.limiters {
		if entry.lastSeen.Load() < cutoff {
			delete(s.limiters, client)
		}
	}

	for len(s.limiters) >= maxClients {
		var (
			oldest     string
			oldestSeen int64
			found      bool
		)
		for client, entry := range s.limiters {
			if seen := entry.lastSeen.Load(); !found || seen < oldestSeen {
				oldest, oldestSeen, found = client, seen, true
			}
		}
		delete(s.limiters, oldest)
		s.log.Debug("evicted rate limiter", "client", oldest)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter := s.getOrCreateLimiter(clientIP(r)); limiter != nil && !limiter.Allow() {
			metrics.RecordRateLimited(metrics.SourceHTTP)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(route, rec.code)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "code", rec.code, "duration", time.Since(start))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

type contentRequest struct {
	Content string `json:"content"`
}

// readDocument returns the compose text from the request body.
func readDocument(w http.ResponseWriter, r *http.Request) (string, error) {
	body := http.MaxBytesReader(w, r.Body, fileutil.MaxInputSize)
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return string(data), nil
	}
	var req contentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("invalid JSON body: %w", err)
	}
	return req.Content, nil
}

// analyze reads the body and analyzes it, writing an error response on failure.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*analysis.Report, bool) {
	text, err := readDocument(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fileutil.ErrInputTooLarge.Error())
			return nil, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return s.analyzer.Analyze(text), true
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, ok := s.analyze(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("diff") == "false" {
		trimmed := *report
		trimmed.Diff = nil
		report = &trimmed
	}
	writeJSON(w, http.StatusOK, report)
}

type patchResponse struct {
	PatchedText string            `json:"patchedText"`
	Changes     []yamlutil.Change `json:"changes"`
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	report, ok := s.analyze(w, r)
	if !ok {
		return
	}
	if report.ParseError != "" {
		writeError(w, http.StatusUnprocessableEntity, report.ParseError)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "yaml") {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = io.WriteString(w, report.PatchedText)
		return
	}
	writeJSON(w, http.StatusOK, patchResponse{PatchedText: report.PatchedText, Changes: report.Changes})
}

func (s *Server) handleSARIF(w http.ResponseWriter, r *http.Request) {
	report, ok := s.analyze(w, r)
	if !ok {
		return
	}
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		uri = "compose.yaml"
	}
	log, err := sarif.Build(report, uri, s.version)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/sarif+json")
	_ = json.NewEncoder(w).Encode(log)
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rules.Catalogue())
}

func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rule, ok := rules.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown rule %q", id))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
