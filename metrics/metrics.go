// Package metrics exports Prometheus metrics for analyses, patches and the
// HTTP API, and serves them together with a liveness endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jongio/composeguard/rules"
	"github.com/jongio/composeguard/yamlutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for an analysis.
const (
	OutcomeAnalyzed   = "analyzed"
	OutcomeEmpty      = "empty"
	OutcomeParseError = "parse_error"
)

// Source labels say which surface requested the analysis.
const (
	SourceCLI   = "cli"
	SourceHTTP  = "http"
	SourceMCP   = "mcp"
	SourceWatch = "watch"
)

var (
	analysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "composeguard_analysis_duration_seconds",
			Help:    "Duration of compose analyses in seconds",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"source", "outcome"},
	)

	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composeguard_analyses_total",
			Help: "Total number of compose analyses performed",
		},
		[]string{"source", "outcome"},
	)

	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composeguard_findings_total",
			Help: "Total number of findings reported, by rule",
		},
		[]string{"rule", "severity"},
	)

	patchChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composeguard_patch_changes_total",
			Help: "Total number of lines removed or added by the patcher",
		},
		[]string{"action"},
	)

	lastScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "composeguard_last_score",
			Help: "Score of the most recent analysis per source (0-100)",
		},
		[]string{"source"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composeguard_cache_lookups_total",
			Help: "Report cache lookups by result",
		},
		[]string{"result"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composeguard_http_requests_total",
			Help: "HTTP API requests by route and status code",
		},
		[]string{"route", "code"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composeguard_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"source"},
	)
)

// Analysis is what RecordAnalysis needs to know about one run.
type Analysis struct {
	Source   string
	Outcome  string
	Duration time.Duration
	Score    int
	Findings []rules.Finding
	Changes  []yamlutil.Change
}

// RecordAnalysis records metrics for a finished analysis.
func RecordAnalysis(a Analysis) {
	labels := prometheus.Labels{"source": a.Source, "outcome": a.Outcome}
	analysisDuration.With(labels).Observe(a.Duration.Seconds())
	analysesTotal.With(labels).Inc()

	if a.Outcome != OutcomeAnalyzed {
		return
	}

	lastScore.With(prometheus.Labels{"source": a.Source}).Set(float64(a.Score))
	for _, f := range a.Findings {
		findingsTotal.With(prometheus.Labels{
			"rule":     f.RuleID,
			"severity": string(f.Severity),
		}).Inc()
	}
	for _, c := range a.Changes {
		patchChangesTotal.With(prometheus.Labels{"action": string(c.Action)}).Inc()
	}
}

// RecordCacheLookup records a report cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.With(prometheus.Labels{"result": result}).Inc()
}

// RecordHTTPRequest records one HTTP API response.
func RecordHTTPRequest(route string, code int) {
	httpRequests.With(prometheus.Labels{
		"route": route,
		"code":  strconv.Itoa(code),
	}).Inc()
}

// RecordRateLimited records a request rejected by a rate limiter.
func RecordRateLimited(source string) {
	rateLimited.With(prometheus.Labels{"source": source}).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Register adds /metrics and /health to mux.
func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler)
}

// ServeMetrics starts a standalone metrics HTTP server.
func ServeMetrics(port int) error {
	return CreateMetricsServer(port).ListenAndServe()
}

// CreateMetricsServer creates an HTTP server exposing only /metrics and /health.
func CreateMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	Register(mux)
	return NewServer(port, mux)
}

// NewServer wraps handler in an http.Server with the standard timeouts.
func NewServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
