// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/fileutil"
	"github.com/jongio/composeguard/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const privilegedSocket = `services:
  app:
    image: nginx
    privileged: true
    volumes:
      - /var/run/docker.sock:/var/run/docker.sock
`

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeRawBody(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/analyze", "application/yaml", privilegedSocket)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 53, report.Score)
	assert.Len(t, report.Findings, 4)
	assert.NotEmpty(t, report.Diff)
}

func TestAnalyzeJSONBody(t *testing.T) {
	h := New(Options{}).Handler()
	body, err := json.Marshal(map[string]string{"content": privilegedSocket})
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/v1/analyze?diff=false", "application/json; charset=utf-8", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 53, report.Score)
	assert.Empty(t, report.Diff)
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/analyze", "application/json", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON body")
}

func TestAnalyzeParseErrorIsReported(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/analyze", "", "services: [unclosed")
	require.Equal(t, http.StatusOK, rec.Code)

	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.ParseError)
	assert.Equal(t, 100, report.Score)
}

func TestAnalyzeTooLarge(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/analyze", "", strings.Repeat("a", fileutil.MaxInputSize+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPatchJSON(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/patch", "", privilegedSocket)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp patchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotContains(t, resp.PatchedText, "privileged")
	assert.Contains(t, resp.PatchedText, "read_only: true")
	assert.Len(t, resp.Changes, 4)
}

func TestPatchYAML(t *testing.T) {
	h := New(Options{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/patch", strings.NewReader(privilegedSocket))
	req.Header.Set("Accept", "application/yaml")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, analysis.Analyze(privilegedSocket).PatchedText, rec.Body.String())
}

func TestPatchParseError(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/patch", "", "- a\n- list\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSARIF(t *testing.T) {
	h := New(Options{Version: "1.0.0"}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/sarif?uri=deploy/compose.yaml", "", privilegedSocket)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/sarif+json", rec.Header().Get("Content-Type"))

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Results []struct {
				RuleID string `json:"ruleId"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	assert.Len(t, doc.Runs[0].Results, 4)
	assert.Contains(t, rec.Body.String(), "deploy/compose.yaml")
}

func TestRules(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/v1/rules", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []rules.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, len(rules.Catalogue()))

	rec = do(t, h, http.MethodGet, "/v1/rules/host-pid", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rule rules.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	assert.Equal(t, "host-pid", rule.ID)

	rec = do(t, h, http.MethodGet, "/v1/rules/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/v1/analyze", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := New(Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Generate at least one request sample first.
	do(t, h, http.MethodGet, "/v1/rules", "", "")
	rec = do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "composeguard_http_requests_total")
	assert.Contains(t, string(body), `route="GET /v1/rules"`)
}

func TestRateLimit(t *testing.T) {
	h := New(Options{RateLimit: 0.001, Burst: 2}).Handler()

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/v1/rules", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/v1/rules", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Other clients have their own bucket.
	req := httptest.NewRequest(http.MethodGet, "/v1/rules", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)

	// Health is never limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "", "").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	s := New(Options{})
	assert.Nil(t, s.getOrCreateLimiter("192.0.2.1"))
}

func TestLimiterIdleClientsAreForgotten(t *testing.T) {
	s := New(Options{RateLimit: 1, Burst: 1})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	first := s.getOrCreateLimiter("192.0.2.1")
	s.getOrCreateLimiter("192.0.2.2")
	require.Len(t, s.limiters, 2)

	// 192.0.2.2 stays active; 192.0.2.1 goes idle.
	clock = clock.Add(limiterIdleTTL / 2)
	s.getOrCreateLimiter("192.0.2.2")
	clock = clock.Add(limiterIdleTTL/2 + time.Second)
	s.getOrCreateLimiter("192.0.2.3")

	assert.Len(t, s.limiters, 2)
	assert.NotContains(t, s.limiters, "192.0.2.1")
	assert.Contains(t, s.limiters, "192.0.2.2")
	assert.NotSame(t, first, s.getOrCreateLimiter("192.0.2.1"), "a forgotten client starts with a fresh bucket")
}

func TestLimiterTableIsCapped(t *testing.T) {
	s := New(Options{RateLimit: 1, Burst: 1})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	for i := range maxClients {
		clock = clock.Add(time.Millisecond)
		s.getOrCreateLimiter(fmt.Sprintf("client-%d", i))
	}
	require.Len(t, s.limiters, maxClients)

	clock = clock.Add(time.Millisecond)
	s.getOrCreateLimiter("newcomer")

	assert.Len(t, s.limiters, maxClients)
	assert.NotContains(t, s.limiters, "client-0", "least recently seen client is evicted")
	assert.Contains(t, s.limiters, "newcomer")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", clientIP(req))
}
