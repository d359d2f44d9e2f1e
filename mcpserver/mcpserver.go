// Package mcpserver exposes composeguard as Model Context Protocol tools
// over stdio, so editors and assistants can analyze and harden compose files.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/fileutil"
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/metrics"
	"github.com/jongio/composeguard/rules"
	"github.com/jongio/composeguard/security"
	"github.com/jongio/composeguard/yamlutil"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"
)

// Tool names.
const (
	ToolAnalyze = "analyze_compose"
	ToolPatch   = "patch_compose"
	ToolExplain = "explain_rule"
)

// Default limits: a burst of 10 calls refilled at one per second.
const (
	DefaultRate  = 1.0
	DefaultBurst = 10
)

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// BaseDir confines path arguments. Empty means the working directory.
	BaseDir  string
	Analyzer *analysis.Analyzer
	// Rate is calls per second; Burst is the bucket size.
	Rate  float64
	Burst int
}

// Server holds the MCP server and its tool handlers.
type Server struct {
	mcp      *server.MCPServer
	analyzer *analysis.Analyzer
	limiter  *rate.Limiter
	baseDir  string
	log      *logutil.ComponentLogger
}

// New creates a server with the composeguard tools registered.
func New(opts Options) (*Server, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.New(metrics.SourceMCP, nil)
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	if opts.Name == "" {
		opts.Name = "composeguard"
	}

	s := &Server{
		mcp:      server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(false), server.WithRecovery()),
		analyzer: opts.Analyzer,
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		baseDir:  baseDir,
		log:      logutil.NewLogger("mcp"),
	}
	s.registerTools()
	return s, nil
}

// ServeStdio serves requests on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	source := func(verb string) []mcp.ToolOption {
		return []mcp.ToolOption{
			mcp.WithString("content", mcp.Description("Compose document text to "+verb+". Takes precedence over path.")),
			mcp.WithString("path", mcp.Description("Path to a compose file inside the working directory.")),
		}
	}

	s.mcp.AddTool(mcp.NewTool(ToolAnalyze, append([]mcp.ToolOption{
		mcp.WithDescription("Analyze a Docker Compose document for container-escape and privilege risks. Returns the score, findings and suggested changes."),
		mcp.WithBoolean("includeDiff", mcp.Description("Include the line-aligned diff of the patched document.")),
	}, source("analyze")...)...), s.withRateLimit(ToolAnalyze, s.handleAnalyze))

	s.mcp.AddTool(mcp.NewTool(ToolPatch, append([]mcp.ToolOption{
		mcp.WithDescription("Return a hardened copy of a Docker Compose document with dangerous settings removed and a non-root user and read-only root filesystem added."),
	}, source("patch")...)...), s.withRateLimit(ToolPatch, s.handlePatch))

	s.mcp.AddTool(mcp.NewTool(ToolExplain,
		mcp.WithDescription("Explain a composeguard rule: impact, exploit scenario and fix."),
		mcp.WithString("rule", mcp.Required(), mcp.Description("Rule ID such as docker-socket, or a rule title.")),
	), s.withRateLimit(ToolExplain, s.handleExplain))
}

type toolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

func (s *Server) withRateLimit(name string, next toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.limiter.Allow() {
			metrics.RecordRateLimited(metrics.SourceMCP)
			s.log.Warn("rate limit exceeded", "tool", name)
			return mcp.NewToolResultError(fmt.Sprintf("rate limit exceeded for tool %q, please wait before retrying", name)), nil
		}
		return next(ctx, request)
	}
}

// errNoInput is returned when neither content nor path is supplied.
var errNoInput = errors.New("either content or path is required")

// input resolves the document text from the content or path argument.
func (s *Server) input(args map[string]any) (string, error) {
	if content, ok := GetStringParam(args, "content"); ok && content != "" {
		if len(content) > fileutil.MaxInputSize {
			return "", fileutil.ErrInputTooLarge
		}
		return content, nil
	}
	path, ok := GetStringParam(args, "path")
	if !ok || strings.TrimSpace(path) == "" {
		return "", errNoInput
	}
	resolved, err := security.ValidatePathWithinBases(path, s.baseDir)
	if err != nil {
		return "", err
	}
	return fileutil.ReadInput(resolved, nil)
}

// AnalyzeResult is the analyze_compose payload.
type AnalyzeResult struct {
	Score      int                    `json:"score"`
	Counts     rules.Counts           `json:"counts"`
	Groups     []rules.GroupedFinding `json:"groups"`
	Changes    []yamlutil.Change      `json:"changes"`
	Diff       []yamlutil.DiffLine    `json:"diff,omitempty"`
	ParseError string                 `json:"parseError,omitempty"`
	Empty      bool                   `json:"empty,omitempty"`
}

func (s *Server) handleAnalyze(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := GetArgsMap(request)
	text, err := s.input(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report := s.analyzer.Analyze(text)
	result := AnalyzeResult{
		Score:      report.Score,
		Counts:     report.Counts,
		Groups:     report.Groups,
		Changes:    report.Changes,
		ParseError: report.ParseError,
		Empty:      report.Empty,
	}
	if GetBoolParam(args, "includeDiff", false) {
		result.Diff = report.Diff
	}
	return MarshalToolResult(result)
}

// PatchResult is the patch_compose payload.
type PatchResult struct {
	PatchedText string            `json:"patchedText"`
	Changes     []yamlutil.Change `json:"changes"`
	ScoreBefore int               `json:"scoreBefore"`
	ScoreAfter  int               `json:"scoreAfter"`
}

func (s *Server) handlePatch(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.input(GetArgsMap(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report := s.analyzer.Analyze(text)
	if report.ParseError != "" {
		return mcp.NewToolResultError((&compose.ParseError{Message: report.ParseError}).Error()), nil
	}

	after := analysis.Analyze(report.PatchedText)
	return MarshalToolResult(PatchResult{
		PatchedText: report.PatchedText,
		Changes:     report.Changes,
		ScoreBefore: report.Score,
		ScoreAfter:  after.Score,
	})
}

func (s *Server) handleExplain(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := GetStringParam(GetArgsMap(request), "rule")
	if !ok || strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("rule is required"), nil
	}
	rule, found := rules.Lookup(id)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("unknown rule %q", id)), nil
	}
	return MarshalToolResult(rule)
}
