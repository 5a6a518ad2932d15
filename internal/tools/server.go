package tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/localrivet/gomcp/server"

	"github.com/localrivet/smartsummary/internal/cache"
	"github.com/localrivet/smartsummary/internal/errortypes"
	"github.com/localrivet/smartsummary/internal/summarizer"
)

// DefaultCallTimeout bounds a single tool call.
const DefaultCallTimeout = 2 * time.Minute

// Summarizer is the part of the orchestrator the tools need.
type Summarizer interface {
	Summarize(ctx context.Context, req summarizer.Request) (*summarizer.SummaryResult, error)
	FindSimilar(ctx context.Context, text string, k int) ([]cache.Match, error)
}

// MCPSummaryToolServer implements ToolServer on top of gomcp.
type MCPSummaryToolServer struct {
	summarizer Summarizer
	logger     *slog.Logger
	timeout    time.Duration
	mcpServer  server.Server
}

var _ ToolServer = (*MCPSummaryToolServer)(nil)

// NewSummaryToolServer creates a new MCPSummaryToolServer instance.
func NewSummaryToolServer(s Summarizer, logger *slog.Logger) *MCPSummaryToolServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPSummaryToolServer{
		summarizer: s,
		logger:     logger,
		timeout:    DefaultCallTimeout,
	}
}

// Initialize registers the summarize and find_similar tools.
func (s *MCPSummaryToolServer) Initialize() error {
	s.logger.Info("Initializing MCP summary tool server")

	if s.summarizer == nil {
		return errortypes.ConfigError(errors.New("missing summarizer"), "tool server initialization failed")
	}

	srv := server.NewServer("smartsummary")

	srv = srv.Tool(ToolSummarize, "Summarize a text, reusing cached summaries of near-identical texts",
		s.handleSummarize)

	srv = srv.Tool(ToolFindSimilar, "Find previously summarized texts similar to the given text",
		s.handleFindSimilar)

	s.mcpServer = srv
	s.logger.Info("MCP summary tool server initialized", "tool_count", 2)
	return nil
}

// Start serves the tools over stdio until stdin closes.
func (s *MCPSummaryToolServer) Start() error {
	if s.mcpServer == nil {
		return errortypes.ConfigError(errors.New("server not initialized"), "cannot start tool server")
	}

	s.logger.Info("Starting MCP summary tool server")
	return s.mcpServer.AsStdio().Run()
}

// Stop gracefully shuts down the MCP server.
func (s *MCPSummaryToolServer) Stop() error {
	s.logger.Info("Stopping MCP summary tool server")
	// The server exits when stdin is closed
	return nil
}

// Server returns the underlying gomcp server so other tools can be
// registered beside ours. It is nil until Initialize succeeds.
func (s *MCPSummaryToolServer) Server() server.Server {
	return s.mcpServer
}

// handleSummarize handles the summarize MCP tool call.
func (s *MCPSummaryToolServer) handleSummarize(_ *server.Context, req SummarizeRequest) (SummarizeResponse, error) {
	s.logger.Info("Processing summarize request", "text_length", len(req.Text), "max_length", req.MaxLength)

	response := SummarizeResponse{Status: StatusSuccess}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.summarizer.Summarize(ctx, summarizer.Request{Text: req.Text, MaxLength: req.MaxLength})
	if err != nil {
		errortypes.LogError(s.logger, err)
		response.Status = StatusError
		response.Error = err.Error()
		return response, nil
	}

	response.Summary = result.Summary
	response.Strategy = string(result.Strategy)
	response.CacheHit = result.CacheHit
	s.logger.Info("Summarize tool call complete", "strategy", result.Strategy, "cache_hit", result.CacheHit)
	return response, nil
}

// handleFindSimilar handles the find_similar MCP tool call.
func (s *MCPSummaryToolServer) handleFindSimilar(_ *server.Context, req FindSimilarRequest) (FindSimilarResponse, error) {
	s.logger.Info("Processing find_similar request", "text_length", len(req.Text), "limit", req.Limit)

	response := FindSimilarResponse{Status: StatusSuccess, Results: []SimilarResult{}}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	if limit > MaxSimilarLimit {
		limit = MaxSimilarLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	matches, err := s.summarizer.FindSimilar(ctx, req.Text, limit)
	if err != nil {
		errortypes.LogError(s.logger, err)
		response.Status = StatusError
		response.Error = err.Error()
		return response, nil
	}

	for _, m := range matches {
		response.Results = append(response.Results, SimilarResult{
			ID:       m.ID,
			Summary:  m.Summary,
			Score:    m.Score,
			Strategy: m.Strategy,
		})
	}
	s.logger.Info("Find similar tool call complete", "count", len(response.Results))
	return response, nil
}
