// Package server provides the HTTP API of the smartsummary service.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localrivet/smartsummary/internal/summarizer"
)

// HeaderSummaryCache reports whether /summarize was served from the cache.
const HeaderSummaryCache = "X-Summary-Cache"

//go:embed example_text.md
var exampleText string

// Summarizer is the orchestrator surface the HTTP API needs.
type Summarizer interface {
	Summarize(ctx context.Context, req summarizer.Request) (*summarizer.SummaryResult, error)
	SummarizeStream(ctx context.Context, req summarizer.Request) (<-chan summarizer.Fragment, error)
	ValidateKey(ctx context.Context, key string) (valid bool, message string, provider string)
	Stats(ctx context.Context) *summarizer.StatsReport
}

// Options configures a Server.
type Options struct {
	Addr    string
	Origins []string
	Logger  *slog.Logger
}

// Server is the HTTP server for smartsummary
type Server struct {
	summarizer Summarizer
	addr       string
	origins    []string
	logger     *slog.Logger
	engine     *gin.Engine
	server     *http.Server
}

// New creates a Server and registers its routes.
func New(s Summarizer, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if len(opts.Origins) == 0 {
		opts.Origins = []string{"*"}
	}

	srv := &Server{
		summarizer: s,
		addr:       opts.Addr,
		origins:    opts.Origins,
		logger:     opts.Logger,
	}
	srv.engine = srv.routes()
	return srv
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(s.loggingMiddleware())
	engine.Use(corsMiddleware(s.origins))

	engine.GET("/", s.handleRoot)
	engine.GET("/health", s.handleHealth)
	engine.GET("/example", s.handleExample)
	engine.GET("/stats", s.handleStats)
	engine.POST("/summarize", s.handleSummarize)
	engine.POST("/summarize/stream", s.handleSummarizeStream)
	engine.POST("/validate-api-key", s.handleValidateKey)

	engine.NoRoute(func(c *gin.Context) {
		HandleNotFound(c, "Route not found")
	})
	return engine
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting smartsummary HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping smartsummary HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Smart Summary API"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleExample(c *gin.Context) {
	if strings.TrimSpace(exampleText) == "" {
		HandleNotFound(c, "Example text not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": exampleText})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.summarizer.Stats(c.Request.Context()))
}

// bindSummarize decodes and validates a summarize body, writing the error
// response itself when it fails.
func (s *Server) bindSummarize(c *gin.Context) (SummarizeRequest, bool) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBadRequest(c, "Malformed JSON body", err)
		return req, false
	}

	if err := req.Validate(); err != nil {
		if errors.Is(err, errEmptyText) {
			HandleBadRequest(c, "Text cannot be empty", err)
		} else {
			HandleUnprocessable(c, "Invalid request parameters", fieldErrors(err))
		}
		return req, false
	}
	return req, true
}

func (s *Server) handleSummarize(c *gin.Context) {
	req, ok := s.bindSummarize(c)
	if !ok {
		return
	}

	result, err := s.summarizer.Summarize(c.Request.Context(), req.toOrchestrator(requestID(c)))
	if err != nil {
		HandleError(c, s.logger, err)
		return
	}

	cacheHeader := "miss"
	if result.CacheHit {
		cacheHeader = "hit"
	}
	c.Header(HeaderSummaryCache, cacheHeader)
	c.JSON(http.StatusOK, SummarizeResponse{
		Summary:        result.Summary,
		OriginalLength: result.OriginalLength,
		SummaryLength:  result.SummaryLength,
	})
}

func (s *Server) handleSummarizeStream(c *gin.Context) {
	req, ok := s.bindSummarize(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	fragments, err := s.summarizer.SummarizeStream(ctx, req.toOrchestrator(requestID(c)))
	if err != nil {
		HandleError(c, s.logger, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	w := c.Writer
	for f := range fragments {
		switch {
		case f.Err != nil:
			writeEvent(w, "error: "+f.Err.Error())
		case f.Done:
			// [DONE] is written once the channel closes.
		default:
			writeEvent(w, f.Text)
		}
		w.Flush()
	}
	writeEvent(w, "[DONE]")
	w.Flush()
}

// writeEvent writes one SSE event. Multi-line payloads become one data line
// per line, which clients join back with newlines.
func writeEvent(w gin.ResponseWriter, payload string) {
	var b strings.Builder
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	_, _ = w.WriteString(b.String())
}

func (s *Server) handleValidateKey(c *gin.Context) {
	var req ValidateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBadRequest(c, "Malformed JSON body", err)
		return
	}
	if err := req.Validate(); err != nil {
		HandleUnprocessable(c, "Invalid request parameters", fieldErrors(err))
		return
	}

	valid, message, provider := s.summarizer.ValidateKey(c.Request.Context(), req.APIKey)
	c.JSON(http.StatusOK, ValidateKeyResponse{
		Valid:    valid,
		Message:  message,
		Provider: provider,
	})
}

// ExampleText returns the embedded sample text served by GET /example.
func ExampleText() string {
	return exampleText
}
