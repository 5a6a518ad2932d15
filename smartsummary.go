package smartsummary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/localrivet/smartsummary/internal/cache"
	"github.com/localrivet/smartsummary/internal/classifier"
	"github.com/localrivet/smartsummary/internal/config"
	"github.com/localrivet/smartsummary/internal/errortypes"
	"github.com/localrivet/smartsummary/internal/gateway"
	"github.com/localrivet/smartsummary/internal/ledger"
	"github.com/localrivet/smartsummary/internal/server"
	"github.com/localrivet/smartsummary/internal/strategy"
	"github.com/localrivet/smartsummary/internal/summarizer"
	"github.com/localrivet/smartsummary/internal/telemetry"
	"github.com/localrivet/smartsummary/internal/tools"
	"github.com/localrivet/smartsummary/internal/vector"
)

// Config represents the configuration for the SmartSummary service.
type Config = config.Config

// Request and SummaryResult are re-exported for embedding applications.
type (
	Request       = summarizer.Request
	SummaryResult = summarizer.SummaryResult
	Fragment      = summarizer.Fragment
)

// Server represents the SmartSummary service: one orchestrator exposed over
// HTTP and MCP.
type Server struct {
	config       *config.Config
	orchestrator *summarizer.Orchestrator
	ledger       *ledger.SQLiteLedger
	httpServer   *server.Server
	toolServer   tools.ToolServer
	logger       *slog.Logger
}

// ServerOptions defines the options for creating a new Server.
type ServerOptions struct {
	Config     *Config      // Pre-filled config. If nil, ConfigPath is used.
	ConfigPath string       // Path to config file. Used if Config is nil. If both are empty, DefaultConfig() is used.
	Logger     *slog.Logger // External logger. If nil, slog.Default() is used.
}

// Components are the pieces CreateComponents builds from a Config.
type Components struct {
	Embedder     vector.Embedder
	Cache        *cache.SimilarityCache
	Gateway      gateway.Client
	Ledger       *ledger.SQLiteLedger
	Metrics      *telemetry.MetricsCollector
	Orchestrator *summarizer.Orchestrator
}

// NewServer creates a new SmartSummary Server with the given options.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg *Config
	var err error

	switch {
	case opts.Config != nil:
		cfg = opts.Config
		logger.Info("Using provided Config object for server initialization")
	case opts.ConfigPath != "":
		logger.Info("Loading configuration for server initialization", "path", opts.ConfigPath)
		cfg, err = config.LoadConfigWithPath(opts.ConfigPath)
		if err != nil {
			logger.Error("Failed to load configuration from path", "path", opts.ConfigPath, "error", err)
			return nil, errortypes.ConfigError(err, "Failed to load configuration from path: "+opts.ConfigPath)
		}
	default:
		logger.Warn("No Config object or ConfigPath provided, using default configuration")
		cfg = DefaultConfig()
	}

	comps, err := CreateComponents(cfg, logger)
	if err != nil {
		logger.Error("Failed to create components during server initialization", "error", err)
		return nil, err
	}

	toolServer := tools.NewSummaryToolServer(comps.Orchestrator, logger)
	if err := toolServer.Initialize(); err != nil {
		_ = comps.Ledger.Close()
		logger.Error("Failed to initialize MCP summary tool server", "error", err)
		return nil, errortypes.ConfigError(err, "Failed to initialize MCP summary tool server")
	}

	httpServer := server.New(comps.Orchestrator, server.Options{
		Addr:    cfg.Server.Addr,
		Origins: cfg.Origins(),
		Logger:  logger,
	})

	logger.Info("SmartSummary server successfully initialized", "provider", comps.Gateway.Name())
	return &Server{
		config:       cfg,
		orchestrator: comps.Orchestrator,
		ledger:       comps.Ledger,
		httpServer:   httpServer,
		toolServer:   toolServer,
		logger:       logger,
	}, nil
}

// DefaultConfig returns the default configuration for the SmartSummary service.
func DefaultConfig() *Config {
	return config.NewConfig()
}

// Start serves the HTTP API until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting SmartSummary HTTP service", "addr", s.config.Server.Addr)
	return s.httpServer.Start()
}

// StartMCP serves the MCP tools over stdio until stdin closes.
func (s *Server) StartMCP() error {
	s.logger.Info("Starting SmartSummary MCP service")
	return s.toolServer.Start()
}

// Stop shuts down both transports and closes the usage ledger.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping SmartSummary service")

	if err := s.httpServer.Stop(ctx); err != nil {
		s.logger.Error("Error stopping HTTP server", "error", err)
		return err
	}
	if err := s.toolServer.Stop(); err != nil {
		s.logger.Error("Error stopping tool server", "error", err)
		return err
	}

	s.logger.Info("Closing usage ledger")
	if err := s.ledger.Close(); err != nil {
		s.logger.Error("Failed to close usage ledger", "error", err)
		return err
	}

	s.logger.Info("SmartSummary service stopped")
	return nil
}

// Summarize runs one blocking summarisation.
func (s *Server) Summarize(ctx context.Context, req Request) (*SummaryResult, error) {
	return s.orchestrator.Summarize(ctx, req)
}

// SummarizeStream runs one streamed summarisation.
func (s *Server) SummarizeStream(ctx context.Context, req Request) (<-chan Fragment, error) {
	return s.orchestrator.SummarizeStream(ctx, req)
}

// Orchestrator returns the orchestrator used by the server.
func (s *Server) Orchestrator() *summarizer.Orchestrator {
	return s.orchestrator
}

// HTTPServer returns the HTTP server.
func (s *Server) HTTPServer() *server.Server {
	return s.httpServer
}

// GetToolServer returns the MCP tool server.
func (s *Server) GetToolServer() tools.ToolServer {
	return s.toolServer
}

// CreateComponents builds the orchestrator and its dependencies from cfg
// without creating any transport. Callers own the returned ledger.
func CreateComponents(cfg *Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	emb, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetricsCollector()
	similarity := cache.New(emb, cache.Options{
		Capacity:      cfg.Cache.Capacity,
		EvictFraction: cfg.Cache.EvictFraction,
		Metrics:       metrics,
		Logger:        logger,
	})

	models := cfg.Models()
	logger.Info("Initializing LLM gateway", "provider", cfg.LLM.Provider, "model", models.Default)
	client, err := gateway.New(gateway.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    models.Default,
		Timeout:  cfg.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Opening usage ledger", "path", cfg.Ledger.Path)
	usage, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}

	thresholds := strategy.DefaultThresholds()
	if cfg.Thresholds.CacheHitSimilarity > 0 {
		thresholds.CacheHitSimilarity = cfg.Thresholds.CacheHitSimilarity
	}
	if cfg.Thresholds.SimilarSimilarity > 0 {
		thresholds.SimilarSimilarity = cfg.Thresholds.SimilarSimilarity
	}
	if cfg.Thresholds.LongTextTokens > 0 {
		thresholds.LongTextTokens = cfg.Thresholds.LongTextTokens
	}
	if cfg.Thresholds.ChunkBudget > 0 {
		thresholds.ChunkBudget = cfg.Thresholds.ChunkBudget
	}

	orch, err := summarizer.New(summarizer.Options{
		Gateway:    client,
		Cache:      similarity,
		Classifier: classifier.NewDefault(),
		Selector:   strategy.NewSelector(thresholds),
		Ledger:     usage,
		Metrics:    metrics,
		Logger:     logger,
		Models: summarizer.Models{
			Default:  models.Default,
			Complex:  models.Complex,
			Long:     models.Long,
			Override: cfg.LLM.Model,
		},
		DefaultBudget: cfg.LLM.CostBudget,
		Temperature:   cfg.LLM.Temperature,
	})
	if err != nil {
		_ = usage.Close()
		return nil, err
	}

	logger.Info("Components successfully initialized",
		"embedder", cfg.Cache.Embedder, "dimensions", emb.Dimensions(), "cache_capacity", cfg.Cache.Capacity)
	return &Components{
		Embedder:     emb,
		Cache:        similarity,
		Gateway:      client,
		Ledger:       usage,
		Metrics:      metrics,
		Orchestrator: orch,
	}, nil
}

func newEmbedder(cfg *Config, logger *slog.Logger) (vector.Embedder, error) {
	dimensions := cfg.Cache.Dimensions
	if dimensions <= 0 {
		dimensions = vector.DefaultEmbeddingDimensions
	}

	logger.Info("Initializing embedder", "provider", cfg.Cache.Embedder, "dimensions", dimensions)

	var emb vector.Embedder
	switch cfg.Cache.Embedder {
	case "hashing", "":
		emb = vector.NewHashingEmbedder(dimensions)
	case "mock":
		emb = vector.NewMockEmbedder(dimensions)
	case "openai":
		if cfg.Cache.EmbeddingAPIKey == "" {
			logger.Warn("No embedding API key configured, using hashing embedder")
			emb = vector.NewHashingEmbedder(dimensions)
			break
		}
		openaiEmb, err := vector.NewOpenAIEmbedder(cfg.Cache.EmbeddingAPIKey, cfg.Cache.EmbeddingModel, "", dimensions)
		if err != nil {
			return nil, errortypes.ConfigError(err, "Failed to create OpenAI embedder")
		}
		emb = openaiEmb
	default:
		return nil, errortypes.ConfigError(fmt.Errorf("unknown embedder: %s", cfg.Cache.Embedder), "invalid cache embedder")
	}

	if err := emb.Initialize(); err != nil {
		logger.Error("Failed to initialize embedder", "error", err)
		return nil, errortypes.ConfigError(err, "Failed to initialize embedder")
	}
	return emb, nil
}
