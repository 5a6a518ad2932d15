package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/localrivet/configurator"
)

// Config represents the SmartSummary configuration
type Config struct {
	// LLM contains language-model gateway configuration.
	LLM struct {
		// Provider is the gateway to use ("openai", "anthropic", "extractive").
		Provider string `json:"provider" env:"LLM_PROVIDER" validate:"required"`

		// APIKey is the provider credential. Requests may supply their own.
		APIKey string `json:"api_key" env:"LLM_API_KEY"`

		// BaseURL overrides the provider endpoint.
		BaseURL string `json:"base_url" env:"LLM_BASE_URL"`

		// Model, when set, is used for every request.
		Model string `json:"model" env:"LLM_MODEL"`

		// DefaultModel, ComplexModel and LongModel are picked per request when
		// Model is empty. Unset ones fall back to the provider's defaults.
		DefaultModel string `json:"default_model" env:"LLM_DEFAULT_MODEL"`
		ComplexModel string `json:"complex_model" env:"LLM_COMPLEX_MODEL"`
		LongModel    string `json:"long_model" env:"LLM_LONG_MODEL"`

		// TimeoutSeconds bounds every provider call.
		TimeoutSeconds int `json:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" validate:"min:1"`

		// Temperature is the sampling temperature.
		Temperature float64 `json:"temperature" env:"LLM_TEMPERATURE"`

		// CostBudget is the per-request budget in dollars when a request gives none.
		CostBudget float64 `json:"cost_budget" env:"LLM_COST_BUDGET"`
	} `json:"llm"`

	// Cache contains similarity-cache configuration.
	Cache struct {
		// Capacity is the maximum number of cached summaries.
		Capacity int `json:"capacity" env:"CACHE_CAPACITY" validate:"min:1"`

		// EvictFraction is the share of entries dropped when the cache is full.
		EvictFraction float64 `json:"evict_fraction" env:"CACHE_EVICT_FRACTION"`

		// Embedder is the embedding backend ("hashing", "openai", "mock").
		Embedder string `json:"embedder" env:"CACHE_EMBEDDER"`

		// Dimensions is the embedding size.
		Dimensions int `json:"dimensions" env:"CACHE_DIMENSIONS" validate:"min:1"`

		// EmbeddingModel is used by the openai embedder.
		EmbeddingModel string `json:"embedding_model" env:"CACHE_EMBEDDING_MODEL"`

		// EmbeddingAPIKey authenticates the openai embedder. Defaults to OPENAI_API_KEY.
		EmbeddingAPIKey string `json:"embedding_api_key" env:"CACHE_EMBEDDING_API_KEY"`
	} `json:"cache"`

	// Thresholds tunes strategy selection.
	Thresholds struct {
		CacheHitSimilarity float64 `json:"cache_hit_similarity" env:"THRESHOLD_CACHE_HIT"`
		SimilarSimilarity  float64 `json:"similar_similarity" env:"THRESHOLD_SIMILAR"`
		LongTextTokens     int     `json:"long_text_tokens" env:"THRESHOLD_LONG_TEXT_TOKENS"`
		ChunkBudget        float64 `json:"chunk_budget" env:"THRESHOLD_CHUNK_BUDGET"`
	} `json:"thresholds"`

	// Server contains HTTP server configuration.
	Server struct {
		// Addr is the listen address.
		Addr string `json:"addr" env:"SERVER_ADDR" validate:"required"`

		// AllowedOrigins is a comma-separated CORS origin list; "*" allows all.
		AllowedOrigins string `json:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS"`
	} `json:"server"`

	// Ledger contains usage-ledger configuration.
	Ledger struct {
		// Path is the SQLite path. The default keeps the ledger in memory.
		Path string `json:"path" env:"LEDGER_PATH"`
	} `json:"ledger"`

	// Logging contains logging-related configuration.
	Logging struct {
		// Level is the minimum log level to display ("debug", "info", "warn", "error").
		Level string `json:"level" env:"LOG_LEVEL" validate:"required"`

		// Format is the log format to use ("text", "json").
		Format string `json:"format" env:"LOG_FORMAT"`
	} `json:"logging"`

	// Internal state (not saved to config file)
	configPath     string       `json:"-"`
	mutex          sync.RWMutex `json:"-"`
	lastModifiedAt time.Time    `json:"-"`
}

// Environment holds the well-known unprefixed variables shared with other
// tools. They take precedence over the config file.
type Environment struct {
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	Provider        string `env:"LLM_PROVIDER"`
	Model           string `env:"LLM_MODEL"`
}

// Default configuration values
const (
	DefaultConfigFilename = ".smartsummaryconfig"
	DefaultEnvPrefix      = "SMARTSUMMARY"
	DefaultProvider       = "openai"
	DefaultTimeoutSeconds = 30
	DefaultTemperature    = 0.3
	DefaultCostBudget     = 0.01
	DefaultCacheCapacity  = 1000
	DefaultEvictFraction  = 0.2
	DefaultEmbedder       = "hashing"
	DefaultDimensions     = 384
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultAddr           = ":8000"
	DefaultLedgerPath     = "file::memory:?mode=memory"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// ModelSet names the models picked for ordinary, complex and long requests.
type ModelSet struct {
	Default string
	Complex string
	Long    string
}

// ProviderModels are the model defaults for each provider. The extractive
// provider has none.
var ProviderModels = map[string]ModelSet{
	"openai": {
		Default: "gpt-3.5-turbo",
		Complex: "gpt-4-turbo",
		Long:    "gpt-4",
	},
	"anthropic": {
		Default: "claude-3-5-haiku-latest",
		Complex: "claude-sonnet-4-20250514",
		Long:    "claude-sonnet-4-20250514",
	},
}

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	config := &Config{}
	config.LLM.Provider = DefaultProvider
	config.LLM.TimeoutSeconds = DefaultTimeoutSeconds
	config.LLM.Temperature = DefaultTemperature
	config.LLM.CostBudget = DefaultCostBudget
	config.Cache.Capacity = DefaultCacheCapacity
	config.Cache.EvictFraction = DefaultEvictFraction
	config.Cache.Embedder = DefaultEmbedder
	config.Cache.Dimensions = DefaultDimensions
	config.Cache.EmbeddingModel = DefaultEmbeddingModel
	config.Thresholds.CacheHitSimilarity = 0.95
	config.Thresholds.SimilarSimilarity = 0.8
	config.Thresholds.LongTextTokens = 2000
	config.Thresholds.ChunkBudget = 0.005
	config.Server.Addr = DefaultAddr
	config.Server.AllowedOrigins = "*"
	config.Ledger.Path = DefaultLedgerPath
	config.Logging.Level = DefaultLogLevel
	config.Logging.Format = DefaultLogFormat
	return config
}

// LoadConfig loads the configuration from the default path
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath(DefaultConfigFilename)
}

// LoadConfigWithPath loads the configuration from a specific path, then
// applies the unprefixed environment variables.
func LoadConfigWithPath(configPath string) (*Config, error) {
	// Stdout may carry the MCP transport, so configuration logs go to stderr.
	stdLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := NewConfig()

	if configPath == DefaultConfigFilename {
		foundPath, err := configurator.FindConfigFile(configPath)
		if err == nil {
			configPath = foundPath
			stdLogger.Debug("Found config file at " + foundPath)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		stdLogger.Debug("Config file not found, using default configuration", "path", configPath)
	} else {
		stdLogger.Info("Loading configuration", "path", configPath)

		config := configurator.New(stdLogger).
			WithProvider(configurator.NewDefaultProvider()).
			WithProvider(configurator.NewFileProvider(configPath)).
			WithProvider(configurator.NewEnvProvider(DefaultEnvPrefix)).
			WithValidator(configurator.NewDefaultValidator())

		if err := config.Load(context.Background(), cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if err := cfg.ApplyEnvironment(); err != nil {
		return nil, err
	}

	cfg.configPath = configPath
	cfg.lastModifiedAt = time.Now()
	return cfg, nil
}

// ApplyEnvironment overlays Environment onto c. A provider credential is
// only taken from the environment when the config does not set one.
func (c *Config) ApplyEnvironment() error {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	c.applyEnvironment(e)
	return nil
}

func (c *Config) applyEnvironment(e Environment) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e.Provider != "" {
		c.LLM.Provider = strings.ToLower(strings.TrimSpace(e.Provider))
	}
	if e.Model != "" {
		c.LLM.Model = e.Model
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = e.AnthropicAPIKey
		case "openai", "":
			c.LLM.APIKey = e.OpenAIAPIKey
		}
	}
	if c.Cache.EmbeddingAPIKey == "" {
		c.Cache.EmbeddingAPIKey = e.OpenAIAPIKey
	}
}

// Models returns the configured models, with unset ones taken from the
// provider's defaults.
func (c *Config) Models() ModelSet {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	defaults := ProviderModels[c.LLM.Provider]
	models := ModelSet{
		Default: c.LLM.DefaultModel,
		Complex: c.LLM.ComplexModel,
		Long:    c.LLM.LongModel,
	}
	if models.Default == "" {
		models.Default = defaults.Default
	}
	if models.Complex == "" {
		models.Complex = defaults.Complex
	}
	if models.Long == "" {
		models.Long = defaults.Long
	}
	return models
}

// Timeout returns the provider call timeout.
func (c *Config) Timeout() time.Duration {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// Origins returns the CORS origin list.
func (c *Config) Origins() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var origins []string
	for _, o := range strings.Split(c.Server.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// SaveToFile saves the configuration to the specified file
func (c *Config) SaveToFile(path string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := configurator.SaveToFile(c, path, configurator.FormatJSON); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	c.configPath = path
	c.lastModifiedAt = time.Now()
	return nil
}

// Save saves the configuration to the last used file path
func (c *Config) Save() error {
	if c.configPath == "" {
		c.configPath = DefaultConfigFilename
	}
	return c.SaveToFile(c.configPath)
}

// GetConfigPath returns the path of the currently loaded configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}
