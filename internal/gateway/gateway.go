// Package gateway is the single point of contact with hosted language models.
// Every client maps provider failures onto the errortypes taxonomy and makes
// exactly one attempt per call.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

const (
	// Provider names
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderExtractive = "extractive"

	// DefaultTimeout bounds every provider call.
	DefaultTimeout = 30 * time.Second
)

// Request is a single prompt sent to a model.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64

	// Source is the unprompted input text. Hosted models ignore it; the
	// extractive client summarises it directly.
	Source string
}

// Usage reports token consumption for a call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is a completed, non-streamed generation.
type Response struct {
	Text  string
	Model string
	Usage
}

// Stream yields generated text fragments in order. Next blocks until a fragment
// is ready or the stream ends; Err reports why it ended. Close releases the
// underlying connection and may be called at any time, more than once.
type Stream interface {
	Next() bool
	Current() string
	Err() error
	Close() error

	// Usage is known once Next has returned false. Providers that do not report
	// usage return zero values.
	Usage() Usage

	// Model is the model that served the stream, known once Next has returned
	// false. It is empty when the provider does not report one.
	Model() string
}

// Client is a language model provider.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (Stream, error)

	// ValidateKey issues the smallest possible request with key. It returns
	// nil when the provider accepts the key.
	ValidateKey(ctx context.Context, key string) error

	// WithAPIKey returns a client bound to key, sharing all other settings.
	WithAPIKey(key string) Client
}

// Config holds the settings for constructing a Client.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// New returns the client for cfg.Provider. Hosted providers may be created
// without a key when callers intend to supply one per request via WithAPIKey.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		cfg.Provider = ProviderOpenAI
		return NewOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	case ProviderExtractive:
		return NewExtractiveClient(), nil
	default:
		return nil, errortypes.ConfigError(fmt.Errorf("unknown provider: %s", cfg.Provider), "invalid llm provider")
	}
}

func requireKey(provider, key string) error {
	if key == "" {
		return errortypes.AuthenticationError(
			fmt.Errorf("%s API key not provided", provider), "missing API key").
			WithField("provider", provider)
	}
	return nil
}

// withTimeout applies the client timeout to ctx.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
