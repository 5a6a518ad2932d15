package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

const (
	// DefaultAnthropicModel is used when neither the request nor the config names a model.
	DefaultAnthropicModel = "claude-3-5-haiku-latest"

	// The Messages API requires max_tokens on every request.
	anthropicDefaultMaxTokens = 1024
)

// AnthropicClient talks to the Messages API through the official SDK.
type AnthropicClient struct {
	cfg    Config
	client anthropic.Client
}

// NewAnthropicClient creates an AnthropicClient. SDK retries are disabled.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	cfg.Provider = ProviderAnthropic

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &AnthropicClient{cfg: cfg, client: anthropic.NewClient(opts...)}
}

// Name returns the provider name
func (c *AnthropicClient) Name() string {
	return ProviderAnthropic
}

// WithAPIKey implements Client.
func (c *AnthropicClient) WithAPIKey(key string) Client {
	cfg := c.cfg
	cfg.APIKey = key
	return NewAnthropicClient(cfg)
}

func (c *AnthropicClient) model(req Request) string {
	switch {
	case req.Model != "":
		return req.Model
	case c.cfg.Model != "":
		return c.cfg.Model
	default:
		return DefaultAnthropicModel
	}
}

func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model(req)),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := requireKey(ProviderAnthropic, c.cfg.APIKey); err != nil {
		return nil, err
	}

	callCtx, cancel := withTimeout(ctx, c.cfg.timeout())
	defer cancel()

	message, err := c.client.Messages.New(callCtx, c.params(req))
	if err != nil {
		return nil, finish(ProviderAnthropic, callCtx, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errortypes.ProviderError(fmt.Errorf("no text content in response"), "empty response from provider").
			WithField("provider", ProviderAnthropic)
	}

	return &Response{
		Text:  text.String(),
		Model: string(message.Model),
		Usage: Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
		},
	}, nil
}

// Stream implements Client.
func (c *AnthropicClient) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := requireKey(ProviderAnthropic, c.cfg.APIKey); err != nil {
		return nil, err
	}

	callCtx, cancel := withTimeout(ctx, c.cfg.timeout())
	return &anthropicStream{
		ctx:    callCtx,
		cancel: cancel,
		stream: c.client.Messages.NewStreaming(callCtx, c.params(req)),
	}, nil
}

// ValidateKey implements Client.
func (c *AnthropicClient) ValidateKey(ctx context.Context, key string) error {
	keyed := c.WithAPIKey(key)
	_, err := keyed.Complete(ctx, Request{Prompt: "ping", MaxTokens: 1})
	return err
}

type anthropicStream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	current string
	usage   Usage
	model   string
}

func (s *anthropicStream) Next() bool {
	for s.stream.Next() {
		switch event := s.stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			s.usage.PromptTokens = int(event.Message.Usage.InputTokens)
			s.model = string(event.Message.Model)
		case anthropic.MessageDeltaEvent:
			s.usage.CompletionTokens = int(event.Usage.OutputTokens)
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				s.current = delta.Text
				return true
			}
		}
	}
	return false
}

func (s *anthropicStream) Current() string { return s.current }

func (s *anthropicStream) Err() error {
	return finish(ProviderAnthropic, s.ctx, s.stream.Err())
}

func (s *anthropicStream) Close() error {
	defer s.cancel()
	return s.stream.Close()
}

func (s *anthropicStream) Usage() Usage { return s.usage }

func (s *anthropicStream) Model() string { return s.model }
