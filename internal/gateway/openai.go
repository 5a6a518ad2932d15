package gateway

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

// DefaultOpenAIModel is used when neither the request nor the config names a model.
const DefaultOpenAIModel = "gpt-3.5-turbo"

// OpenAIClient talks to the Chat Completions API through the official SDK.
type OpenAIClient struct {
	cfg    Config
	client openai.Client
}

// NewOpenAIClient creates an OpenAIClient. SDK retries are disabled.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	cfg.Provider = ProviderOpenAI

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

	return &OpenAIClient{cfg: cfg, client: openai.NewClient(opts...)}
}

// Name returns the provider name
func (c *OpenAIClient) Name() string {
	return ProviderOpenAI
}

// WithAPIKey implements Client.
func (c *OpenAIClient) WithAPIKey(key string) Client {
	cfg := c.cfg
	cfg.APIKey = key
	return NewOpenAIClient(cfg)
}

func (c *OpenAIClient) model(req Request) string {
	switch {
	case req.Model != "":
		return req.Model
	case c.cfg.Model != "":
		return c.cfg.Model
	default:
		return DefaultOpenAIModel
	}
}

func (c *OpenAIClient) params(req Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model(req)),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := requireKey(ProviderOpenAI, c.cfg.APIKey); err != nil {
		return nil, err
	}

	callCtx, cancel := withTimeout(ctx, c.cfg.timeout())
	defer cancel()

	resp, err := c.client.Chat.Completions.New(callCtx, c.params(req))
	if err != nil {
		return nil, finish(ProviderOpenAI, callCtx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errortypes.ProviderError(fmt.Errorf("no choices in response"), "empty response from provider").
			WithField("provider", ProviderOpenAI)
	}

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// Stream implements Client.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := requireKey(ProviderOpenAI, c.cfg.APIKey); err != nil {
		return nil, err
	}

	callCtx, cancel := withTimeout(ctx, c.cfg.timeout())
	params := c.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	return &openAIStream{
		ctx:    callCtx,
		cancel: cancel,
		stream: c.client.Chat.Completions.NewStreaming(callCtx, params),
	}, nil
}

// ValidateKey implements Client.
func (c *OpenAIClient) ValidateKey(ctx context.Context, key string) error {
	keyed := c.WithAPIKey(key)
	_, err := keyed.Complete(ctx, Request{Prompt: "ping", MaxTokens: 1})
	return err
}

type openAIStream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
	usage   Usage
	model   string
}

func (s *openAIStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if chunk.Model != "" {
			s.model = chunk.Model
		}
		if chunk.Usage.TotalTokens > 0 {
			s.usage = Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
			}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		s.current = chunk.Choices[0].Delta.Content
		return true
	}
	return false
}

func (s *openAIStream) Current() string { return s.current }

func (s *openAIStream) Err() error {
	return finish(ProviderOpenAI, s.ctx, s.stream.Err())
}

func (s *openAIStream) Close() error {
	defer s.cancel()
	return s.stream.Close()
}

func (s *openAIStream) Usage() Usage { return s.usage }

func (s *openAIStream) Model() string { return s.model }
