package gateway

import (
	"context"
	"strings"

	"github.com/localrivet/smartsummary/internal/tokenizer"
)

// ExtractiveClient is a local, keyless client. It summarises by keeping the
// leading sentences of the source text that fit within the word budget
// implied by MaxTokens.
type ExtractiveClient struct{}

// NewExtractiveClient creates an ExtractiveClient.
func NewExtractiveClient() *ExtractiveClient {
	return &ExtractiveClient{}
}

// Name returns the provider name
func (c *ExtractiveClient) Name() string {
	return ProviderExtractive
}

// WithAPIKey implements Client. The key is ignored.
func (c *ExtractiveClient) WithAPIKey(string) Client {
	return c
}

// ValidateKey implements Client. Every key is accepted.
func (c *ExtractiveClient) ValidateKey(context.Context, string) error {
	return nil
}

// Complete implements Client.
func (c *ExtractiveClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, Normalize(ProviderExtractive, err)
	}

	source := req.Source
	if source == "" {
		source = req.Prompt
	}
	summary := extract(source, budgetWords(req.MaxTokens))

	est := tokenizer.NewHeuristicEstimator()
	return &Response{
		Text:  summary,
		Model: ProviderExtractive,
		Usage: Usage{
			PromptTokens:     est.CountTokens(req.System) + est.CountTokens(req.Prompt),
			CompletionTokens: est.CountTokens(summary),
		},
	}, nil
}

// Stream implements Client. The summary is emitted one word at a time.
func (c *ExtractiveClient) Stream(ctx context.Context, req Request) (Stream, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return NewWordStream(ctx, resp.Text, resp.Model, resp.Usage), nil
}

// budgetWords converts an output token budget back into words.
func budgetWords(maxTokens int) int {
	if maxTokens <= 0 {
		return 50
	}
	words := maxTokens * 3 / 4
	if words < 1 {
		words = 1
	}
	return words
}

// extract keeps whole leading sentences while they fit in limit words. When
// the first sentence alone is too long it is cut at the word limit.
func extract(text string, limit int) string {
	sentences := tokenizer.Sentences(text)
	if len(sentences) == 0 {
		return ""
	}

	var picked []string
	used := 0
	for _, s := range sentences {
		n := tokenizer.CountWords(s)
		if used+n > limit {
			break
		}
		picked = append(picked, s+".")
		used += n
	}

	if len(picked) == 0 {
		words := tokenizer.Words(sentences[0])
		return strings.Join(words[:limit], " ") + "..."
	}
	return strings.Join(picked, " ")
}

// WordStream replays a finished text as a stream of words, each but the last
// followed by a space.
type WordStream struct {
	ctx     context.Context
	words   []string
	pos     int
	current string
	usage   Usage
	model   string
	err     error
	closed  bool
}

// NewWordStream creates a WordStream over text, reported as served by model.
func NewWordStream(ctx context.Context, text, model string, usage Usage) *WordStream {
	return &WordStream{ctx: ctx, words: strings.Fields(text), model: model, usage: usage}
}

// Next implements Stream.
func (s *WordStream) Next() bool {
	if s.closed || s.pos >= len(s.words) {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.current = s.words[s.pos]
	if s.pos < len(s.words)-1 {
		s.current += " "
	}
	s.pos++
	return true
}

// Current implements Stream.
func (s *WordStream) Current() string { return s.current }

// Err implements Stream.
func (s *WordStream) Err() error { return s.err }

// Close implements Stream.
func (s *WordStream) Close() error {
	s.closed = true
	return nil
}

// Usage implements Stream.
func (s *WordStream) Usage() Usage { return s.usage }

// Model implements Stream.
func (s *WordStream) Model() string { return s.model }
