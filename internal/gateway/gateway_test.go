package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/smartsummary/internal/errortypes"
	"github.com/localrivet/smartsummary/internal/gateway"
	"github.com/localrivet/smartsummary/internal/gateway/gatewaytest"
)

const openAICompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-3.5-turbo-0125",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "A short summary."}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 42, "completion_tokens": 4, "total_tokens": 46}
}`

const anthropicMessage = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-haiku-latest",
  "content": [{"type": "text", "text": "A short summary."}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 40, "output_tokens": 5}
}`

func newClient(t *testing.T, provider, baseURL string, timeout time.Duration) gateway.Client {
	t.Helper()
	if provider == gateway.ProviderOpenAI {
		baseURL += "/v1/"
	} else {
		baseURL += "/"
	}
	c, err := gateway.New(gateway.Config{Provider: provider, APIKey: "sk-test", BaseURL: baseURL, Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := gateway.New(gateway.Config{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Equal(t, errortypes.ErrorTypeConfig, errortypes.TypeOf(err))

	c, err := gateway.New(gateway.Config{})
	require.NoError(t, err)
	assert.Equal(t, gateway.ProviderOpenAI, c.Name())
}

func TestOpenAIComplete(t *testing.T) {
	srv, rec := gatewaytest.MockServer(t, gatewaytest.MockResponseConfig{StatusCode: http.StatusOK, ResponseBody: openAICompletion})
	c := newClient(t, gateway.ProviderOpenAI, srv.URL, time.Second)

	resp, err := c.Complete(context.Background(), gateway.Request{
		System:    "be brief",
		Prompt:    "summarize this",
		MaxTokens: 64,
		Model:     "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", resp.Text)
	assert.Equal(t, 42, resp.PromptTokens)
	assert.Equal(t, 4, resp.CompletionTokens)

	assert.True(t, strings.HasSuffix(rec.LastPath(), "/chat/completions"))
	assert.Equal(t, "gpt-4o-mini", rec.LastBody()["model"])
	assert.Equal(t, "sk-test", rec.LastKey())
	assert.Len(t, rec.LastBody()["messages"], 2)
}

func TestAnthropicComplete(t *testing.T) {
	srv, rec := gatewaytest.MockServer(t, gatewaytest.MockResponseConfig{StatusCode: http.StatusOK, ResponseBody: anthropicMessage})
	c := newClient(t, gateway.ProviderAnthropic, srv.URL, time.Second)

	resp, err := c.Complete(context.Background(), gateway.Request{System: "be brief", Prompt: "summarize this", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", resp.Text)
	assert.Equal(t, 40, resp.PromptTokens)
	assert.Equal(t, 5, resp.CompletionTokens)

	assert.True(t, strings.HasSuffix(rec.LastPath(), "/v1/messages"))
	assert.Equal(t, gateway.DefaultAnthropicModel, rec.LastBody()["model"])
	assert.Equal(t, "sk-test", rec.LastKey())
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   errortypes.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, errortypes.ErrorTypeAuthentication},
		{"rate limited", http.StatusTooManyRequests, errortypes.ErrorTypeRateLimit},
		{"forbidden", http.StatusForbidden, errortypes.ErrorTypePermission},
		{"server error", http.StatusInternalServerError, errortypes.ErrorTypeProvider},
		{"bad request", http.StatusBadRequest, errortypes.ErrorTypeProvider},
	}

	bodies := map[string]string{
		gateway.ProviderOpenAI:    `{"error":{"message":"upstream says no","type":"invalid_request_error","param":null,"code":null}}`,
		gateway.ProviderAnthropic: `{"type":"error","error":{"type":"api_error","message":"upstream says no"}}`,
	}

	for provider, body := range bodies {
		for _, tt := range tests {
			t.Run(provider+"/"+tt.name, func(t *testing.T) {
				srv, rec := gatewaytest.MockServer(t, gatewaytest.MockResponseConfig{StatusCode: tt.status, ResponseBody: body})
				c := newClient(t, provider, srv.URL, time.Second)

				_, err := c.Complete(context.Background(), gateway.Request{Prompt: "x", MaxTokens: 8})
				require.Error(t, err)
				assert.Equal(t, tt.want, errortypes.TypeOf(err))
				assert.Contains(t, err.Error(), "upstream says no")
				assert.Equal(t, 1, rec.Count(), "no retries")
			})
		}
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	for _, provider := range []string{gateway.ProviderOpenAI, gateway.ProviderAnthropic} {
		t.Run(provider, func(t *testing.T) {
			c := newClient(t, provider, srv.URL, 50*time.Millisecond)
			_, err := c.Complete(context.Background(), gateway.Request{Prompt: "x", MaxTokens: 8})
			require.Error(t, err)
			assert.True(t, errortypes.IsTimeoutError(err), "got %v", err)
		})
	}
}

func TestMissingKey(t *testing.T) {
	for _, provider := range []string{gateway.ProviderOpenAI, gateway.ProviderAnthropic} {
		c, err := gateway.New(gateway.Config{Provider: provider})
		require.NoError(t, err)

		_, err = c.Complete(context.Background(), gateway.Request{Prompt: "x"})
		assert.True(t, errortypes.IsAuthenticationError(err))

		_, err = c.Stream(context.Background(), gateway.Request{Prompt: "x"})
		assert.True(t, errortypes.IsAuthenticationError(err))
	}
}

func TestValidateKeyUsesGivenKey(t *testing.T) {
	srv, rec := gatewaytest.MockServer(t, gatewaytest.MockResponseConfig{StatusCode: http.StatusOK, ResponseBody: openAICompletion})
	c := newClient(t, gateway.ProviderOpenAI, srv.URL, time.Second)

	require.NoError(t, c.ValidateKey(context.Background(), "sk-other"))
	assert.Equal(t, "sk-other", rec.LastKey())
	assert.EqualValues(t, 1, rec.LastBody()["max_tokens"])

	bad, _ := gatewaytest.MockServer(t, gatewaytest.MockResponseConfig{
		StatusCode:   http.StatusUnauthorized,
		ResponseBody: `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
	})
	c = newClient(t, gateway.ProviderOpenAI, bad.URL, time.Second)
	err := c.ValidateKey(context.Background(), "sk-bad")
	assert.True(t, errortypes.IsAuthenticationError(err))
}

const openAIStreamBody = "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-3.5-turbo-0125\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"\"},\"finish_reason\":null}]}\n\n" +
	"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-3.5-turbo-0125\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hello \"},\"finish_reason\":null}]}\n\n" +
	"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-3.5-turbo-0125\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"world\"},\"finish_reason\":\"stop\"}]}\n\n" +
	"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-3.5-turbo-0125\",\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":2,\"total_tokens\":12}}\n\n" +
	"data: [DONE]\n\n"

const anthropicStreamBody = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"model\":\"claude-3-5-haiku-20241022\",\"content\":[],\"stop_reason\":null,\"stop_sequence\":null,\"usage\":{\"input_tokens\":12,\"output_tokens\":1}}}\n\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello \"}}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"world\"}}\n\n" +
	"event: content_block_stop\n" +
	"data: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
	"event: message_delta\n" +
	"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":2}}\n\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n\n"

func drain(t *testing.T, s gateway.Stream) string {
	t.Helper()
	defer s.Close()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Current())
	}
	require.NoError(t, s.Err())
	return b.String()
}

func TestStreaming(t *testing.T) {
	tests := []struct {
		provider   string
		body       string
		wantPrompt int
		wantModel  string
	}{
		{gateway.ProviderOpenAI, openAIStreamBody, 10, "gpt-3.5-turbo-0125"},
		{gateway.ProviderAnthropic, anthropicStreamBody, 12, "claude-3-5-haiku-20241022"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			srv, _ := gatewaytest.MockServer(t, gatewaytest.MockResponseConfig{
				StatusCode:   http.StatusOK,
				ResponseBody: tt.body,
				Headers:      map[string]string{"Content-Type": "text/event-stream"},
			})
			c := newClient(t, tt.provider, srv.URL, time.Second)

			s, err := c.Stream(context.Background(), gateway.Request{Prompt: "x", MaxTokens: 16})
			require.NoError(t, err)
			assert.Equal(t, "Hello world", drain(t, s))
			assert.Equal(t, tt.wantPrompt, s.Usage().PromptTokens)
			assert.Equal(t, 2, s.Usage().CompletionTokens)
			assert.Equal(t, tt.wantModel, s.Model())
		})
	}
}

func TestStreamingErrorStatus(t *testing.T) {
	srv, _ := gatewaytest.MockServer(t, gatewaytest.MockResponseConfig{
		StatusCode:   http.StatusTooManyRequests,
		ResponseBody: `{"error":{"message":"slow down","type":"rate_limit_error"}}`,
	})
	c := newClient(t, gateway.ProviderOpenAI, srv.URL, time.Second)

	s, err := c.Stream(context.Background(), gateway.Request{Prompt: "x"})
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Next())
	assert.True(t, errortypes.IsRateLimitError(s.Err()))
}

func TestNormalize(t *testing.T) {
	assert.NoError(t, gateway.Normalize("p", nil))

	already := errortypes.AuthenticationError(errors.New("x"), "bad key")
	assert.Same(t, already, gateway.Normalize("p", already))

	assert.True(t, errortypes.IsTimeoutError(gateway.Normalize("p", context.DeadlineExceeded)))
	assert.True(t, errortypes.IsProviderError(gateway.Normalize("p", context.Canceled)))
	assert.True(t, errortypes.IsProviderError(gateway.Normalize("p", errors.New("connection reset"))))
	assert.True(t, errortypes.IsRateLimitError(gateway.Normalize("p", &gateway.StatusError{StatusCode: 429, Message: "slow"})))
}

func TestExtractiveClient(t *testing.T) {
	c, err := gateway.New(gateway.Config{Provider: gateway.ProviderExtractive})
	require.NoError(t, err)
	require.NoError(t, c.ValidateKey(context.Background(), ""))

	source := "First sentence has five words. Second one is here too. Third sentence will not fit in the budget at all."
	resp, err := c.Complete(context.Background(), gateway.Request{Prompt: "Summarize: " + source, Source: source, MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, "First sentence has five words. Second one is here too.", resp.Text)
	assert.Greater(t, resp.PromptTokens, 0)

	long := strings.Repeat("word ", 100)
	resp, err = c.Complete(context.Background(), gateway.Request{Source: long, MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, 12, len(strings.Fields(strings.TrimSuffix(resp.Text, "..."))))

	s, err := c.Stream(context.Background(), gateway.Request{Source: source, MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, "First sentence has five words. Second one is here too.", drain(t, s))
	assert.Equal(t, gateway.ProviderExtractive, s.Model())
}

func TestPricing(t *testing.T) {
	p := gateway.DefaultPricingTable()

	assert.InDelta(t, (1000*0.0005+500*0.0015)/1000, p.Cost("gpt-3.5-turbo", 1000, 500), 1e-12)
	assert.Equal(t, p["gpt-4o-mini"], p.Lookup("gpt-4o-mini-2024-07-18"))
	assert.Equal(t, p["gpt-4o"], p.Lookup("gpt-4o-2024-08-06"))
	assert.Equal(t, gateway.DefaultPricing, p.Lookup("mystery-model"))
	assert.Zero(t, p.Cost(gateway.ProviderExtractive, 1000, 1000))

	turbo := p.Lookup("gpt-4-turbo")
	assert.NotEqual(t, p["gpt-4"], turbo)
	assert.Equal(t, turbo, p.Lookup("gpt-4-turbo-2024-04-09"))
	assert.InDelta(t, (1000*0.01+1000*0.03)/1000, p.Cost("gpt-4-turbo", 1000, 1000), 1e-12)
}
