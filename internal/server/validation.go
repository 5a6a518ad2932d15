package server

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/localrivet/smartsummary/internal/summarizer"
)

// Request limits
const (
	MaxTextLength    = 10000
	MaxSummaryLength = 1000
)

// SummarizeRequest is the body of POST /summarize and POST /summarize/stream.
type SummarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	APIKey    string `json:"api_key,omitempty"`
}

// SummarizeResponse is the body of a successful POST /summarize.
type SummarizeResponse struct {
	Summary        string `json:"summary"`
	OriginalLength int    `json:"original_length"`
	SummaryLength  int    `json:"summary_length"`
}

// ValidateKeyRequest is the body of POST /validate-api-key.
type ValidateKeyRequest struct {
	APIKey string `json:"api_key"`
}

// ValidateKeyResponse is the body of a POST /validate-api-key response.
type ValidateKeyResponse struct {
	Valid    bool   `json:"valid"`
	Message  string `json:"message"`
	Provider string `json:"provider"`
}

// errEmptyText is reported as a bad request rather than a field error.
var errEmptyText = errors.New("text cannot be empty")

// Validate checks the request ranges. An empty or whitespace text returns
// errEmptyText; range failures return validation.Errors keyed by JSON field.
func (r SummarizeRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errEmptyText
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.RuneLength(1, MaxTextLength)),
		validation.Field(&r.MaxLength, validation.Min(0), validation.Max(MaxSummaryLength)),
	)
}

// toOrchestrator converts the body into an orchestrator request.
func (r SummarizeRequest) toOrchestrator(requestID string) summarizer.Request {
	maxLength := r.MaxLength
	if maxLength == 0 {
		maxLength = summarizer.DefaultMaxLength
	}
	return summarizer.Request{
		Text:      r.Text,
		MaxLength: maxLength,
		APIKey:    r.APIKey,
		RequestID: requestID,
	}
}

// Validate requires a key.
func (r ValidateKeyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.APIKey, validation.Required),
	)
}

// fieldErrors flattens ozzo validation errors for the response details.
func fieldErrors(err error) map[string]interface{} {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return map[string]interface{}{"error": err.Error()}
	}
	details := make(map[string]interface{}, len(errs))
	for field, fieldErr := range errs {
		details[field] = fieldErr.Error()
	}
	return details
}
