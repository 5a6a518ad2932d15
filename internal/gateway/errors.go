package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

// StatusError is an HTTP failure from a provider that is not reached through an SDK.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Normalize maps a provider failure onto the errortypes taxonomy. The original
// error is kept as the cause. Errors that are already classified pass through.
func Normalize(provider string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *errortypes.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errortypes.TimeoutError(err, "provider request timed out").WithField("provider", provider)
	}

	var classified *errortypes.AppError
	switch statusCode(err) {
	case http.StatusUnauthorized:
		classified = errortypes.AuthenticationError(err, "invalid API key")
	case http.StatusTooManyRequests:
		classified = errortypes.RateLimitError(err, "rate limit exceeded")
	case http.StatusForbidden:
		classified = errortypes.PermissionError(err, "insufficient permissions")
	default:
		classified = errortypes.ProviderError(err, "provider request failed")
	}
	return classified.WithField("provider", provider)
}

func statusCode(err error) int {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// finish classifies err from a call made under callCtx. A call that failed
// because its own deadline passed is a timeout even when the transport error
// does not say so.
func finish(provider string, callCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errortypes.TimeoutError(err, "provider request timed out").WithField("provider", provider)
	}
	return Normalize(provider, err)
}
