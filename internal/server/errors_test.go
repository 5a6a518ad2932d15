package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHandleError(t *testing.T) {
	cause := errors.New("upstream said no")

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{"validation", errortypes.EmptyInputError(), http.StatusBadRequest, ErrorCodeInvalidRequest, true},
		{"authentication", errortypes.AuthenticationError(cause, "Invalid API key"), http.StatusUnauthorized, ErrorCodeAuthentication, true},
		{"permission", errortypes.PermissionError(cause, "Permission denied"), http.StatusForbidden, ErrorCodePermissionError, true},
		{"rate limit", errortypes.RateLimitError(cause, "Rate limit exceeded"), http.StatusTooManyRequests, ErrorCodeRateLimited, true},
		{"timeout", errortypes.TimeoutError(context.DeadlineExceeded, "Provider timed out"), http.StatusGatewayTimeout, ErrorCodeTimeout, true},
		{"provider", errortypes.ProviderError(cause, "Provider error"), http.StatusInternalServerError, ErrorCodeProviderError, true},
		{"database", errortypes.DatabaseError(cause, "ledger down"), http.StatusInternalServerError, ErrorCodeInternalError, false},
		{"internal", errortypes.InternalError(cause, "bug"), http.StatusInternalServerError, ErrorCodeInternalError, false},
		{"plain error", cause, http.StatusInternalServerError, ErrorCodeInternalError, false},
		{"wrapped app error", fmt.Errorf("call: %w", errortypes.RateLimitError(cause, "Rate limit exceeded")), http.StatusTooManyRequests, ErrorCodeRateLimited, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			HandleError(c, discard, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleError() status = %v, want %v", w.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if resp.Status != "error" {
				t.Errorf("HandleError() status field = %q, want error", resp.Status)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("HandleError() code = %v, want %v", resp.Code, tt.wantCode)
			}
			if resp.Message == "" {
				t.Error("HandleError() message is empty")
			}
			if gotDetails := resp.Details != nil; gotDetails != tt.wantDetails {
				t.Errorf("HandleError() details present = %v, want %v (%v)", gotDetails, tt.wantDetails, resp.Details)
			}
		})
	}
}

func TestInternalErrorsHideCause(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, discard, errortypes.DatabaseError(errors.New("disk path /secret/db"), "failed to record usage"))

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Message != "An unexpected error occurred" {
		t.Errorf("Expected generic message, got %q", resp.Message)
	}
}

func TestHandleUnprocessable(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleUnprocessable(c, "Invalid request parameters", map[string]interface{}{"max_length": "must be no greater than 1000"})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %v, want 422", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Code != ErrorCodeValidationError {
		t.Errorf("code = %v, want %v", resp.Code, ErrorCodeValidationError)
	}
	if resp.Details["max_length"] == nil {
		t.Errorf("expected max_length detail, got %v", resp.Details)
	}
}
