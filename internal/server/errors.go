package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

// ErrorResponse represents the structure of error responses sent by the API
type ErrorResponse struct {
	Status  string                 `json:"status"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error response codes
const (
	ErrorCodeInvalidRequest   = "INVALID_REQUEST"
	ErrorCodeValidationError  = "VALIDATION_ERROR"
	ErrorCodeAuthentication   = "AUTHENTICATION_ERROR"
	ErrorCodePermissionError  = "PERMISSION_ERROR"
	ErrorCodeRateLimited      = "RATE_LIMITED"
	ErrorCodeTimeout          = "TIMEOUT"
	ErrorCodeProviderError    = "PROVIDER_ERROR"
	ErrorCodeInternalError    = "INTERNAL_ERROR"
	ErrorCodeResourceNotFound = "RESOURCE_NOT_FOUND"
)

// writeErrorResponse writes a structured error response and aborts the chain.
func writeErrorResponse(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		Details: details,
	})
}

// HandleBadRequest handles 400 Bad Request errors
func HandleBadRequest(c *gin.Context, message string, err error) {
	writeErrorResponse(c, http.StatusBadRequest, ErrorCodeInvalidRequest, message, errorDetails(err))
}

// HandleUnprocessable handles 422 errors for well-formed requests with out-of-range fields
func HandleUnprocessable(c *gin.Context, message string, fields map[string]interface{}) {
	writeErrorResponse(c, http.StatusUnprocessableEntity, ErrorCodeValidationError, message, fields)
}

// HandleNotFound handles 404 Not Found errors
func HandleNotFound(c *gin.Context, message string) {
	writeErrorResponse(c, http.StatusNotFound, ErrorCodeResourceNotFound, message, nil)
}

// statusFor maps an error onto an HTTP status, an error code and a client message.
func statusFor(err error) (int, string, string) {
	var appErr *errortypes.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorCodeInternalError, "An unexpected error occurred"
	}

	switch appErr.Type {
	case errortypes.ErrorTypeValidation:
		return http.StatusBadRequest, ErrorCodeInvalidRequest, appErr.Error()
	case errortypes.ErrorTypeAuthentication:
		return http.StatusUnauthorized, ErrorCodeAuthentication, appErr.Message
	case errortypes.ErrorTypePermission:
		return http.StatusForbidden, ErrorCodePermissionError, appErr.Message
	case errortypes.ErrorTypeRateLimit:
		return http.StatusTooManyRequests, ErrorCodeRateLimited, appErr.Message
	case errortypes.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, ErrorCodeTimeout, appErr.Message
	case errortypes.ErrorTypeProvider:
		return http.StatusInternalServerError, ErrorCodeProviderError, appErr.Message
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError, "An unexpected error occurred"
	}
}

// errorDetails exposes the wrapped error for client-facing kinds only.
func errorDetails(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	var appErr *errortypes.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case errortypes.ErrorTypeDatabase, errortypes.ErrorTypeConfig, errortypes.ErrorTypeInternal:
			return nil
		}
		return map[string]interface{}{"error": appErr.Err.Error()}
	}
	return map[string]interface{}{"error": err.Error()}
}

// HandleError inspects err's type to determine the appropriate HTTP response.
func HandleError(c *gin.Context, logger *slog.Logger, err error) {
	status, code, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		errortypes.LogError(logger, err)
	} else if logger != nil {
		logger.Info("Request failed", "status", status, "code", code, "error", err)
	}

	var details map[string]interface{}
	if status < http.StatusInternalServerError || code == ErrorCodeProviderError || code == ErrorCodeTimeout {
		details = errorDetails(err)
	}
	writeErrorResponse(c, status, code, message, details)
}
