// Package errortypes provides the error taxonomy shared by the summarization
// pipeline, the LLM gateway and the transport layers.
package errortypes

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
)

// ErrorType classifies a failure so transports can map it to a response.
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypePermission     ErrorType = "permission"
	ErrorTypeProvider       ErrorType = "provider"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeDatabase       ErrorType = "database"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeInternal       ErrorType = "internal"
)

// ErrEmptyInput is returned when the text to summarize is empty or only whitespace.
var ErrEmptyInput = errors.New("text cannot be empty")

// AppError is a classified error. Message describes what was being attempted,
// Err is the cause.
type AppError struct {
	Err       error
	Type      ErrorType
	Message   string
	StackInfo string
	Fields    map[string]any
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithField attaches a key/value that LogError emits alongside the message.
func (e *AppError) WithField(key string, value any) *AppError {
	return e.WithFields(map[string]any{key: value})
}

// WithFields attaches several key/values at once.
func (e *AppError) WithFields(fields map[string]any) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

// stackTrace formats the caller's stack, skipping the runtime, the testing
// harness and this package.
func stackTrace(skip int) string {
	pcs := make([]uintptr, 32)
	pcs = pcs[:runtime.Callers(skip, pcs)]

	var b strings.Builder
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		switch {
		case strings.HasPrefix(frame.Function, "runtime."),
			strings.HasPrefix(frame.Function, "testing."),
			strings.Contains(frame.Function, "/errortypes."):
		default:
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			return b.String()
		}
	}
}

func newAppError(t ErrorType, err error, message string) *AppError {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &AppError{
		Err:       err,
		Type:      t,
		Message:   message,
		StackInfo: stackTrace(3),
		Fields:    map[string]any{},
	}
}

// ValidationError marks input rejected before any work was done.
func ValidationError(err error, message string) *AppError {
	return newAppError(ErrorTypeValidation, err, message)
}

// EmptyInputError wraps ErrEmptyInput as a validation error.
func EmptyInputError() *AppError {
	return newAppError(ErrorTypeValidation, ErrEmptyInput, "invalid input")
}

// AuthenticationError marks a credential the provider rejected.
func AuthenticationError(err error, message string) *AppError {
	return newAppError(ErrorTypeAuthentication, err, message)
}

// RateLimitError marks a throttled provider call.
func RateLimitError(err error, message string) *AppError {
	return newAppError(ErrorTypeRateLimit, err, message)
}

// PermissionError marks a credential without the required scope.
func PermissionError(err error, message string) *AppError {
	return newAppError(ErrorTypePermission, err, message)
}

// ProviderError marks any other upstream failure, network errors included.
func ProviderError(err error, message string) *AppError {
	return newAppError(ErrorTypeProvider, err, message)
}

// TimeoutError marks a provider call that exceeded its deadline.
func TimeoutError(err error, message string) *AppError {
	return newAppError(ErrorTypeTimeout, err, message)
}

func DatabaseError(err error, message string) *AppError {
	return newAppError(ErrorTypeDatabase, err, message)
}

func ConfigError(err error, message string) *AppError {
	return newAppError(ErrorTypeConfig, err, message)
}

func InternalError(err error, message string) *AppError {
	return newAppError(ErrorTypeInternal, err, message)
}

// LogError logs err at error level. AppErrors are logged under their message
// with their type, cause, stack and fields as attributes.
func LogError(logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		logger.Error(err.Error(), "error", err)
		return
	}

	attrs := []any{
		slog.String("type", string(appErr.Type)),
		slog.String("original_error", appErr.Err.Error()),
	}
	keys := make([]string, 0, len(appErr.Fields))
	for k := range appErr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, appErr.Fields[k]))
	}
	if appErr.StackInfo != "" {
		attrs = append(attrs, slog.String("stack", appErr.StackInfo))
	}
	logger.Error(appErr.Message, attrs...)
}

// TypeOf returns the ErrorType of err, or an empty string for errors outside the taxonomy.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Is reports whether err, or anything it wraps, is an AppError of type t.
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

func IsValidationError(err error) bool     { return Is(err, ErrorTypeValidation) }
func IsAuthenticationError(err error) bool { return Is(err, ErrorTypeAuthentication) }
func IsRateLimitError(err error) bool      { return Is(err, ErrorTypeRateLimit) }
func IsPermissionError(err error) bool     { return Is(err, ErrorTypePermission) }
func IsProviderError(err error) bool       { return Is(err, ErrorTypeProvider) }
func IsTimeoutError(err error) bool        { return Is(err, ErrorTypeTimeout) }
func IsDatabaseError(err error) bool       { return Is(err, ErrorTypeDatabase) }
