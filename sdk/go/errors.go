package filevault

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard errors returned by the SDK.
var (
	// ErrValidation indicates invalid input parameters or a 400 response.
	ErrValidation = errors.New("validation error")
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the upload collides with an existing file.
	ErrConflict = errors.New("conflict")
	// ErrRateLimit indicates too many requests.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")
	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("transport error")
	// ErrDecode indicates a successful response whose body could not be decoded.
	ErrDecode = errors.New("invalid response")
)

// APIError is the normalized error shape for every failed operation.
type APIError struct {
	// StatusCode is the HTTP status code (500 for transport failures).
	StatusCode int
	// Message is the human readable error message.
	Message string
	// ExistingFile is set on upload conflicts (409).
	ExistingFile *FileSummary
	// Err is the underlying error type.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (status %d)", e.Err.Error(), e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for errors.Is.
func (e *APIError) Is(target error) bool {
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// ConflictMessage explains an upload conflict. A conflict on a file with the
// same name reads differently from one where only the content matched.
func (e *APIError) ConflictMessage(uploadName string) string {
	if e.ExistingFile == nil {
		return e.Message
	}
	when := "at an unknown time"
	if !e.ExistingFile.UploadedAt.IsZero() {
		when = "on " + e.ExistingFile.UploadedAt.Local().Format("2006-01-02 15:04")
	}
	if e.ExistingFile.Name == uploadName {
		return fmt.Sprintf("A file named %q was already uploaded %s", e.ExistingFile.Name, when)
	}
	return fmt.Sprintf("The same content was already uploaded as %q %s", e.ExistingFile.Name, when)
}

// ValidationError represents an input validation failure.
type ValidationError struct {
	// Field is the name of the invalid field.
	Field string
	// Message describes what's wrong.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Is implements error comparison.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(ErrValidation, target)
}

// Unwrap returns ErrValidation for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsNotFound reports whether err is a normalized 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatusCode extracts the HTTP status from a normalized error, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// newAPIError creates an APIError from an HTTP response.
func newAPIError(statusCode int, body apiErrorResponse) *APIError {
	msg := body.Error
	if msg == "" {
		msg = body.Detail
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	if msg == "" {
		msg = "An error occurred"
	}

	err := &APIError{
		StatusCode:   statusCode,
		Message:      sanitizeErrorMessage(msg),
		ExistingFile: body.ExistingFile,
	}

	// Map status codes to error types
	switch {
	case statusCode == http.StatusBadRequest:
		err.Err = ErrValidation
	case statusCode == http.StatusNotFound:
		err.Err = ErrNotFound
	case statusCode == http.StatusConflict:
		err.Err = ErrConflict
	case statusCode == http.StatusTooManyRequests:
		err.Err = ErrRateLimit
	case statusCode >= 500:
		err.Err = ErrServer
	}

	return err
}

// newTransportError normalizes a failure that produced no HTTP response.
func newTransportError(cause error) *APIError {
	msg := "An error occurred"
	if cause != nil {
		msg = cause.Error()
	}
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    msg,
		Err:        fmt.Errorf("%w: %w", ErrTransport, cause),
	}
}

// newDecodeError normalizes a 2xx response with an unreadable body.
func newDecodeError(cause error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    "The server returned an unreadable response",
		Err:        fmt.Errorf("%w: %w", ErrDecode, cause),
	}
}

// sanitizeErrorMessage removes potentially sensitive information from error messages.
func sanitizeErrorMessage(msg string) string {
	sensitivePatterns := []string{
		"token",
		"password",
		"secret",
		"authorization",
		"cookie",
		"credential",
	}

	lowerMsg := strings.ToLower(msg)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return "request failed"
		}
	}

	return msg
}
