// Package errors provides a structured error system for the extent engine with error codes, categories, and context.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for extent engine operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"

	// Extent Errors
	ErrCodeInvalidExtent  ErrorCode = "INVALID_EXTENT"
	ErrCodeExtentOverlap  ErrorCode = "EXTENT_OVERLAP"
	ErrCodeExtentNotFound ErrorCode = "EXTENT_NOT_FOUND"

	// Layer Errors
	ErrCodeLayerNotFound ErrorCode = "LAYER_NOT_FOUND"
	ErrCodeLayerExists   ErrorCode = "LAYER_EXISTS"

	// Internal System Errors
	ErrCodeInternalConsistency ErrorCode = "INTERNAL_CONSISTENCY"
	ErrCodeInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknownError        ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryExtent        ErrorCategory = "extent"
	CategoryLayer         ErrorCategory = "layer"
	CategoryInternal      ErrorCategory = "internal"
)

// HSMError represents a structured error with context and metadata.
type HSMError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	// Error handling hints
	UserFacing bool `json:"user_facing"`
	HTTPStatus int  `json:"http_status,omitempty"`

	// Debug information
	Stack string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *HSMError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *HSMError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *HSMError) Is(target error) bool {
	if hsmErr, ok := target.(*HSMError); ok {
		return e.Code == hsmErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *HSMError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}

	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("HSMError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new error with default values.
func NewError(code ErrorCode, message string) *HSMError {
	return &HSMError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		UserFacing: IsUserFacingByDefault(code),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// Newf creates a new error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *HSMError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "EXTENT_") || strings.HasPrefix(codeStr, "INVALID_EXTENT"):
		return CategoryExtent
	case strings.HasPrefix(codeStr, "LAYER_"):
		return CategoryLayer
	default:
		return CategoryInternal
	}
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	userFacingCodes := map[ErrorCode]bool{
		ErrCodeInvalidConfig:    true,
		ErrCodeConfigValidation: true,
		ErrCodeInvalidExtent:    true,
		ErrCodeExtentOverlap:    true,
		ErrCodeExtentNotFound:   true,
		ErrCodeLayerNotFound:    true,
		ErrCodeLayerExists:      true,
	}
	return userFacingCodes[code]
}

// GetDefaultHTTPStatus returns the default HTTP status for an error code.
func GetDefaultHTTPStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]int{
		ErrCodeInvalidConfig:       400, // Bad Request
		ErrCodeConfigValidation:    400,
		ErrCodeInvalidExtent:       400,
		ErrCodeExtentNotFound:      404, // Not Found
		ErrCodeLayerNotFound:       404,
		ErrCodeExtentOverlap:       409, // Conflict
		ErrCodeLayerExists:         409,
		ErrCodeInternalConsistency: 500, // Internal Server Error
		ErrCodeInternalError:       500,
	}

	if status, ok := statusMap[code]; ok {
		return status
	}
	return 500
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:]) // +2 to skip this function and the caller
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

// WithContext adds contextual information to an error
func (e *HSMError) WithContext(key, value string) *HSMError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *HSMError) WithDetail(key string, value interface{}) *HSMError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *HSMError) WithComponent(component string) *HSMError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *HSMError) WithOperation(operation string) *HSMError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *HSMError) WithCause(cause error) *HSMError {
	e.Cause = cause
	return e
}

// WithStack captures the current stack trace
func (e *HSMError) WithStack() *HSMError {
	e.Stack = CaptureStack(2)
	return e
}

// GetCode returns the code of the first HSMError in err's chain.
func GetCode(err error) (ErrorCode, bool) {
	var hsmErr *HSMError
	if stderrors.As(err, &hsmErr) {
		return hsmErr.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	got, ok := GetCode(err)
	return ok && got == code
}

// GetRecommendation returns a user-friendly recommendation for fixing the error
func (e *HSMError) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeInvalidExtent: "Extents must have a non-zero length and must not run past the end of the address space.",
		ErrCodeExtentOverlap: "The range is already covered in this layer. " +
			"Retry with overwrite enabled if the new extent supersedes the old coverage.",
		ErrCodeExtentNotFound: "No extent in the layer matches the requested range. " +
			"Dump the layer's extents to inspect its current coverage.",
		ErrCodeInternalConsistency: "The layer's extent set has overlapping entries. " +
			"This indicates an earlier bug; the layer should be rebuilt from its persisted state.",
		ErrCodeInvalidConfig: "Configuration validation failed. " +
			"Check your configuration file syntax and required parameters.",
		ErrCodeLayerNotFound: "The layer is not part of the stack. Verify the layer ID.",
		ErrCodeLayerExists:   "A layer with this ID is already registered in the stack.",
	}

	if rec, exists := recommendations[e.Code]; exists {
		return rec
	}

	return "Please check the error message for details."
}
