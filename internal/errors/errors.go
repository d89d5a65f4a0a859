// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryModelInit     ErrorCategory = "model-initialization"
	CategoryModelLoad     ErrorCategory = "model-loading"
	CategoryImageDecode   ErrorCategory = "image-decode"
	CategoryImageEncode   ErrorCategory = "image-encode"
	CategoryInference     ErrorCategory = "inference"
	CategorySafety        ErrorCategory = "safety-check"
	CategoryDatabase      ErrorCategory = "database"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryGeneric       ErrorCategory = "generic"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category for better grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	reported  bool           // Whether telemetry has been sent
	mu        sync.Mutex
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches two enhanced errors by category, otherwise defers to the wrapped error
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetCategory returns the error category as a string
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a context value by key
func (ee *EnhancedError) GetContext(key string) (any, bool) {
	v, ok := ee.Context[key]
	return v, ok
}

// markReported sets the reported flag under lock so telemetry fires at most once
func (ee *EnhancedError) markReported() bool {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	if ee.reported {
		return false
	}
	ee.reported = true
	return true
}

// ErrorBuilder provides a fluent interface for constructing enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new ErrorBuilder wrapping the given error
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{
		err:      err,
		category: CategoryGeneric,
	}
}

// Newf creates a new ErrorBuilder from a formatted message
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name for the error
func (b *ErrorBuilder) Component(name string) *ErrorBuilder {
	b.component = name
	return b
}

// Category sets the error category
func (b *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	b.category = category
	return b
}

// Priority sets an explicit priority for the error
func (b *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	b.priority = priority
	return b
}

// Context adds a key-value pair to the error context
func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// ModelContext adds model path and identifier to the error context
func (b *ErrorBuilder) ModelContext(modelPath, modelID string) *ErrorBuilder {
	if modelPath != "" {
		b.Context("model_path", modelPath)
	}
	if modelID != "" {
		b.Context("model_id", modelID)
	}
	return b
}

// Timing adds an operation duration to the error context
func (b *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	return b.Context("operation", operation).Context("duration_ms", duration.Milliseconds())
}

// Build finalizes the enhanced error and reports it to telemetry if configured
func (b *ErrorBuilder) Build() error {
	ee := &EnhancedError{
		Err:       b.err,
		Component: b.component,
		Category:  b.category,
		Priority:  b.priority,
		Context:   b.context,
		Timestamp: time.Now(),
	}
	reportToTelemetry(ee)
	return ee
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// HasCategory reports whether err is an EnhancedError with the given category
func HasCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}

// CategoryOf returns the category of err, or CategoryGeneric for plain errors
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category
	}
	return CategoryGeneric
}
