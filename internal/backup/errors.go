package backup

import (
	"fmt"
)

// Stage identifies the pipeline stage an error originated from
type Stage string

const (
	StageDiscovery     Stage = "discovery"
	StageExtraction    Stage = "extraction"
	StagePackaging     Stage = "packaging"
	StageTransmission  Stage = "transmission"
	StageRetention     Stage = "retention"
	StageCleanup       Stage = "cleanup"
	StageConfiguration Stage = "configuration"
)

// PipelineError represents errors that occur during backup pipeline operations
type PipelineError struct {
	Stage   Stage
	Kind    StoreKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	prefix := string(e.Stage)
	if e.Kind != "" {
		prefix = fmt.Sprintf("%s/%s", e.Kind, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause error
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithKind tags the error with the store kind it belongs to
func (e *PipelineError) WithKind(kind StoreKind) *PipelineError {
	e.Kind = kind
	return e
}

// NewPipelineError creates a new PipelineError
func NewPipelineError(stage Stage, message string, cause error) *PipelineError {
	return &PipelineError{
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

func NewDiscoveryError(message string, cause error) *PipelineError {
	return NewPipelineError(StageDiscovery, message, cause)
}

func NewExtractionError(message string, cause error) *PipelineError {
	return NewPipelineError(StageExtraction, message, cause)
}

func NewPackagingError(message string, cause error) *PipelineError {
	return NewPipelineError(StagePackaging, message, cause)
}

func NewTransmissionError(message string, cause error) *PipelineError {
	return NewPipelineError(StageTransmission, message, cause)
}

func NewRetentionError(message string, cause error) *PipelineError {
	return NewPipelineError(StageRetention, message, cause)
}

func NewConfigurationError(message string, cause error) *PipelineError {
	return NewPipelineError(StageConfiguration, message, cause)
}

// ValidationError represents a configuration-field validation failure
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}
