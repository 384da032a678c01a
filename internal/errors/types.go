package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeRegistry   ErrorType = "registry"
	ErrorTypeDependency ErrorType = "dependency"
	ErrorTypeApply      ErrorType = "apply"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// ProtoError is a structured error type with context.
type ProtoError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Template    string
	Recoverable bool
}

// Error implements the error interface.
func (e *ProtoError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Template != "" {
		parts = append(parts, "template:"+e.Template)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ProtoError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ProtoError) Is(target error) bool {
	var t *ProtoError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ProtoError) WithContext(key string, value interface{}) *ProtoError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithTemplate adds template context.
func (e *ProtoError) WithTemplate(id string) *ProtoError {
	e.Template = id

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ProtoError {
	return &ProtoError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewRegistryError creates a template store error.
func NewRegistryError(code, message string) *ProtoError {
	return &ProtoError{
		Type:        ErrorTypeRegistry,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewDependencyError creates a tree construction error.
func NewDependencyError(code, message string) *ProtoError {
	return &ProtoError{
		Type:        ErrorTypeDependency,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewApplyError creates a schematic apply/remove error.
func NewApplyError(code, message string, cause error) *ProtoError {
	return &ProtoError{
		Type:        ErrorTypeApply,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ProtoError {
	return &ProtoError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *ProtoError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// HasCode reports whether err, or any error it wraps, is a ProtoError with
// the given code.
func HasCode(err error, code string) bool {
	var pe *ProtoError
	if errors.As(err, &pe) {
		return pe.Code == code
	}

	return false
}

// CodeOf returns the code of the outermost ProtoError in err's chain.
func CodeOf(err error) string {
	var pe *ProtoError
	if errors.As(err, &pe) {
		return pe.Code
	}

	return ""
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle processes an error with logging appropriate to its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var pe *ProtoError
	if errors.As(err, &pe) {
		h.handleProtoError(ctx, pe)
	} else {
		h.logger.Error(ctx, err, "Unhandled error occurred")
	}
}

func (h *ErrorHandler) handleProtoError(ctx context.Context, err *ProtoError) {
	switch err.Type {
	case ErrorTypeValidation, ErrorTypeDependency, ErrorTypeRegistry:
		h.logger.Warn(ctx, err, "Template error occurred",
			"type", err.Type,
			"code", err.Code,
			"template", err.Template)
	case ErrorTypeApply:
		h.logger.Error(ctx, err, "Schematic operation failed",
			"type", err.Type,
			"code", err.Code,
			"template", err.Template,
			"object", err.Context["object"],
			"schematic", err.Context["schematic"])
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", err.Type,
			"code", err.Code,
			"template", err.Template)
	}
}

// Common error codes.
const (
	ErrCodeDuplicateID          = "ERR_DUPLICATE_ID"
	ErrCodeUnknownTemplate      = "ERR_UNKNOWN_TEMPLATE"
	ErrCodeMissingDependency    = "ERR_MISSING_DEPENDENCY"
	ErrCodeCycleDetected        = "ERR_CYCLE_DETECTED"
	ErrCodeSchematicApply       = "ERR_SCHEMATIC_APPLY_FAILED"
	ErrCodeSchematicRemove      = "ERR_SCHEMATIC_REMOVE_FAILED"
	ErrCodeUnknownSchematicType = "ERR_UNKNOWN_SCHEMATIC_TYPE"
	ErrCodeReentrant            = "ERR_REENTRANT_OPERATION"
	ErrCodeInvalidDefinition    = "ERR_INVALID_DEFINITION"
	ErrCodeConfigInvalid        = "ERR_CONFIG_INVALID"
	ErrCodeSourceRead           = "ERR_SOURCE_READ"
	ErrCodeUnknownObject        = "ERR_UNKNOWN_OBJECT"
	ErrCodeInternalError        = "ERR_INTERNAL"
)

// Helper functions for common errors

// ErrDuplicateID creates an error for registering an id that is already present.
func ErrDuplicateID(id string) *ProtoError {
	return NewRegistryError(ErrCodeDuplicateID, "template already registered: "+id).
		WithTemplate(id)
}

// ErrUnknownTemplate creates an error for an id that was never registered.
func ErrUnknownTemplate(id string) *ProtoError {
	return NewRegistryError(ErrCodeUnknownTemplate, "unknown template: "+id).
		WithTemplate(id)
}

// ErrMissingDependency creates an error for a schematic naming an absent template.
func ErrMissingDependency(id, from string) *ProtoError {
	return NewDependencyError(ErrCodeMissingDependency, "missing dependency: "+id).
		WithTemplate(from).
		WithContext("dependency", id)
}

// ErrCycleDetected creates an error for a cycle the policy declared fatal.
func ErrCycleDetected(path []string) *ProtoError {
	root := ""
	if len(path) > 0 {
		root = path[0]
	}
	return NewDependencyError(ErrCodeCycleDetected, "cycle detected: "+strings.Join(path, " -> ")).
		WithTemplate(root).
		WithContext("path", path)
}

// ErrSchematicApplyFailed creates an error for a schematic whose apply failed.
func ErrSchematicApplyFailed(template string, index int, schematicType string, object fmt.Stringer, cause error) *ProtoError {
	return NewApplyError(ErrCodeSchematicApply,
		fmt.Sprintf("apply of schematic %d (%s) on %s failed", index, schematicType, object), cause).
		WithTemplate(template).
		WithContext("schematic", schematicType).
		WithContext("index", index).
		WithContext("object", object.String())
}

// ErrSchematicRemoveFailed creates an error for a schematic whose remove failed.
func ErrSchematicRemoveFailed(template string, index int, schematicType string, object fmt.Stringer, cause error) *ProtoError {
	return NewApplyError(ErrCodeSchematicRemove,
		fmt.Sprintf("remove of schematic %d (%s) on %s failed", index, schematicType, object), cause).
		WithTemplate(template).
		WithContext("schematic", schematicType).
		WithContext("index", index).
		WithContext("object", object.String())
}

// ErrUnknownSchematicType creates an error for a schematic type with no registered kind.
func ErrUnknownSchematicType(template, schematicType string) *ProtoError {
	return NewValidationError(ErrCodeUnknownSchematicType, "unknown schematic type: "+schematicType).
		WithTemplate(template)
}

// ErrUnknownObject creates an error for a request naming an object the
// world does not hold.
func ErrUnknownObject(template string, object fmt.Stringer) *ProtoError {
	return NewValidationError(ErrCodeUnknownObject,
		fmt.Sprintf("target object %s does not exist", object)).
		WithTemplate(template).
		WithContext("object", object.String())
}

// ErrReentrant creates an error for a nested mutation of a template that is
// already being processed.
func ErrReentrant(id, operation string) *ProtoError {
	return NewRegistryError(ErrCodeReentrant,
		fmt.Sprintf("%s of template %s while it is being processed", operation, id)).
		WithTemplate(id)
}

// ErrInvalidDefinition creates a validation error for a malformed definition.
func ErrInvalidDefinition(source, message string) *ProtoError {
	return NewValidationError(ErrCodeInvalidDefinition, message).
		WithContext("source", source)
}
