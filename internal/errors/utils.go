package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCodeMultipleErrors marks an error produced by CombineErrors.
const ErrCodeMultipleErrors = "ERR_MULTIPLE_ERRORS"

// Wrap wraps an error with additional context, creating a ProtoError if the
// input is not already one. A wrapped ProtoError keeps its template and
// context.
func Wrap(err error, errType ErrorType, code, message string) *ProtoError {
	if err == nil {
		return nil
	}

	var pe *ProtoError
	if errors.As(err, &pe) {
		return &ProtoError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       err,
			Context:     pe.Context,
			Template:    pe.Template,
			Recoverable: pe.Recoverable,
		}
	}

	return &ProtoError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeIO,
	}
}

// WrapIO wraps an error as a source read error for path.
func WrapIO(err error, path string) *ProtoError {
	wrapped := Wrap(err, ErrorTypeIO, ErrCodeSourceRead, "reading "+path)
	if wrapped != nil {
		wrapped.WithContext("file", path)
	}
	return wrapped
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, message string) *ProtoError {
	return Wrap(err, ErrorTypeConfig, ErrCodeConfigInvalid, message)
}

// FormatError renders err with its context keys in a stable order, one
// "key: value" pair per line below the message.
func FormatError(err error) string {
	var pe *ProtoError
	if !errors.As(err, &pe) || len(pe.Context) == 0 {
		return err.Error()
	}

	keys := make([]string, 0, len(pe.Context))
	for k := range pe.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(err.Error())
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, pe.Context[k])
	}
	return b.String()
}

// ExtractCause extracts the root cause from a wrapped error
func ExtractCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}

// CollectErrors helper for common error collection patterns
func CollectErrors(errs ...error) []error {
	var collected []error
	for _, err := range errs {
		if err != nil {
			collected = append(collected, err)
		}
	}
	return collected
}

// CombineErrors combines multiple errors into a single error with context
func CombineErrors(errs ...error) error {
	nonNilErrs := CollectErrors(errs...)
	if len(nonNilErrs) == 0 {
		return nil
	}
	if len(nonNilErrs) == 1 {
		return nonNilErrs[0]
	}

	var messages []string
	for _, err := range nonNilErrs {
		messages = append(messages, err.Error())
	}

	return &ProtoError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeMultipleErrors,
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNilErrs)),
		Cause:   errors.Join(nonNilErrs...),
		Context: map[string]interface{}{
			"error_count": len(nonNilErrs),
			"errors":      messages,
		},
		Recoverable: false,
	}
}
