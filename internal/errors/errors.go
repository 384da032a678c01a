package errors

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// SourceError represents a problem found while loading a template source file.
type SourceError struct {
	Template  string
	File      string
	Line      int
	Column    int
	Code      string
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (se *SourceError) Error() string {
	if se.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", se.File, se.Line, se.Column, se.Severity, se.Message)
	}
	return fmt.Sprintf("%s: %s: %s", se.File, se.Severity, se.Message)
}

// NewSourceError describes err as a problem with file. The code is taken
// from err when it is a ProtoError; errors that cannot be recovered from by
// editing the file are fatal.
func NewSourceError(file, template string, err error) SourceError {
	severity := ErrorSeverityError
	if !IsRecoverable(err) {
		severity = ErrorSeverityFatal
	}
	return SourceError{
		Template: template,
		File:     file,
		Code:     CodeOf(err),
		Message:  err.Error(),
		Severity: severity,
	}
}

// ErrorCollector collects source errors by file
type ErrorCollector struct {
	sourceErrors []SourceError
	mutex        sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		sourceErrors: make([]SourceError, 0),
	}
}

// Add adds a source error to the collector
func (ec *ErrorCollector) Add(err SourceError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	err.Timestamp = time.Now()
	ec.sourceErrors = append(ec.sourceErrors, err)
}

// GetErrors returns all collected source errors
func (ec *ErrorCollector) GetErrors() []SourceError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]SourceError, len(ec.sourceErrors))
	copy(result, ec.sourceErrors)
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.sourceErrors) > 0
}

// Files returns the files with at least one error, sorted.
func (ec *ErrorCollector) Files() []string {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	seen := make(map[string]bool)
	var files []string
	for _, err := range ec.sourceErrors {
		if !seen[err.File] {
			seen[err.File] = true
			files = append(files, err.File)
		}
	}
	sort.Strings(files)
	return files
}

// GetErrorsByFile returns errors for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []SourceError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []SourceError
	for _, err := range ec.sourceErrors {
		if err.File == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// ClearFile drops the errors recorded for file.
func (ec *ErrorCollector) ClearFile(file string) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	kept := ec.sourceErrors[:0]
	for _, err := range ec.sourceErrors {
		if err.File != file {
			kept = append(kept, err)
		}
	}
	ec.sourceErrors = kept
}
