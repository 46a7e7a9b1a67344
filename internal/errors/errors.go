// Package errors defines the error taxonomy for the analysis engine and a
// thread-safe collector for per-file failures. A single file failing must
// never abort a whole run, so most error classes here are collected as
// warnings rather than returned.
package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel classes for the engine. Wrapped errors can be tested with
// errors.Is against these.
var (
	// ErrBaseDir means the base directory itself could not be scanned.
	// This is the only fatal condition in a run.
	ErrBaseDir = errors.New("base directory not scannable")
	// ErrCacheCorrupt marks a cache file that was present but could not
	// be deserialized. Recovered by treating the cache as cold.
	ErrCacheCorrupt = errors.New("analysis cache corrupt")
	// ErrCachePersist marks a failure to write the updated cache. The
	// aggregate result for the current run stays valid.
	ErrCachePersist = errors.New("analysis cache not persisted")
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// FileError records the failure of a single file within an analysis run.
type FileError struct {
	Analyzer  string
	Path      string
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
	Err       error
}

// Error implements the error interface
func (fe *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %s: %s", fe.Analyzer, fe.Path, fe.Severity, fe.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (fe *FileError) Unwrap() error {
	return fe.Err
}

// NewFileError builds a FileError for an analyzer/path pair.
func NewFileError(analyzer, path string, err error, msg string) *FileError {
	return &FileError{
		Analyzer:  analyzer,
		Path:      path,
		Message:   msg,
		Severity:  SeverityWarning,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Collector collects per-file errors and run-level warnings during one
// analysis pass. Safe for concurrent use by worker goroutines.
type Collector struct {
	fileErrors []FileError
	warnings   []error
	mutex      sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		fileErrors: make([]FileError, 0),
		warnings:   make([]error, 0),
	}
}

// AddFile adds a per-file error to the collector
func (c *Collector) AddFile(err FileError) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	c.fileErrors = append(c.fileErrors, err)
}

// AddWarning adds a run-level warning to the collector
func (c *Collector) AddWarning(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.warnings = append(c.warnings, err)
}

// FileErrors returns all collected per-file errors
func (c *Collector) FileErrors() []FileError {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]FileError, len(c.fileErrors))
	copy(result, c.fileErrors)
	return result
}

// Warnings returns all collected run-level warnings
func (c *Collector) Warnings() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]error, len(c.warnings))
	copy(result, c.warnings)
	return result
}

// HasErrors returns true if anything was collected
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.fileErrors) > 0 || len(c.warnings) > 0
}

// ByPath returns per-file errors for a specific path
func (c *Collector) ByPath(path string) []FileError {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []FileError
	for _, err := range c.fileErrors {
		if err.Path == path {
			out = append(out, err)
		}
	}
	return out
}

// Clear clears all collected errors
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fileErrors = c.fileErrors[:0]
	c.warnings = c.warnings[:0]
}
