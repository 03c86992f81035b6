package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a connection does not exist in cache or store.
var ErrNotFound = errors.New("not found")

// ConfigurationError indicates a bad or incomplete connection config.
// It is surfaced before any I/O is attempted.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NewConfigurationError creates a ConfigurationError for a field.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// ConnectivityError indicates a transient network or auth failure.
// Retried per policy before being surfaced.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity error: %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RetrievalError indicates an unsupported feed or connection type,
// or a terminal retrieval failure after retries were exhausted.
type RetrievalError struct {
	FeedType       FeedType
	ConnectionType ConnectionType
	Reason         string
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval error: feed=%s conn=%s: %s", e.FeedType, e.ConnectionType, e.Reason)
}

// RecordValidationError indicates a malformed individual record.
// It contributes to the feed's error count and never aborts a batch.
type RecordValidationError struct {
	RecordNumber int
	Field        string
	Reason       string
}

func (e *RecordValidationError) Error() string {
	return fmt.Sprintf("record %d invalid: %s: %s", e.RecordNumber, e.Field, e.Reason)
}
