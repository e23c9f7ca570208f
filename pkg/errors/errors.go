// Package errors provides custom error types for the sissync system.
// These errors enable programmatic error checking between the record-level
// failures that degrade to a logged skip and the remote failures that abort
// a sync run.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
var As = errors.As

// Common sentinel errors for the sissync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRecord indicates a single record could not be used.
	// Record-level errors never abort a sync pass.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrRemoteClient indicates the remote API rejected a create with a 4xx
	ErrRemoteClient = errors.New("remote rejected record")

	// ErrRemoteFatal indicates the remote API answered with a fatal status
	ErrRemoteFatal = errors.New("remote request failed")

	// ErrConnection indicates the remote API could not be reached
	ErrConnection = errors.New("connection failed")

	// ErrDependencyCycle indicates entities reference each other in a loop
	ErrDependencyCycle = errors.New("dependency cycle")
)

// RecordErrorKind classifies why a record was rejected.
type RecordErrorKind string

const (
	// MissingKey means the record lacks the designated key field entirely.
	MissingKey RecordErrorKind = "missing_key"
	// MissingKeyValue means the key field is present but empty.
	MissingKeyValue RecordErrorKind = "missing_key_value"
	// MissingRequiredField means a required field is absent or empty after translation.
	MissingRequiredField RecordErrorKind = "missing_required_field"
	// UnresolvedReference means a referenced upstream record has no remote identity.
	UnresolvedReference RecordErrorKind = "unresolved_reference"
)

// InvalidRecordError represents a record that was rejected during
// translation, key extraction or reference resolution.
type InvalidRecordError struct {
	Kind   RecordErrorKind
	Field  string
	Record map[string]any
	Err    error
}

// Error implements the error interface
func (e *InvalidRecordError) Error() string {
	var msg string
	switch e.Kind {
	case MissingKey:
		msg = "key field is missing"
	case MissingKeyValue:
		msg = "key value is missing"
	case MissingRequiredField:
		msg = "required field is missing"
	case UnresolvedReference:
		msg = "reference could not be resolved"
	default:
		msg = "record is invalid"
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *InvalidRecordError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// NewInvalidRecordError creates a new InvalidRecordError
func NewInvalidRecordError(kind RecordErrorKind, field string, record map[string]any, err error) *InvalidRecordError {
	return &InvalidRecordError{Kind: kind, Field: field, Record: record, Err: err}
}

// RemoteClientError represents a 4xx answer to a create request. The remote
// API reports problems per field, with an optional non-field detail.
type RemoteClientError struct {
	Method      string
	URL         string
	StatusCode  int
	FieldErrors map[string][]string
	Detail      string
}

// Error implements the error interface
func (e *RemoteClientError) Error() string {
	parts := make([]string, 0, len(e.FieldErrors)+1)
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	for _, field := range e.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.FieldErrors[field], "; ")))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s %s rejected (status %d)", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s rejected (status %d): %s", e.Method, e.URL, e.StatusCode, strings.Join(parts, ", "))
}

// Is implements errors.Is support
func (e *RemoteClientError) Is(target error) bool {
	return target == ErrRemoteClient
}

// Fields returns the names of fields with errors in sorted order.
func (e *RemoteClientError) Fields() []string {
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// RemoteFatalError represents a non-2xx answer that aborts the sync run.
type RemoteFatalError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *RemoteFatalError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed (status %d)", e.Method, e.URL, e.StatusCode)
}

// Is implements errors.Is support
func (e *RemoteFatalError) Is(target error) bool {
	return target == ErrRemoteFatal
}

// NewRemoteFatalError creates a new RemoteFatalError
func NewRemoteFatalError(method, url string, statusCode int, message string) *RemoteFatalError {
	return &RemoteFatalError{Method: method, URL: url, StatusCode: statusCode, Message: message}
}

// ConnectionError represents a failure to reach the remote API at all.
type ConnectionError struct {
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("connection to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// SyncError represents a fatal error while syncing one entity
type SyncError struct {
	Entity string
	Phase  string
	Err    error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("sync error for %s during %s: %v", e.Entity, e.Phase, e.Err)
	}
	return fmt.Sprintf("sync error for %s: %v", e.Entity, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(entity, phase string, err error) *SyncError {
	return &SyncError{
		Entity: entity,
		Phase:  phase,
		Err:    err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "load", "resolve"
	Resource  string // "client", "entity", "request"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidRecord checks if an error only invalidates a single record
func IsInvalidRecord(err error) bool {
	return errors.Is(err, ErrInvalidRecord)
}

// IsRemoteClient checks if an error is a recoverable 4xx from the remote API
func IsRemoteClient(err error) bool {
	return errors.Is(err, ErrRemoteClient)
}

// IsConnection checks if an error is a connection failure
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
