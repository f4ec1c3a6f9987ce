// Package errors provides custom error types for the harvester system.
// These errors encode the failure taxonomy of a run: transient source
// failures are recoverable per item, catalog failures abort the run,
// and malformed source data degrades to absent fields.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's tree matches target.
var Is = errors.Is

// As finds the first error in err's tree that matches target.
var As = errors.As

// Common sentinel errors for the harvester system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrTransientFetch indicates a recoverable failure against the source site
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrCatalogUnavailable indicates the catalog data-access layer cannot be reached
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrCooldown indicates a full cycle completed recently and the caller must wait
	ErrCooldown = errors.New("cooldown active")
)

// FetchError represents a transient failure fetching from the source site.
// It is never fatal to a run; the affected item degrades or is skipped.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed (status %d)", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.URL, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	return target == ErrTransientFetch
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{URL: url, StatusCode: statusCode, Err: err}
}

// CatalogError represents a failure talking to the catalog store.
// Fatal to the run: no partial progress is committed for the failed unit.
type CatalogError struct {
	Operation string // "candidates", "edition", "proposals", "create"
	Target    string
	Err       error
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("catalog %s for %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *CatalogError) Is(target error) bool {
	return target == ErrCatalogUnavailable
}

// NewCatalogError creates a new CatalogError
func NewCatalogError(operation, target string, err error) *CatalogError {
	return &CatalogError{Operation: operation, Target: target, Err: err}
}

// ParseError represents malformed source data. The field that failed to
// parse is treated as absent rather than aborting the record.
type ParseError struct {
	Field   string
	Value   string
	Message string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s from %q: %s", e.Field, e.Value, e.Message)
}

// NewParseError creates a new ParseError
func NewParseError(field, value, message string) *ParseError {
	return &ParseError{Field: field, Value: value, Message: message}
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

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create"
	Path      string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsTransient checks if an error is a transient fetch error
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}

// IsCatalogUnavailable checks if an error means the catalog store is down
func IsCatalogUnavailable(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Helper wrapping functions for common patterns

// WrapFetch wraps an error as a FetchError
func WrapFetch(url string, err error) error {
	if err == nil {
		return nil
	}
	return NewFetchError(url, 0, err)
}

// WrapCatalog wraps an error as a CatalogError
func WrapCatalog(operation, target string, err error) error {
	if err == nil {
		return nil
	}
	return NewCatalogError(operation, target, err)
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Err: err}
}
