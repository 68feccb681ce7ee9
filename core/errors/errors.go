// Package errors provides standardized error types and helpers for Verse Explorer.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidReference indicates text that matches none of the reference forms
	ErrInvalidReference = errors.New("invalid reference format")
	// ErrChapterNotFound indicates a well-formed reference naming an absent chapter
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrNoTranslationSelected indicates a search without any selected translation
	ErrNoTranslationSelected = errors.New("no translation selected")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// referenceHelp lists the reference forms users are most likely to need.
const referenceHelp = "Try:\n" +
	"  One surah (e.g., 1)\n" +
	"  A specific verse (e.g., 2.255)\n" +
	"  A surah range (e.g., 3-4)\n" +
	"  A specific range (e.g., 5-7.9)\n\n" +
	"Use 1-114 to search the entire Quran"

// ReferenceError reports a range reference that matches none of the accepted forms.
type ReferenceError struct {
	Input string // Trimmed text the user entered
}

func (e *ReferenceError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s: empty reference\n\n%s", ErrInvalidReference, referenceHelp)
	}
	return fmt.Sprintf("%s: %q\n\n%s", ErrInvalidReference, e.Input, referenceHelp)
}

func (e *ReferenceError) Unwrap() error {
	return ErrInvalidReference
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "chapter", "note", "translation")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "XML", "notes", "preferences")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewInvalidReference creates a ReferenceError
func NewInvalidReference(input string) *ReferenceError {
	return &ReferenceError{Input: input}
}

// NewChapterNotFound creates a NotFoundError for a missing chapter
func NewChapterNotFound(chapter int) *NotFoundError {
	return &NotFoundError{
		Resource: "chapter",
		ID:       fmt.Sprintf("%d", chapter),
		Err:      ErrChapterNotFound,
	}
}

// NewNoTranslationSelected creates the error returned by a search with an empty selection
func NewNoTranslationSelected() *ValidationError {
	return &ValidationError{
		Field:   "translations",
		Message: "please select at least one translation",
		Err:     ErrNoTranslationSelected,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
