// Package errors defines the error taxonomy shared by the prediction pipeline,
// the forecast service and the HTTP layer. Callers inspect errors with
// errors.Is / errors.As instead of matching on message text.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New is errors.New, re-exported so callers need a single errors import.
var New = errors.New

// Is is errors.Is.
var Is = errors.Is

// As is errors.As.
var As = errors.As

// Sentinel errors
var (
	// ErrInvalidInput is matched by every error caused by a bad request value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a missing resource or artifact.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates a deployment defect, e.g. a categorical
	// column without an encoder.
	ErrConfiguration = errors.New("configuration error")

	// ErrAlreadyExists indicates a unique resource was created twice.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredentials is returned on failed logins and rejected tokens.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInference indicates the regressor could not produce a usable value.
	ErrInference = errors.New("inference failed")
)

// MissingFieldError lists every required field absent from a record.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing fields: %s", strings.Join(e.Fields, ", "))
}

// Is implements errors.Is support
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewMissingFieldError creates a MissingFieldError.
func NewMissingFieldError(fields ...string) *MissingFieldError {
	return &MissingFieldError{Fields: fields}
}

// InvalidNumericFieldError reports a present field that is not a finite number.
type InvalidNumericFieldError struct {
	Field string
	Value any
}

func (e *InvalidNumericFieldError) Error() string {
	return fmt.Sprintf("invalid numeric value in field: %s", e.Field)
}

// Is implements errors.Is support
func (e *InvalidNumericFieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInvalidNumericFieldError creates an InvalidNumericFieldError.
func NewInvalidNumericFieldError(field string, value any) *InvalidNumericFieldError {
	return &InvalidNumericFieldError{Field: field, Value: value}
}

// UnknownFieldError means no encoder is registered for a categorical field.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("no encoder found for field: %s", e.Field)
}

// Is implements errors.Is support
func (e *UnknownFieldError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewUnknownFieldError creates an UnknownFieldError.
func NewUnknownFieldError(field string) *UnknownFieldError {
	return &UnknownFieldError{Field: field}
}

// UnknownCategoryError reports a value outside a field's trained vocabulary.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown label '%s' in field '%s'", e.Value, e.Field)
}

// Is implements errors.Is support
func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewUnknownCategoryError creates an UnknownCategoryError.
func NewUnknownCategoryError(field, value string) *UnknownCategoryError {
	return &UnknownCategoryError{Field: field, Value: value}
}

// InvalidPeriodsError reports a forecast horizon that is not a positive integer
// (or exceeds the configured maximum).
type InvalidPeriodsError struct {
	Periods int
	Max     int
}

func (e *InvalidPeriodsError) Error() string {
	if e.Max > 0 && e.Periods > e.Max {
		return fmt.Sprintf("periods must be at most %d, got %d", e.Max, e.Periods)
	}
	return fmt.Sprintf("periods must be a positive integer, got %d", e.Periods)
}

// Is implements errors.Is support
func (e *InvalidPeriodsError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInvalidPeriodsError creates an InvalidPeriodsError.
func NewInvalidPeriodsError(periods, max int) *InvalidPeriodsError {
	return &InvalidPeriodsError{Periods: periods, Max: max}
}

// InvalidFrequencyError reports an unsupported forecast frequency alias.
type InvalidFrequencyError struct {
	Freq      string
	Supported []string
}

func (e *InvalidFrequencyError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("unsupported frequency %q", e.Freq)
	}
	return fmt.Sprintf("unsupported frequency %q (supported: %s)", e.Freq, strings.Join(e.Supported, ", "))
}

// Is implements errors.Is support
func (e *InvalidFrequencyError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInvalidFrequencyError creates an InvalidFrequencyError.
func NewInvalidFrequencyError(freq string, supported ...string) *InvalidFrequencyError {
	return &InvalidFrequencyError{Freq: freq, Supported: supported}
}

// ModelNotFoundError is returned when no candidate path holds an artifact.
type ModelNotFoundError struct {
	Artifact string
	Paths    []string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.Artifact, strings.Join(e.Paths, " or "))
}

// Is implements errors.Is support
func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewModelNotFoundError creates a ModelNotFoundError.
func NewModelNotFoundError(artifact string, paths ...string) *ModelNotFoundError {
	return &ModelNotFoundError{Artifact: artifact, Paths: paths}
}

// ValidationError represents a request-level validation failure
type ValidationError struct {
	Field   string
	Message string
}

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

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AlreadyExistsError reports a duplicate unique resource.
type AlreadyExistsError struct {
	Resource string
	ID       string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// NewAlreadyExistsError creates an AlreadyExistsError.
func NewAlreadyExistsError(resource, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Resource: resource, ID: id}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigError creates a ConfigError.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}
