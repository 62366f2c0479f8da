// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrSessionExpired       = errors.New("session expired")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrMissingCredentials   = errors.New("brokerage credentials not configured")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrOrderRejected        = errors.New("order rejected")
	ErrSymbolNotFound       = errors.New("symbol not found")
	ErrNoCandidates         = errors.New("no option candidates")
	ErrRateLimited          = errors.New("rate limited")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDataNotFound         = errors.New("data not found")
	ErrScanNotFound         = errors.New("no scan documents found")
	ErrReadOnlyMode         = errors.New("operation blocked: read-only mode enabled")
	ErrInputValidation      = errors.New("input validation failed")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// AuthError is returned when the brokerage rejects a login. It is fatal for the
// whole invocation.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed for %s: %v", e.Username, e.Err)
	}
	return fmt.Sprintf("login failed for %s", e.Username)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidCredentials) match any AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// NewAuthError creates a new AuthError.
func NewAuthError(username string, err error) *AuthError {
	return &AuthError{Username: username, Err: err}
}

// APIError represents an error response from the brokerage API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API %s %s: [%s] %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("API %s %s: %s", e.Method, e.Path, e.Message)
}

// Retryable reports whether the failure is transient (throttling or a server fault).
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// NewAPIError creates a new APIError.
func NewAPIError(method, path string, status int, code, message string) *APIError {
	return &APIError{
		Method:  method,
		Path:    path,
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents missing or unusable data. It is never fatal: callers
// treat it as "no candidates" and continue.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrDataNotFound
}

// Is matches ErrDataNotFound even when a more specific cause is wrapped.
func (e *DataError) Is(target error) bool {
	return target == ErrDataNotFound
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// SymbolError is a failure isolated to one instrument while processing many.
type SymbolError struct {
	Symbol    string
	Operation string
	Err       error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// NewSymbolError creates a new SymbolError.
func NewSymbolError(symbol, operation string, err error) *SymbolError {
	return &SymbolError{
		Symbol:    symbol,
		Operation: operation,
		Err:       err,
	}
}

// ScanError represents an unreadable or malformed scan document.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan document %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewScanError creates a new ScanError.
func NewScanError(path string, err error) *ScanError {
	return &ScanError{Path: path, Err: err}
}

// IsFatal reports whether err must terminate the invocation rather than
// being absorbed by the enclosing loop.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	var scanErr *ScanError
	return errors.As(err, &authErr) || errors.As(err, &scanErr) || errors.Is(err, ErrMissingCredentials)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
