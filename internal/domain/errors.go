package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransportError is a network failure or a non-2xx response from the market API.
type TransportError struct {
	Op         string // Operation that failed (e.g., "global", "markets")
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return e.Op + ": " + e.Err.Error()
}

// IsRetriable is true for connection failures, throttling and server errors.
func (e *TransportError) IsRetriable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error for op.
func NewTransportError(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, StatusCode: status, Err: err}
}

// ParseError is a malformed response body. Never retriable.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return "parse " + e.Op + ": " + e.Err.Error()
}

func (e *ParseError) IsRetriable() bool {
	return false
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a user query matches no known asset.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("asset not found: %q", e.Query)
}

// ValidationError is returned for rejected user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUpstream reports whether err came from the market data source.
func IsUpstream(err error) bool {
	var te *TransportError
	var pe *ParseError
	return errors.As(err, &te) || errors.As(err, &pe)
}

var (
	// ErrRefreshInFlight is returned when a refresh is requested while another is running.
	ErrRefreshInFlight = errors.New("refresh already in flight")

	// ErrNotLoaded is returned by actions that need a snapshot before the first refresh.
	ErrNotLoaded = errors.New("market data not loaded yet")

	// ErrClosed is returned once the orchestrator has been stopped.
	ErrClosed = errors.New("orchestrator closed")
)
