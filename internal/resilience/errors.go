package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// DataUnavailableError indicates a collaborator could not supply the metrics
// a domain needs. Non-fatal domains recover by neutral-default substitution;
// the market domain treats it as fatal.
type DataUnavailableError struct {
	Domain string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s data unavailable: %v", e.Domain, e.Err)
	}
	return fmt.Sprintf("%s data unavailable", e.Domain)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// NewDataUnavailable wraps err as a DataUnavailableError for a domain.
func NewDataUnavailable(domain string, err error) *DataUnavailableError {
	return &DataUnavailableError{Domain: domain, Err: err}
}

// IsDataUnavailable reports whether any error in the chain is a
// DataUnavailableError.
func IsDataUnavailable(err error) bool {
	var due *DataUnavailableError
	return errors.As(err, &due)
}

// InsufficientHistoryError indicates a time series is too short for an
// indicator. The scorer excludes the indicator rather than fabricating a
// value.
type InsufficientHistoryError struct {
	Indicator string
	Need      int
	Have      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s requires %d periods, have %d", e.Indicator, e.Need, e.Have)
}

// IsInsufficientHistory reports whether any error in the chain is an
// InsufficientHistoryError.
func IsInsufficientHistory(err error) bool {
	var ihe *InsufficientHistoryError
	return errors.As(err, &ihe)
}

// ConfigurationError indicates bad weights or thresholds. Not recoverable;
// surfaced to the caller.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidMetricError indicates malformed numeric input (negative percentage,
// NaN, Inf). It aborts only the offending metric's contribution.
type InvalidMetricError struct {
	Metric string
	Value  float64
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("invalid value %v for metric %s", e.Value, e.Metric)
}

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or matches common transient network failure patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true for HTTP statuses that indicate a
// retryable server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
