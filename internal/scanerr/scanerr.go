// Package scanerr defines the error taxonomy shared by collectors,
// pipelines, and the service layer. Errors carry a stable code family
// so callers can branch on the code rather than the error type.
package scanerr

import (
	"errors"
	"fmt"
)

// Code families. Collector codes (DNS_*, TLS_*, WHOIS_*) are recoverable
// and usually absorbed into scan reasons; service codes wrap failures
// crossing the orchestration boundary.
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeNetworkError         = "NETWORK_ERROR"
	CodeTimeout              = "TIMEOUT"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeRateLimited          = "RATE_LIMITED"
	CodeTemporaryFailure     = "TEMPORARY_FAILURE"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeNotFound             = "NOT_FOUND"
	CodeDNSLookupFailed      = "DNS_LOOKUP_FAILED"
	CodeDNSNoRecords         = "DNS_NO_RECORDS"
	CodeTLSHandshakeFailed   = "TLS_HANDSHAKE_FAILED"
	CodeTLSCertInvalid       = "TLS_CERT_INVALID"
	CodeWhoisLookupFailed    = "WHOIS_LOOKUP_FAILED"
	CodeServiceError         = "SERVICE_ERROR"
	CodeScanFailed           = "SCAN_FAILED"
	CodeRescanFailed         = "RESCAN_FAILED"
	CodeRetryExhausted       = "RETRY_EXHAUSTED"
	CodeValidationError      = "VALIDATION_ERROR"
)

// Error is a coded error value. Details carry structured context that
// survives wrapping, e.g. the collector name or the target description.
type Error struct {
	Code    string
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error whose cause is err. If err is itself a
// coded error its details are carried forward under the new code.
func Wrap(code, message string, err error) *Error {
	e := &Error{Code: code, Message: message, cause: err}
	var inner *Error
	if errors.As(err, &inner) && len(inner.Details) > 0 {
		e.Details = make(map[string]string, len(inner.Details))
		for k, v := range inner.Details {
			e.Details[k] = v
		}
	}
	return e
}

// WithDetail returns e with an added detail entry. The receiver is
// mutated and returned for chaining at construction sites.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the code from err, or SERVICE_ERROR when err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServiceError
}

// retryable is the set of codes that indicate a transient condition
// worth retrying.
var retryable = map[string]bool{
	CodeNetworkError:       true,
	CodeTimeout:            true,
	CodeServiceUnavailable: true,
	CodeRateLimited:        true,
	CodeTemporaryFailure:   true,
}

// IsRetryable reports whether code names a transient failure.
func IsRetryable(code string) bool { return retryable[code] }
