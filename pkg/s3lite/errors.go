package s3lite

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ValidationError reports malformed caller input. It is raised
// synchronously, before any network call is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "s3lite: invalid " + e.Field + ": " + e.Message
}

// NetworkReason is a coarse classification of a transport-level failure.
type NetworkReason string

// Transport failure reasons.
const (
	ReasonHostUnresolvable NetworkReason = "host-unresolvable"
	ReasonUnreachable      NetworkReason = "unreachable"
	ReasonUnknown          NetworkReason = "unknown"
)

// NetworkError wraps a transport-level failure (DNS, connect, timeout).
type NetworkError struct {
	// Op is the logical operation that failed (e.g., "ListObjects").
	Op string

	// Reason is the coarse failure class.
	Reason NetworkReason

	// Err is the underlying transport error.
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("s3lite %s: network failure (%s): %v", e.Op, e.Reason, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError reports a provider response with a status outside the
// call's tolerated set.
type ServiceError struct {
	// Op is the logical operation that failed.
	Op string

	// StatusCode is the HTTP status returned by the provider.
	StatusCode int

	// Code is the provider error code extracted from the response body
	// or headers (e.g., "NoSuchKey").
	Code string

	// Message is the provider's error message, when present.
	Message string

	// Body is the raw response body.
	Body []byte
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("s3lite %s: %d %s: %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("s3lite %s: provider returned status %d", e.Op, e.StatusCode)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsService reports whether err is a ServiceError.
func IsService(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// AsService returns the ServiceError inside err, if any.
func AsService(err error) (*ServiceError, bool) {
	var se *ServiceError
	ok := errors.As(err, &se)
	return se, ok
}

// classifyNetworkReason maps a transport error onto a coarse reason.
// DNS failures are host-unresolvable, connection-establishment failures
// are unreachable, and everything else (including timeouts) is unknown.
func classifyNetworkReason(err error) NetworkReason {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonHostUnresolvable
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return ReasonUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ReasonUnreachable
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonUnknown
	}

	// Some transports flatten the cause into the message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such host"):
		return ReasonHostUnresolvable
	case strings.Contains(msg, "connection refused"):
		return ReasonUnreachable
	}
	return ReasonUnknown
}
