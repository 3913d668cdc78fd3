package common

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for a bad endpoint scheme, missing or
	// contradictory endpoint configuration, or missing credentials.
	ErrInvalidConfig = errors.New("daxc: invalid configuration")

	// ErrMalformedEncoding is returned when a reply cannot be decoded.
	ErrMalformedEncoding = errors.New("daxc: malformed encoding")

	// ErrTimeout is returned when socket I/O exceeds its deadline. The
	// affected connection is declared bad.
	ErrTimeout = errors.New("daxc: request timed out")

	// ErrConnection is returned for TCP/TLS failures at open or mid-stream.
	ErrConnection = errors.New("daxc: connection error")

	// ErrAuthFailed is returned when the signer fails or the server rejects
	// the authorization frame.
	ErrAuthFailed = errors.New("daxc: authentication failed")

	// ErrMissingRequiredField is returned when an operation lacks a
	// mandatory parameter such as TableName or RequestItems.
	ErrMissingRequiredField = errors.New("daxc: missing required field")

	// ErrUnsupportedOperation is returned for an unknown operation name.
	ErrUnsupportedOperation = errors.New("daxc: unsupported operation")

	// ErrNoEndpoints is returned when the pool has no endpoints configured.
	ErrNoEndpoints = errors.New("daxc: no endpoints configured")

	// ErrPoolExhausted is returned when the per-host connection cap is hit.
	ErrPoolExhausted = errors.New("daxc: connection pool exhausted")

	// ErrPoolClosed is returned by Get on a closed pool.
	ErrPoolClosed = errors.New("daxc: connection pool closed")

	// ErrClosed is returned for any operation on an already-closed client,
	// pool or connection.
	ErrClosed = errors.New("daxc: closed")

	// ErrRequestFailed wraps transport and codec failures on the request
	// path; the underlying kind is preserved in the chain.
	ErrRequestFailed = errors.New("daxc: request failed")
)

// ServerError carries a non-zero status from a reply's error descriptor.
type ServerError struct {
	Status    int64
	Message   string
	RequestID string
}

func (e *ServerError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("daxc: server error %d: %s (request id %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("daxc: server error %d: %s", e.Status, e.Message)
}

// KeyError reports a key attribute that fails validation against the cached
// key schema. It is raised before any bytes go on the wire.
type KeyError struct {
	AttributeName string
	Missing       bool // true: MissingKey, false: ExtraKey
}

func (e *KeyError) Error() string {
	if e.Missing {
		return fmt.Sprintf("daxc: key is missing schema attribute %q", e.AttributeName)
	}
	return fmt.Sprintf("daxc: key contains attribute %q not in schema", e.AttributeName)
}

// MissingKey builds the validation error for an absent key attribute.
func MissingKey(name string) error { return &KeyError{AttributeName: name, Missing: true} }

// ExtraKey builds the validation error for an unexpected key attribute.
func ExtraKey(name string) error { return &KeyError{AttributeName: name} }
