// Package coreerr defines the error-kind taxonomy shared by every
// component of the storage core.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is one of the twelve error kinds every component classifies
// its failures into. It is a string rather than a sentinel value so
// it serializes directly into HTTP error bodies: the kind is the
// contract.
type Kind string

const (
	InvalidInput      Kind = "InvalidInput"
	InvalidKey        Kind = "InvalidKey"
	DigestMismatch    Kind = "DigestMismatch"
	DecryptionFailed  Kind = "DecryptionFailed"
	NotFound          Kind = "NotFound"
	UnknownPeer       Kind = "UnknownPeer"
	NoReplicas        Kind = "NoReplicas"
	ReplicationFailed Kind = "ReplicationFailed"
	Unretrievable     Kind = "Unretrievable"
	IntegrityFailed   Kind = "IntegrityFailed"
	Timeout           Kind = "Timeout"
	TransportError    Kind = "TransportError"
)

// Error is the core's single error type. Components raise it so
// callers can classify failures by Kind without string matching.
type Error struct {
	Kind      Kind
	Message   string
	Digest    string // optional, set when the error concerns one chunk
	PeerID    string // optional, set when the error concerns one peer
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	switch {
	case e.Digest != "" && e.PeerID != "":
		return fmt.Sprintf("%s: %s (digest=%s peer=%s)", e.Kind, e.Message, e.Digest, e.PeerID)
	case e.Digest != "":
		return fmt.Sprintf("%s: %s (digest=%s)", e.Kind, e.Message, e.Digest)
	case e.PeerID != "":
		return fmt.Sprintf("%s: %s (peer=%s)", e.Kind, e.Message, e.PeerID)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: isRetryable(kind)}
}

// Wrap constructs an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause, Retryable: isRetryable(kind)}
}

// WithDigest attaches a digest to the error and returns it for chaining.
func (e *Error) WithDigest(digest string) *Error {
	e.Digest = digest
	return e
}

// WithPeer attaches a peer-id to the error and returns it for chaining.
func (e *Error) WithPeer(peerID string) *Error {
	e.PeerID = peerID
	return e
}

func isRetryable(kind Kind) bool {
	switch kind {
	case Timeout, TransportError, NotFound, DigestMismatch:
		return true
	default:
		return false
	}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
