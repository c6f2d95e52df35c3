// Package errs defines the error taxonomy used throughout medusad and
// errdefs-style predicates for branching on it without importing Kind
// constants directly.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the broad category a medusad error belongs to.
type Kind int

const (
	// Config covers policy and static configuration build/validation failures.
	Config Kind = iota
	// IO covers failures reading from or writing to the device.
	IO
	// Parse covers malformed wire data that cannot be decoded into a header or frame.
	Parse
	// Connection covers greeting/version handshake failures.
	Connection
	// Communication covers protocol-level violations once the connection is established.
	Communication
	// Attribute covers attribute store violations (read-only writes, unknown names).
	Attribute
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case IO:
		return "io"
	case Parse:
		return "parse"
	case Connection:
		return "connection"
	case Communication:
		return "communication"
	case Attribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged, wrap-chained error.
type Error struct {
	kind  Kind
	cause error
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, cause: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind, preserving its cause chain via pkg/errors.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, cause: errors.Wrap(err, message)}
}

func (e *Error) Error() string {
	return e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind reports the error's category.
func (e *Error) Kind() Kind {
	return e.kind
}

func isKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}

// KindOf reports err's Kind, or an unknown Kind if err was not built by
// New or Wrap. Used to label metrics by failure category without a type
// switch at every call site.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Kind(-1)
}

// IsConfig reports whether err is (or wraps) a Config-kind error.
func IsConfig(err error) bool { return isKind(err, Config) }

// IsIO reports whether err is (or wraps) an IO-kind error.
func IsIO(err error) bool { return isKind(err, IO) }

// IsParse reports whether err is (or wraps) a Parse-kind error.
func IsParse(err error) bool { return isKind(err, Parse) }

// IsConnection reports whether err is (or wraps) a Connection-kind error.
func IsConnection(err error) bool { return isKind(err, Connection) }

// IsCommunication reports whether err is (or wraps) a Communication-kind error.
func IsCommunication(err error) bool { return isKind(err, Communication) }

// IsAttribute reports whether err is (or wraps) an Attribute-kind error.
func IsAttribute(err error) bool { return isKind(err, Attribute) }
