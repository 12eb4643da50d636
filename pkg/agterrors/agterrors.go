// Package agterrors defines the typed error kinds shared across agt-go:
// configuration failures, transport failures, and protocol/decode failures
// that the gadget core and transport drivers handle differently (see
// SPEC_FULL.md §7).
package agterrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the dispatch policy in SPEC_FULL.md §7.
type Kind int

const (
	// KindConfig is a missing or invalid configuration value. Fatal at startup.
	KindConfig Kind = iota
	// KindTransport is a host Bluetooth stack failure. Logged; the gadget
	// relies on the reconnect loop to recover.
	KindTransport
	// KindProtocol is malformed inbound bytes (bad checksum, truncated frame).
	KindProtocol
	// KindDecode is a payload that does not parse as its expected schema.
	KindDecode
	// KindNotSupported is an operation invalid for the current transport.
	KindNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindTransport:
		return "TransportError"
	case KindProtocol:
		return "ProtocolError"
	case KindDecode:
		return "DecodeError"
	case KindNotSupported:
		return "NotSupported"
	default:
		return "UnknownError"
	}
}

// Error is a Kind-tagged, wrapped error. Op names the failing operation
// ("gadget.start", "blelink.fragment", ...).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, &agterrors.Error{Kind: agterrors.KindConfig}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf constructs an *Error of the given kind with a formatted message and
// no wrapped cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
