// Package shellerr defines the closed error taxonomy shared by every
// session-runtime component: transport, SSH driver, SFTP engine and the
// external-editor round trip all wrap their failures in an Error so callers
// can switch on Kind instead of parsing messages.
package shellerr

import (
	"errors"
	"fmt"
)

// Kind is one of a fixed set of error categories. Components never invent
// new kinds; they pick the closest fit from this list.
type Kind int

const (
	Config Kind = iota
	Io
	Auth
	Protocol
	Key
	Proxy
	JumpHost
	Timeout
	Channel
	Disconnected
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "Config"
	case Io:
		return "Io"
	case Auth:
		return "Auth"
	case Protocol:
		return "Protocol"
	case Key:
		return "Key"
	case Proxy:
		return "Proxy"
	case JumpHost:
		return "JumpHost"
	case Timeout:
		return "Timeout"
	case Channel:
		return "Channel"
	case Disconnected:
		return "Disconnected"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind and human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Secs    uint64 // populated only for Kind == Timeout
	Cause   error
}

func (e *Error) Error() string {
	if e.Kind == Timeout && e.Secs != 0 {
		return fmt.Sprintf("%s: connection timeout after %ds", e.Kind, e.Secs)
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that keeps cause reachable via errors.Unwrap.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewTimeout builds the Timeout kind, which renders its message from Secs.
func NewTimeout(secs uint64) *Error {
	return &Error{Kind: Timeout, Secs: secs}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
