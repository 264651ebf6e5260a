package sshconn

import (
	"time"

	"github.com/iwoov/shellmaster/internal/hostkey"
)

// Event is the sealed set of values pushed into a connection's event
// stream, in production order. GUI code type-switches on the concrete type.
type Event interface {
	isEvent()
}

type StageChangedEvent struct{ Stage Stage }

func (StageChangedEvent) isEvent() {}

type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "info"
	}
}

type LogEvent struct {
	Level   LogLevel
	Message string
	At      time.Time
}

func (LogEvent) isEvent() {}

// HostKeyPromptEvent is emitted when the known-hosts store has never seen
// this host. The driver blocks until a HostKeyResponse arrives on the
// same ConnectHandle's HostKeyResponses channel.
type HostKeyPromptEvent struct {
	Host        string
	Port        int
	Fingerprint string
	Algorithm   string
}

func (HostKeyPromptEvent) isEvent() {}

// HostKeyMismatchEvent is emitted when the presented key differs from the
// one on record. The driver never accepts it on its own; it waits for an
// explicit HostKeyResponse (Reject aborts, AcceptOnce or AcceptAndRemember
// proceeds).
type HostKeyMismatchEvent struct {
	Host        string
	Port        int
	Fingerprint string
	Algorithm   string
}

func (HostKeyMismatchEvent) isEvent() {}

type ConnectedEvent struct{ SessionID string }

func (ConnectedEvent) isEvent() {}

type FailedEvent struct{ Err error }

func (FailedEvent) isEvent() {}

type DisconnectedEvent struct{ Reason string }

func (DisconnectedEvent) isEvent() {}

// HostKeyResponse carries the caller's decision back to the handshake
// stage, keeping the interactive policy (GUI prompt, auto-accept on
// reconnect, non-interactive test harness) out of the driver.
type HostKeyResponse struct {
	Action hostkey.Action
}
