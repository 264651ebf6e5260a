package manager

import (
	"context"
	"time"

	"github.com/iwoov/shellmaster/internal/hostkey"
	"github.com/iwoov/shellmaster/internal/shellerr"
	"github.com/iwoov/shellmaster/internal/sshconn"
)

// TabStatusKind is the coarse status a reconnection run reports for a GUI
// tab.
type TabStatusKind int

const (
	StatusConnecting TabStatusKind = iota
	StatusReconnecting
	StatusConnected
	StatusDisconnected
)

// TabStatus is pushed to a StatusSink at each step of the reconnection
// loop.
type TabStatus struct {
	Kind        TabStatusKind
	Attempt     int
	MaxAttempts int
	Reason      string
}

// StatusSink receives tab status updates. The GUI's tab model implements
// this; tests can fake it with a slice-collecting sink.
type StatusSink interface {
	SetStatus(tabID string, status TabStatus)
}

// ReconnectPolicy bounds a reconnection run.
type ReconnectPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Reconnect runs up to policy.MaxAttempts connection attempts spaced by
// policy.Interval. It auto-accepts a HostKeyPrompt
// (the key was already known at first connection) and auto-rejects a
// HostKeyMismatch, stopping the whole run immediately — a real mismatch
// is never masked by retries. Returns nil once an attempt connects; the
// session is then registered under sessionID.
func (m *Manager) Reconnect(ctx context.Context, cfg sshconn.Config, tabID, sessionID string, policy ReconnectPolicy, sink StatusSink) error {
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		sink.SetStatus(tabID, TabStatus{Kind: StatusReconnecting, Attempt: attempt, MaxAttempts: policy.MaxAttempts})

		handle := m.Connect(ctx, cfg, sessionID)
		outcome := driveOneAttempt(handle)

		switch outcome.kind {
		case attemptConnected:
			sink.SetStatus(tabID, TabStatus{Kind: StatusConnected})
			return nil

		case attemptHostKeyMismatch:
			sink.SetStatus(tabID, TabStatus{Kind: StatusDisconnected, Reason: "host key mismatch - possible security risk"})
			return shellerr.New(shellerr.Auth, "host key mismatch - possible security risk")

		case attemptFailed, attemptDisconnected:
			if attempt == policy.MaxAttempts {
				continue
			}
			select {
			case <-ctx.Done():
				sink.SetStatus(tabID, TabStatus{Kind: StatusDisconnected, Reason: ctx.Err().Error()})
				return ctx.Err()
			case <-time.After(policy.Interval):
			}
		}
	}

	sink.SetStatus(tabID, TabStatus{Kind: StatusDisconnected, Reason: "reconnect attempts exhausted"})
	return shellerr.New(shellerr.Disconnected, "reconnect attempts exhausted")
}

type attemptOutcome struct {
	kind attemptKind
}

type attemptKind int

const (
	attemptConnected attemptKind = iota
	attemptFailed
	attemptDisconnected
	attemptHostKeyMismatch
)

// driveOneAttempt drains one connect attempt's event stream, answering
// host-key prompts automatically and classifying the terminal outcome.
func driveOneAttempt(handle sshconn.ConnectHandle) attemptOutcome {
	for ev := range handle.Events {
		switch ev.(type) {
		case sshconn.HostKeyPromptEvent:
			// Auto-accept: the key was already known at first connection.
			handle.HostKeyResponses <- sshconn.HostKeyResponse{Action: hostkey.AcceptOnce}
		case sshconn.HostKeyMismatchEvent:
			handle.HostKeyResponses <- sshconn.HostKeyResponse{Action: hostkey.Reject}
			drain(handle.Events)
			return attemptOutcome{kind: attemptHostKeyMismatch}
		case sshconn.ConnectedEvent:
			drain(handle.Events)
			return attemptOutcome{kind: attemptConnected}
		case sshconn.FailedEvent:
			drain(handle.Events)
			return attemptOutcome{kind: attemptFailed}
		case sshconn.DisconnectedEvent:
			drain(handle.Events)
			return attemptOutcome{kind: attemptDisconnected}
		}
	}
	return attemptOutcome{kind: attemptFailed}
}

func drain(events <-chan sshconn.Event) {
	for range events {
	}
}
