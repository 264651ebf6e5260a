package sshconn_test

import (
	"bufio"
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/iwoov/shellmaster/internal/hostkey"
	"github.com/iwoov/shellmaster/internal/sshconn"
)

func newConfig(t *testing.T, host string, port int, password string) sshconn.Config {
	t.Helper()
	return sshconn.Config{
		Host:           host,
		Port:           port,
		Username:       "tester",
		Auth:           sshconn.AuthMethod{Kind: sshconn.AuthPassword, Password: password},
		ConnectTimeout: 3 * time.Second,
	}
}

// alwaysKnownStore is a hostkey.Store that always reports Known, so tests
// don't need to drive the prompt channel for the happy path.
type alwaysKnownStore struct{}

func newAlwaysKnownStore() hostkey.Store { return alwaysKnownStore{} }

func (alwaysKnownStore) Lookup(string, int, ssh.PublicKey) hostkey.Verdict { return hostkey.Known }
func (alwaysKnownStore) Remember(string, int, ssh.PublicKey) error        { return nil }

func TestConnectStageOrdering(t *testing.T) {
	srv := newTestServer(t, "tester", "secret")
	host, port := srv.addr()

	store := newAlwaysKnownStore()
	cfg := newConfig(t, host, port, "secret")

	var connected *sshconn.Session
	handle := sshconn.Connect(context.Background(), cfg, store, "sess-1", func(s *sshconn.Session) {
		connected = s
	})

	var stages []sshconn.Stage
	var sawConnectedEvent bool
	for ev := range handle.Events {
		switch e := ev.(type) {
		case sshconn.StageChangedEvent:
			stages = append(stages, e.Stage)
		case sshconn.ConnectedEvent:
			sawConnectedEvent = true
			if e.SessionID != "sess-1" {
				t.Errorf("SessionID: got %q, want sess-1", e.SessionID)
			}
		case sshconn.FailedEvent:
			t.Fatalf("unexpected failure: %v", e.Err)
		}
	}

	if !sawConnectedEvent {
		t.Fatal("expected a ConnectedEvent")
	}
	if connected == nil {
		t.Fatal("onConnected callback never fired")
	}
	if !connected.IsAlive() {
		t.Error("session should be alive immediately after connect")
	}

	last := sshconn.Stage(-1)
	for _, s := range stages {
		if s < last {
			t.Fatalf("stages went backward: %v after %v", s, last)
		}
		last = s
	}
	if stages[len(stages)-1] != sshconn.Connected {
		t.Errorf("last stage: got %v, want Connected", stages[len(stages)-1])
	}

	connected.Close()
	if connected.IsAlive() {
		t.Error("IsAlive should be false after Close")
	}
}

func TestConnectEmitsAuthenticatingAfterHostKeyVerified(t *testing.T) {
	srv := newTestServer(t, "tester", "secret")
	host, port := srv.addr()

	store := newAlwaysKnownStore()
	cfg := newConfig(t, host, port, "secret")

	handle := sshconn.Connect(context.Background(), cfg, store, "sess-order", nil)

	var stages []sshconn.Stage
	var sawLog bool
	for ev := range handle.Events {
		switch e := ev.(type) {
		case sshconn.StageChangedEvent:
			stages = append(stages, e.Stage)
		case sshconn.LogEvent:
			sawLog = true
		}
	}

	if !sawLog {
		t.Error("expected at least one LogEvent during a successful connect")
	}

	var sawHandshaking, sawAuthenticating bool
	for _, s := range stages {
		switch s {
		case sshconn.Handshaking:
			sawHandshaking = true
		case sshconn.Authenticating:
			if !sawHandshaking {
				t.Fatal("Authenticating stage observed before Handshaking")
			}
			sawAuthenticating = true
		}
	}
	if !sawAuthenticating {
		t.Fatal("expected an Authenticating stage")
	}
}

func TestConnectAuthFailure(t *testing.T) {
	srv := newTestServer(t, "tester", "secret")
	host, port := srv.addr()

	store := newAlwaysKnownStore()
	cfg := newConfig(t, host, port, "wrong-password")

	handle := sshconn.Connect(context.Background(), cfg, store, "sess-2", nil)

	var failed bool
	for ev := range handle.Events {
		if _, ok := ev.(sshconn.FailedEvent); ok {
			failed = true
		}
		if _, ok := ev.(sshconn.ConnectedEvent); ok {
			t.Fatal("should not connect with wrong password")
		}
	}
	if !failed {
		t.Fatal("expected a FailedEvent")
	}
}

func TestSessionExecAndTerminal(t *testing.T) {
	srv := newTestServer(t, "tester", "secret")
	host, port := srv.addr()

	store := newAlwaysKnownStore()
	cfg := newConfig(t, host, port, "secret")

	var connected *sshconn.Session
	handle := sshconn.Connect(context.Background(), cfg, store, "sess-3", func(s *sshconn.Session) {
		connected = s
	})
	for range handle.Events {
	}
	if connected == nil {
		t.Fatal("never connected")
	}
	defer connected.Close()

	exec, err := connected.OpenExec()
	if err != nil {
		t.Fatalf("OpenExec: %v", err)
	}
	result, err := exec.Exec("whatever")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if string(result.Stdout) != "ok\n" {
		t.Errorf("Stdout: got %q, want %q", result.Stdout, "ok\n")
	}

	shell, err := connected.OpenTerminal(sshconn.PtyRequest{Term: "xterm-256color", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("OpenTerminal: %v", err)
	}
	defer shell.Close()

	if _, err := shell.Write([]byte("hi\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	reader := bufio.NewReader(shell)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if line != "hi\n" {
		t.Errorf("echoed line: got %q, want %q", line, "hi\n")
	}
}

func TestConnectAfterCloseReturnsDisconnected(t *testing.T) {
	srv := newTestServer(t, "tester", "secret")
	host, port := srv.addr()

	store := newAlwaysKnownStore()
	cfg := newConfig(t, host, port, "secret")

	var connected *sshconn.Session
	handle := sshconn.Connect(context.Background(), cfg, store, "sess-4", func(s *sshconn.Session) {
		connected = s
	})
	for range handle.Events {
	}
	connected.Close()

	if _, err := connected.OpenExec(); err == nil {
		t.Fatal("expected Disconnected error after Close")
	}
}
