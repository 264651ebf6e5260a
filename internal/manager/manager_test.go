package manager_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwoov/shellmaster/internal/hostkey"
	"github.com/iwoov/shellmaster/internal/manager"
	"github.com/iwoov/shellmaster/internal/sshconn"
)

func newStore(t *testing.T) hostkey.Store {
	t.Helper()
	store, err := hostkey.Open(filepath.Join(t.TempDir(), "known_hosts"))
	if err != nil {
		t.Fatalf("hostkey.Open: %v", err)
	}
	return store
}

type fakeSink struct {
	statuses []manager.TabStatus
}

func (f *fakeSink) SetStatus(tabID string, status manager.TabStatus) {
	f.statuses = append(f.statuses, status)
}

func TestManagerConnectInsertsOnlyAfterSuccess(t *testing.T) {
	m := manager.New(newStore(t))
	if m.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", m.Len())
	}

	// Connecting to an address nothing listens on must fail without ever
	// inserting a session.
	cfg := sshconn.Config{
		Host:           "127.0.0.1",
		Port:           1,
		Username:       "nobody",
		Auth:           sshconn.AuthMethod{Kind: sshconn.AuthPassword, Password: "x"},
		ConnectTimeout: 200 * time.Millisecond,
	}
	handle := m.Connect(context.Background(), cfg, "s1")
	for range handle.Events {
	}
	if m.Len() != 0 {
		t.Errorf("Len after failed connect: got %d, want 0", m.Len())
	}
	if _, ok := m.Get("s1"); ok {
		t.Error("Get should not find a session after a failed connect")
	}
}

func TestManagerCloseUnknownIDIsNoop(t *testing.T) {
	m := manager.New(newStore(t))
	if err := m.Close("does-not-exist"); err != nil {
		t.Errorf("Close of unknown id: got %v, want nil", err)
	}
}

func TestReconnectExhaustsAttempts(t *testing.T) {
	m := manager.New(newStore(t))
	cfg := sshconn.Config{
		Host:           "127.0.0.1",
		Port:           1,
		Username:       "nobody",
		Auth:           sshconn.AuthMethod{Kind: sshconn.AuthPassword, Password: "x"},
		ConnectTimeout: 100 * time.Millisecond,
	}
	sink := &fakeSink{}
	err := m.Reconnect(context.Background(), cfg, "tab-1", "sess-1", manager.ReconnectPolicy{
		MaxAttempts: 2,
		Interval:    10 * time.Millisecond,
	}, sink)
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}

	var reconnectingCount int
	finalIsDisconnected := false
	for i, s := range sink.statuses {
		if s.Kind == manager.StatusReconnecting {
			reconnectingCount++
		}
		if i == len(sink.statuses)-1 {
			finalIsDisconnected = s.Kind == manager.StatusDisconnected
		}
	}
	if reconnectingCount != 2 {
		t.Errorf("reconnecting updates: got %d, want 2", reconnectingCount)
	}
	if !finalIsDisconnected {
		t.Error("final status should be StatusDisconnected")
	}
}
