package pty_test

import (
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	creackpty "github.com/creack/pty"

	"github.com/iwoov/shellmaster/internal/pty"
)

// ptyChannel adapts a local creack/pty file handle to the pty.Channel
// contract, standing in for an sshconn.ShellChannel in tests. The
// production pipeline never talks to a local PTY directly — SSH sessions
// get their PTY from the remote host — but this is the cheapest way to
// exercise the resize-dedup and reader-loop behavior without a live SSH
// server.
type ptyChannel struct {
	f       *os.File
	resizes int // window-change requests forwarded by the pipeline
}

func (c *ptyChannel) Read(p []byte) (int, error)  { return c.f.Read(p) }
func (c *ptyChannel) Write(p []byte) (int, error) { return c.f.Write(p) }
func (c *ptyChannel) Resize(cols, rows int) error {
	c.resizes++
	return creackpty.Setsize(c.f, &creackpty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}
func (c *ptyChannel) Close() error { return c.f.Close() }

type fakeEmulator struct {
	mu          sync.Mutex
	fed         [][]byte
	resizes     []int
	cursorTicks int
}

func (e *fakeEmulator) FeedBytes(chunk []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	e.fed = append(e.fed, cp)
}

func (e *fakeEmulator) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resizes = append(e.resizes, cols, rows)
}

func (e *fakeEmulator) SetCursorVisible(bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursorTicks++
}

func (e *fakeEmulator) fedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fed)
}

func (e *fakeEmulator) resizeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resizes) / 2
}

func startLocalPty(t *testing.T) *os.File {
	t.Helper()
	cmd := exec.Command("cat")
	f, err := creackpty.Start(cmd)
	if err != nil {
		t.Skipf("creack/pty unavailable in this environment: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		f.Close()
	})
	return f
}

func TestPipelineFeedsEmulatorAndDedupsResize(t *testing.T) {
	f := startLocalPty(t)
	channel := &ptyChannel{f: f}
	emu := &fakeEmulator{}

	p := pty.New(emu, nil)
	p.Initialize(channel, 80, 24)
	if !p.Initialized() {
		t.Fatal("expected pipeline to be initialized")
	}

	if err := p.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for emu.fedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if emu.fedCount() == 0 {
		t.Fatal("expected at least one FeedBytes call from the cat echo")
	}

	if err := p.Resize(80, 24); err != nil {
		t.Fatalf("Resize (no-op): %v", err)
	}
	if got := channel.resizes; got != 0 {
		t.Errorf("window-change count after no-op resize: got %d, want 0 (size unchanged since Initialize)", got)
	}

	if err := p.Resize(100, 40); err != nil {
		t.Fatalf("Resize (changed): %v", err)
	}
	if got := channel.resizes; got != 1 {
		t.Errorf("window-change count after changed resize: got %d, want 1", got)
	}
}

func TestPipelineSecondInitializeIsNoop(t *testing.T) {
	f := startLocalPty(t)
	channel := &ptyChannel{f: f}
	emu := &fakeEmulator{}

	p := pty.New(emu, nil)
	p.Initialize(channel, 80, 24)
	p.Initialize(channel, 120, 50)

	if got := emu.resizeCount(); got != 1 {
		t.Errorf("resize count: got %d, want 1 (second Initialize should be a no-op)", got)
	}
}

func TestPipelineDisconnectCallback(t *testing.T) {
	f := startLocalPty(t)
	channel := &ptyChannel{f: f}
	emu := &fakeEmulator{}

	disconnected := make(chan error, 1)
	p := pty.New(emu, func(err error) { disconnected <- err })
	p.Initialize(channel, 80, 24)

	f.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onDisconnect to fire after the channel closed")
	}
	if p.Initialized() {
		t.Error("pipeline should no longer report initialized")
	}
}
