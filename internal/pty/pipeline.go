// Package pty implements C5: the bridge between an ANSI terminal
// emulator (a black-box collaborator) and a shell
// channel opened on an authenticated SSH session. It is generalized from
// internal/terminal/terminal.go's PTY/WebSocket bridge — the
// same read-goroutine/write-passthrough shape, driving an injected
// Emulator instead of a *websocket.Conn.
package pty

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errNotInitialized = errors.New("pty: pipeline not initialized")

// Emulator is the black-box ANSI state machine the GUI owns. The
// pipeline never inspects its output; it only feeds bytes in and resizes
// it.
type Emulator interface {
	FeedBytes(chunk []byte)
	Resize(cols, rows int)
	SetCursorVisible(visible bool)
}

// Channel is the subset of sshconn.ShellChannel the pipeline depends on.
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	Close() error
}

const blinkInterval = 500 * time.Millisecond

// Pipeline is one terminal instance's state: optional channel, the
// pty_initialized flag, the last size sent, and the error observed on
// the read side, if any.
type Pipeline struct {
	emulator Emulator

	mu          sync.Mutex
	channel     Channel
	initialized bool
	lastCols    int
	lastRows    int
	hasLastSize bool
	err         error

	blinkCancel  context.CancelFunc
	onDisconnect func(err error)
}

// New creates a Pipeline around emulator. onDisconnect, if non-nil, is
// invoked from the reader goroutine when the channel's read side ends,
// so a caller (C4.1) can kick off reconnection.
func New(emulator Emulator, onDisconnect func(err error)) *Pipeline {
	return &Pipeline{emulator: emulator, onDisconnect: onDisconnect}
}

// Initialize opens the reader loop and cursor blinker against channel at
// the given cell geometry. A second call while already initialized is a
// no-op, mirroring an idempotent pty_initialized guard.
func (p *Pipeline) Initialize(channel Channel, cols, rows int) {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return
	}
	p.channel = channel
	p.initialized = true
	p.lastCols, p.lastRows = cols, rows
	p.hasLastSize = true
	p.err = nil
	p.mu.Unlock()

	p.emulator.Resize(cols, rows)

	go p.readLoop(channel)
	p.startBlink()
}

// readLoop feeds chunks to the emulator until the channel's read side
// ends, then marks the pipeline's channel dead and reports the error (nil
// on a clean EOF) via onDisconnect.
func (p *Pipeline) readLoop(channel Channel) {
	buf := make([]byte, 32*1024)
	for {
		n, err := channel.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.emulator.FeedBytes(chunk)
		}
		if err != nil {
			p.mu.Lock()
			p.channel = nil
			p.initialized = false
			p.err = err
			p.mu.Unlock()
			p.stopBlink()
			if p.onDisconnect != nil {
				p.onDisconnect(err)
			}
			return
		}
	}
}

// Write sends a keystroke byte sequence through the channel's write path.
// It never touches the read path's lock, so a blocking read never stalls
// a keystroke.
func (p *Pipeline) Write(data []byte) error {
	p.mu.Lock()
	channel := p.channel
	p.mu.Unlock()
	if channel == nil {
		return errNotInitialized
	}
	_, err := channel.Write(data)
	return err
}

// WriteKey maps ev to its byte sequence (see KeyToBytes) and writes it
// through the channel's write path.
func (p *Pipeline) WriteKey(ev KeyEvent) error {
	return p.Write(KeyToBytes(ev))
}

// Resize recomputes the emulator size and, only if it actually changed,
// forwards a window-change request. This dedup prevents a storm of
// identical resizes during continuous layout dragging.
func (p *Pipeline) Resize(cols, rows int) error {
	p.mu.Lock()
	channel := p.channel
	unchanged := p.hasLastSize && p.lastCols == cols && p.lastRows == rows
	p.mu.Unlock()

	p.emulator.Resize(cols, rows)
	if unchanged || channel == nil {
		return nil
	}

	if err := channel.Resize(cols, rows); err != nil {
		return err
	}

	p.mu.Lock()
	p.lastCols, p.lastRows = cols, rows
	p.hasLastSize = true
	p.mu.Unlock()
	return nil
}

// Initialized reports whether the pipeline currently has a live channel.
func (p *Pipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// LastError returns the error observed by the reader loop when the
// channel died, if any.
func (p *Pipeline) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipeline) startBlink() {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.blinkCancel = cancel
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(blinkInterval)
		defer ticker.Stop()
		visible := true
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				visible = !visible
				p.emulator.SetCursorVisible(visible)
			}
		}
	}()
}

func (p *Pipeline) stopBlink() {
	p.mu.Lock()
	cancel := p.blinkCancel
	p.blinkCancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
