// Package sshconn implements C2 (the handshake/auth state machine) and C3
// (the authenticated session handle with its typed channels), generalized
// from internal/terminal/ssh.go's dial-in-a-goroutine pattern into a full
// staged connection driver.
package sshconn

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/iwoov/shellmaster/internal/shellerr"
)

// Session is one authenticated SSH connection (C3). It may hand out many
// concurrently open channels; open_* calls are safe to invoke from
// multiple goroutines. Close marks the session dead; any channel-open
// call made afterward returns a Disconnected error.
type Session struct {
	ID       string
	Host     string
	Username string

	client *ssh.Client
	alive  atomic.Bool
}

func newSession(id, host, username string, client *ssh.Client) *Session {
	s := &Session{ID: id, Host: host, Username: username, client: client}
	s.alive.Store(true)
	return s
}

// IsAlive reports the session's monotonic liveness flag: once false, it
// never becomes true again.
func (s *Session) IsAlive() bool { return s.alive.Load() }

// Close marks the session dead and closes the underlying transport.
// Outstanding channel operations observe the dead flag on their next
// boundary and return a Disconnected error.
func (s *Session) Close() error {
	s.alive.Store(false)
	return s.client.Close()
}

func (s *Session) checkAlive() error {
	if !s.alive.Load() {
		return shellerr.New(shellerr.Disconnected, "session %s is closed", s.ID)
	}
	return nil
}

// PtyRequest carries the parameters of an SSH pty-req.
type PtyRequest struct {
	Term      string
	Cols      int
	Rows      int
	PixWidth  int
	PixHeight int
	Modes     ssh.TerminalModes
}

// OpenTerminal opens a session channel, requests a PTY, then starts a
// shell.
func (s *Session) OpenTerminal(req PtyRequest) (*ShellChannel, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}

	sshSession, err := s.client.NewSession()
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Channel, err, "opening session channel")
	}

	modes := req.Modes
	if modes == nil {
		modes = ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
	}
	if err := sshSession.RequestPty(req.Term, req.Rows, req.Cols, modes); err != nil {
		sshSession.Close()
		return nil, shellerr.Wrap(shellerr.Channel, err, "requesting pty")
	}

	stdin, err := sshSession.StdinPipe()
	if err != nil {
		sshSession.Close()
		return nil, shellerr.Wrap(shellerr.Channel, err, "opening stdin pipe")
	}
	stdout, err := sshSession.StdoutPipe()
	if err != nil {
		sshSession.Close()
		return nil, shellerr.Wrap(shellerr.Channel, err, "opening stdout pipe")
	}

	if err := sshSession.Shell(); err != nil {
		sshSession.Close()
		return nil, shellerr.Wrap(shellerr.Channel, err, "starting shell")
	}

	return &ShellChannel{session: sshSession, stdin: stdin, stdout: stdout}, nil
}

// OpenExec opens a session channel with no PTY; the caller invokes Exec to
// run a single command.
func (s *Session) OpenExec() (*ExecChannel, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}
	sshSession, err := s.client.NewSession()
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Channel, err, "opening session channel")
	}
	return &ExecChannel{session: sshSession}, nil
}

// OpenSFTP opens a session channel and starts the sftp subsystem.
func (s *Session) OpenSFTP() (*SftpChannel, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Channel, err, "starting sftp subsystem")
	}
	return &SftpChannel{Client: client}, nil
}

// Dial opens a raw TCP-forward channel through this session, the
// mechanism a jump host uses to reach its final target (recursion depth
// 1).
func (s *Session) Dial(network, addr string) (net.Conn, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}
	conn, err := s.client.Dial(network, addr)
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Io, err, "dialing %s via jump host %s", addr, s.Host)
	}
	return conn, nil
}

// ShellChannel is a shell channel with PTY (C3.1). Writes go straight to
// the underlying stdin pipe (the connection-level send primitive, keyed
// by channel id inside golang.org/x/crypto/ssh) and never take a lock;
// reads take readMu so only one reader observes the stream at a time.
// This split is mandatory: a blocking read must never stall a keystroke
// write.
type ShellChannel struct {
	session *ssh.Session
	stdin   io.Writer
	stdout  io.Reader
	readMu  sync.Mutex
}

func (c *ShellChannel) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

func (c *ShellChannel) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return c.stdout.Read(p)
}

// Resize sends a window-change request.
func (c *ShellChannel) Resize(cols, rows int) error {
	if err := c.session.WindowChange(rows, cols); err != nil {
		return shellerr.Wrap(shellerr.Channel, err, "resizing pty")
	}
	return nil
}

// Close sends eof and releases the channel.
func (c *ShellChannel) Close() error {
	if wc, ok := c.stdin.(io.WriteCloser); ok {
		_ = wc.Close()
	}
	return c.session.Close()
}

// ExecResult is the accumulated output of a single exec invocation.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ExecChannel runs exactly one command and accumulates its output.
type ExecChannel struct {
	session *ssh.Session
}

// Exec runs cmd to completion, accumulating stdout/stderr until Eof or
// Close, remembering the exit status if one arrives.
func (c *ExecChannel) Exec(cmd string) (ExecResult, error) {
	var stdout, stderr bytes.Buffer
	c.session.Stdout = &stdout
	c.session.Stderr = &stderr

	runErr := c.session.Run(cmd)

	result := ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if runErr == nil {
		return result, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
		return result, nil
	}
	return result, shellerr.Wrap(shellerr.Channel, runErr, "running %q", cmd)
}

// Close releases the exec channel.
func (c *ExecChannel) Close() error { return c.session.Close() }

// SftpChannel wraps the raw sftp subsystem channel; the SFTP protocol
// state machine itself lives in internal/sftpengine (C7).
type SftpChannel struct {
	Client *sftp.Client
}

// Close releases the sftp subsystem channel.
func (c *SftpChannel) Close() error { return c.Client.Close() }
