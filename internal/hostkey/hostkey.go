// Package hostkey implements the known-hosts contract the session driver
// consults during the handshake stage: lookup(host, port) classifies a
// server key as Known, Unknown or Mismatch, and remember persists a newly
// trusted key. The on-disk store itself is a thin wrapper around
// golang.org/x/crypto/ssh/knownhosts, in the OpenSSH known_hosts line
// format, following the same file-backed approach used elsewhere for its
// on-disk config (internal/config).
package hostkey

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Verdict classifies a host key presented during a handshake.
type Verdict int

const (
	Known Verdict = iota
	Unknown
	Mismatch
)

func (v Verdict) String() string {
	switch v {
	case Known:
		return "known"
	case Unknown:
		return "unknown"
	case Mismatch:
		return "mismatch"
	default:
		return "invalid"
	}
}

// Action is the caller's decision in response to a HostKeyPrompt or
// HostKeyMismatch event.
type Action int

const (
	AcceptOnce Action = iota
	AcceptAndRemember
	Reject
)

// Store is the known-hosts contract the session driver depends on. It is
// satisfied by *FileStore (file-backed) and may be faked in tests.
type Store interface {
	Lookup(host string, port int, key ssh.PublicKey) Verdict
	Remember(host string, port int, key ssh.PublicKey) error
}

// FileStore is a file-backed known-hosts store in the OpenSSH known_hosts
// format. It is safe for concurrent use; callers may share one instance
// across sessions.
type FileStore struct {
	mu   sync.Mutex
	path string
	db   knownhosts.HostKeyCallback
}

// Open loads (or creates) a known-hosts file at path.
func Open(path string) (*FileStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
		if createErr != nil {
			return nil, fmt.Errorf("hostkey: create %s: %w", path, createErr)
		}
		f.Close()
	}

	db, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("hostkey: load %s: %w", path, err)
	}
	return &FileStore{path: path, db: db}, nil
}

// Lookup classifies key against the stored entry for host:port.
func (s *FileStore) Lookup(host string, port int, key ssh.PublicKey) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The knownhosts callback expects "host:port"; it maps port 22 back to
	// the bare-host entries Remember writes.
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	err := s.db(addr, &net.TCPAddr{}, key)
	switch {
	case err == nil:
		return Known
	case knownhosts.IsHostKeyChanged(err):
		return Mismatch
	case knownhosts.IsHostUnknown(err):
		return Unknown
	default:
		// Any other lookup failure (malformed line, read error) is treated
		// as unknown so the caller is still asked to confirm explicitly.
		return Unknown
	}
}

// Remember appends key as a trusted entry for host:port.
func (s *FileStore) Remember(host string, port int, key ssh.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("hostkey: open %s: %w", s.path, err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownHostsAddr(host, port)}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("hostkey: append %s: %w", s.path, err)
	}

	// Reload so subsequent Lookup calls in this process see the new entry
	// without requiring the caller to reopen the store.
	db, err := knownhosts.New(s.path)
	if err != nil {
		return fmt.Errorf("hostkey: reload %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

func knownHostsAddr(host string, port int) string {
	if port == 22 {
		return host
	}
	return "[" + host + "]:" + strconv.Itoa(port)
}

// Fingerprint renders key the same way OpenSSH's ssh-keygen -lf does, for
// display in a HostKeyPrompt/HostKeyMismatch event.
func Fingerprint(key ssh.PublicKey) string {
	return ssh.FingerprintSHA256(key)
}
