package sshconn

import (
	"time"

	"github.com/iwoov/shellmaster/internal/transport"
)

// AuthKind selects which AuthMethod field is populated.
type AuthKind int

const (
	AuthPassword AuthKind = iota
	AuthPublicKey
)

// AuthMethod is the authentication half of a Config. Exactly one of
// Password or (KeyPath) is meaningful, selected by Kind, mirroring the
// server descriptor's auth_type invariant (model.ServerDescriptor).
type AuthMethod struct {
	Kind AuthKind

	Password string

	KeyPath    string
	Passphrase string
}

// KeepaliveConfig controls the SSH keepalive probe loop a Session runs
// once Connected.
type KeepaliveConfig struct {
	Enabled   bool
	Interval  time.Duration
	MaxMissed int
}

// Config is the ephemeral, per-attempt connection configuration C2 drives
// the handshake/auth state machine with. It is never mutated after
// construction.
type Config struct {
	Host     string
	Port     int
	Username string
	Auth     AuthMethod

	ConnectTimeout time.Duration
	Keepalive      KeepaliveConfig

	Proxy    *transport.ProxyConfig
	JumpHost *Config // recursion depth 1: a JumpHost's own JumpHost is ignored
}
