// Package model holds the data shapes shared across the session runtime:
// the persisted server/settings JSON layout (spec'd but owned by an
// external storage layer) and the ephemeral connection config derived from
// it for a single connection attempt.
package model

import (
	"fmt"
	"time"
)

// AuthType selects which credential field on ServerDescriptor is populated.
type AuthType string

const (
	AuthPassword  AuthType = "Password"
	AuthPublicKey AuthType = "PublicKey"
)

// ProxyType selects the proxy dialing strategy in ProxyConfig.
type ProxyType string

const (
	ProxyHTTP   ProxyType = "Http"
	ProxySocks5 ProxyType = "Socks5"
)

// ProxyConfig describes an optional upstream proxy a connection is tunneled
// through before reaching the target host.
type ProxyConfig struct {
	Enabled  bool      `json:"enabled"`
	Type     ProxyType `json:"proxy_type"`
	Host     string    `json:"host"`
	Port     int       `json:"port"`
	Username string    `json:"username,omitempty"`
	// PasswordEncrypted is passed through the secrethook unchanged; see
	// internal/secrethook.
	PasswordEncrypted string `json:"password_encrypted,omitempty"`
}

// ServerDescriptor is the persisted identity of a remote endpoint. Storage
// itself is an external concern; this struct only fixes the
// JSON shape a caller round-trips through that storage.
type ServerDescriptor struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	GroupID string `json:"group_id,omitempty"`

	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	AuthType AuthType `json:"auth_type"`

	// Exactly one of these is meaningful, selected by AuthType.
	PasswordEncrypted      string `json:"password_encrypted,omitempty"`
	PrivateKeyPath         string `json:"private_key_path,omitempty"`
	KeyPassphraseEncrypted string `json:"key_passphrase_encrypted,omitempty"`

	JumpHostID string       `json:"jump_host_id,omitempty"`
	Proxy      *ProxyConfig `json:"proxy,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
}

// Validate checks the invariants from the persisted shape: port range and exactly
// one auth variant populated consistent with AuthType.
func (s *ServerDescriptor) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("model: port %d out of range [1,65535]", s.Port)
	}
	switch s.AuthType {
	case AuthPassword:
		if s.PasswordEncrypted == "" {
			return fmt.Errorf("model: auth_type Password requires password_encrypted")
		}
	case AuthPublicKey:
		if s.PrivateKeyPath == "" {
			return fmt.Errorf("model: auth_type PublicKey requires private_key_path")
		}
	default:
		return fmt.Errorf("model: unknown auth_type %q", s.AuthType)
	}
	return nil
}

// ServerList is the top-level persisted shape: { groups: [...], servers: [...] }.
type ServerList struct {
	Groups  []ServerGroup      `json:"groups"`
	Servers []ServerDescriptor `json:"servers"`
}

// ServerGroup is a named collection of servers for UI organization.
type ServerGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
