package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/iwoov/shellmaster/internal/model"
	"github.com/iwoov/shellmaster/internal/secrethook"
	"github.com/iwoov/shellmaster/internal/sshconn"
)

var (
	flagServersFile string
	flagServerID    string
)

// loadServerDescriptor reads a persisted server list (the Server
// descriptor shape) and returns the entry matching id, either by its UUID
// or its display label.
func loadServerDescriptor(path, id string) (*model.ServerDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shellmaster: read servers file: %w", err)
	}

	var list model.ServerList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("shellmaster: parse servers file: %w", err)
	}

	for i := range list.Servers {
		s := &list.Servers[i]
		if s.ID == id || s.Label == id {
			if err := s.Validate(); err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	return nil, fmt.Errorf("shellmaster: no server %q in %s", id, path)
}

// authFromDescriptor resolves a ServerDescriptor's encrypted credential
// fields through the configured secrethook and builds the matching
// sshconn.AuthMethod.
func authFromDescriptor(hook secrethook.Hook, s *model.ServerDescriptor) (sshconn.AuthMethod, error) {
	switch s.AuthType {
	case model.AuthPassword:
		password, err := hook.Resolve(s.PasswordEncrypted)
		if err != nil {
			return sshconn.AuthMethod{}, fmt.Errorf("shellmaster: resolve password: %w", err)
		}
		return sshconn.AuthMethod{Kind: sshconn.AuthPassword, Password: password}, nil
	case model.AuthPublicKey:
		passphrase := ""
		if s.KeyPassphraseEncrypted != "" {
			resolved, err := hook.Resolve(s.KeyPassphraseEncrypted)
			if err != nil {
				return sshconn.AuthMethod{}, fmt.Errorf("shellmaster: resolve passphrase: %w", err)
			}
			passphrase = resolved
		}
		return sshconn.AuthMethod{Kind: sshconn.AuthPublicKey, KeyPath: s.PrivateKeyPath, Passphrase: passphrase}, nil
	default:
		return sshconn.AuthMethod{}, fmt.Errorf("shellmaster: unknown auth_type %q", s.AuthType)
	}
}
