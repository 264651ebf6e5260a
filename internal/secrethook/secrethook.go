// Package secrethook is the encryption-at-rest extension point: stored
// passwords and passphrases are marked "_encrypted" in the persisted
// server list, but the default behavior for this module is to pass them
// through unchanged — encryption is the storage layer's business, not the
// session runtime's. Resolve() is where a caller plugs in a real
// implementation.
package secrethook

// Hook resolves a persisted "_encrypted" field into the plaintext secret
// the SSH driver needs. The default is PassthroughHook.
type Hook interface {
	Resolve(stored string) (string, error)
}

// PassthroughHook returns the stored value unchanged. This is the module's
// default; do not mistake it for "no encryption configured" — the storage
// layer may already have encrypted the value before this module ever saw it.
type PassthroughHook struct{}

func (PassthroughHook) Resolve(stored string) (string, error) { return stored, nil }

// Default is the package-level Hook used when a caller does not supply one.
var Default Hook = PassthroughHook{}
