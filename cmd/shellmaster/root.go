package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iwoov/shellmaster/internal/config"
	"github.com/iwoov/shellmaster/internal/hostkey"
	"github.com/iwoov/shellmaster/internal/manager"
	"github.com/iwoov/shellmaster/internal/secrethook"
	"github.com/iwoov/shellmaster/internal/sftpengine"
	"github.com/iwoov/shellmaster/internal/shellerr"
	"github.com/iwoov/shellmaster/internal/sshconn"
)

// defaults holds the .env/environment-derived connection defaults; flags
// below override them explicitly, the same way they'd override a
// persisted settings blob.
var defaults = config.Load()

var (
	flagHost              string
	flagPort              int
	flagUser              string
	flagPassword          string
	flagKeyPath           string
	flagKeyPassphrase     string
	flagKnownHostsPath    string
	flagTimeoutSecs       int
	flagKeepaliveEnabled  bool
	flagKeepaliveInterval int
	flagKeepaliveMissed   int
	flagAutoReconnect     bool
	flagReconnectAttempts int
	flagReconnectInterval int
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shellmaster",
		Short: "Demo CLI for the shellmaster session runtime",
		Long:  "shellmaster is a non-interactive client driving the library's transport, SSH driver, and SFTP engine directly, without a GUI.",
	}

	root.PersistentFlags().StringVar(&flagHost, "host", "", "remote host (required)")
	root.PersistentFlags().IntVar(&flagPort, "port", defaults.DefaultPort, "remote port")
	root.PersistentFlags().StringVar(&flagUser, "user", "", "ssh username (required)")
	root.PersistentFlags().StringVar(&flagPassword, "password", "", "password auth (mutually exclusive with --key)")
	root.PersistentFlags().StringVar(&flagKeyPath, "key", "", "private key path (mutually exclusive with --password)")
	root.PersistentFlags().StringVar(&flagKeyPassphrase, "key-passphrase", "", "private key passphrase; prompted if the key is encrypted and this is empty")
	root.PersistentFlags().StringVar(&flagKnownHostsPath, "known-hosts", defaultKnownHostsPath(), "known_hosts file path")
	root.PersistentFlags().IntVar(&flagTimeoutSecs, "timeout", int(defaults.ConnectTimeout.Seconds()), "connect timeout in seconds")
	root.PersistentFlags().BoolVar(&flagKeepaliveEnabled, "keepalive", defaults.KeepaliveEnabled, "send periodic keepalive@openssh.com probes once connected")
	root.PersistentFlags().IntVar(&flagKeepaliveInterval, "keepalive-interval", int(defaults.KeepaliveInterval.Seconds()), "seconds between keepalive probes")
	root.PersistentFlags().IntVar(&flagKeepaliveMissed, "keepalive-max-missed", defaults.KeepaliveMaxMissed, "consecutive missed keepalive probes before the session is declared dead")
	root.PersistentFlags().BoolVar(&flagAutoReconnect, "reconnect", defaults.AutoReconnect, "retry the connection if the first attempt fails for a non-auth reason")
	root.PersistentFlags().IntVar(&flagReconnectAttempts, "reconnect-attempts", defaults.ReconnectAttempts, "maximum reconnect attempts when --reconnect is set")
	root.PersistentFlags().IntVar(&flagReconnectInterval, "reconnect-interval", int(defaults.ReconnectInterval.Seconds()), "seconds between reconnect attempts")
	root.PersistentFlags().StringVar(&flagServersFile, "servers-file", "", "path to a persisted server list JSON file; overrides --host/--user/--password/--key when set")
	root.PersistentFlags().StringVar(&flagServerID, "server", "", "server id or label to look up in --servers-file")

	root.AddCommand(newLsCmd(), newGetCmd(), newPutCmd(), newExecCmd())
	return root
}

func defaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shellmaster_known_hosts"
	}
	return filepath.Join(home, ".shellmaster", "known_hosts")
}

// connect builds a Config from the persistent flags, dials, and blocks
// until the session is connected or the attempt fails. Unknown host keys
// are accepted-and-remembered automatically (equivalent to
// StrictHostKeyChecking=accept-new); a changed key aborts immediately.
func connect(ctx context.Context) (*manager.Manager, *sshconn.Session, string, error) {
	host, port, user, auth, err := resolveTarget()
	if err != nil {
		return nil, nil, "", err
	}

	if err := os.MkdirAll(filepath.Dir(flagKnownHostsPath), 0o700); err != nil {
		return nil, nil, "", fmt.Errorf("shellmaster: create known_hosts dir: %w", err)
	}
	store, err := hostkey.Open(flagKnownHostsPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("shellmaster: open known_hosts: %w", err)
	}

	cfg := sshconn.Config{
		Host:           host,
		Port:           port,
		Username:       user,
		Auth:           auth,
		ConnectTimeout: time.Duration(flagTimeoutSecs) * time.Second,
		Keepalive: sshconn.KeepaliveConfig{
			Enabled:   flagKeepaliveEnabled,
			Interval:  time.Duration(flagKeepaliveInterval) * time.Second,
			MaxMissed: flagKeepaliveMissed,
		},
	}

	m := manager.New(store)
	sessionID := uuid.NewString()
	handle := m.Connect(ctx, cfg, sessionID)

	for event := range handle.Events {
		switch ev := event.(type) {
		case sshconn.LogEvent:
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Level, ev.Message)
		case sshconn.HostKeyPromptEvent:
			fmt.Fprintf(os.Stderr, "accepting new host key for %s:%d (%s %s)\n", ev.Host, ev.Port, ev.Algorithm, ev.Fingerprint)
			handle.HostKeyResponses <- sshconn.HostKeyResponse{Action: hostkey.AcceptAndRemember}
		case sshconn.HostKeyMismatchEvent:
			fmt.Fprintf(os.Stderr, "REFUSING changed host key for %s:%d (%s %s)\n", ev.Host, ev.Port, ev.Algorithm, ev.Fingerprint)
			handle.HostKeyResponses <- sshconn.HostKeyResponse{Action: hostkey.Reject}
		case sshconn.ConnectedEvent:
			session, ok := m.Get(sessionID)
			if !ok {
				return nil, nil, "", fmt.Errorf("shellmaster: session %s missing after Connected event", sessionID)
			}
			return m, session, sessionID, nil
		case sshconn.FailedEvent:
			if !flagAutoReconnect || shellerr.Is(ev.Err, shellerr.Auth) || shellerr.Is(ev.Err, shellerr.Config) {
				return nil, nil, "", ev.Err
			}
			fmt.Fprintf(os.Stderr, "initial connect failed (%v), retrying up to %d times\n", ev.Err, flagReconnectAttempts)
			policy := manager.ReconnectPolicy{
				MaxAttempts: flagReconnectAttempts,
				Interval:    time.Duration(flagReconnectInterval) * time.Second,
			}
			if reconErr := m.Reconnect(ctx, cfg, sessionID, sessionID, policy, stderrStatusSink{}); reconErr != nil {
				return nil, nil, "", reconErr
			}
			session, ok := m.Get(sessionID)
			if !ok {
				return nil, nil, "", fmt.Errorf("shellmaster: session %s missing after reconnect", sessionID)
			}
			return m, session, sessionID, nil
		}
	}
	return nil, nil, "", fmt.Errorf("shellmaster: connection closed before completing")
}

// stderrStatusSink reports manager.Reconnect's status transitions to
// stderr, the CLI's stand-in for a GUI tab model.
type stderrStatusSink struct{}

func (stderrStatusSink) SetStatus(tabID string, status manager.TabStatus) {
	switch status.Kind {
	case manager.StatusReconnecting:
		fmt.Fprintf(os.Stderr, "reconnecting (%d/%d)...\n", status.Attempt, status.MaxAttempts)
	case manager.StatusConnected:
		fmt.Fprintln(os.Stderr, "reconnected")
	case manager.StatusDisconnected:
		fmt.Fprintf(os.Stderr, "reconnect gave up: %s\n", status.Reason)
	}
}

// resolveTarget picks the connection target and credentials either from a
// persisted server descriptor (--servers-file/--server) or from the
// flat --host/--user/--password/--key flags.
func resolveTarget() (host string, port int, user string, auth sshconn.AuthMethod, err error) {
	if flagServersFile != "" {
		if flagServerID == "" {
			return "", 0, "", sshconn.AuthMethod{}, fmt.Errorf("shellmaster: --server is required with --servers-file")
		}
		descriptor, loadErr := loadServerDescriptor(flagServersFile, flagServerID)
		if loadErr != nil {
			return "", 0, "", sshconn.AuthMethod{}, loadErr
		}
		resolvedAuth, authErr := authFromDescriptor(secrethook.Default, descriptor)
		if authErr != nil {
			return "", 0, "", sshconn.AuthMethod{}, authErr
		}
		return descriptor.Host, descriptor.Port, descriptor.Username, resolvedAuth, nil
	}

	if flagHost == "" || flagUser == "" {
		return "", 0, "", sshconn.AuthMethod{}, fmt.Errorf("shellmaster: --host and --user are required (or use --servers-file/--server)")
	}
	resolvedAuth, authErr := resolveAuth()
	if authErr != nil {
		return "", 0, "", sshconn.AuthMethod{}, authErr
	}
	return flagHost, flagPort, flagUser, resolvedAuth, nil
}

func resolveAuth() (sshconn.AuthMethod, error) {
	if flagPassword != "" && flagKeyPath != "" {
		return sshconn.AuthMethod{}, fmt.Errorf("shellmaster: --password and --key are mutually exclusive")
	}
	if flagKeyPath != "" {
		passphrase := flagKeyPassphrase
		if passphrase == "" {
			passphrase = maybePromptPassphrase()
		}
		return sshconn.AuthMethod{Kind: sshconn.AuthPublicKey, KeyPath: flagKeyPath, Passphrase: passphrase}, nil
	}
	if flagPassword != "" {
		return sshconn.AuthMethod{Kind: sshconn.AuthPassword, Password: flagPassword}, nil
	}
	return sshconn.AuthMethod{}, fmt.Errorf("shellmaster: one of --password or --key is required")
}

// maybePromptPassphrase reads a passphrase from the controlling terminal
// without echoing it, for an encrypted key whose passphrase wasn't passed
// on the command line. Returns "" (unencrypted key) if stdin isn't a
// terminal, e.g. when run from a script.
func maybePromptPassphrase() string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ""
	}
	fmt.Fprint(os.Stderr, "key passphrase (leave blank if none): ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(data)
}

func openSFTP(session *sshconn.Session) (*sftpengine.Engine, *sshconn.SftpChannel, error) {
	channel, err := session.OpenSFTP()
	if err != nil {
		return nil, nil, err
	}
	return sftpengine.New(channel.Client), channel, nil
}
