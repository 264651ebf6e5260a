package sshconn

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/iwoov/shellmaster/internal/hostkey"
	"github.com/iwoov/shellmaster/internal/shellerr"
	"github.com/iwoov/shellmaster/internal/transport"
)

// ConnectHandle is returned by Connect: Events streams the ordered
// connection events, and HostKeyResponses is where a caller answers a
// HostKeyPromptEvent/HostKeyMismatchEvent with a decision.
type ConnectHandle struct {
	Events           <-chan Event
	HostKeyResponses chan<- HostKeyResponse
}

// Connect drives the handshake/auth state machine (C2) on its own
// goroutine and returns immediately with a handle to observe it. On
// success, the last event is ConnectedEvent and a *Session has been
// created; retrieve it with the session registry (internal/manager), which
// is the only consumer that needs the concrete value — the event stream
// itself only needs to announce the session id.
func Connect(ctx context.Context, cfg Config, store hostkey.Store, sessionID string, onConnected func(*Session)) ConnectHandle {
	events := make(chan Event, 16)
	hostKeyResponses := make(chan HostKeyResponse, 1)

	go drive(ctx, cfg, store, sessionID, events, hostKeyResponses, onConnected)

	return ConnectHandle{Events: events, HostKeyResponses: hostKeyResponses}
}

func drive(
	ctx context.Context,
	cfg Config,
	store hostkey.Store,
	sessionID string,
	events chan<- Event,
	hostKeyResponses <-chan HostKeyResponse,
	onConnected func(*Session),
) {
	defer close(events)

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	emitStage := func(s Stage) {
		select {
		case events <- StageChangedEvent{Stage: s}:
		case <-ctx.Done():
		}
	}
	logMsg := func(level LogLevel, format string, args ...any) {
		select {
		case events <- LogEvent{Level: level, Message: fmt.Sprintf(format, args...), At: time.Now()}:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		select {
		case events <- FailedEvent{Err: err}:
		case <-ctx.Done():
		}
	}

	emitStage(Initializing)
	if err := validateConfig(cfg); err != nil {
		fail(err)
		return
	}

	var conn net.Conn
	var err error

	switch {
	case cfg.JumpHost != nil:
		emitStage(ConnectingJumpHost)
		conn, err = dialViaJumpHost(ctx, cfg, store, events, hostKeyResponses)
	case cfg.Proxy != nil:
		emitStage(ConnectingProxy)
		emitStage(ConnectingHost)
		conn, err = transport.Open(ctx, cfg.Host, cfg.Port, cfg.Proxy, timeUntilDeadline(ctx, cfg.ConnectTimeout))
	default:
		emitStage(ConnectingHost)
		conn, err = transport.Open(ctx, cfg.Host, cfg.Port, nil, timeUntilDeadline(ctx, cfg.ConnectTimeout))
	}
	if err != nil {
		fail(err)
		return
	}

	emitStage(Handshaking)
	var authenticatingEmitted bool
	onVerified := func() {
		if authenticatingEmitted {
			return
		}
		authenticatingEmitted = true
		emitStage(Authenticating)
	}
	clientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Timeout:         cfg.ConnectTimeout,
		HostKeyCallback: makeHostKeyCallback(ctx, cfg.Host, cfg.Port, store, events, hostKeyResponses, onVerified),
	}

	authMethod, authErr := resolveAuthMethod(cfg.Auth)
	if authErr != nil {
		conn.Close()
		fail(authErr)
		return
	}
	clientConfig.Auth = []ssh.AuthMethod{authMethod}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		fail(classifyHandshakeError(err))
		return
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	logMsg(LogInfo, "handshake and authentication complete for %s", addr)

	emitStage(EstablishingChannel)
	emitStage(StartingSession)

	session := newSession(sessionID, cfg.Host, cfg.Username, client)
	if cfg.Keepalive.Enabled {
		go runKeepalive(client, cfg.Keepalive, &session.alive)
		logMsg(LogDebug, "keepalive enabled: interval=%s max_missed=%d", cfg.Keepalive.Interval, cfg.Keepalive.MaxMissed)
	}

	emitStage(Connected)
	logMsg(LogInfo, "session %s connected to %s@%s", sessionID, cfg.Username, addr)
	if onConnected != nil {
		onConnected(session)
	}
	select {
	case events <- ConnectedEvent{SessionID: sessionID}:
	case <-ctx.Done():
	}
}

func timeUntilDeadline(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
	}
	return fallback
}

func validateConfig(cfg Config) error {
	if cfg.Host == "" {
		return shellerr.New(shellerr.Config, "host must not be empty")
	}
	if cfg.Username == "" {
		return shellerr.New(shellerr.Config, "username must not be empty")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return shellerr.New(shellerr.Config, "port %d out of range [1, 65535]", cfg.Port)
	}
	if cfg.Auth.Kind == AuthPublicKey {
		if _, err := os.Stat(cfg.Auth.KeyPath); err != nil {
			return shellerr.Wrap(shellerr.Config, err, "private key %s is not readable", cfg.Auth.KeyPath)
		}
	}
	return nil
}

// dialViaJumpHost connects to cfg.JumpHost first (recursion depth 1: the
// jump host's own JumpHost field, if set, is ignored), then opens a
// direct-TCP-forward channel through it to the final target.
func dialViaJumpHost(ctx context.Context, cfg Config, store hostkey.Store, events chan<- Event, hostKeyResponses <-chan HostKeyResponse) (net.Conn, error) {
	jumpCfg := *cfg.JumpHost
	jumpCfg.JumpHost = nil

	conn, err := transport.Open(ctx, jumpCfg.Host, jumpCfg.Port, jumpCfg.Proxy, timeUntilDeadline(ctx, jumpCfg.ConnectTimeout))
	if err != nil {
		return nil, shellerr.Wrap(shellerr.JumpHost, err, "connecting to jump host %s", jumpCfg.Host)
	}

	clientConfig := &ssh.ClientConfig{
		User:            jumpCfg.Username,
		Timeout:         jumpCfg.ConnectTimeout,
		HostKeyCallback: makeHostKeyCallback(ctx, jumpCfg.Host, jumpCfg.Port, store, events, hostKeyResponses, func() {}),
	}
	authMethod, err := resolveAuthMethod(jumpCfg.Auth)
	if err != nil {
		conn.Close()
		return nil, shellerr.Wrap(shellerr.JumpHost, err, "jump host auth config")
	}
	clientConfig.Auth = []ssh.AuthMethod{authMethod}

	addr := net.JoinHostPort(jumpCfg.Host, strconv.Itoa(jumpCfg.Port))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, shellerr.Wrap(shellerr.JumpHost, err, "jump host handshake")
	}
	jumpClient := ssh.NewClient(sshConn, chans, reqs)

	targetAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	targetConn, err := jumpClient.Dial("tcp", targetAddr)
	if err != nil {
		jumpClient.Close()
		return nil, shellerr.Wrap(shellerr.JumpHost, err, "forwarding to %s via jump host", targetAddr)
	}
	return targetConn, nil
}

func resolveAuthMethod(auth AuthMethod) (ssh.AuthMethod, error) {
	switch auth.Kind {
	case AuthPassword:
		return ssh.Password(auth.Password), nil
	case AuthPublicKey:
		keyBytes, err := os.ReadFile(auth.KeyPath)
		if err != nil {
			return nil, shellerr.Wrap(shellerr.Key, err, "reading private key %s", auth.KeyPath)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			if auth.Passphrase == "" {
				return nil, shellerr.Wrap(shellerr.Key, err, "parsing private key %s", auth.KeyPath)
			}
			// Decoding without a passphrase failed and one is configured;
			// retry with it.
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(auth.Passphrase))
			if err != nil {
				return nil, shellerr.Wrap(shellerr.Key, err, "parsing private key %s with passphrase", auth.KeyPath)
			}
		}
		return ssh.PublicKeys(signer), nil
	default:
		return nil, shellerr.New(shellerr.Config, "unknown auth kind %d", auth.Kind)
	}
}

// classifyHandshakeError distinguishes an authentication failure from any
// other handshake error. golang.org/x/crypto/ssh does not export a typed
// auth-failure error; it folds partial-success and remaining-methods
// detail into a plain error whose text already names them, so we pass
// that text through as the Auth message rather than trying to reparse it.
func classifyHandshakeError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain") {
		return shellerr.Wrap(shellerr.Auth, err, "authentication failed")
	}
	return shellerr.Wrap(shellerr.Protocol, err, "ssh handshake failed")
}

// makeHostKeyCallback returns the x/crypto/ssh host-key callback driving
// HostKeyPrompt/HostKeyMismatch events. x/crypto/ssh fuses the handshake
// and the host-key check into one blocking call, so onVerified runs right
// before the callback reports success — it is the earliest point at which
// emitting the Authenticating stage is actually true (the key has been
// accepted and ssh.NewClientConn is about to try credentials).
func makeHostKeyCallback(ctx context.Context, host string, port int, store hostkey.Store, events chan<- Event, hostKeyResponses <-chan HostKeyResponse, onVerified func()) ssh.HostKeyCallback {
	return func(_ string, _ net.Addr, key ssh.PublicKey) error {
		verdict := store.Lookup(host, port, key)
		fingerprint := hostkey.Fingerprint(key)
		algorithm := key.Type()

		switch verdict {
		case hostkey.Known:
			onVerified()
			return nil

		case hostkey.Unknown:
			select {
			case events <- HostKeyPromptEvent{Host: host, Port: port, Fingerprint: fingerprint, Algorithm: algorithm}:
			case <-ctx.Done():
				return ctx.Err()
			}
			err := applyHostKeyDecision(ctx, host, port, key, store, hostKeyResponses)
			if err == nil {
				onVerified()
			}
			return err

		case hostkey.Mismatch:
			select {
			case events <- HostKeyMismatchEvent{Host: host, Port: port, Fingerprint: fingerprint, Algorithm: algorithm}:
			case <-ctx.Done():
				return ctx.Err()
			}
			// Never auto-accept a mismatch; require an explicit action.
			err := applyHostKeyDecision(ctx, host, port, key, store, hostKeyResponses)
			if err == nil {
				onVerified()
			}
			return err

		default:
			return fmt.Errorf("hostkey: unexpected verdict %v", verdict)
		}
	}
}

func applyHostKeyDecision(ctx context.Context, host string, port int, key ssh.PublicKey, store hostkey.Store, hostKeyResponses <-chan HostKeyResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-hostKeyResponses:
		switch resp.Action {
		case hostkey.Reject:
			return shellerr.New(shellerr.Auth, "host key rejected")
		case hostkey.AcceptAndRemember:
			if err := store.Remember(host, port, key); err != nil {
				return err
			}
			return nil
		case hostkey.AcceptOnce:
			return nil
		default:
			return shellerr.New(shellerr.Auth, "host key rejected")
		}
	}
}
