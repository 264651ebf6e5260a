// Package transport implements C1: opening the raw byte stream the SSH
// connection driver (internal/sshconn) runs its handshake on, either
// directly or through an HTTP CONNECT / SOCKS5 proxy. The returned
// net.Conn is otherwise opaque to this package.
package transport

import (
	"bufio"
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"github.com/iwoov/shellmaster/internal/shellerr"
)

// Kind selects how Open reaches the target.
type Kind int

const (
	Direct Kind = iota
	Socks5
	HTTPConnect
)

// ProxyConfig describes an intermediate proxy hop. Zero value means no
// proxy (Kind is ignored and Open dials the target directly).
type ProxyConfig struct {
	Kind     Kind
	Host     string
	Port     int
	Username string
	Password string
}

// Open returns a connected, bidirectional byte stream to host:port, either
// directly or tunneled through proxyCfg. The whole operation is bounded by
// timeout and by ctx cancellation, whichever comes first.
func Open(ctx context.Context, host string, port int, proxyCfg *ProxyConfig, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := net.JoinHostPort(host, strconv.Itoa(port))

	if proxyCfg == nil {
		return dialDirect(ctx, target)
	}

	switch proxyCfg.Kind {
	case Socks5:
		return dialSocks5(ctx, target, proxyCfg)
	case HTTPConnect:
		return dialHTTPConnect(ctx, target, proxyCfg)
	default:
		return dialDirect(ctx, target)
	}
}

func dialDirect(ctx context.Context, target string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, shellerr.Wrap(shellerr.Timeout, err, "connecting to %s", target)
		}
		return nil, shellerr.Wrap(shellerr.Io, err, "connecting to %s", target)
	}
	return conn, nil
}

// dialSocks5 negotiates a SOCKS5 CONNECT through proxyCfg using
// golang.org/x/net/proxy, which handles both the no-auth and
// username/password variants of RFC 1928/1929.
func dialSocks5(ctx context.Context, target string, cfg *ProxyConfig) (net.Conn, error) {
	var auth *proxy.Auth
	if cfg.Username != "" {
		auth = &proxy.Auth{User: cfg.Username, Password: cfg.Password}
	}

	proxyAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, auth, &net.Dialer{})
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Proxy, err, "configuring socks5 proxy %s", proxyAddr)
	}

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
			conn, dialErr := ctxDialer.DialContext(ctx, "tcp", target)
			done <- result{conn, dialErr}
			return
		}
		conn, dialErr := dialer.Dial("tcp", target)
		done <- result{conn, dialErr}
	}()

	select {
	case <-ctx.Done():
		return nil, shellerr.Wrap(shellerr.Timeout, ctx.Err(), "socks5 connect to %s via %s", target, proxyAddr)
	case r := <-done:
		if r.err != nil {
			return nil, classifySocks5Error(r.err, target, proxyAddr)
		}
		return r.conn, nil
	}
}

func classifySocks5Error(err error, target, proxyAddr string) error {
	// golang.org/x/net/proxy surfaces SOCKS5 auth and negotiation failures
	// as plain errors; we can't distinguish the exact RFC 1928/1929 failure
	// reason beyond its text, so anything from this dialer is a proxy error.
	return shellerr.Wrap(shellerr.Proxy, err, "socks5 connect to %s via %s", target, proxyAddr)
}

// dialHTTPConnect hand-rolls the CONNECT tunnel: no library in the example
// corpus wraps this (net/http has no client-side CONNECT helper), so this
// is the one place in the module that talks raw HTTP over a dialed
// net.Conn instead of going through a library client.
func dialHTTPConnect(ctx context.Context, target string, cfg *ProxyConfig) (net.Conn, error) {
	proxyAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, shellerr.Wrap(shellerr.Timeout, err, "connecting to http proxy %s", proxyAddr)
		}
		return nil, shellerr.Wrap(shellerr.Io, err, "connecting to http proxy %s", proxyAddr)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}
	if cfg.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, shellerr.Wrap(shellerr.Io, err, "writing connect request to %s", proxyAddr)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, shellerr.Wrap(shellerr.Io, err, "reading connect response from %s", proxyAddr)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusProxyAuthRequired {
		conn.Close()
		return nil, shellerr.New(shellerr.Proxy, "authentication failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		conn.Close()
		return nil, shellerr.New(shellerr.Proxy, "tunnel failed: %s", resp.Status)
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}
