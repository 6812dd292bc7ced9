// Package transport resolves the byte stream a connection reads and writes
// control packets over. The wire codec and protocol state machine only
// need a plain, deadline-capable byte stream; this package is where that
// stream is produced, whether it is a raw TCP socket, a TLS-wrapped one, or
// a WebSocket connection reassembled into a byte stream. The resolution
// happens once per connection attempt, never per packet.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Stream is the capability set the connection driver needs from whatever
// underlying transport it is given.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Dialer resolves a target address or URL into a Stream. Implementations
// are resolved once per connection attempt and cached for its lifetime.
type Dialer interface {
	Dial(ctx context.Context, target string) (Stream, error)
}

// Options controls how Dial interprets a target's scheme.
type Options struct {
	// TLSConfig is used for the "tls", "ssl", and "mqtts" schemes. A nil
	// value uses crypto/tls defaults. The "wss" scheme does not use it; its
	// handshake uses the WebSocket dialer's default TLS settings.
	TLSConfig *tls.Config

	// WebSocketPath overrides the path component used when constructing
	// the WebSocket URL, if the target URL's own path is empty.
	WebSocketPath string
}

// Dial parses target's scheme and resolves it to a concrete Stream: plain
// TCP for "tcp"/"mqtt", TLS for "tls"/"ssl"/"mqtts", or a WebSocket-backed
// byte stream for "ws"/"wss". This mirrors the "templated stream
// parameter" pattern: the caller gets back one polymorphic Stream and never
// branches on transport kind again for the life of the connection.
func Dial(ctx context.Context, target string, opts Options) (Stream, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid target %q: %w", target, err)
	}

	switch u.Scheme {
	case "", "tcp", "mqtt":
		return dialTCP(ctx, hostWithDefaultPort(u, "1883"))
	case "tls", "ssl", "mqtts":
		return dialTLS(ctx, hostWithDefaultPort(u, "8883"), opts.TLSConfig)
	case "ws":
		return dialWebSocket(ctx, rewriteScheme(u, "ws", "80"), opts.WebSocketPath)
	case "wss":
		return dialWebSocket(ctx, rewriteScheme(u, "wss", "443"), opts.WebSocketPath)
	default:
		return nil, fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
}

func hostWithDefaultPort(u *url.URL, defaultPort string) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), defaultPort)
}

func rewriteScheme(u *url.URL, scheme, defaultPort string) *url.URL {
	out := *u
	out.Scheme = scheme
	if out.Port() == "" {
		out.Host = net.JoinHostPort(out.Hostname(), defaultPort)
	}
	return &out
}

func dialTCP(ctx context.Context, addr string) (Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: tcp dial failed: %w", err)
	}
	return conn, nil
}

func dialTLS(ctx context.Context, addr string, cfg *tls.Config) (Stream, error) {
	if cfg == nil {
		cfg = &tls.Config{}
	}
	d := &tls.Dialer{NetDialer: &net.Dialer{}, Config: cfg}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: tls dial failed: %w", err)
	}
	return conn, nil
}
