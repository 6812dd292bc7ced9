package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mqttSubprotocol is the value the MQTT spec requires a WebSocket-based
// client to negotiate via the Sec-WebSocket-Protocol header.
const mqttSubprotocol = "mqtt"

func dialWebSocket(ctx context.Context, u *url.URL, path string) (Stream, error) {
	target := *u
	if target.Path == "" {
		target.Path = path
	}
	if target.Path == "" {
		target.Path = "/mqtt"
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{mqttSubprotocol},
		HandshakeTimeout: 45 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: websocket dial failed: %w", err)
	}

	return &wsStream{conn: conn}, nil
}

// wsStream adapts a message-oriented *websocket.Conn into the plain byte
// stream the wire codec expects, buffering any unread tail of the current
// WebSocket message across Read calls and framing each Write as one binary
// message.
type wsStream struct {
	conn *websocket.Conn

	readMu  sync.Mutex
	pending bytes.Buffer

	writeMu sync.Mutex
}

func (w *wsStream) Read(p []byte) (int, error) {
	w.readMu.Lock()
	defer w.readMu.Unlock()

	for w.pending.Len() == 0 {
		msgType, reader, err := w.conn.NextReader()
		if err != nil {
			return 0, fmt.Errorf("transport: websocket read failed: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if _, err := w.pending.ReadFrom(reader); err != nil {
			return 0, fmt.Errorf("transport: websocket message read failed: %w", err)
		}
	}

	return w.pending.Read(p)
}

func (w *wsStream) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("transport: websocket write failed: %w", err)
	}
	return len(p), nil
}

func (w *wsStream) Close() error {
	return w.conn.Close()
}

func (w *wsStream) SetDeadline(t time.Time) error {
	if err := w.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(t)
}

func (w *wsStream) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *wsStream) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}
