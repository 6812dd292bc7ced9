package mq

import (
	"context"
	"fmt"

	"github.com/tern-io/mqtt/internal/packets"
)

// Reauthenticate starts a v5.0 re-authentication exchange by sending an
// AUTH packet with reason code 0x19 (Re-authenticate). The connection
// keeps serving PUBLISH and other traffic normally while the exchange
// runs; the configured Authenticator's HandleChallenge answers each AUTH
// the server sends back, and its Complete method reports success.
//
// Reauthenticate itself only enqueues the opening AUTH packet and returns;
// it does not wait for the exchange to finish. It returns an error if the
// connection isn't v5.0, has no Authenticator configured, or isn't
// currently connected.
func (c *Client) Reauthenticate(ctx context.Context) error {
	if c.opts.ProtocolVersion < ProtocolV50 {
		return fmt.Errorf("re-authentication requires MQTT v5.0")
	}
	if c.opts.Authenticator == nil {
		return fmt.Errorf("no authenticator configured")
	}
	if !c.IsConnected() {
		return fmt.Errorf("not connected")
	}

	initialData, err := c.opts.Authenticator.InitialData()
	if err != nil {
		return fmt.Errorf("failed to get re-auth data: %w", err)
	}

	pkt := c.buildAuthPacket(packets.AuthReasonReauthenticate, initialData)

	select {
	case c.outgoing <- pkt:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.opts.Logger.Debug("initiated re-authentication", "method", c.opts.Authenticator.Method())
	return nil
}
