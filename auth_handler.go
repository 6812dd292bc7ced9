package mq

import (
	"github.com/tern-io/mqtt/internal/packets"
)

// buildAuthPacket assembles an AUTH packet carrying the authenticator's
// method name and the given reason code and data, the shape shared by a
// challenge response and a Reauthenticate kickoff.
func (c *Client) buildAuthPacket(reasonCode uint8, data []byte) *packets.AuthPacket {
	return &packets.AuthPacket{
		ReasonCode: reasonCode,
		Properties: &packets.Properties{
			AuthenticationMethod: c.opts.Authenticator.Method(),
			AuthenticationData:   data,
			Presence:             packets.PresAuthenticationMethod,
		},
		Version: c.opts.ProtocolVersion,
	}
}

// handleAuth answers an inbound AUTH packet by forwarding its challenge
// data to the configured Authenticator and sending back whatever it
// returns. Runs on the logic loop, so a slow Authenticator stalls every
// other inbound packet until it returns.
func (c *Client) handleAuth(p *packets.AuthPacket) {
	if c.opts.Authenticator == nil {
		c.opts.Logger.Warn("received AUTH packet but no authenticator configured")
		return
	}

	if p.Properties != nil && p.Properties.Presence&packets.PresAuthenticationMethod != 0 {
		if p.Properties.AuthenticationMethod != c.opts.Authenticator.Method() {
			c.opts.Logger.Error("authentication method mismatch",
				"expected", c.opts.Authenticator.Method(),
				"received", p.Properties.AuthenticationMethod)
			return
		}
	}

	var challengeData []byte
	if p.Properties != nil {
		challengeData = p.Properties.AuthenticationData
	}

	responseData, err := c.opts.Authenticator.HandleChallenge(challengeData, p.ReasonCode)
	if err != nil {
		c.opts.Logger.Error("authentication challenge failed", "error", err)
		return
	}

	resp := c.buildAuthPacket(packets.AuthReasonContinue, responseData)
	c.outgoing <- resp
	c.opts.Logger.Debug("sent AUTH response", "reason_code", resp.ReasonCode)
}
