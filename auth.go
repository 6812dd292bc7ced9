package mq

// Authenticator drives a v5.0 Enhanced Authentication exchange (AUTH
// packets), for methods like SCRAM, OAuth, or Kerberos that need more than
// a username and password: InitialData seeds the CONNECT, HandleChallenge
// answers each AUTH the server sends back, and Complete runs once CONNACK
// confirms success.
type Authenticator interface {
	// Method names the authentication mechanism, sent as the CONNECT
	// packet's AuthenticationMethod property (e.g. "SCRAM-SHA-256").
	Method() string

	// InitialData returns the data to attach to CONNECT's
	// AuthenticationData property, or nil if the method needs none.
	InitialData() ([]byte, error)

	// HandleChallenge answers one AUTH packet from the server and returns
	// the response to send back. reasonCode is 0x18 (Continue
	// authentication) while the exchange is ongoing. Runs on the client's
	// logic-loop goroutine (or, during the connect handshake, on the
	// goroutine performing the connect), so it must return quickly: a slow
	// implementation delays every other inbound packet, including
	// PUBLISH deliveries, for the duration.
	HandleChallenge(challengeData []byte, reasonCode uint8) ([]byte, error)

	// Complete runs once CONNACK confirms the exchange succeeded. An
	// error here is logged but does not affect the already-open
	// connection.
	Complete() error
}
