package mq

// Payload format indicators
const (
	PayloadFormatBytes uint8 = 0
	PayloadFormatUTF8  uint8 = 1
)

// Properties carries the MQTT v5.0 properties attached to a message. Every
// field is optional; on a v3.1.1 connection the struct is never populated
// and publishing with one set silently has no effect on the wire. See
// toInternalProperties/toPublicProperties for the wire-level mapping.
type Properties struct {
	ContentType     string // MIME type of Payload, e.g. "application/json"
	ResponseTopic   string // reply-to topic for request/response patterns
	CorrelationData []byte // opaque token pairing a response to its request

	MessageExpiry *uint32 // seconds before an undelivered message is discarded
	PayloadFormat *uint8  // PayloadFormatBytes or PayloadFormatUTF8

	// SubscriptionIdentifier lists the subscription ID(s) that matched an
	// inbound message. Receive-only: set on publish, it is dropped rather
	// than sent.
	SubscriptionIdentifier []int

	// ReasonString is a human-readable detail. The server sets it on inbound
	// packets; set on outgoing properties (DISCONNECT, AUTH), it is sent.
	ReasonString string

	WillDelayInterval     *uint32 // seconds before a Will Message is sent after disconnect
	SessionExpiryInterval *uint32 // overrides the session's expiry, set in DISCONNECT

	UserProperties map[string]string
}

// NewProperties returns a Properties with UserProperties ready to populate.
func NewProperties() *Properties {
	return &Properties{UserProperties: make(map[string]string)}
}

func (p *Properties) SetUserProperty(key, value string) {
	if p.UserProperties == nil {
		p.UserProperties = make(map[string]string)
	}
	p.UserProperties[key] = value
}

// GetUserProperty returns "" if key was never set.
func (p *Properties) GetUserProperty(key string) string {
	return p.UserProperties[key]
}
