package mq

import (
	"fmt"

	"github.com/tern-io/mqtt/internal/packets"
)

// PublishOptions holds configuration for a publish operation.
type PublishOptions struct {
	QoS        uint8
	Retain     bool
	Properties *Properties
	UseAlias   bool
}

// PublishOption is a functional option for configuring a PUBLISH packet.
type PublishOption func(*PublishOptions)

// props lazily allocates o.Properties, the pattern every v5.0-only
// PublishOption below needs before it can set a single field.
func (o *PublishOptions) props() *Properties {
	if o.Properties == nil {
		o.Properties = &Properties{}
	}
	return o.Properties
}

// WithQoS sets the delivery guarantee: 0 (fire and forget), 1 (acknowledged,
// may duplicate), or 2 (acknowledged exactly once). Default is QoS 0.
func WithQoS(qos QoS) PublishOption {
	return func(o *PublishOptions) {
		o.QoS = uint8(qos)
	}
}

// WithRetain marks the message for the server to store and hand to future
// subscribers of the topic; only the most recent retained message per
// topic survives.
func WithRetain(retain bool) PublishOption {
	return func(o *PublishOptions) {
		o.Retain = retain
	}
}

// WithContentType sets the payload's MIME type (v5.0 only).
func WithContentType(contentType string) PublishOption {
	return func(o *PublishOptions) { o.props().ContentType = contentType }
}

// WithResponseTopic names where a reply to this message should be published
// (v5.0 only), typically paired with WithCorrelationData.
func WithResponseTopic(topic string) PublishOption {
	return func(o *PublishOptions) { o.props().ResponseTopic = topic }
}

// WithCorrelationData attaches an opaque token a responder echoes back so
// the reply can be matched to this request (v5.0 only).
func WithCorrelationData(data []byte) PublishOption {
	return func(o *PublishOptions) { o.props().CorrelationData = data }
}

// WithUserProperty adds one key/value pair to the message's user
// properties (v5.0 only); call repeatedly for more than one.
func WithUserProperty(key, value string) PublishOption {
	return func(o *PublishOptions) { o.props().SetUserProperty(key, value) }
}

// WithMessageExpiry tells the server to discard the message if it can't be
// delivered within seconds (v5.0 only).
func WithMessageExpiry(seconds uint32) PublishOption {
	return func(o *PublishOptions) { o.props().MessageExpiry = &seconds }
}

// WithPayloadFormat declares the payload as PayloadFormatBytes or
// PayloadFormatUTF8 (v5.0 only). Publish rejects non-UTF-8 payloads
// declared as PayloadFormatUTF8 before sending.
func WithPayloadFormat(format uint8) PublishOption {
	return func(o *PublishOptions) { o.props().PayloadFormat = &format }
}

// WithProperties replaces the publish's entire property set in one call
// (v5.0 only), for callers building a Properties value up front rather
// than composing individual With* options.
func WithProperties(props *Properties) PublishOption {
	return func(o *PublishOptions) {
		o.Properties = props
	}
}

// Publish sends payload to topic and returns a Token tracking delivery.
// QoS 0 completes the token as soon as the packet is handed off; QoS 1 and
// 2 complete it once the matching PUBACK or PUBCOMP arrives.
//
//	token := client.Publish("sensors/temp", []byte("22.5"), mq.WithQoS(1))
//	if err := token.Wait(ctx); err != nil {
//	    log.Printf("publish failed: %v", err)
//	}
func (c *Client) Publish(topic string, payload []byte, opts ...PublishOption) Token {
	c.opts.Logger.Debug("publishing message", "topic", topic, "payload_size", len(payload))

	pubOpts := &PublishOptions{}
	for _, opt := range opts {
		opt(pubOpts)
	}

	if err := c.validatePublish(topic, payload, pubOpts); err != nil {
		tok := newToken()
		tok.complete(err)
		return tok
	}

	pkt := &packets.PublishPacket{
		Topic:      topic,
		Payload:    payload,
		QoS:        pubOpts.QoS,
		Retain:     pubOpts.Retain,
		Version:    c.opts.ProtocolVersion,
		Properties: toInternalProperties(pubOpts.Properties),
		UseAlias:   pubOpts.UseAlias,
	}

	if pkt.UseAlias && c.opts.ProtocolVersion >= ProtocolV50 {
		c.applyTopicAlias(pkt)
	}

	tok := newToken()
	c.internalPublish(&publishRequest{packet: pkt, token: tok})
	return tok
}

// validatePublish runs every check Publish needs before building a packet:
// topic shape, payload size, and (v5.0) the payload format the caller
// declared.
func (c *Client) validatePublish(topic string, payload []byte, pubOpts *PublishOptions) error {
	if err := validatePublishTopic(topic, c.opts); err != nil {
		return fmt.Errorf("invalid topic: %w", err)
	}
	if err := validatePayloadSize(payload, c.opts); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if err := validatePayloadFormat(payload, pubOpts.Properties); err != nil {
		return fmt.Errorf("invalid payload format: %w", err)
	}
	return nil
}

// InterceptedPublish calls Publish through the chain of PublishInterceptors
// configured via WithPublishInterceptor, in the order they were given. With
// no interceptors configured, it behaves exactly like Publish.
func (c *Client) InterceptedPublish(topic string, payload []byte, opts ...PublishOption) Token {
	publish := applyPublishInterceptors(c.Publish, c.opts.PublishInterceptors)
	return publish(topic, payload, opts...)
}
