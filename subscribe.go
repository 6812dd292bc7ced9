package mq

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tern-io/mqtt/internal/packets"
)

// SubscribeOptions holds configuration for a subscription.
type SubscribeOptions struct {
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    uint8
	Persistence       bool              // Persistence enabled by default (must be manually set to true by default logic)
	SubscriptionID    int               // MQTT v5.0: Subscription identifier (1-268435455, 0 = none).
	UserProperties    map[string]string // MQTT v5.0: User properties
}

// SubscribeOption is a functional option for configuring a subscription.
type SubscribeOption func(*SubscribeOptions)

const maxSubscriptionID = 268435455

// WithSubscribeUserProperty adds one key/value pair to the subscription's
// v5.0 user properties; call repeatedly for more than one. Ignored on a
// v3.1.1 connection.
func WithSubscribeUserProperty(key, value string) SubscribeOption {
	return func(o *SubscribeOptions) {
		if o.UserProperties == nil {
			o.UserProperties = make(map[string]string)
		}
		o.UserProperties[key] = value
	}
}

// WithPersistence controls whether this subscription is saved to the
// configured SessionStore and restored across process restarts. Defaults
// to true. Independent of the CONNECT CleanSession/CleanStart flag, which
// governs server-side session state rather than this client's local
// store.
func WithPersistence(persistence bool) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.Persistence = persistence
	}
}

// WithNoLocal stops the server from echoing this client's own published
// messages back to it (v5.0 only). Setting it on a shared subscription
// ("$share/...") is a protocol error and Subscribe rejects it.
func WithNoLocal(noLocal bool) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.NoLocal = noLocal
	}
}

// WithRetainAsPublished asks the server to preserve the publisher's Retain
// flag when forwarding a message, instead of clearing it (v5.0 only).
func WithRetainAsPublished(retain bool) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.RetainAsPublished = retain
	}
}

// WithRetainHandling controls whether retained messages are delivered at
// subscribe time (v5.0 only): 0 always sends them (default), 1 sends them
// only if this subscription is new, 2 never sends them.
func WithRetainHandling(handling uint8) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.RetainHandling = handling
	}
}

// WithSubscriptionIdentifier tags this subscription with id (1-268435455),
// echoed back in every matching PUBLISH's
// msg.Properties.SubscriptionIdentifier so a handler shared across
// overlapping filters can tell which one matched (v5.0 only).
func WithSubscriptionIdentifier(id int) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.SubscriptionID = id
	}
}

// Subscribe registers handler for messages on topic, which may use the '+'
// (single level) and '#' (multiple level) wildcards. A message matching
// several active subscriptions invokes each one's handler, each in its own
// goroutine, so a handler must not block for long. The returned Token
// completes once the server acknowledges the subscription.
//
// For a subscription that must survive a lost session and automatic
// resubscribe, prefer passing WithSubscription to Dial over calling
// Subscribe after the fact — that way the handler is already registered
// before the client starts reconnecting.
func (c *Client) Subscribe(topic string, qos QoS, handler MessageHandler, opts ...SubscribeOption) Token {
	c.opts.Logger.Debug("subscribing to topic", "topic", topic, "qos", qos)

	subOpts := &SubscribeOptions{Persistence: true}
	for _, opt := range opts {
		opt(subOpts)
	}

	if err := c.validateSubscribe(topic, subOpts); err != nil {
		tok := newToken()
		tok.complete(err)
		return tok
	}

	pkt := &packets.SubscribePacket{
		Topics:            []string{topic},
		QoS:               []uint8{uint8(qos)},
		NoLocal:           []bool{subOpts.NoLocal},
		RetainAsPublished: []bool{subOpts.RetainAsPublished},
		RetainHandling:    []uint8{subOpts.RetainHandling},
		Version:           c.opts.ProtocolVersion,
	}

	if c.opts.ProtocolVersion >= ProtocolV50 {
		pkt.Properties = subscribePropertiesFor(subOpts.SubscriptionID, subOpts.UserProperties)
	}

	tok := newToken()
	c.internalSubscribe(&subscribeRequest{
		packet:      pkt,
		handler:     handler,
		token:       tok,
		persistence: subOpts.Persistence,
	})
	return tok
}

// validateSubscribe checks the topic filter shape and the v5.0-only
// subscription options Subscribe can't express on the wire if violated.
func (c *Client) validateSubscribe(topic string, subOpts *SubscribeOptions) error {
	if err := validateSubscribeTopic(topic, c.opts); err != nil {
		return fmt.Errorf("invalid topic filter: %w", err)
	}
	if subOpts.SubscriptionID != 0 && (subOpts.SubscriptionID < 1 || subOpts.SubscriptionID > maxSubscriptionID) {
		return fmt.Errorf("subscription identifier must be in range 0-%d, got %d", maxSubscriptionID, subOpts.SubscriptionID)
	}
	if subOpts.NoLocal && strings.HasPrefix(topic, "$share/") {
		return fmt.Errorf("protocol error: NoLocal cannot be set on a Shared Subscription")
	}
	return nil
}

// subscribePropertiesFor builds the v5.0 Properties for a SUBSCRIBE
// packet, or nil if id and userProps leave nothing to encode.
func subscribePropertiesFor(id int, userProps map[string]string) *packets.Properties {
	if id <= 0 && len(userProps) == 0 {
		return nil
	}
	props := &packets.Properties{}
	if id > 0 {
		props.SubscriptionIdentifier = []int{id}
	}
	for k, v := range userProps {
		props.UserProperties = append(props.UserProperties, packets.UserProperty{Key: k, Value: v})
	}
	return props
}

// Unsubscribe stops delivery for one or more topics and returns a Token
// that completes once the server acknowledges the UNSUBSCRIBE.
func (c *Client) Unsubscribe(topics ...string) Token {
	c.opts.Logger.Debug("unsubscribing from topics", "topics", topics)

	if len(topics) == 0 {
		tok := newToken()
		tok.complete(nil)
		return tok
	}

	pkt := &packets.UnsubscribePacket{
		Topics:  topics,
		Version: c.opts.ProtocolVersion,
	}
	tok := newToken()
	req := &unsubscribeRequest{
		packet: pkt,
		topics: topics,
		token:  tok,
	}
	c.internalUnsubscribe(req)

	return tok
}

// resubscribeAll resubscribes to all active subscriptions after reconnection.
// This is called automatically by the reconnect loop.
func (c *Client) resubscribeAll() {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	if len(c.subscriptions) == 0 {
		return
	}

	c.opts.Logger.Debug("resubscribing to topics", "count", len(c.subscriptions))

	var topics []string
	var entries []subscriptionEntry
	for topic, entry := range c.subscriptions {
		topics = append(topics, topic)
		entries = append(entries, entry)
	}

	// Batch subscriptions to avoid exceeding server limits
	// Most servers limit SUBSCRIBE packets to 100-200 topics
	const batchSize = 100

	for i := 0; i < len(topics); i += batchSize {
		end := min(i+batchSize, len(topics))

		batchTopics := topics[i:end]
		batchEntries := entries[i:end]

		// Group by (SubscriptionID + UserProperties) to comply with MQTT v5.0
		// "A SUBSCRIBE packet MUST NOT contain more than one Subscription Identifier."
		// Also User Properties apply to the whole packet.
		groups := make(map[string]struct {
			topics            []string
			qos               []uint8
			noLocal           []bool
			retainAsPublished []bool
			retainHandling    []uint8
			id                int
			userProps         map[string]string
		})

		for j, entry := range batchEntries {
			key := subGroupKey(entry.options.SubscriptionID, entry.options.UserProperties)
			g := groups[key]

			// Initialize if new group
			if len(g.topics) == 0 {
				g.id = entry.options.SubscriptionID
				g.userProps = entry.options.UserProperties
			}

			g.topics = append(g.topics, batchTopics[j])
			g.qos = append(g.qos, entry.qos)

			if c.opts.ProtocolVersion >= ProtocolV50 {
				g.noLocal = append(g.noLocal, entry.options.NoLocal)
				g.retainAsPublished = append(g.retainAsPublished, entry.options.RetainAsPublished)
				g.retainHandling = append(g.retainHandling, entry.options.RetainHandling)
			}
			groups[key] = g
		}

		// Send one packet for each group
		for _, g := range groups {
			pkt := &packets.SubscribePacket{
				PacketID:          c.nextID(),
				Topics:            g.topics,
				QoS:               g.qos,
				NoLocal:           g.noLocal,
				RetainAsPublished: g.retainAsPublished,
				RetainHandling:    g.retainHandling,
				Version:           c.opts.ProtocolVersion,
			}

			if c.opts.ProtocolVersion >= ProtocolV50 {
				pkt.Properties = subscribePropertiesFor(g.id, g.userProps)
			}

			// Store pending operation BEFORE sending packet to avoid race conditions
			c.pending[pkt.PacketID] = &pendingOp{
				packet:    pkt,
				token:     newToken(),
				qos:       1,
				timestamp: time.Now(),
			}

			select {
			case c.outgoing <- pkt:
			case <-c.stop:
				return
			}

			c.opts.Logger.Debug("resubscribe packet sent",
				"packet_id", pkt.PacketID,
				"sub_id", g.id,
				"topics_count", len(g.topics))
		}
	}
}

// subGroupKey generates a unique key for grouping subscriptions by ID and User Properties.
func subGroupKey(id int, props map[string]string) string {
	if len(props) == 0 {
		return fmt.Sprintf("%d", id)
	}
	// Sort keys for deterministic output
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|", id)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s|", k, props[k])
	}
	return sb.String()
}
