package mq

import (
	"github.com/tern-io/mqtt/internal/packets"
	"github.com/tern-io/mqtt/internal/topicalias"
)

// applyTopicAlias applies topic alias optimization to a publish packet.
// This is called automatically when WithAlias() is used.
//
// On first publish to a topic, or when the alias table evicts the
// least-recently-used mapping to make room, a fresh alias is assigned and
// sent alongside the full topic. On subsequent publishes to an
// already-mapped topic, the existing alias is reused and the topic is
// omitted from the wire to save bandwidth.
//
// If aliasing is disabled (maxAliases == 0, no CONNACK grant), the packet
// is left untouched.
func (c *Client) applyTopicAlias(pkt *packets.PublishPacket) {
	c.topicAliasesLock.Lock()
	defer c.topicAliasesLock.Unlock()

	if c.maxAliases == 0 {
		return
	}
	if c.aliasSend == nil {
		c.aliasSend = topicalias.NewSendTable(c.maxAliases)
	}

	aliasID, sendTopic, ok := c.aliasSend.Assign(pkt.Topic)
	if !ok {
		return
	}

	if pkt.Properties == nil {
		pkt.Properties = &packets.Properties{}
	}
	pkt.Properties.TopicAlias = aliasID
	pkt.Properties.Presence |= packets.PresTopicAlias

	if sendTopic {
		c.opts.Logger.Debug("assigned topic alias", "topic", pkt.Topic, "alias_id", aliasID)
		return
	}

	pkt.Topic = "" // Empty topic when reusing an already-sent alias
	c.opts.Logger.Debug("using topic alias", "alias_id", aliasID)
}

// resetAllTopicAliases is called after a reconnect, when the server no
// longer remembers any alias this client assigned in the previous session.
// A publish prepared before the drop (queued in c.outgoing or still
// c.pending, waiting on an ack) may carry an empty topic and an alias ID
// that means nothing to the new connection; each such packet has its
// topic restored from the outgoing table and its alias stripped so it is
// safe to resend in full.
func (c *Client) resetAllTopicAliases() {
	c.topicAliasesLock.Lock()
	old := c.aliasSend
	c.aliasSend = topicalias.NewSendTable(c.maxAliases)
	c.topicAliasesLock.Unlock()

	restore := func(pub *packets.PublishPacket) {
		if pub.Properties == nil || pub.Properties.Presence&packets.PresTopicAlias == 0 {
			return
		}
		if old != nil {
			if topic, ok := old.ReverseLookup(pub.Properties.TopicAlias); ok && pub.Topic == "" {
				pub.Topic = topic
			}
		}
		pub.Properties.TopicAlias = 0
		pub.Properties.Presence &^= packets.PresTopicAlias
	}

	for _, op := range c.pending {
		if pub, ok := op.packet.(*packets.PublishPacket); ok {
			restore(pub)
		}
	}

	if c.outgoing == nil {
		return
	}
	for n := len(c.outgoing); n > 0; n-- {
		select {
		case pkt := <-c.outgoing:
			if pub, ok := pkt.(*packets.PublishPacket); ok {
				restore(pub)
			}
			c.outgoing <- pkt
		default:
			return
		}
	}
}
