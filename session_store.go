package mq

// SessionStore persists the state a reconnecting client needs to resume a
// session across a process restart: unacknowledged QoS 1/2 publishes,
// active subscriptions, and the QoS 2 packet IDs already seen. It is
// consulted only at startup — a live process keeps this state in memory
// and reconnects without touching the store.
//
// mq calls these methods from its logic-loop goroutine, from a publishing
// goroutine while holding the session lock the logic loop also holds, and
// from the connecting goroutine during connection setup; only the first two
// are serialized with each other by that lock. Save/Delete/Clear* methods may return before I/O finishes and
// do the work in the background; a failure there is logged and otherwise
// ignored, since in-memory state stays authoritative. Load* methods must
// return the real data synchronously, since they run during connection
// setup while that data is still needed.
type SessionStore interface {
	SavePendingPublish(packetID uint16, pub *PersistedPublish) error
	DeletePendingPublish(packetID uint16) error
	LoadPendingPublishes() (map[uint16]*PersistedPublish, error)
	ClearPendingPublishes() error

	SaveSubscription(topic string, sub *SubscriptionInfo) error
	DeleteSubscription(topic string) error

	// LoadSubscriptions restores topic filters and options but not
	// MessageHandlers, which are never persisted; re-associate one via
	// WithSubscription, or rely on the DefaultPublishHandler.
	LoadSubscriptions() (map[string]*SubscriptionInfo, error)

	SaveReceivedQoS2(packetID uint16) error
	DeleteReceivedQoS2(packetID uint16) error
	LoadReceivedQoS2() (map[uint16]struct{}, error)
	ClearReceivedQoS2() error

	// Clear drops all session state, called on CleanSession/CleanStart or
	// once the session expires.
	Clear() error
}

// PersistedPublish represents a publish for persistence.
// This is a simplified representation containing only the data needed
// to restore a pending publish after reconnection.
type PersistedPublish struct {
	Topic      string
	Payload    []byte
	QoS        uint8
	Retain     bool
	Properties *PublishProperties
}

// SubscriptionInfo represents a subscription for persistence.
// This contains the data needed to restore a subscription after reconnection.
type SubscriptionInfo struct {
	QoS     uint8
	Options *SubscriptionOptions
}

// PersistedSubscription and PersistedSubscriptionOptions are the names used
// by the conversion helpers in client_persistence.go; they are the same
// shape as SubscriptionInfo/SubscriptionOptions above.
type PersistedSubscription = SubscriptionInfo
type PersistedSubscriptionOptions = SubscriptionOptions

// PublishProperties represents MQTT v5.0 publish properties for persistence.
type PublishProperties struct {
	PayloadFormat          *uint8
	MessageExpiry          *uint32
	TopicAlias             *uint16
	ResponseTopic          string
	CorrelationData        []byte
	UserProperties         map[string]string
	SubscriptionIdentifier *uint32
	ContentType            string
}

// SubscriptionOptions represents MQTT v5.0 subscription options for persistence.
type SubscriptionOptions struct {
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    uint8
	SubscriptionID    *uint32
	UserProperties    map[string]string
}
