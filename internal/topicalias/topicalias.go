// Package topicalias implements the MQTT v5.0 topic-alias tables used to
// substitute a short integer for a topic string on the wire. Two tables are
// kept per connection: SendTable maps topics to aliases this client assigns
// when publishing, ReceiveTable maps aliases to topics the server assigned
// when publishing to this client. Alias 0 is reserved by the protocol and
// is never valid in either direction.
package topicalias

import (
	"container/list"
	"errors"
)

// ErrAliasZero is returned when alias 0 is used, which the protocol
// reserves and never assigns.
var ErrAliasZero = errors.New("topicalias: alias 0 is reserved")

// ErrUnknownAlias is returned by ReceiveTable.Resolve when an alias-only
// message references an alias that was never registered.
var ErrUnknownAlias = errors.New("topicalias: unknown alias")

// SendTable assigns aliases to topics this client publishes, up to a
// server-announced capacity. Once at capacity, the least-recently-used
// mapping is evicted and its alias value reassigned to the new topic
// (auto-replace); below capacity, a topic not yet seen gets a freshly
// allocated alias (auto-map). Re-publishing an already-mapped topic reuses
// its alias and refreshes its recency.
type SendTable struct {
	capacity uint16
	byTopic  map[string]*list.Element
	lru      *list.List // front = most recently used
	nextID   uint16
}

type sendEntry struct {
	topic string
	alias uint16
}

// NewSendTable returns a SendTable capped at capacity distinct aliases.
// A capacity of 0 means the server does not support topic aliasing; Assign
// always reports ok=false in that case.
func NewSendTable(capacity uint16) *SendTable {
	return &SendTable{
		capacity: capacity,
		byTopic:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Assign returns the alias to use for topic, and whether the full topic
// string must still be sent alongside it (true the first time an alias is
// used for a topic, or when the mapping is replaced; false when the
// existing mapping is simply being reused, letting the caller omit the
// topic string on the wire). ok is false if aliasing is disabled.
func (t *SendTable) Assign(topic string) (alias uint16, sendTopic bool, ok bool) {
	if t.capacity == 0 {
		return 0, false, false
	}

	if el, exists := t.byTopic[topic]; exists {
		t.lru.MoveToFront(el)
		return el.Value.(*sendEntry).alias, false, true
	}

	if uint16(t.lru.Len()) < t.capacity {
		t.nextID++
		entry := &sendEntry{topic: topic, alias: t.nextID}
		el := t.lru.PushFront(entry)
		t.byTopic[topic] = el
		return entry.alias, true, true
	}

	// At capacity: evict the least-recently-used mapping and hand its
	// alias value to the new topic.
	back := t.lru.Back()
	evicted := back.Value.(*sendEntry)
	delete(t.byTopic, evicted.topic)

	evicted.topic = topic // alias value on the entry is reused unchanged
	t.lru.MoveToFront(back)
	t.byTopic[topic] = back

	return evicted.alias, true, true
}

// Reset clears all assigned aliases, used when a session is not resumed.
func (t *SendTable) Reset() {
	t.byTopic = make(map[string]*list.Element)
	t.lru = list.New()
	t.nextID = 0
}

// Len reports the number of currently assigned aliases.
func (t *SendTable) Len() int {
	return t.lru.Len()
}

// ReverseLookup returns the topic currently mapped to alias, if any. It
// does not affect recency, so it is safe to use when inspecting a table
// that is about to be discarded (e.g. after a reconnect).
func (t *SendTable) ReverseLookup(alias uint16) (string, bool) {
	for el := t.lru.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*sendEntry)
		if entry.alias == alias {
			return entry.topic, true
		}
	}
	return "", false
}

// ReceiveTable maps aliases the server has assigned to the topics they
// stand for. Unlike SendTable it has no capacity of its own -- the client
// advertises its own TopicAliasMaximum at CONNECT time and the server is
// expected to honor it; a violation is a protocol error the caller detects
// before calling Register.
type ReceiveTable struct {
	byAlias map[uint16]string
}

// NewReceiveTable returns an empty ReceiveTable.
func NewReceiveTable() *ReceiveTable {
	return &ReceiveTable{byAlias: make(map[uint16]string)}
}

// Register records that alias now stands for topic (sent together on the
// wire). A later publish carrying only the alias resolves through Resolve.
func (t *ReceiveTable) Register(alias uint16, topic string) error {
	if alias == 0 {
		return ErrAliasZero
	}
	t.byAlias[alias] = topic
	return nil
}

// Resolve returns the topic registered for alias.
func (t *ReceiveTable) Resolve(alias uint16) (string, error) {
	if alias == 0 {
		return "", ErrAliasZero
	}
	topic, ok := t.byAlias[alias]
	if !ok {
		return "", ErrUnknownAlias
	}
	return topic, nil
}

// Reset clears all registered aliases.
func (t *ReceiveTable) Reset() {
	t.byAlias = make(map[uint16]string)
}
