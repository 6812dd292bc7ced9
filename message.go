package mq

// Message is an inbound PUBLISH, handed to every MessageHandler that
// matches its topic. The same shape covers v3.1.1 and v5.0; Properties is
// nil on a v3.1.1 connection or when the server sent none.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       QoS
	Retained  bool
	Duplicate bool

	Properties *Properties
}
