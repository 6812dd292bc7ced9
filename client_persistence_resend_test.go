package mq

import (
	"testing"

	"github.com/tern-io/mqtt/internal/inflight"
	"github.com/tern-io/mqtt/internal/packets"
)

func TestCheckSessionPresentResendsStoredInOrder(t *testing.T) {
	outgoing := make(chan packets.Packet, 10)
	stop := make(chan struct{})

	pubOp := &pendingOp{packet: &packets.PublishPacket{PacketID: 1, Topic: "a/b", QoS: 1}}
	subOp := &pendingOp{packet: &packets.SubscribePacket{PacketID: 2, Topics: []string{"c/d"}}}

	c := &Client{
		opts:        &clientOptions{Logger: testLogger()},
		outgoing:    outgoing,
		stop:        stop,
		pending:     map[uint16]*pendingOp{1: pubOp, 2: subOp},
		resendOrder: inflight.New[*pendingOp](),
	}
	c.recordResend(1, inflight.KindPuback, pubOp)
	c.recordResend(2, inflight.KindSuback, subOp)

	if err := c.checkSessionPresent(true); err != nil {
		t.Fatalf("checkSessionPresent returned error: %v", err)
	}

	first := (<-outgoing).(*packets.PublishPacket)
	if first.PacketID != 1 || !first.Dup {
		t.Errorf("expected first resend to be PUBLISH id=1 with Dup=true, got %+v", first)
	}

	second := (<-outgoing).(*packets.SubscribePacket)
	if second.PacketID != 2 {
		t.Errorf("expected second resend to be SUBSCRIBE id=2, got %+v", second)
	}

	select {
	case pkt := <-outgoing:
		t.Errorf("expected no further resends, got %+v", pkt)
	default:
	}
}

func TestCheckSessionPresentFalseClearsStateWithoutResend(t *testing.T) {
	outgoing := make(chan packets.Packet, 10)
	pubOp := &pendingOp{packet: &packets.PublishPacket{PacketID: 1, Topic: "a/b", QoS: 1}}

	c := &Client{
		opts:          &clientOptions{Logger: testLogger()},
		outgoing:      outgoing,
		stop:          make(chan struct{}),
		pending:       map[uint16]*pendingOp{1: pubOp},
		resendOrder:   inflight.New[*pendingOp](),
		subscriptions: make(map[string]subscriptionEntry),
	}
	c.recordResend(1, inflight.KindPuback, pubOp)

	if err := c.checkSessionPresent(false); err != nil {
		t.Fatalf("checkSessionPresent returned error: %v", err)
	}

	select {
	case pkt := <-outgoing:
		t.Errorf("expected no resend when session is not present, got %+v", pkt)
	default:
	}
}

func TestResendStoredInOrderNoopWithoutResendOrder(t *testing.T) {
	c := &Client{opts: &clientOptions{Logger: testLogger()}}
	// Should not panic even though resendOrder and outgoing are both nil.
	c.resendStoredInOrder()
}
