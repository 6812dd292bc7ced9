// Package timers implements the keep-alive ticker, ping-response deadline,
// and disconnect deadline a connection needs, decoupled from the
// read/write loop so each can be driven and tested independently. None of
// it is safe for concurrent use; like internal/inflight and
// internal/topicalias, an Orchestrator is owned by a single connection's
// executor goroutine.
package timers

import (
	"context"
	"errors"
	"time"
)

// ErrAborted is returned by WaitForDeadline when the wait was cancelled
// through its context rather than having timed out. Callers must not treat
// this as an operational error -- cancellation is the caller giving up on
// the wait, not the connection misbehaving.
var ErrAborted = errors.New("timers: wait aborted")

// Event describes what the orchestrator's periodic tick has determined
// should happen next.
type Event int

const (
	// EventNone means no action is needed this tick.
	EventNone Event = iota
	// EventSendPing means a PINGREQ should be sent now.
	EventSendPing
	// EventTimeout means the connection has gone quiet past the
	// keep-alive timeout and should be treated as dead.
	EventTimeout
)

// Orchestrator tracks keep-alive state for one connection: when the last
// packet was sent and received, and whether a PINGREQ is outstanding.
// Ticks run at 1/4 of the keep-alive interval for reasonable timeout
// resolution without sending excess traffic.
type Orchestrator struct {
	keepAlive    time.Duration
	ticker       *time.Ticker
	lastSent     time.Time
	lastReceived time.Time
	pingPending  bool
}

// NewOrchestrator returns an Orchestrator for the given keep-alive
// interval. A zero interval disables the ticker entirely; Ticks returns a
// nil channel in that case, which blocks forever in a select and is the
// idiomatic way to disable a case.
func NewOrchestrator(keepAlive time.Duration) *Orchestrator {
	o := &Orchestrator{lastSent: time.Now(), lastReceived: time.Now()}
	o.arm(keepAlive)
	return o
}

func (o *Orchestrator) arm(keepAlive time.Duration) {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
	}
	o.keepAlive = keepAlive
	if keepAlive > 0 {
		o.ticker = time.NewTicker(keepAlive / 4)
	}
}

// Ticks returns the channel to select on for periodic evaluation. Returns
// nil if the keep-alive interval is 0.
func (o *Orchestrator) Ticks() <-chan time.Time {
	if o.ticker == nil {
		return nil
	}
	return o.ticker.C
}

// SetKeepAlive changes the interval and re-arms the ticker. Per this
// client's reconnection design, this change applies only to the current
// connection's orchestrator instance -- a fresh Orchestrator built for the
// next reconnection starts from the configured interval again unless the
// caller calls SetKeepAlive again, matching the non-sticky-across-reconnect
// behavior documented for SetKeepAlive(0).
func (o *Orchestrator) SetKeepAlive(keepAlive time.Duration) {
	o.arm(keepAlive)
}

// Stop releases the underlying ticker. Safe to call more than once.
func (o *Orchestrator) Stop() {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
	}
}

// NoteSent records that a packet was just written to the connection.
func (o *Orchestrator) NoteSent() {
	o.lastSent = time.Now()
}

// NoteReceived records that a packet was just read from the connection.
func (o *Orchestrator) NoteReceived() {
	o.lastReceived = time.Now()
}

// NotePingSent records that a PINGREQ was just sent and a PINGRESP is now
// outstanding.
func (o *Orchestrator) NotePingSent() {
	o.pingPending = true
	o.NoteSent()
}

// NotePingAcked clears the outstanding-PINGREQ flag on PINGRESP receipt.
func (o *Orchestrator) NotePingAcked() {
	o.pingPending = false
}

// PingPending reports whether a PINGREQ is currently outstanding.
func (o *Orchestrator) PingPending() bool {
	return o.pingPending
}

// Evaluate is called on each tick to decide what action, if any, the
// connection driver should take. It does not itself send or clear
// anything; the driver calls NotePingSent/NoteSent/NoteReceived in
// response to what it actually does.
func (o *Orchestrator) Evaluate(now time.Time) Event {
	if o.keepAlive <= 0 {
		return EventNone
	}

	// 1.5x keep-alive with no inbound traffic: treat as dead.
	if now.Sub(o.lastReceived) >= o.keepAlive+o.keepAlive/2 {
		return EventTimeout
	}

	// 3/4 keep-alive with no outbound or inbound traffic: probe with a ping.
	threshold := o.keepAlive - o.keepAlive/4
	if !o.pingPending && (now.Sub(o.lastSent) >= threshold || now.Sub(o.lastReceived) >= threshold) {
		return EventSendPing
	}

	return EventNone
}

// WaitForDeadline blocks until d elapses or ctx is cancelled, whichever
// comes first. It returns nil if d is non-positive (no deadline),
// context.DeadlineExceeded if the deadline elapsed, or ErrAborted if ctx
// was cancelled first. Used for the ping-response deadline after sending a
// PINGREQ and the disconnect deadline after sending DISCONNECT.
func WaitForDeadline(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ErrAborted
	}
}
