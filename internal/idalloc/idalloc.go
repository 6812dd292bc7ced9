// Package idalloc allocates MQTT packet identifiers. Packet id 0 is
// reserved by the protocol and never handed out; ids are otherwise handed
// out by advancing a cursor and skipping whichever ones are already in use,
// wrapping back to 1 after 65535.
package idalloc

import "errors"

// ErrExhausted is returned by Acquire when all 65535 packet identifiers are
// currently in use.
var ErrExhausted = errors.New("idalloc: no free packet identifier")

// Allocator hands out packet identifiers. It does not itself know which ids
// are in use -- that's supplied per call via an inUse predicate, typically
// backed by an inflight.Store's id index plus any manually registered ids.
// This keeps the dependency direction one-way: the protocol state machine
// depends on both inflight and idalloc, but idalloc never imports inflight.
type Allocator struct {
	cursor uint16
	manual map[uint16]struct{}
}

// New returns an Allocator starting its scan from id 1.
func New() *Allocator {
	return &Allocator{manual: make(map[uint16]struct{})}
}

// Acquire returns the next packet id not reported in-use by inUse and not
// manually registered, advancing the internal cursor past it. It returns
// ErrExhausted if a full cycle of the id space finds nothing free.
func (a *Allocator) Acquire(inUse func(id uint16) bool) (uint16, error) {
	for range 65535 {
		a.cursor++
		if a.cursor == 0 {
			a.cursor = 1
		}
		if _, reserved := a.manual[a.cursor]; reserved {
			continue
		}
		if inUse != nil && inUse(a.cursor) {
			continue
		}
		return a.cursor, nil
	}
	return 0, ErrExhausted
}

// RegisterManual reserves id for out-of-band use (for example, a caller
// that wants to pre-assign a specific id before Insert-ing it into the
// in-flight store). It fails if id is already in use or already reserved.
func (a *Allocator) RegisterManual(id uint16, inUse func(id uint16) bool) error {
	if id == 0 {
		return errors.New("idalloc: packet id 0 is reserved")
	}
	if _, reserved := a.manual[id]; reserved {
		return errors.New("idalloc: packet id already reserved")
	}
	if inUse != nil && inUse(id) {
		return errors.New("idalloc: packet id already in use")
	}
	a.manual[id] = struct{}{}
	return nil
}

// ReleaseManual undoes a prior RegisterManual. It is a no-op if id was not
// reserved.
func (a *Allocator) ReleaseManual(id uint16) {
	delete(a.manual, id)
}

// Seed sets the allocator's cursor so the next Acquire starts scanning
// from id+1, without otherwise touching manual reservations. Used when
// adopting a packet id sequence that was already in progress (for example,
// one carried over from a struct literal built before the allocator
// existed).
func (a *Allocator) Seed(id uint16) {
	a.cursor = id
}

// Reset restores the allocator to its initial state, clearing manual
// reservations and rewinding the cursor. Used when a session resets
// (clean start).
func (a *Allocator) Reset() {
	a.cursor = 0
	a.manual = make(map[uint16]struct{})
}
