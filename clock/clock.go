// Package clock implements the Lamport logical clock (C1): a monotonic
// counter with the two update rules required for the happens-before
// relation to hold across REQUEST/REPLY/RELEASE exchanges.
package clock

import "sync"

// Clock is a Lamport logical clock. The zero value starts at time 0 and
// is safe for concurrent use. In this codebase it is only advanced from
// the single coordinator actor goroutine (see package coordinator); the
// mutex covers callers outside that actor, such as Coordinator.Inspect
// reading Value and tests constructing clocks directly.
type Clock struct {
	mu sync.Mutex
	t  uint64
}

// New returns a Clock starting at logical time 0.
func New() *Clock {
	return &Clock{}
}

// TickSend advances the clock by one and returns the new value. Must be
// called exactly once before emitting any outbound message.
func (c *Clock) TickSend() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t++
	return c.t
}

// TickRecv advances the clock past peerTime and returns the new value.
// Must be called exactly once on receiving any inbound message, before
// any other handler logic observes the clock. The "+1 even if local is
// larger" rule is the Lamport rule.
func (c *Clock) TickRecv(peerTime uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if peerTime > c.t {
		c.t = peerTime
	}
	c.t++
	return c.t
}

// Value returns the current clock value without advancing it.
func (c *Clock) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}
