// Package replay implements the per-sender strictly-increasing-counter
// replay guard described in spec.md §4.5. It is deliberately stricter
// than a sliding-window scheme: a counter must exceed the highest one
// previously accepted from that sender, full stop. Reordered or
// duplicated packets are rejected; lost packets are accepted silently
// the next time a higher counter arrives.
package replay

import "sync"

// Guard tracks the highest accepted counter per sender. It is only
// ever touched from the Transceiver's RX task, so no locking would be
// strictly required there — the mutex exists so that HighWaterMark
// may be called for inspection from another goroutine.
type Guard struct {
	mu    sync.Mutex
	state map[uint32]uint64
}

// New returns an empty replay guard.
func New() *Guard {
	return &Guard{state: make(map[uint32]uint64)}
}

// CheckAndUpdate accepts counter for sender if it is strictly greater
// than the highest counter previously accepted from that sender (or
// if this is the first counter seen from sender). On acceptance the
// sender's high-water mark is advanced and true is returned; otherwise
// state is left untouched and false is returned.
func (g *Guard) CheckAndUpdate(sender uint32, counter uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.state[sender]
	if seen && counter <= last {
		return false
	}
	g.state[sender] = counter
	return true
}

// HighWaterMark returns the highest counter accepted from sender and
// whether any counter has been accepted from it at all.
func (g *Guard) HighWaterMark(sender uint32) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.state[sender]
	return v, ok
}
