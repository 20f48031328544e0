// Package loopback provides an in-memory Radio implementation for unit
// and integration tests, generalizing the teacher's stub hardware
// driver (internal/lora/driver.go's TODO-laden initHardware/
// receivePacket pair) into something that actually delivers frames.
//
// All nodes sharing a *Switchboard see every frame any of them sends —
// this models a single-channel, lossy-but-in-this-case-lossless,
// half-duplex broadcast medium, the same topology real LoRa presents.
package loopback

import (
	"context"
	"sync"
)

// Switchboard is the shared medium a set of Radios are attached to.
type Switchboard struct {
	mu   sync.Mutex
	subs map[*Radio]chan []byte
}

// NewSwitchboard creates an empty shared medium.
func NewSwitchboard() *Switchboard {
	return &Switchboard{subs: make(map[*Radio]chan []byte)}
}

func (s *Switchboard) attach(r *Radio) chan []byte {
	ch := make(chan []byte, 256)
	s.mu.Lock()
	s.subs[r] = ch
	s.mu.Unlock()
	return ch
}

func (s *Switchboard) detach(r *Radio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[r]; ok {
		close(ch)
		delete(s.subs, r)
	}
}

// broadcast delivers frame to every attached Radio except from.
func (s *Switchboard) broadcast(from *Radio, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for r, ch := range s.subs {
		if r == from {
			continue
		}
		cp := make([]byte, len(frame))
		copy(cp, frame)
		select {
		case ch <- cp:
		default:
			// Receiver's inbox is full; drop, same as a real radio
			// would drop a frame nobody is listening for yet.
		}
	}
}

// Radio is a Switchboard-attached loopback Radio.
type Radio struct {
	board *Switchboard
	inbox chan []byte
}

// New attaches a new Radio to board.
func New(board *Switchboard) *Radio {
	r := &Radio{board: board}
	r.inbox = board.attach(r)
	return r
}

// Send broadcasts frame to every other Radio on the same Switchboard.
func (r *Radio) Send(ctx context.Context, frame []byte) error {
	r.board.broadcast(r, frame)
	return nil
}

// Receive returns the next queued frame, waiting for one until ctx is
// done; it returns (nil, nil) if ctx is done first or the radio has
// been closed.
func (r *Radio) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-r.inbox:
		if !ok {
			return nil, nil
		}
		return frame, nil
	default:
	}

	select {
	case frame, ok := <-r.inbox:
		if !ok {
			return nil, nil
		}
		return frame, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Close detaches the radio from its Switchboard.
func (r *Radio) Close() error {
	r.board.detach(r)
	return nil
}
