// Package rowstream fans completed simulation rows out to live consumers
// such as the MQTT publisher or a progress display. Publishing never blocks
// the simulation loop; slow subscribers lose rows instead.
package rowstream

import (
	"sync"
	"sync/atomic"

	"github.com/evgrid/fleetsim/core/sim"
)

// Stream is a publish/subscribe fan-out for result rows.
type Stream struct {
	mu      sync.RWMutex
	subs    []chan sim.Row
	closed  bool
	dropped atomic.Uint64
}

// New creates an empty stream.
func New() *Stream { return &Stream{} }

// Publish delivers the row to every subscriber. Delivery is non-blocking;
// rows a subscriber cannot buffer are counted as dropped.
func (s *Stream) Publish(r sim.Row) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- r:
		default:
			s.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber with the given channel buffer and returns
// its channel. A non-positive buffer gets a default of 64 rows.
func (s *Stream) Subscribe(buf int) <-chan sim.Row {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan sim.Row, buf)
	s.mu.Lock()
	if s.closed {
		close(ch)
	} else {
		s.subs = append(s.subs, ch)
	}
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (s *Stream) Unsubscribe(sub <-chan sim.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.subs {
		if ch == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			if !s.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels. Further publishes are dropped.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// Dropped returns the number of rows lost to full subscriber buffers.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }
