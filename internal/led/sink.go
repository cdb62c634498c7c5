// Package led carries finished frames out of the engine: SPI hardware,
// websocket preview clients, or test captures, all behind one Sink
// interface.
package led

import (
	"sync"

	"github.com/coreman2200/tapelight/internal/frame"
)

// Sink consumes committed frame snapshots. Implementations must not mutate
// the snapshot's colors. A Sink may be slow; the engine hands frames to a
// Fanout which drops old frames instead of blocking the render loop.
type Sink interface {
	Write(frame.Snapshot) error
	Close() error
}

// NullSink discards frames.
type NullSink struct{}

func (NullSink) Write(frame.Snapshot) error { return nil }
func (NullSink) Close() error               { return nil }

// CaptureSink retains the last written snapshot's colors, for tests and
// diagnostics.
type CaptureSink struct {
	mu     sync.Mutex
	last   frame.Snapshot
	frames int
}

func (c *CaptureSink) Write(s frame.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
	c.frames++
	return nil
}

func (c *CaptureSink) Close() error { return nil }

// Last returns the most recent snapshot and how many frames arrived.
func (c *CaptureSink) Last() (frame.Snapshot, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.frames
}
