// Package frame owns the per-LED color storage for all devices. The render
// loop writes the back frame during a tick; sinks only ever see committed
// front frames, so a slow or crashed compute unit can never leak a torn
// frame downstream.
package frame

import (
	"errors"
	"fmt"

	"github.com/coreman2200/tapelight/internal/render"
)

var (
	// ErrOverlap reports two region claims touching the same LEDs within
	// one tick. Overlapping writes are a programming error; with the debug
	// check enabled they fail fast instead of silently corrupting output.
	ErrOverlap = errors.New("frame: overlapping region write")
	// ErrUnknownDevice reports a region request for an unregistered device.
	ErrUnknownDevice = errors.New("frame: unknown device")
	// ErrBadRange reports a region outside the device's LED count.
	ErrBadRange = errors.New("frame: region out of range")
)

type span struct {
	off, n int
}

type claim struct {
	lo, hi int // absolute, inclusive
}

// DeviceSpan locates one device's region inside a snapshot's flat slice.
type DeviceSpan struct {
	ID  string
	Off int
	N   int
}

// Snapshot is a copy of a fully committed frame. Holding one across ticks
// is safe; later commits never write through it.
type Snapshot struct {
	Gen     uint64
	Colors  []render.Color
	Devices []DeviceSpan
}

// Region returns the sub-slice for one device, or nil if absent.
func (s Snapshot) Region(deviceID string) []render.Color {
	for _, d := range s.Devices {
		if d.ID == deviceID {
			return s.Colors[d.Off : d.Off+d.N]
		}
	}
	return nil
}

// Buffer is the double-buffered color store. It is not internally locked:
// the render loop owns it exclusively between Begin and Commit.
type Buffer struct {
	front, back []render.Color
	spans       map[string]span
	order       []string
	gen         uint64

	debug  bool
	claims []claim
}

func NewBuffer(debug bool) *Buffer {
	return &Buffer{spans: map[string]span{}, debug: debug}
}

// Resize (re)allocates a device's region, zero-filling it. Other devices
// keep their contents; the resized device starts black.
func (b *Buffer) Resize(deviceID string, ledCount int) error {
	if ledCount < 0 {
		return fmt.Errorf("%w: %d LEDs for %q", ErrBadRange, ledCount, deviceID)
	}
	if _, ok := b.spans[deviceID]; !ok {
		b.order = append(b.order, deviceID)
	}
	b.relayout(deviceID, ledCount)
	return nil
}

// Remove drops a device's region.
func (b *Buffer) Remove(deviceID string) {
	if _, ok := b.spans[deviceID]; !ok {
		return
	}
	for i, id := range b.order {
		if id == deviceID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	delete(b.spans, deviceID)
	b.relayout("", 0)
}

// relayout rebuilds the flat slices after a topology change, carrying over
// the committed contents of surviving devices. resized names the device
// whose region is being (re)allocated and blanked.
func (b *Buffer) relayout(resized string, resizedN int) {
	old := b.spans
	oldFront := b.front

	next := make(map[string]span, len(b.order))
	total := 0
	for _, id := range b.order {
		n := old[id].n
		if id == resized {
			n = resizedN
		}
		next[id] = span{off: total, n: n}
		total += n
	}

	front := make([]render.Color, total)
	back := make([]render.Color, total)
	for _, id := range b.order {
		if id == resized {
			continue
		}
		osp, ok := old[id]
		if !ok || osp.off+osp.n > len(oldFront) {
			continue
		}
		nsp := next[id]
		copy(front[nsp.off:nsp.off+nsp.n], oldFront[osp.off:osp.off+osp.n])
	}
	copy(back, front)

	b.spans = next
	b.front, b.back = front, back
}

// Len is the total LED count across devices.
func (b *Buffer) Len() int { return len(b.back) }

// Devices lists the device spans in registration order.
func (b *Buffer) Devices() []DeviceSpan {
	out := make([]DeviceSpan, 0, len(b.order))
	for _, id := range b.order {
		sp := b.spans[id]
		out = append(out, DeviceSpan{ID: id, Off: sp.off, N: sp.n})
	}
	return out
}

// Begin starts a tick: the back frame is primed with the prior frame's
// values so any region left unwritten (failed or abandoned compute) shows
// the previous frame rather than garbage.
func (b *Buffer) Begin() {
	copy(b.back, b.front)
	b.claims = b.claims[:0]
}

// Region returns the writable back-frame slice for LEDs [start,end] of a
// device. It is the only mutation entry point for segment fills. With the
// debug check on, claims within one tick must not overlap.
func (b *Buffer) Region(deviceID string, start, end int) ([]render.Color, error) {
	sp, ok := b.spans[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
	}
	if start < 0 || end >= sp.n || start > end {
		return nil, fmt.Errorf("%w: [%d,%d] on %q (%d LEDs)", ErrBadRange, start, end, deviceID, sp.n)
	}
	lo, hi := sp.off+start, sp.off+end
	if b.debug {
		for _, c := range b.claims {
			if lo <= c.hi && hi >= c.lo {
				return nil, fmt.Errorf("%w: [%d,%d] on %q", ErrOverlap, start, end, deviceID)
			}
		}
		b.claims = append(b.claims, claim{lo, hi})
	}
	return b.back[lo : hi+1], nil
}

// DeviceRegion returns the writable back-frame slice for a whole device.
// It bypasses the overlap check: device-wide post stages run after all
// segment writes.
func (b *Buffer) DeviceRegion(deviceID string) []render.Color {
	sp, ok := b.spans[deviceID]
	if !ok {
		return nil
	}
	return b.back[sp.off : sp.off+sp.n]
}

// Restore copies the prior frame back over LEDs [start,end] of a device,
// discarding whatever a failed compute unit wrote there this tick.
func (b *Buffer) Restore(deviceID string, start, end int) {
	sp, ok := b.spans[deviceID]
	if !ok || start < 0 || end >= sp.n || start > end {
		return
	}
	lo, hi := sp.off+start, sp.off+end
	copy(b.back[lo:hi+1], b.front[lo:hi+1])
}

// Commit publishes the back frame and bumps the generation counter.
func (b *Buffer) Commit() {
	b.front, b.back = b.back, b.front
	b.gen++
}

// Snapshot returns a copy of the committed frame. Sinks may hold it for any
// number of ticks; later commits never write through it.
func (b *Buffer) Snapshot() Snapshot {
	colors := make([]render.Color, len(b.front))
	copy(colors, b.front)
	return Snapshot{Gen: b.gen, Colors: colors, Devices: b.Devices()}
}
