// Package device models the controller topology: devices own contiguous LED
// ranges split into non-overlapping segments, each independently bound to an
// effect. The registry has no internal locking; all mutation happens on the
// engine's tick boundary (see internal/engine).
package device

import (
	"errors"
	"fmt"

	"github.com/coreman2200/tapelight/internal/render"
)

var (
	// ErrNotFound reports an unknown device or segment identifier.
	ErrNotFound = errors.New("device: not found")
	// ErrExists reports a duplicate identifier.
	ErrExists = errors.New("device: already exists")
	// ErrRangeConflict reports a segment range overlapping a sibling.
	ErrRangeConflict = errors.New("device: segment range conflict")
	// ErrBusy reports a removal attempted while a segment is mid-transition.
	ErrBusy = errors.New("device: segment mid-transition")
)

// Position is preview-only layout metadata, carried through config untouched.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Device is one addressable LED controller.
type Device struct {
	ID         string
	Addr       string // host:port, opaque to the engine
	LEDCount   int
	Brightness float64 // global scalar in [0,1]

	segments []*Segment
}

// Segments returns the device's segments in creation order.
func (d *Device) Segments() []*Segment { return d.segments }

// SetBrightness clamps into [0,1].
func (d *Device) SetBrightness(v float64) {
	d.Brightness = clamp01(v)
}

// Segment is a contiguous LED index range [Start,End] within its device.
// Its effect bindings live in a layer stack: layer 0 is the base binding;
// additional timelines targeting the same segment stack overlay layers which
// composite in declaration order.
type Segment struct {
	ID                string
	Start, End        int
	Position          Position
	DefaultTransition render.Transition

	dev    *Device
	layers []*Layer
}

func (s *Segment) Device() *Device { return s.dev }
func (s *Segment) Len() int        { return s.End - s.Start + 1 }

// Base is the segment's primary effect layer.
func (s *Segment) Base() *Layer { return s.layers[0] }

// Layers returns the stack, base first.
func (s *Segment) Layers() []*Layer { return s.layers }

// PushLayer appends an overlay layer for a stacked timeline.
func (s *Segment) PushLayer() *Layer {
	l := &Layer{}
	s.layers = append(s.layers, l)
	return l
}

// RemoveLayer drops an overlay from the stack. The base layer stays.
func (s *Segment) RemoveLayer(l *Layer) {
	for i := 1; i < len(s.layers); i++ {
		if s.layers[i] == l {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			return
		}
	}
}

// SetTransparency clamps into [0,1] and applies to the base layer.
func (s *Segment) SetTransparency(v float64) {
	s.layers[0].Transparency = clamp01(v)
}

func (s *Segment) Transparency() float64 { return s.layers[0].Transparency }

// Transitioning reports whether any layer is inside a transition window.
func (s *Segment) Transitioning() bool {
	for _, l := range s.layers {
		if l.Fading() {
			return true
		}
	}
	return false
}

func (s *Segment) overlaps(start, end int) bool {
	return start <= s.End && end >= s.Start
}

// Registry owns all devices and segments.
type Registry struct {
	devices  map[string]*Device
	order    []string
	segments map[string]*Segment
}

func NewRegistry() *Registry {
	return &Registry{
		devices:  map[string]*Device{},
		segments: map[string]*Segment{},
	}
}

// AddDevice registers a controller. Brightness starts at 1.
func (r *Registry) AddDevice(id, addr string, ledCount int) (*Device, error) {
	if _, ok := r.devices[id]; ok {
		return nil, fmt.Errorf("%w: device %q", ErrExists, id)
	}
	if ledCount <= 0 {
		return nil, fmt.Errorf("device %q: invalid LED count %d", id, ledCount)
	}
	d := &Device{ID: id, Addr: addr, LEDCount: ledCount, Brightness: 1}
	r.devices[id] = d
	r.order = append(r.order, id)
	return d, nil
}

// RemoveDevice deletes a device and cascades to all owned segments
// atomically. Without force it refuses while any owned segment is
// mid-transition.
func (r *Registry) RemoveDevice(id string, force bool) ([]string, error) {
	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: device %q", ErrNotFound, id)
	}
	if !force {
		for _, s := range d.segments {
			if s.Transitioning() {
				return nil, fmt.Errorf("%w: segment %q on device %q", ErrBusy, s.ID, id)
			}
		}
	}
	removed := make([]string, 0, len(d.segments))
	for _, s := range d.segments {
		removed = append(removed, s.ID)
		delete(r.segments, s.ID)
	}
	delete(r.devices, id)
	for i, did := range r.order {
		if did == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return removed, nil
}

// AddSegment creates a segment on a device. The range is inclusive and must
// fit the device and not overlap any sibling.
func (r *Registry) AddSegment(id, deviceID string, start, end int) (*Segment, error) {
	if _, ok := r.segments[id]; ok {
		return nil, fmt.Errorf("%w: segment %q", ErrExists, id)
	}
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: device %q", ErrNotFound, deviceID)
	}
	if start < 0 || end >= d.LEDCount || start > end {
		return nil, fmt.Errorf("segment %q: invalid range [%d,%d] on %q (%d LEDs)",
			id, start, end, deviceID, d.LEDCount)
	}
	for _, sib := range d.segments {
		if sib.overlaps(start, end) {
			return nil, fmt.Errorf("%w: %q [%d,%d] vs %q [%d,%d]",
				ErrRangeConflict, id, start, end, sib.ID, sib.Start, sib.End)
		}
	}
	s := &Segment{
		ID:                id,
		Start:             start,
		End:               end,
		DefaultTransition: render.Transition{Kind: render.Cut},
		dev:               d,
		layers:            []*Layer{{}},
	}
	d.segments = append(d.segments, s)
	r.segments[id] = s
	return s, nil
}

// RemoveSegment deletes one segment.
func (r *Registry) RemoveSegment(id string) error {
	s, ok := r.segments[id]
	if !ok {
		return fmt.Errorf("%w: segment %q", ErrNotFound, id)
	}
	d := s.dev
	for i, sib := range d.segments {
		if sib == s {
			d.segments = append(d.segments[:i], d.segments[i+1:]...)
			break
		}
	}
	delete(r.segments, id)
	return nil
}

// Device resolves an identifier.
func (r *Registry) Device(id string) (*Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: device %q", ErrNotFound, id)
	}
	return d, nil
}

// Segment resolves an identifier.
func (r *Registry) Segment(id string) (*Segment, error) {
	s, ok := r.segments[id]
	if !ok {
		return nil, fmt.Errorf("%w: segment %q", ErrNotFound, id)
	}
	return s, nil
}

// Devices lists devices in registration order.
func (r *Registry) Devices() []*Device {
	out := make([]*Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}
	return out
}

// BindEffect replaces a segment's base binding at the next tick boundary
// using the given transition, or the segment's default when tr is nil.
func (r *Registry) BindEffect(segID string, inst *render.Instance, tr *render.Transition) error {
	s, ok := r.segments[segID]
	if !ok {
		return fmt.Errorf("%w: segment %q", ErrNotFound, segID)
	}
	t := s.DefaultTransition
	if tr != nil {
		t = *tr
	}
	s.Base().StartFade(inst, t)
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
