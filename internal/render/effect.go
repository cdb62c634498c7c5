package render

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownKind is returned when an effect kind tag has no registration.
	ErrUnknownKind = errors.New("render: unknown effect kind")
	// ErrUnknownParameter is returned for a parameter name outside the kind's schema.
	ErrUnknownParameter = errors.New("render: unknown parameter")
)

// Params holds an effect instance's numeric parameters. Color-valued
// parameters are 24-bit RGB integers carried as float64.
type Params map[string]float64

// ParamSpec declares one parameter's default and allowed range.
type ParamSpec struct {
	Default float64
	Min     float64
	Max     float64
}

// Schema maps parameter names to their specs for one effect kind.
type Schema map[string]ParamSpec

// Clamp forces v into the spec's range. Out-of-range writes are clamped,
// never dropped.
func (s ParamSpec) Clamp(v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// RenderFunc fills dst with the colors of LEDs [off, off+len(dst)) of a
// segment that is total LEDs long. It must be pure: same (phase, params,
// position) always yields the same color, regardless of how the range is
// chunked.
type RenderFunc func(dst []Color, off, total int, phase float64, p Params)

// Kind is one registered effect variant.
type Kind struct {
	Name   string
	Render RenderFunc
	Schema Schema
	// Rate returns the phase advance per second for the given parameters.
	Rate func(p Params) float64
}

// Registry is the closed set of effect kinds the engine can dispatch on.
// Kinds are registered at startup; there is no runtime code injection.
type Registry struct{ kinds map[string]Kind }

func NewRegistry() *Registry { return &Registry{kinds: map[string]Kind{}} }

// DefaultRegistry returns a registry with the built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(rainbowKind())
	r.Register(pulseKind())
	r.Register(chaseKind())
	return r
}

func (r *Registry) Register(k Kind) {
	if k.Name == "" || k.Render == nil {
		return
	}
	r.kinds[k.Name] = k
}

func (r *Registry) Get(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Instance is a live effect: a kind plus parameter values and the phase
// accumulator. Phase advances by Rate(params)*dt once per tick, never from
// wall clock, so pausing the scheduler does not desync it.
type Instance struct {
	kind   Kind
	params Params
	phase  float64
}

// NewInstance validates params against the kind's schema, filling defaults
// and clamping out-of-range values.
func (r *Registry) NewInstance(kind string, params map[string]float64) (*Instance, error) {
	k, ok := r.Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	in := &Instance{kind: k, params: make(Params, len(k.Schema))}
	for name, spec := range k.Schema {
		in.params[name] = spec.Default
	}
	for name, v := range params {
		if err := in.SetParam(name, v); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *Instance) Kind() string { return in.kind.Name }

// SetParam writes one parameter, clamping to the schema range.
func (in *Instance) SetParam(name string, v float64) error {
	spec, ok := in.kind.Schema[name]
	if !ok {
		return fmt.Errorf("%w: %q for kind %q", ErrUnknownParameter, name, in.kind.Name)
	}
	in.params[name] = spec.Clamp(v)
	return nil
}

func (in *Instance) Param(name string) float64 { return in.params[name] }

// Params returns a copy of the current parameter values.
func (in *Instance) Snapshot() Params {
	out := make(Params, len(in.params))
	for k, v := range in.params {
		out[k] = v
	}
	return out
}

// Advance moves the phase accumulator forward by dt seconds.
func (in *Instance) Advance(dt float64) {
	if in.kind.Rate != nil {
		in.phase += in.kind.Rate(in.params) * dt
	}
}

func (in *Instance) Phase() float64     { return in.phase }
func (in *Instance) SetPhase(p float64) { in.phase = p }

// RenderTo fills dst as LEDs [off, off+len(dst)) of a total-length segment.
func (in *Instance) RenderTo(dst []Color, off, total int) {
	in.kind.Render(dst, off, total, in.phase, in.params)
}

// Renderer exposes the kind's fill function for offloaded compute jobs.
func (in *Instance) Renderer() RenderFunc { return in.kind.Render }

// Clone copies the instance, including phase, for crossfade arming.
func (in *Instance) Clone() *Instance {
	return &Instance{kind: in.kind, params: in.Snapshot(), phase: in.phase}
}
