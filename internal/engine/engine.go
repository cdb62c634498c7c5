// Package engine runs the render loop: a fixed-rate ticker that drains
// staged commands, advances timelines and transitions, fills segment
// regions through the compute dispatcher, composites layer stacks, applies
// device brightness and publishes the committed frame to output sinks.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/compute"
	"github.com/coreman2200/tapelight/internal/device"
	"github.com/coreman2200/tapelight/internal/frame"
	"github.com/coreman2200/tapelight/internal/led"
	"github.com/coreman2200/tapelight/internal/render"
	"github.com/coreman2200/tapelight/internal/sequence"
)

// DefaultFPS is the tick rate when the config does not set one.
const DefaultFPS = 60

// Stats is the loop's health counters, served on the preview status
// endpoint.
type Stats struct {
	Ticks    uint64        `json:"ticks"`
	Misses   uint64        `json:"deadline_misses"`
	Gen      uint64        `json:"frame_gen"`
	LEDs     int           `json:"leds"`
	LastTick time.Duration `json:"last_tick_ns"`
}

// Options configures an Engine.
type Options struct {
	FPS          float64
	DebugOverlap bool
	Kinds        *render.Registry
	Dispatcher   *compute.Dispatcher
	Logger       zerolog.Logger
}

type mutation struct {
	op    string
	apply func() error
}

type clearReq struct {
	device     string
	start, end int
}

// Engine owns all render state. Before Run it may be mutated directly
// (config load); once the loop is running every change goes through Stage
// and applies at the next tick boundary, so a tick always sees one
// consistent topology.
type Engine struct {
	log    zerolog.Logger
	fps    float64
	kinds  *render.Registry
	reg    *device.Registry
	buf    *frame.Buffer
	disp   *compute.Dispatcher
	fanout *led.Fanout

	effects map[string]*render.Instance
	players map[string]*sequence.Player
	// layer wiring: timeline id -> segment id -> the layer it drives
	layers    map[string]map[string]*device.Layer
	baseOwner map[string]string // segment id -> timeline driving its base

	mutations chan mutation
	clears    []clearReq

	scratchPool [][]render.Color
	scratchN    int

	statsMu sync.Mutex
	stats   Stats
}

func New(opts Options) *Engine {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Kinds == nil {
		opts.Kinds = render.DefaultRegistry()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = compute.NewDispatcher(compute.Options{Logger: opts.Logger})
	}
	return &Engine{
		log:       opts.Logger,
		fps:       opts.FPS,
		kinds:     opts.Kinds,
		reg:       device.NewRegistry(),
		buf:       frame.NewBuffer(opts.DebugOverlap),
		disp:      opts.Dispatcher,
		fanout:    led.NewFanout(opts.Logger),
		effects:   map[string]*render.Instance{},
		players:   map[string]*sequence.Player{},
		layers:    map[string]map[string]*device.Layer{},
		baseOwner: map[string]string{},
		mutations: make(chan mutation, 256),
	}
}

func (e *Engine) Registry() *device.Registry { return e.reg }
func (e *Engine) Kinds() *render.Registry    { return e.kinds }

// AttachSink subscribes an output sink with its own send queue depth.
func (e *Engine) AttachSink(s led.Sink, depth int) { e.fanout.Attach(s, depth) }

// Stage queues a command for the next tick boundary. Errors from apply are
// logged with the op name; staged commands never crash the loop.
func (e *Engine) Stage(op string, apply func() error) {
	e.mutations <- mutation{op: op, apply: apply}
}

// Status snapshots the loop counters for the preview endpoint.
func (e *Engine) Status() any {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Close releases the fanout and the compute dispatcher.
func (e *Engine) Close() {
	e.fanout.Close()
	e.disp.Close()
}

// --- topology and binding commands ---
//
// These run on the loop goroutine (via Stage) or before Run starts.

func (e *Engine) AddDevice(id, addr string, ledCount int) error {
	if _, err := e.reg.AddDevice(id, addr, ledCount); err != nil {
		return err
	}
	return e.buf.Resize(id, ledCount)
}

func (e *Engine) RemoveDevice(id string, force bool) error {
	removed, err := e.reg.RemoveDevice(id, force)
	if err != nil {
		return err
	}
	for _, segID := range removed {
		e.detachSegment(segID)
	}
	e.buf.Remove(id)
	e.log.Info().Str("device", id).Strs("segments", removed).Msg("device removed")
	return nil
}

func (e *Engine) AddSegment(id, deviceID string, start, end int) error {
	_, err := e.reg.AddSegment(id, deviceID, start, end)
	return err
}

func (e *Engine) RemoveSegment(id string) error {
	s, err := e.reg.Segment(id)
	if err != nil {
		return err
	}
	dev := s.Device()
	if err := e.reg.RemoveSegment(id); err != nil {
		return err
	}
	e.detachSegment(id)
	e.clears = append(e.clears, clearReq{device: dev.ID, start: s.Start, end: s.End})
	return nil
}

// detachSegment unhooks a vanished segment from every timeline that was
// driving one of its layers. Players keep running; their hooks for this
// target just stop resolving.
func (e *Engine) detachSegment(segID string) {
	for _, m := range e.layers {
		delete(m, segID)
	}
	delete(e.baseOwner, segID)
}

func (e *Engine) AddEffect(id, kind string, params map[string]float64) error {
	if _, ok := e.effects[id]; ok {
		return fmt.Errorf("effect %q already exists", id)
	}
	inst, err := e.kinds.NewInstance(kind, params)
	if err != nil {
		return err
	}
	e.effects[id] = inst
	return nil
}

// SetEffectParam adjusts one parameter of a live instance. Out-of-range
// values clamp to the schema bounds; unknown names are rejected.
func (e *Engine) SetEffectParam(effectID, name string, v float64) error {
	inst, ok := e.effects[effectID]
	if !ok {
		return fmt.Errorf("%w: effect %q", device.ErrNotFound, effectID)
	}
	return inst.SetParam(name, v)
}

func (e *Engine) Effect(id string) (*render.Instance, bool) {
	inst, ok := e.effects[id]
	return inst, ok
}

// SetSegmentParam writes a parameter on the effect bound to the segment's
// base layer.
func (e *Engine) SetSegmentParam(segID, name string, v float64) error {
	s, err := e.reg.Segment(segID)
	if err != nil {
		return err
	}
	in := s.Base().Active()
	if in == nil {
		return fmt.Errorf("%w: segment %q has no bound effect", device.ErrNotFound, segID)
	}
	return in.SetParam(name, v)
}

// resolveEffect looks up an instance by id, lazily creating a default
// instance when the id names a registered kind instead. Control commands
// can thus say "rainbow" without pre-declaring an instance.
func (e *Engine) resolveEffect(id string) (*render.Instance, error) {
	if in, ok := e.effects[id]; ok {
		return in, nil
	}
	if _, ok := e.kinds.Get(id); ok {
		in, err := e.kinds.NewInstance(id, nil)
		if err != nil {
			return nil, err
		}
		e.effects[id] = in
		return in, nil
	}
	return nil, fmt.Errorf("%w: effect %q", device.ErrNotFound, id)
}

// ApplyEffect binds an instance to a segment's base layer, transitioning
// per tr or the segment's default when tr is nil.
func (e *Engine) ApplyEffect(segID, effectID string, tr *render.Transition) error {
	inst, err := e.resolveEffect(effectID)
	if err != nil {
		return err
	}
	return e.reg.BindEffect(segID, inst, tr)
}

// ApplyDeviceEffect binds one instance across every segment of a device.
func (e *Engine) ApplyDeviceEffect(deviceID, effectID string) error {
	d, err := e.reg.Device(deviceID)
	if err != nil {
		return err
	}
	inst, err := e.resolveEffect(effectID)
	if err != nil {
		return err
	}
	for _, s := range d.Segments() {
		s.Base().StartFade(inst, s.DefaultTransition)
	}
	return nil
}

// ClearSegment drops the base binding; the region renders black from the
// next committed frame.
func (e *Engine) ClearSegment(segID string) error {
	s, err := e.reg.Segment(segID)
	if err != nil {
		return err
	}
	s.Base().Bind(nil)
	return nil
}

func (e *Engine) ClearDevice(deviceID string) error {
	d, err := e.reg.Device(deviceID)
	if err != nil {
		return err
	}
	for _, s := range d.Segments() {
		s.Base().Bind(nil)
	}
	return nil
}

func (e *Engine) SetDeviceBrightness(deviceID string, v float64) error {
	d, err := e.reg.Device(deviceID)
	if err != nil {
		return err
	}
	d.SetBrightness(v)
	return nil
}

func (e *Engine) SetSegmentTransparency(segID string, v float64) error {
	s, err := e.reg.Segment(segID)
	if err != nil {
		return err
	}
	s.SetTransparency(v)
	return nil
}

// --- timelines ---

// AddTimeline loads a cue list and wires it to its targets. The first
// timeline on a segment drives the base layer; later ones stack overlay
// layers composited above it in arrival order.
func (e *Engine) AddTimeline(tl sequence.Timeline) error {
	if _, ok := e.players[tl.ID]; ok {
		return fmt.Errorf("timeline %q already exists", tl.ID)
	}
	for _, target := range tl.Targets {
		if _, err := e.reg.Segment(target); err != nil {
			return err
		}
	}
	for _, cue := range tl.Cues {
		if _, ok := e.effects[cue.EffectID]; !ok && cue.EffectID != "" {
			return fmt.Errorf("%w: effect %q in timeline %q", device.ErrNotFound, cue.EffectID, tl.ID)
		}
	}

	id := tl.ID
	p := sequence.NewPlayer(sequence.Hooks{
		Bind:         func(target, effectID string) { e.hookBind(id, target, effectID) },
		Arm:          func(target, effectID string, tr render.Transition) { e.hookArm(id, target, effectID, tr) },
		SetCrossfade: func(target string, alpha float64) { e.hookCrossfade(id, target, alpha) },
	})
	if err := p.Load(tl); err != nil {
		return err
	}

	wired := map[string]*device.Layer{}
	for _, target := range tl.Targets {
		s, _ := e.reg.Segment(target)
		if _, taken := e.baseOwner[target]; !taken {
			e.baseOwner[target] = id
			wired[target] = s.Base()
		} else {
			wired[target] = s.PushLayer()
		}
	}
	e.layers[id] = wired
	e.players[id] = p
	return nil
}

// RemoveTimeline stops the player and unwires its layers. Overlay layers
// pop off their segments; a base binding goes dark.
func (e *Engine) RemoveTimeline(id string) error {
	p, ok := e.players[id]
	if !ok {
		return fmt.Errorf("%w: timeline %q", device.ErrNotFound, id)
	}
	p.Stop()
	for target, l := range e.layers[id] {
		if e.baseOwner[target] == id {
			l.Bind(nil)
			delete(e.baseOwner, target)
		} else if s, err := e.reg.Segment(target); err == nil {
			s.RemoveLayer(l)
		}
	}
	delete(e.layers, id)
	delete(e.players, id)
	return nil
}

func (e *Engine) player(id string) (*sequence.Player, error) {
	p, ok := e.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: timeline %q", device.ErrNotFound, id)
	}
	return p, nil
}

func (e *Engine) PlayTimeline(id string) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}
	p.Start()
	return nil
}

func (e *Engine) PauseTimeline(id string) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}
	p.Pause()
	return nil
}

func (e *Engine) ResumeTimeline(id string) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}
	p.Resume()
	return nil
}

func (e *Engine) StopTimeline(id string) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}
	p.Stop()
	return nil
}

func (e *Engine) SeekTimeline(id string, t float64) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}
	p.Seek(t)
	return nil
}

// --- timeline hooks ---

func (e *Engine) hookLayer(tlID, target string) *device.Layer {
	if m, ok := e.layers[tlID]; ok {
		return m[target]
	}
	return nil
}

func (e *Engine) hookBind(tlID, target, effectID string) {
	l := e.hookLayer(tlID, target)
	if l == nil {
		return
	}
	if effectID == "" {
		l.Bind(nil)
		return
	}
	inst, ok := e.effects[effectID]
	if !ok {
		e.log.Warn().Str("timeline", tlID).Str("effect", effectID).Msg("cue references unknown effect")
		return
	}
	l.Bind(inst)
}

func (e *Engine) hookArm(tlID, target, effectID string, tr render.Transition) {
	l := e.hookLayer(tlID, target)
	if l == nil {
		return
	}
	inst, ok := e.effects[effectID]
	if !ok {
		e.log.Warn().Str("timeline", tlID).Str("effect", effectID).Msg("cue references unknown effect")
		return
	}
	l.Arm(inst, tr)
}

func (e *Engine) hookCrossfade(tlID, target string, alpha float64) {
	if l := e.hookLayer(tlID, target); l != nil {
		l.SetCrossfade(alpha)
	}
}

// --- the loop ---

// Run drives ticks at the configured rate until ctx is cancelled. Effect
// phase advances by the fixed tick interval, not wall time, so a late tick
// slows playback instead of skipping.
func (e *Engine) Run(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / e.fps)
	dt := 1 / e.fps
	e.log.Info().Float64("fps", e.fps).Dur("period", period).Msg("render loop started")

	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("render loop stopped")
			return ctx.Err()
		case <-tick.C:
			e.Tick(ctx, dt, period)
		}
	}
}

type layerPlan struct {
	layer *device.Layer
	a, b  []render.Color
}

type segPlan struct {
	dev    *device.Device
	seg    *device.Segment
	out    []render.Color
	direct bool // sole opaque steady layer rendered straight into out
	layers []layerPlan
	failed bool
}

// Tick runs one full frame. Exported so tests can step the engine without
// the ticker.
func (e *Engine) Tick(ctx context.Context, dt float64, period time.Duration) {
	start := time.Now()

	e.drainMutations()

	for _, p := range e.players {
		p.Advance(dt)
	}

	// Advance each referenced instance exactly once per tick, however many
	// layers share it.
	active := map[*render.Instance]struct{}{}
	for _, d := range e.reg.Devices() {
		for _, s := range d.Segments() {
			for _, l := range s.Layers() {
				l.AdvanceFade(dt)
				if in := l.Active(); in != nil {
					active[in] = struct{}{}
				}
				if in := l.Next(); in != nil {
					active[in] = struct{}{}
				}
			}
		}
	}
	for in := range active {
		in.Advance(dt)
	}

	e.buf.Begin()
	e.applyClears()

	e.scratchN = 0
	var (
		plans  []*segPlan
		jobs   []compute.Job
		jobSeg []*segPlan
	)
	for _, d := range e.reg.Devices() {
		for _, s := range d.Segments() {
			pl := e.planSegment(d, s)
			if pl == nil {
				continue
			}
			plans = append(plans, pl)
			for _, lp := range pl.layers {
				l := lp.layer
				if in := l.Active(); in != nil && lp.a != nil {
					jobs = append(jobs, jobFor(in, lp.a, s.Len()))
					jobSeg = append(jobSeg, pl)
				}
				if in := l.Next(); in != nil && lp.b != nil {
					jobs = append(jobs, jobFor(in, lp.b, s.Len()))
					jobSeg = append(jobSeg, pl)
				}
			}
		}
	}

	if len(jobs) > 0 {
		tctx, cancel := context.WithDeadline(ctx, start.Add(period*9/10))
		results := e.disp.Fill(tctx, jobs)
		cancel()
		for _, r := range results {
			if r.Err != nil {
				pl := jobSeg[r.Job]
				if !pl.failed {
					pl.failed = true
					e.log.Warn().Str("segment", pl.seg.ID).Err(r.Err).Msg("segment fill failed, holding prior frame")
				}
			}
		}
	}

	for _, pl := range plans {
		if pl.failed {
			e.buf.Restore(pl.dev.ID, pl.seg.Start, pl.seg.End)
			continue
		}
		e.composite(pl)
		if br := pl.dev.Brightness; br < 1 {
			for i := range pl.out {
				pl.out[i] = render.Scale(pl.out[i], br)
			}
		}
	}

	e.buf.Commit()
	snap := e.buf.Snapshot()
	e.fanout.Write(snap)

	elapsed := time.Since(start)
	e.statsMu.Lock()
	e.stats.Ticks++
	e.stats.Gen = snap.Gen
	e.stats.LEDs = len(snap.Colors)
	e.stats.LastTick = elapsed
	if elapsed > period {
		e.stats.Misses++
		e.statsMu.Unlock()
		e.log.Warn().Dur("elapsed", elapsed).Dur("period", period).Msg("tick deadline missed")
		return
	}
	e.statsMu.Unlock()
}

func (e *Engine) drainMutations() {
	for {
		select {
		case m := <-e.mutations:
			if err := m.apply(); err != nil {
				e.log.Warn().Str("op", m.op).Err(err).Msg("command rejected")
			}
		default:
			return
		}
	}
}

// applyClears blacks out regions of segments removed since the last tick.
// Direct back-frame writes, not claims: the LEDs may legally be re-claimed
// by a segment added in the same boundary.
func (e *Engine) applyClears() {
	for _, c := range e.clears {
		region := e.buf.DeviceRegion(c.device)
		if region == nil {
			continue
		}
		for i := c.start; i <= c.end && i < len(region); i++ {
			region[i] = render.Color{}
		}
	}
	e.clears = e.clears[:0]
}

// planSegment claims the segment's region and lays out the scratch needed
// to fill and composite its layer stack this tick.
func (e *Engine) planSegment(d *device.Device, s *device.Segment) *segPlan {
	out, err := e.buf.Region(d.ID, s.Start, s.End)
	if err != nil {
		e.log.Error().Str("segment", s.ID).Err(err).Msg("region claim failed")
		return nil
	}
	pl := &segPlan{dev: d, seg: s, out: out}

	stack := s.Layers()
	base := stack[0]
	if len(stack) == 1 && !base.Fading() && base.Opacity() >= 1 {
		pl.direct = true
		if base.Active() == nil {
			for i := range out {
				out[i] = render.Color{}
			}
			return pl
		}
		pl.layers = []layerPlan{{layer: base, a: out}}
		return pl
	}

	n := s.Len()
	for _, l := range stack {
		lp := layerPlan{layer: l}
		if l.Active() != nil || l.Fading() {
			lp.a = e.getScratch(n)
			if l.Active() == nil {
				zero(lp.a)
			}
		}
		if l.Fading() {
			lp.b = e.getScratch(n)
			if l.Next() == nil {
				zero(lp.b)
			}
		}
		pl.layers = append(pl.layers, lp)
	}
	return pl
}

// composite folds the filled layer scratch down into the claimed region,
// base first, overlays painted over it in stack order.
func (e *Engine) composite(pl *segPlan) {
	if pl.direct {
		return
	}
	zero(pl.out)
	for _, lp := range pl.layers {
		l := lp.layer
		if lp.a == nil {
			continue // empty overlay contributes nothing
		}
		src := lp.a
		if l.Fading() && lp.b != nil {
			switch l.Transition().Kind {
			case render.Fade:
				render.FadeMix(lp.a, lp.a, lp.b, l.Alpha())
			default:
				render.Mix(lp.a, lp.a, lp.b, l.Alpha())
			}
		}
		render.Over(pl.out, src, l.Opacity())
	}
}

func jobFor(in *render.Instance, dst []render.Color, total int) compute.Job {
	return compute.Job{
		Dst:    dst,
		Off:    0,
		Total:  total,
		Kind:   in.Kind(),
		Phase:  in.Phase(),
		Params: in.Snapshot(),
		Render: in.Renderer(),
	}
}

func (e *Engine) getScratch(n int) []render.Color {
	if e.scratchN < len(e.scratchPool) {
		s := e.scratchPool[e.scratchN]
		if cap(s) < n {
			s = make([]render.Color, n)
			e.scratchPool[e.scratchN] = s
		}
		e.scratchN++
		return s[:n]
	}
	s := make([]render.Color, n)
	e.scratchPool = append(e.scratchPool, s)
	e.scratchN++
	return s
}

func zero(cs []render.Color) {
	for i := range cs {
		cs[i] = render.Color{}
	}
}
