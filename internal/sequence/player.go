package sequence

import (
	"errors"
	"fmt"

	"github.com/coreman2200/tapelight/internal/render"
)

// ErrEmptyTimeline is returned when loading a timeline without cues.
var ErrEmptyTimeline = errors.New("sequence: timeline has no cues")

// Player advances one timeline with the render clock. Advance is called
// once per tick by the engine with the fixed tick delta; players never run
// their own goroutines, so pausing the loop pauses every timeline with it.
type Player struct {
	state State
	tl    Timeline
	hooks Hooks

	idx     int     // current cue
	elapsed float64 // time within current cue

	pending      int // cue being transitioned into
	transLen     float64
	transElapsed float64
	pausedFrom   State
}

func NewPlayer(h Hooks) *Player {
	return &Player{state: Idle, hooks: h, pending: -1}
}

// Load validates and installs a timeline, resetting to Idle. Cue durations
// must be non-negative and a hold-until-replaced cue (duration 0) may only
// be last.
func (p *Player) Load(tl Timeline) error {
	if len(tl.Cues) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyTimeline, tl.ID)
	}
	for i, c := range tl.Cues {
		if c.Duration < 0 {
			return fmt.Errorf("sequence: timeline %q cue %d: negative duration", tl.ID, i)
		}
		if c.Duration == 0 && i != len(tl.Cues)-1 {
			return fmt.Errorf("sequence: timeline %q cue %d: zero duration only allowed on the final cue", tl.ID, i)
		}
	}
	p.tl = tl
	p.reset()
	return nil
}

func (p *Player) reset() {
	p.state = Idle
	p.idx = 0
	p.elapsed = 0
	p.pending = -1
	p.transElapsed = 0
}

func (p *Player) State() State       { return p.state }
func (p *Player) CueIndex() int      { return p.idx }
func (p *Player) Timeline() Timeline { return p.tl }

// Start binds the first cue and begins playing.
func (p *Player) Start() {
	if p.state != Idle || len(p.tl.Cues) == 0 {
		return
	}
	p.bindAll(p.tl.Cues[0].EffectID)
	p.state = Playing
}

func (p *Player) Pause() {
	if p.state == Playing || p.state == Transitioning {
		p.pausedFrom = p.state
		p.state = Paused
	}
}

func (p *Player) Resume() {
	if p.state == Paused {
		p.state = p.pausedFrom
	}
}

// Stop resets to Idle. The last binding stays in place; the segment holds
// its final colors.
func (p *Player) Stop() {
	if p.state == Transitioning {
		// finish the transition so no layer is left mid-fade
		p.setCrossfadeAll(1)
	}
	p.reset()
}

// Seek jumps to absolute timeline time t, binding the cue under it with a
// cut. Transition windows are skipped over.
func (p *Player) Seek(t float64) {
	if len(p.tl.Cues) == 0 {
		return
	}
	if t < 0 {
		t = 0
	}
	acc := 0.0
	idx := len(p.tl.Cues) - 1
	local := 0.0
	for i, c := range p.tl.Cues {
		if c.Duration <= 0 || t < acc+c.Duration {
			idx = i
			local = t - acc
			break
		}
		acc += c.Duration
	}
	if local < 0 {
		local = 0
	}
	p.idx = idx
	p.elapsed = local
	p.pending = -1
	p.transElapsed = 0
	p.bindAll(p.tl.Cues[idx].EffectID)
	if p.state == Idle {
		p.state = Playing
	} else if p.state == Transitioning {
		p.state = Playing
	}
}

// Advance moves the timeline forward by dt seconds.
func (p *Player) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	switch p.state {
	case Playing:
		p.advancePlaying(dt)
	case Transitioning:
		p.advanceTransition(dt)
	}
}

func (p *Player) advancePlaying(dt float64) {
	cue := p.tl.Cues[p.idx]
	if cue.Duration <= 0 {
		return // hold until replaced
	}
	p.elapsed += dt
	if p.elapsed < cue.Duration {
		return
	}
	next, ok := p.nextIndex()
	if !ok {
		p.state = Idle // hold last binding
		return
	}
	p.beginTransition(next)
}

func (p *Player) beginTransition(next int) {
	cue := p.tl.Cues[next]
	tr := cue.Transition
	if tr.Kind == "" || tr.Length <= 0 {
		p.bindAll(cue.EffectID)
		p.idx = next
		p.elapsed = 0
		p.state = Playing
		return
	}
	p.armAll(cue.EffectID, tr)
	p.pending = next
	p.transLen = tr.Length
	p.transElapsed = 0
	p.state = Transitioning
}

func (p *Player) advanceTransition(dt float64) {
	p.transElapsed += dt
	alpha := p.transElapsed / p.transLen
	if alpha >= 1 {
		p.setCrossfadeAll(1)
		p.idx = p.pending
		p.pending = -1
		p.elapsed = 0
		p.state = Playing
		return
	}
	p.setCrossfadeAll(alpha)
}

func (p *Player) nextIndex() (int, bool) {
	if p.idx+1 < len(p.tl.Cues) {
		return p.idx + 1, true
	}
	switch p.tl.Loop {
	case LoopAll:
		return 0, true
	case LoopLast:
		return p.idx, true
	default:
		return 0, false
	}
}

func (p *Player) bindAll(effectID string) {
	if p.hooks.Bind == nil {
		return
	}
	for _, t := range p.tl.Targets {
		p.hooks.Bind(t, effectID)
	}
}

func (p *Player) armAll(effectID string, tr render.Transition) {
	if p.hooks.Arm == nil {
		return
	}
	for _, t := range p.tl.Targets {
		p.hooks.Arm(t, effectID, tr)
	}
}

func (p *Player) setCrossfadeAll(alpha float64) {
	if p.hooks.SetCrossfade == nil {
		return
	}
	for _, t := range p.tl.Targets {
		p.hooks.SetCrossfade(t, alpha)
	}
}
