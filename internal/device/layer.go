package device

import "github.com/coreman2200/tapelight/internal/render"

// Layer holds one effect binding on a segment plus its transition state.
// A transition is either engine-paced (StartFade: the render loop advances
// alpha by dt/length each tick) or externally paced (Arm + SetCrossfade:
// the timeline scheduler owns alpha). Both converge the same way: alpha
// reaching 1 commits the incoming instance as the sole binding.
type Layer struct {
	Transparency float64 // 0 = opaque

	active *render.Instance
	next   *render.Instance

	fading  bool
	auto    bool
	tr      render.Transition
	elapsed float64
	alpha   float64
}

func (l *Layer) Active() *render.Instance      { return l.active }
func (l *Layer) Next() *render.Instance        { return l.next }
func (l *Layer) Alpha() float64                { return l.alpha }
func (l *Layer) Fading() bool                  { return l.fading }
func (l *Layer) Transition() render.Transition { return l.tr }

// Opacity is the composited weight of this layer.
func (l *Layer) Opacity() float64 { return 1 - l.Transparency }

// Bind swaps the binding instantly (cut semantics).
func (l *Layer) Bind(inst *render.Instance) {
	l.active = inst
	l.next = nil
	l.fading = false
	l.auto = false
	l.alpha = 0
	l.elapsed = 0
}

// StartFade begins an engine-paced transition to inst. A cut, a zero-length
// window, or an empty outgoing binding swaps immediately.
func (l *Layer) StartFade(inst *render.Instance, tr render.Transition) {
	if tr.Kind == render.Cut || tr.Length <= 0 || l.active == nil {
		l.Bind(inst)
		return
	}
	l.next = inst
	l.tr = tr
	l.fading = true
	l.auto = true
	l.alpha = 0
	l.elapsed = 0
}

// Arm prepares inst for an externally paced transition.
func (l *Layer) Arm(inst *render.Instance, tr render.Transition) {
	if l.active == nil {
		l.Bind(inst)
		return
	}
	l.next = inst
	l.tr = tr
	l.fading = true
	l.auto = false
	l.alpha = 0
	l.elapsed = 0
}

// SetCrossfade sets the mix alpha in [0,1]; 1 commits the armed instance.
func (l *Layer) SetCrossfade(alpha float64) {
	if !l.fading {
		return
	}
	switch {
	case alpha >= 1:
		l.commit()
	case alpha <= 0:
		l.alpha = 0
	default:
		l.alpha = alpha
	}
}

// AdvanceFade progresses an engine-paced transition by dt seconds.
func (l *Layer) AdvanceFade(dt float64) {
	if !l.fading || !l.auto {
		return
	}
	l.elapsed += dt
	if l.elapsed >= l.tr.Length {
		l.commit()
		return
	}
	l.alpha = l.elapsed / l.tr.Length
}

func (l *Layer) commit() {
	if l.next != nil {
		l.active = l.next
	}
	l.next = nil
	l.fading = false
	l.auto = false
	l.alpha = 0
	l.elapsed = 0
}
