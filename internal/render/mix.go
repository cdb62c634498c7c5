package render

// TransitionKind selects how a segment moves from one effect to the next.
type TransitionKind string

const (
	// Cut swaps instantly at the tick boundary.
	Cut TransitionKind = "cut"
	// Fade dims the outgoing effect to black, then raises the incoming one.
	Fade TransitionKind = "fade"
	// Crossfade linearly blends outgoing and incoming per LED.
	Crossfade TransitionKind = "crossfade"
)

// Transition describes the window between two effect bindings.
type Transition struct {
	Kind   TransitionKind
	Length float64 // seconds; <= 0 behaves as a cut
}

// Mix blends two rendered buffers into dst by alpha in [0,1]. At 0 the
// output equals a exactly, at 1 it equals b exactly.
func Mix(dst, a, b []Color, alpha float64) {
	if alpha <= 0 {
		copy(dst, a)
		return
	}
	if alpha >= 1 {
		copy(dst, b)
		return
	}
	for i := range dst {
		dst[i] = Lerp(a[i], b[i], alpha)
	}
}

// FadeMix implements the fade transition: the outgoing buffer scales to
// black over the first half of the window, the incoming one scales up from
// black over the second half.
func FadeMix(dst, a, b []Color, alpha float64) {
	switch {
	case alpha <= 0:
		copy(dst, a)
	case alpha < 0.5:
		f := 1 - 2*alpha
		for i := range dst {
			dst[i] = Scale(a[i], f)
		}
	case alpha >= 1:
		copy(dst, b)
	default:
		f := 2*alpha - 1
		for i := range dst {
			dst[i] = Scale(b[i], f)
		}
	}
}

// Over composites src onto dst with the given opacity (painter's order:
// callers apply layers bottom-up, so stacked cues blend in declaration
// order).
func Over(dst, src []Color, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity >= 1 {
		copy(dst, src)
		return
	}
	for i := range dst {
		dst[i] = Lerp(dst[i], src[i], opacity)
	}
}
