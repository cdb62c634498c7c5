package sequence

import "github.com/coreman2200/tapelight/internal/render"

// Cue binds an effect instance (by identifier, so the control protocol can
// hot-swap parameters without disturbing timeline position), how long it
// holds, and the transition into it.
type Cue struct {
	EffectID string
	// Duration in seconds; <= 0 means hold until replaced.
	Duration   float64
	Transition render.Transition
}

// LoopMode is the policy at timeline end.
type LoopMode string

const (
	LoopNone LoopMode = "none"
	LoopAll  LoopMode = "all"
	LoopLast LoopMode = "last"
)

// Timeline is an ordered cue list driving one or more target segments.
type Timeline struct {
	ID      string
	Targets []string // segment identifiers
	Loop    LoopMode
	Cues    []Cue
}

// State enumerates the player's phases. At most one cue is active or
// transitioning at any instant.
type State string

const (
	Idle          State = "idle"
	Playing       State = "playing"
	Transitioning State = "transitioning"
	Paused        State = "paused"
)

// Hooks are the player's only way of touching render state. The engine
// wires them to segment layers; the player itself never sees a buffer.
type Hooks struct {
	// Bind swaps the target's binding instantly.
	Bind func(target, effectID string)
	// Arm prepares the next effect for a paced transition.
	Arm func(target, effectID string, tr render.Transition)
	// SetCrossfade drives the mix alpha in [0,1]; 1 commits.
	SetCrossfade func(target string, alpha float64)
}
