package compute

import (
	"context"
	"errors"

	"github.com/coreman2200/tapelight/internal/render"
)

// ErrFallback indicates an accelerated backend cannot handle this job. The
// dispatcher transparently recomputes it on the worker pool.
var ErrFallback = errors.New("compute: falling back to worker pool")

// Job is one segment fill: LEDs [Off, Off+len(Dst)) of a Total-length
// segment, rendered at the instance's current phase. Dst is either a buffer
// region or dispatcher scratch; the caller decides.
type Job struct {
	Dst    []render.Color
	Off    int
	Total  int
	Kind   string
	Phase  float64
	Params render.Params
	Render render.RenderFunc
}

// Backend is an optional accelerated compute path (GPU or compiled-kernel).
// Whatever the backend, its output must be numerically identical to the
// worker pool's for the same inputs: selection is a performance choice,
// never a correctness one.
//
// Backends register via RegisterBackend at startup. A failing Init drops
// the backend and the dispatcher stays on the worker pool.
type Backend interface {
	// Name identifies the backend (e.g. "kernel").
	Name() string

	// Init acquires backend resources. Called once during registration.
	Init() error

	// Close releases backend resources.
	Close()

	// CanRender reports whether the backend has a kernel for the kind.
	// A fast check used to skip offload entirely for unsupported kinds.
	CanRender(kind string) bool

	// Fill renders the job. It must honor ctx: a fill that cannot finish
	// inside the frame deadline returns ctx.Err() and its partial output
	// is discarded. Returning ErrFallback sends the job to the pool.
	Fill(ctx context.Context, job Job) error
}
