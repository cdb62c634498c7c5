package compute

import (
	"context"

	"github.com/coreman2200/tapelight/internal/render"
)

// KernelBackend is the in-process accelerated path: instead of the generic
// per-kind render functions it runs monomorphic loops ("compiled kernels")
// with every per-LED invariant hoisted out. Each kernel calls the same
// exported per-LED functions as the reference path, so its output is
// bit-identical. A GPU backend slotting into the same interface would be
// held to the same bar.
//
// Kernels check ctx between strides so an overrunning fill is abandoned
// inside the frame deadline rather than stalling the loop.
type KernelBackend struct{}

const kernelStride = 4096

func NewKernelBackend() *KernelBackend { return &KernelBackend{} }

func (k *KernelBackend) Name() string { return "kernel" }
func (k *KernelBackend) Init() error  { return nil }
func (k *KernelBackend) Close()       {}

func (k *KernelBackend) CanRender(kind string) bool {
	switch kind {
	case "rainbow", "pulse", "chase":
		return true
	}
	return false
}

func (k *KernelBackend) Fill(ctx context.Context, job Job) error {
	switch job.Kind {
	case "rainbow":
		return rainbowKernel(ctx, job)
	case "pulse":
		return pulseKernel(ctx, job)
	case "chase":
		return chaseKernel(ctx, job)
	}
	return ErrFallback
}

func rainbowKernel(ctx context.Context, job Job) error {
	sat := job.Params["saturation"]
	val := job.Params["brightness"]
	cycles := job.Params["cycles"]
	dst, off, total, phase := job.Dst, job.Off, job.Total, job.Phase
	for base := 0; base < len(dst); base += kernelStride {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := base + kernelStride
		if hi > len(dst) {
			hi = len(dst)
		}
		for i := base; i < hi; i++ {
			dst[i] = render.RainbowAt(off+i, total, phase, sat, val, cycles)
		}
	}
	return nil
}

func pulseKernel(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := render.PulseAt(job.Phase, job.Params["color"], job.Params["duty"], job.Params["min_brightness"])
	dst := job.Dst
	for base := 0; base < len(dst); base += kernelStride {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := base + kernelStride
		if hi > len(dst) {
			hi = len(dst)
		}
		for i := base; i < hi; i++ {
			dst[i] = c
		}
	}
	return nil
}

func chaseKernel(ctx context.Context, job Job) error {
	width := job.Params["width"]
	gap := job.Params["gap"]
	rgb := job.Params["color"]
	bounce := job.Params["bounce"] >= 0.5
	dst, off, total, phase := job.Dst, job.Off, job.Total, job.Phase
	for base := 0; base < len(dst); base += kernelStride {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := base + kernelStride
		if hi > len(dst) {
			hi = len(dst)
		}
		for i := base; i < hi; i++ {
			dst[i] = render.ChaseAt(off+i, total, phase, width, gap, rgb, bounce)
		}
	}
	return nil
}
