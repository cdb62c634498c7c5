package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/config"
	"github.com/coreman2200/tapelight/internal/led"
)

func TestBuildFromDemoConfig(t *testing.T) {
	e, err := Build(config.Default(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cap := &led.CaptureSink{}
	e.AttachSink(cap, 4)

	if _, err := e.Registry().Device("tape1"); err != nil {
		t.Fatalf("device missing: %v", err)
	}
	if _, err := e.Registry().Segment("main"); err != nil {
		t.Fatalf("segment missing: %v", err)
	}
	if _, ok := e.Effect("rainbow1"); !ok {
		t.Fatalf("effect missing")
	}

	// the autoplay timeline should be rendering already
	for i := 0; i < 3; i++ {
		e.Tick(context.Background(), 1.0/60, time.Second/60)
	}
	e.Close()
	snap, writes := cap.Last()
	if writes != 3 {
		t.Fatalf("expected 3 frames, got %d", writes)
	}
	lit := false
	for _, c := range snap.Colors {
		if c.R|c.G|c.B != 0 {
			lit = true
			break
		}
	}
	if !lit {
		t.Fatalf("autoplay rainbow should light the strip")
	}
}

func TestBuildRejectsBadTransition(t *testing.T) {
	cfg := config.Default()
	cfg.Segments[0].Transition.Kind = "wipe"
	if _, err := Build(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("unknown transition kind should fail the build")
	}
}
