package sequence

import (
	"fmt"
	"testing"

	"github.com/coreman2200/tapelight/internal/render"
)

func loggedHooks(log *[]string) Hooks {
	return Hooks{
		Bind: func(target, effectID string) {
			*log = append(*log, "bind:"+target+"/"+effectID)
		},
		Arm: func(target, effectID string, tr render.Transition) {
			*log = append(*log, fmt.Sprintf("arm:%s/%s/%s", target, effectID, tr.Kind))
		},
		SetCrossfade: func(target string, alpha float64) {
			if alpha == 1 {
				*log = append(*log, "commit:"+target)
			}
		},
	}
}

func twoCueTimeline() Timeline {
	return Timeline{
		ID:      "show",
		Targets: []string{"s1"},
		Cues: []Cue{
			{EffectID: "A", Duration: 4, Transition: render.Transition{Kind: render.Cut}},
			{EffectID: "B", Duration: 4, Transition: render.Transition{Kind: render.Crossfade, Length: 2}},
		},
	}
}

func TestLoadValidation(t *testing.T) {
	p := NewPlayer(Hooks{})
	if err := p.Load(Timeline{ID: "x"}); err == nil {
		t.Fatalf("empty timeline should be rejected")
	}
	if err := p.Load(Timeline{ID: "x", Cues: []Cue{{EffectID: "A", Duration: -1}}}); err == nil {
		t.Fatalf("negative duration should be rejected")
	}
	if err := p.Load(Timeline{ID: "x", Cues: []Cue{
		{EffectID: "A", Duration: 0},
		{EffectID: "B", Duration: 1},
	}}); err == nil {
		t.Fatalf("hold cue anywhere but last should be rejected")
	}
	if err := p.Load(Timeline{ID: "x", Cues: []Cue{
		{EffectID: "A", Duration: 1},
		{EffectID: "B", Duration: 0},
	}}); err != nil {
		t.Fatalf("final hold cue should load: %v", err)
	}
}

func TestPlayerTransitionsBetweenCues(t *testing.T) {
	var log []string
	p := NewPlayer(loggedHooks(&log))
	if err := p.Load(twoCueTimeline()); err != nil {
		t.Fatalf("load: %v", err)
	}
	p.Start()
	if p.State() != Playing {
		t.Fatalf("expected Playing after start, got %v", p.State())
	}

	p.Advance(3.9) // still inside cue A
	if p.State() != Playing || p.CueIndex() != 0 {
		t.Fatalf("should still be in cue 0")
	}

	p.Advance(0.2) // cue A elapses, B's crossfade window opens
	if p.State() != Transitioning {
		t.Fatalf("expected Transitioning, got %v", p.State())
	}

	p.Advance(1.0) // mid-window
	if p.State() != Transitioning {
		t.Fatalf("window should last 2s")
	}

	p.Advance(1.1) // window elapses, B commits
	if p.State() != Playing || p.CueIndex() != 1 {
		t.Fatalf("expected Playing cue 1, got %v cue %d", p.State(), p.CueIndex())
	}

	p.Advance(4) // cue B elapses; no next cue, no loop
	if p.State() != Idle {
		t.Fatalf("expected Idle at timeline end, got %v", p.State())
	}

	want := []string{"bind:s1/A", "arm:s1/B/crossfade", "commit:s1"}
	if len(log) != len(want) {
		t.Fatalf("hook log %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("hook log %v, want %v", log, want)
		}
	}
}

func TestLoopAllReturnsToFirstCue(t *testing.T) {
	var log []string
	p := NewPlayer(loggedHooks(&log))
	tl := twoCueTimeline()
	tl.Loop = LoopAll
	p.Load(tl)
	p.Start()

	p.Advance(4)   // into B's window
	p.Advance(2.5) // B committed
	p.Advance(4)   // B elapses, loops to A (cut)
	if p.State() != Playing || p.CueIndex() != 0 {
		t.Fatalf("loop-all should re-enter cue 0, got %v cue %d", p.State(), p.CueIndex())
	}
	last := log[len(log)-1]
	if last != "bind:s1/A" {
		t.Fatalf("loop re-entry should rebind A, log tail %q", last)
	}
}

func TestLoopLastRepeatsFinalCue(t *testing.T) {
	p := NewPlayer(Hooks{})
	tl := twoCueTimeline()
	tl.Loop = LoopLast
	p.Load(tl)
	p.Start()

	p.Advance(4)
	p.Advance(2.5)
	for i := 0; i < 5; i++ {
		p.Advance(4.5)
		if p.State() == Idle {
			t.Fatalf("loop-last should never go idle")
		}
		// re-entering the same cue crossfades into itself then plays on
		p.Advance(2.5)
		if p.CueIndex() != 1 {
			t.Fatalf("loop-last should stay on the final cue, got %d", p.CueIndex())
		}
	}
}

func TestHoldCueNeverElapses(t *testing.T) {
	p := NewPlayer(Hooks{})
	p.Load(Timeline{ID: "x", Targets: []string{"s1"}, Cues: []Cue{
		{EffectID: "A", Duration: 0},
	}})
	p.Start()
	p.Advance(1e6)
	if p.State() != Playing || p.CueIndex() != 0 {
		t.Fatalf("hold cue should play forever, got %v", p.State())
	}
}

func TestPauseFreezesTransition(t *testing.T) {
	var log []string
	p := NewPlayer(loggedHooks(&log))
	p.Load(twoCueTimeline())
	p.Start()
	p.Advance(4.5) // inside B's window

	p.Pause()
	if p.State() != Paused {
		t.Fatalf("expected Paused")
	}
	p.Advance(100)
	if p.State() != Paused {
		t.Fatalf("advance while paused should be a no-op")
	}

	p.Resume()
	if p.State() != Transitioning {
		t.Fatalf("resume should return to the transition, got %v", p.State())
	}
	p.Advance(2)
	if p.State() != Playing || p.CueIndex() != 1 {
		t.Fatalf("transition should finish after resume")
	}
}

func TestStopFinishesTransitionAndHolds(t *testing.T) {
	var log []string
	p := NewPlayer(loggedHooks(&log))
	p.Load(twoCueTimeline())
	p.Start()
	p.Advance(4.5) // mid-window

	p.Stop()
	if p.State() != Idle {
		t.Fatalf("expected Idle after stop")
	}
	last := log[len(log)-1]
	if last != "commit:s1" {
		t.Fatalf("stop mid-window should commit the incoming cue, log tail %q", last)
	}
}

func TestSeekBindsCueUnderTarget(t *testing.T) {
	var log []string
	p := NewPlayer(loggedHooks(&log))
	p.Load(twoCueTimeline())
	p.Start()

	p.Seek(5) // 1s into cue B
	if p.CueIndex() != 1 || p.State() != Playing {
		t.Fatalf("seek should land in cue 1 Playing, got cue %d %v", p.CueIndex(), p.State())
	}
	last := log[len(log)-1]
	if last != "bind:s1/B" {
		t.Fatalf("seek should cut to the target cue, log tail %q", last)
	}

	p.Advance(3.5) // 4.5 total into B: elapses at 4, timeline ends
	if p.State() != Idle {
		t.Fatalf("expected Idle after the sought cue elapses, got %v", p.State())
	}
}
