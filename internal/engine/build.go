package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/compute"
	"github.com/coreman2200/tapelight/internal/config"
	"github.com/coreman2200/tapelight/internal/render"
	"github.com/coreman2200/tapelight/internal/sequence"
)

// Build constructs an engine from a validated config: dispatcher, devices,
// segments, effect instances and timelines, with autoplay timelines
// started. The caller attaches sinks and calls Run.
func Build(cfg *config.Config, log zerolog.Logger) (*Engine, error) {
	disp := compute.NewDispatcher(compute.Options{
		Workers:         cfg.Engine.Workers,
		SingleThreshold: cfg.Engine.SingleThreshold,
		AccelThreshold:  cfg.Engine.AccelThreshold,
		Logger:          log,
	})
	if cfg.Engine.Accel {
		if err := disp.RegisterBackend(compute.NewKernelBackend()); err != nil {
			log.Warn().Err(err).Msg("accelerated backend unavailable")
		}
	}

	e := New(Options{
		FPS:          cfg.Engine.FPS,
		DebugOverlap: cfg.Engine.DebugOverlap,
		Dispatcher:   disp,
		Logger:       log,
	})

	for _, d := range cfg.Devices {
		if err := e.AddDevice(d.ID, d.Addr, d.LEDCount); err != nil {
			return nil, err
		}
		if d.Brightness > 0 {
			e.SetDeviceBrightness(d.ID, d.Brightness)
		}
	}
	for _, s := range cfg.Segments {
		if err := e.AddSegment(s.ID, s.Device, s.Start, s.End); err != nil {
			return nil, err
		}
		seg, _ := e.reg.Segment(s.ID)
		seg.Position.X, seg.Position.Y = s.Position.X, s.Position.Y
		if s.Transition != nil {
			tr, err := transitionFor(*s.Transition)
			if err != nil {
				return nil, fmt.Errorf("segment %q: %w", s.ID, err)
			}
			seg.DefaultTransition = tr
		}
	}
	for _, ef := range cfg.Effects {
		if err := e.AddEffect(ef.ID, ef.Kind, ef.Params); err != nil {
			return nil, err
		}
	}
	for _, t := range cfg.Timelines {
		tl, err := timelineFor(t)
		if err != nil {
			return nil, err
		}
		if err := e.AddTimeline(tl); err != nil {
			return nil, err
		}
		if t.Autoplay {
			e.PlayTimeline(t.ID)
		}
	}
	return e, nil
}

func transitionFor(t config.Transition) (render.Transition, error) {
	switch t.Kind {
	case "", "cut":
		return render.Transition{Kind: render.Cut}, nil
	case "fade":
		return render.Transition{Kind: render.Fade, Length: t.Length}, nil
	case "crossfade":
		return render.Transition{Kind: render.Crossfade, Length: t.Length}, nil
	}
	return render.Transition{}, fmt.Errorf("unknown transition kind %q", t.Kind)
}

func timelineFor(t config.Timeline) (sequence.Timeline, error) {
	tl := sequence.Timeline{ID: t.ID, Targets: t.Targets}
	switch t.Loop {
	case "", "none":
		tl.Loop = sequence.LoopNone
	case "all":
		tl.Loop = sequence.LoopAll
	case "last":
		tl.Loop = sequence.LoopLast
	default:
		return tl, fmt.Errorf("timeline %q: unknown loop mode %q", t.ID, t.Loop)
	}
	for i, c := range t.Cues {
		tr := render.Transition{Kind: render.Cut}
		if c.Transition != nil {
			var err error
			if tr, err = transitionFor(*c.Transition); err != nil {
				return tl, fmt.Errorf("timeline %q cue %d: %w", t.ID, i, err)
			}
		}
		tl.Cues = append(tl.Cues, sequence.Cue{
			EffectID:   c.Effect,
			Duration:   c.Duration,
			Transition: tr,
		})
	}
	return tl, nil
}
