package render

import "math"

// Built-in effect kinds. The per-LED functions (RainbowAt, PulseAt, ChaseAt)
// are exported so alternate compute backends can produce bit-identical output
// by calling the exact same arithmetic.

func rainbowKind() Kind {
	return Kind{
		Name: "rainbow",
		Schema: Schema{
			"speed":      {Default: 10, Min: 0, Max: 100},
			"saturation": {Default: 1, Min: 0, Max: 1},
			"brightness": {Default: 1, Min: 0, Max: 1},
			"cycles":     {Default: 1, Min: 0.1, Max: 10},
		},
		Rate: func(p Params) float64 { return p["speed"] },
		Render: func(dst []Color, off, total int, phase float64, p Params) {
			sat := p["saturation"]
			val := p["brightness"]
			cycles := p["cycles"]
			for i := range dst {
				dst[i] = RainbowAt(off+i, total, phase, sat, val, cycles)
			}
		},
	}
}

// RainbowAt returns the hue-wheel color of LED i in a total-length segment.
// Phase is in LED positions; one full period is total/cycles positions.
func RainbowAt(i, total int, phase, sat, val, cycles float64) Color {
	h := (float64(i) + phase) / float64(total) * cycles
	return HSV(h, sat, val)
}

func pulseKind() Kind {
	return Kind{
		Name: "pulse",
		Schema: Schema{
			"color":          {Default: 0x00FF00, Min: 0, Max: 0xFFFFFF},
			"frequency":      {Default: 1, Min: 0.1, Max: 10},
			"duty":           {Default: 0.5, Min: 0, Max: 1},
			"min_brightness": {Default: 0.2, Min: 0, Max: 1},
		},
		Rate: func(p Params) float64 { return p["frequency"] },
		Render: func(dst []Color, off, total int, phase float64, p Params) {
			// All LEDs in the segment share phase.
			c := PulseAt(phase, p["color"], p["duty"], p["min_brightness"])
			for i := range dst {
				dst[i] = c
			}
		},
	}
}

// PulseAt returns the shared segment color at the given phase (in periods).
// The waveform is a raised cosine confined to the duty fraction of each
// period, scaled between min brightness and full.
func PulseAt(phase, rgb, duty, min float64) Color {
	base := NewColor(uint32(rgb))
	var w float64
	if duty > 0 {
		ph := phase - math.Floor(phase)
		if ph < duty {
			w = 0.5 - 0.5*math.Cos(2*math.Pi*ph/duty)
		}
	}
	return Scale(base, min+(1-min)*w)
}

func chaseKind() Kind {
	return Kind{
		Name: "chase",
		Schema: Schema{
			"width":  {Default: 5, Min: 1, Max: 100},
			"gap":    {Default: 15, Min: 0, Max: 100},
			"speed":  {Default: 20, Min: 0, Max: 100},
			"color":  {Default: 0x0000FF, Min: 0, Max: 0xFFFFFF},
			"bounce": {Default: 0, Min: 0, Max: 1},
		},
		Rate: func(p Params) float64 { return p["speed"] },
		Render: func(dst []Color, off, total int, phase float64, p Params) {
			width := p["width"]
			gap := p["gap"]
			rgb := p["color"]
			bounce := p["bounce"] >= 0.5
			for i := range dst {
				dst[i] = ChaseAt(off+i, total, phase, width, gap, rgb, bounce)
			}
		},
	}
}

// ChaseAt returns the color of LED i for a chase window at the given phase
// (in LED positions). In wrap mode the window pattern repeats every
// width+gap positions; in bounce mode a single window reflects off both
// segment edges.
func ChaseAt(i, total int, phase, width, gap, rgb float64, bounce bool) Color {
	lit := false
	if bounce {
		span := float64(total) - width
		if span <= 0 {
			lit = true
		} else {
			m := math.Mod(phase, 2*span)
			if m < 0 {
				m += 2 * span
			}
			if m > span {
				m = 2*span - m
			}
			pos := math.Floor(m)
			fi := float64(i)
			lit = fi >= pos && fi < pos+width
		}
	} else {
		period := width + gap
		if period <= 0 {
			return Color{}
		}
		k := math.Mod(float64(i)-math.Floor(phase), period)
		if k < 0 {
			k += period
		}
		lit = k < width
	}
	if !lit {
		return Color{}
	}
	return NewColor(uint32(rgb))
}
