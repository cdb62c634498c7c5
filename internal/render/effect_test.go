package render

import (
	"errors"
	"testing"
)

func TestHSVPrimaries(t *testing.T) {
	if c := HSV(0, 1, 1); c != (Color{255, 0, 0}) {
		t.Fatalf("hue 0 should be red, got %#v", c)
	}
	if c := HSV(1.0/3.0, 1, 1); c.G != 255 || c.R > 1 {
		t.Fatalf("hue 1/3 should be green, got %#v", c)
	}
	if c := HSV(2.0/3.0, 1, 1); c.B != 255 || c.G != 0 {
		t.Fatalf("hue 2/3 should be blue, got %#v", c)
	}
	// hue wraps
	if HSV(1.5, 1, 1) != HSV(0.5, 1, 1) {
		t.Fatalf("hue should wrap at 1")
	}
}

func TestLerpMidpoint(t *testing.T) {
	got := Lerp(Color{255, 0, 0}, Color{0, 255, 0}, 0.5)
	if got != (Color{127, 127, 0}) {
		t.Fatalf("midpoint of red/green should be (127,127,0), got %#v", got)
	}
	if Lerp(Color{10, 20, 30}, Color{200, 100, 50}, 0) != (Color{10, 20, 30}) {
		t.Fatalf("f=0 should return a exactly")
	}
}

func TestColorPackRoundTrip(t *testing.T) {
	c := NewColor(0xAB3B88)
	if c != (Color{0xAB, 0x3B, 0x88}) {
		t.Fatalf("unpack wrong: %#v", c)
	}
	if c.RGB() != 0xAB3B88 {
		t.Fatalf("repack wrong: %06x", c.RGB())
	}
}

func TestRainbowReferenceAndPeriodicity(t *testing.T) {
	// position 0 at phase 0 is pure red
	if c := RainbowAt(0, 300, 0, 1, 1, 1); c != (Color{255, 0, 0}) {
		t.Fatalf("rainbow origin should be red, got %#v", c)
	}
	// one full period of phase returns every LED to its color; allow one
	// count per channel for float rounding at the truncation edge
	near := func(a, b Color) bool {
		d := func(x, y uint8) int {
			n := int(x) - int(y)
			if n < 0 {
				n = -n
			}
			return n
		}
		return d(a.R, b.R) <= 1 && d(a.G, b.G) <= 1 && d(a.B, b.B) <= 1
	}
	const total = 60
	for _, cycles := range []float64{1, 2} {
		period := float64(total) / cycles
		for i := 0; i < total; i++ {
			a := RainbowAt(i, total, 0, 1, 1, cycles)
			b := RainbowAt(i, total, period, 1, 1, cycles)
			if !near(a, b) {
				t.Fatalf("cycles=%v led=%d: %#v != %#v after one period", cycles, i, a, b)
			}
		}
	}
}

func TestRainbowChunkIndependence(t *testing.T) {
	// rendering [0,100) in one call or as two offset chunks is identical
	whole := make([]Color, 100)
	lo := make([]Color, 40)
	hi := make([]Color, 60)
	k, _ := DefaultRegistry().Get("rainbow")
	p := Params{"speed": 10, "saturation": 1, "brightness": 1, "cycles": 3}
	k.Render(whole, 0, 100, 17.5, p)
	k.Render(lo, 0, 100, 17.5, p)
	k.Render(hi, 40, 100, 17.5, p)
	for i := range lo {
		if whole[i] != lo[i] {
			t.Fatalf("lo chunk differs at %d", i)
		}
	}
	for i := range hi {
		if whole[40+i] != hi[i] {
			t.Fatalf("hi chunk differs at %d", i)
		}
	}
}

func TestPulseWaveform(t *testing.T) {
	// duty=1, min=0: dark at phase 0, full at phase 0.5
	if c := PulseAt(0, 0x00FF00, 1, 0); c != (Color{}) {
		t.Fatalf("pulse trough should be black, got %#v", c)
	}
	if c := PulseAt(0.5, 0x00FF00, 1, 0); c != (Color{0, 255, 0}) {
		t.Fatalf("pulse peak should be full green, got %#v", c)
	}
	// min brightness floors the trough
	if c := PulseAt(0, 0x00FF00, 1, 0.2); c != (Color{0, 51, 0}) {
		t.Fatalf("floored trough should be (0,51,0), got %#v", c)
	}
	// phase wraps
	if PulseAt(2.3, 0x00FF00, 0.5, 0.1) != PulseAt(0.3, 0x00FF00, 0.5, 0.1) {
		t.Fatalf("pulse should be periodic in phase")
	}
}

func TestChaseWrap(t *testing.T) {
	blue := Color{0, 0, 255}
	// width 5, gap 15: LEDs 0-4 lit, 5-19 dark, pattern repeats at 20
	for i := 0; i < 5; i++ {
		if ChaseAt(i, 100, 0, 5, 15, 0x0000FF, false) != blue {
			t.Fatalf("led %d should be lit", i)
		}
	}
	for i := 5; i < 20; i++ {
		if ChaseAt(i, 100, 0, 5, 15, 0x0000FF, false) != (Color{}) {
			t.Fatalf("led %d should be dark", i)
		}
	}
	if ChaseAt(20, 100, 0, 5, 15, 0x0000FF, false) != blue {
		t.Fatalf("pattern should repeat at led 20")
	}
	// advancing phase by one moves the window by one
	if ChaseAt(5, 100, 1, 5, 15, 0x0000FF, false) != blue {
		t.Fatalf("window should advance with phase")
	}
	if ChaseAt(0, 100, 1, 5, 15, 0x0000FF, false) != (Color{}) {
		t.Fatalf("led 0 should fall out of the advanced window")
	}
}

func TestChaseBounce(t *testing.T) {
	blue := Color{0, 0, 255}
	lit := func(i int, phase float64) bool {
		return ChaseAt(i, 10, phase, 3, 0, 0x0000FF, true) == blue
	}
	// window starts at the low edge
	if !lit(0, 0) || !lit(2, 0) || lit(3, 0) {
		t.Fatalf("window should cover 0..2 at phase 0")
	}
	// at the far edge (span = 7) the window covers 7..9
	if !lit(7, 7) || !lit(9, 7) || lit(6, 7) {
		t.Fatalf("window should cover 7..9 at phase 7")
	}
	// past the edge it reflects instead of wrapping
	if !lit(6, 8) || lit(9, 8) {
		t.Fatalf("window should reflect to 6..8 at phase 8")
	}
}

func TestInstanceDefaultsAndClamp(t *testing.T) {
	r := DefaultRegistry()
	in, err := r.NewInstance("rainbow", map[string]float64{"speed": 1000})
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	if v := in.Param("speed"); v != 100 {
		t.Fatalf("out-of-range speed should clamp to 100, got %v", v)
	}
	if v := in.Param("cycles"); v != 1 {
		t.Fatalf("cycles should default to 1, got %v", v)
	}
	if err := in.SetParam("speed", -5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v := in.Param("speed"); v != 0 {
		t.Fatalf("negative speed should clamp to 0, got %v", v)
	}
	if err := in.SetParam("bogus", 1); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
	if _, err := r.NewInstance("sparkle", nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestInstancePhaseAccumulator(t *testing.T) {
	r := DefaultRegistry()
	in, _ := r.NewInstance("rainbow", map[string]float64{"speed": 10})
	for i := 0; i < 60; i++ {
		in.Advance(1.0 / 60)
	}
	if p := in.Phase(); p < 9.999 || p > 10.001 {
		t.Fatalf("phase after 1s at speed 10 should be ~10, got %v", p)
	}
	// rate follows a live param write
	in.SetParam("speed", 0)
	in.Advance(1)
	if p := in.Phase(); p > 10.001 {
		t.Fatalf("phase should hold at speed 0, got %v", p)
	}
}

func TestMixEndpointsAndMidpoint(t *testing.T) {
	n := 8
	a := make([]Color, n)
	b := make([]Color, n)
	dst := make([]Color, n)
	for i := range a {
		a[i] = Color{255, 0, 0}
		b[i] = Color{0, 255, 0}
	}
	Mix(dst, a, b, 0)
	if dst[0] != a[0] {
		t.Fatalf("alpha 0 should equal outgoing exactly, got %#v", dst[0])
	}
	Mix(dst, a, b, 1)
	if dst[0] != b[0] {
		t.Fatalf("alpha 1 should equal incoming exactly, got %#v", dst[0])
	}
	Mix(dst, a, b, 0.5)
	if dst[0] != (Color{127, 127, 0}) {
		t.Fatalf("alpha 0.5 should be the midpoint, got %#v", dst[0])
	}
}

func TestFadeMixDipsThroughBlack(t *testing.T) {
	a := []Color{{200, 0, 0}}
	b := []Color{{0, 200, 0}}
	dst := make([]Color, 1)
	FadeMix(dst, a, b, 0.25)
	if dst[0] != (Color{100, 0, 0}) {
		t.Fatalf("outgoing should be half dark at 0.25, got %#v", dst[0])
	}
	FadeMix(dst, a, b, 0.5)
	if dst[0] != (Color{}) {
		t.Fatalf("fade should hit black at 0.5, got %#v", dst[0])
	}
	FadeMix(dst, a, b, 0.75)
	if dst[0] != (Color{0, 100, 0}) {
		t.Fatalf("incoming should be half up at 0.75, got %#v", dst[0])
	}
	FadeMix(dst, a, b, 1)
	if dst[0] != b[0] {
		t.Fatalf("alpha 1 should equal incoming, got %#v", dst[0])
	}
}

func TestOverCompositing(t *testing.T) {
	dst := []Color{{100, 100, 100}}
	Over(dst, []Color{{0, 0, 0}}, 0)
	if dst[0] != (Color{100, 100, 100}) {
		t.Fatalf("opacity 0 should leave dst alone")
	}
	Over(dst, []Color{{200, 0, 0}}, 1)
	if dst[0] != (Color{200, 0, 0}) {
		t.Fatalf("opacity 1 should replace dst")
	}
	Over(dst, []Color{{0, 0, 0}}, 0.5)
	if dst[0] != (Color{100, 0, 0}) {
		t.Fatalf("half-opacity black should halve dst, got %#v", dst[0])
	}
}
