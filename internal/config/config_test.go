package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
engine:
  fps: 30
  workers: 4
  accel: true
osc:
  listen: ":9100"
preview:
  listen: ":8080"
devices:
  - id: tape1
    addr: /dev/spidev0.0
    led_count: 300
    brightness: 0.9
segments:
  - id: main
    device: tape1
    start: 0
    end: 149
    position: {x: 1.5, y: 0}
    transition: {kind: crossfade, length: 2}
  - id: tail
    device: tape1
    start: 150
    end: 299
effects:
  - id: rainbow1
    kind: rainbow
    params:
      speed: 25
timelines:
  - id: show
    targets: [main]
    loop: all
    autoplay: true
    cues:
      - {effect: rainbow1, duration: 10, transition: {kind: fade, length: 1}}
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Engine.FPS != 30 || !c.Engine.Accel {
		t.Fatalf("engine section wrong: %+v", c.Engine)
	}
	if c.OSC.Listen != ":9100" {
		t.Fatalf("osc listen wrong: %q", c.OSC.Listen)
	}
	if len(c.Devices) != 1 || c.Devices[0].LEDCount != 300 {
		t.Fatalf("devices wrong: %+v", c.Devices)
	}
	if len(c.Segments) != 2 || c.Segments[0].Transition.Kind != "crossfade" {
		t.Fatalf("segments wrong: %+v", c.Segments)
	}
	if c.Segments[0].Position.X != 1.5 {
		t.Fatalf("position wrong: %+v", c.Segments[0].Position)
	}
	if c.Effects[0].Params["speed"] != 25 {
		t.Fatalf("effect params wrong: %+v", c.Effects[0])
	}
	if len(c.Timelines) != 1 || !c.Timelines[0].Autoplay || c.Timelines[0].Cues[0].Transition.Length != 1 {
		t.Fatalf("timelines wrong: %+v", c.Timelines)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, Default()); err != nil {
		t.Fatalf("save: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	d := Default()
	if len(c.Devices) != len(d.Devices) || c.Devices[0].LEDCount != d.Devices[0].LEDCount {
		t.Fatalf("devices did not round-trip: %+v", c.Devices)
	}
	if len(c.Timelines) != 1 || len(c.Timelines[0].Cues) != 2 {
		t.Fatalf("timelines did not round-trip: %+v", c.Timelines)
	}
}

func TestValidateCatchesBrokenReferences(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Config)
	}{
		{"segment-unknown-device", func(c *Config) { c.Segments[0].Device = "ghost" }},
		{"duplicate-device", func(c *Config) { c.Devices = append(c.Devices, c.Devices[0]) }},
		{"duplicate-segment", func(c *Config) { c.Segments = append(c.Segments, c.Segments[0]) }},
		{"zero-leds", func(c *Config) { c.Devices[0].LEDCount = 0 }},
		{"timeline-unknown-target", func(c *Config) { c.Timelines[0].Targets = []string{"ghost"} }},
		{"cue-unknown-effect", func(c *Config) { c.Timelines[0].Cues[0].Effect = "ghost" }},
	}
	for _, tc := range cases {
		c := Default()
		tc.edit(c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected a validation error", tc.name)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("demo config should validate: %v", err)
	}
}
