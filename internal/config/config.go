// Package config loads the daemon's topology, effect and timeline
// configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type EngineCfg struct {
	FPS             float64 `yaml:"fps"`              // default 60
	Workers         int     `yaml:"workers"`          // 0 = NumCPU
	SingleThreshold int     `yaml:"single_threshold"` // 0 = default
	AccelThreshold  int     `yaml:"accel_threshold"`  // 0 = default
	Accel           bool    `yaml:"accel"`            // register the kernel backend
	DebugOverlap    bool    `yaml:"debug_overlap"`
}

type OSCCfg struct {
	Listen string `yaml:"listen"` // e.g. :9000
}

type PreviewCfg struct {
	Listen string `yaml:"listen,omitempty"` // e.g. :8080; empty = off
}

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type Device struct {
	ID         string  `yaml:"id"`
	Addr       string  `yaml:"addr"` // e.g. /dev/spidev0.0 or host:port
	LEDCount   int     `yaml:"led_count"`
	Brightness float64 `yaml:"brightness,omitempty"` // default 1
}

type Transition struct {
	Kind   string  `yaml:"kind"` // cut | fade | crossfade
	Length float64 `yaml:"length,omitempty"`
}

type Segment struct {
	ID         string      `yaml:"id"`
	Device     string      `yaml:"device"`
	Start      int         `yaml:"start"`
	End        int         `yaml:"end"` // inclusive
	Position   Position    `yaml:"position,omitempty"`
	Transition *Transition `yaml:"transition,omitempty"` // default binding transition
}

type Effect struct {
	ID     string             `yaml:"id"`
	Kind   string             `yaml:"kind"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

type Cue struct {
	Effect     string      `yaml:"effect"`
	Duration   float64     `yaml:"duration"` // seconds; 0 = hold
	Transition *Transition `yaml:"transition,omitempty"`
}

type Timeline struct {
	ID       string   `yaml:"id"`
	Targets  []string `yaml:"targets"`
	Loop     string   `yaml:"loop,omitempty"` // none | all | last
	Cues     []Cue    `yaml:"cues"`
	Autoplay bool     `yaml:"autoplay,omitempty"`
}

type Config struct {
	Engine    EngineCfg  `yaml:"engine"`
	OSC       OSCCfg     `yaml:"osc"`
	Preview   PreviewCfg `yaml:"preview,omitempty"`
	Devices   []Device   `yaml:"devices"`
	Segments  []Segment  `yaml:"segments"`
	Effects   []Effect   `yaml:"effects,omitempty"`
	Timelines []Timeline `yaml:"timelines,omitempty"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate catches structural mistakes before any of it reaches the
// registry; range and overlap checks stay with the registry itself.
func (c *Config) Validate() error {
	devs := map[string]bool{}
	for _, d := range c.Devices {
		if d.ID == "" {
			return fmt.Errorf("config: device with empty id")
		}
		if devs[d.ID] {
			return fmt.Errorf("config: duplicate device %q", d.ID)
		}
		if d.LEDCount <= 0 {
			return fmt.Errorf("config: device %q: led_count must be positive", d.ID)
		}
		devs[d.ID] = true
	}
	segs := map[string]bool{}
	for _, s := range c.Segments {
		if s.ID == "" {
			return fmt.Errorf("config: segment with empty id")
		}
		if segs[s.ID] {
			return fmt.Errorf("config: duplicate segment %q", s.ID)
		}
		if !devs[s.Device] {
			return fmt.Errorf("config: segment %q references unknown device %q", s.ID, s.Device)
		}
		segs[s.ID] = true
	}
	effs := map[string]bool{}
	for _, e := range c.Effects {
		if e.ID == "" || e.Kind == "" {
			return fmt.Errorf("config: effect needs id and kind")
		}
		if effs[e.ID] {
			return fmt.Errorf("config: duplicate effect %q", e.ID)
		}
		effs[e.ID] = true
	}
	for _, tl := range c.Timelines {
		if tl.ID == "" {
			return fmt.Errorf("config: timeline with empty id")
		}
		for _, t := range tl.Targets {
			if !segs[t] {
				return fmt.Errorf("config: timeline %q targets unknown segment %q", tl.ID, t)
			}
		}
		for i, cue := range tl.Cues {
			if !effs[cue.Effect] {
				return fmt.Errorf("config: timeline %q cue %d references unknown effect %q", tl.ID, i, cue.Effect)
			}
		}
	}
	return nil
}

// Default is a simulator topology useful for first runs and demos.
func Default() *Config {
	return &Config{
		Engine: EngineCfg{FPS: 60},
		OSC:    OSCCfg{Listen: ":9000"},
		Devices: []Device{
			{ID: "tape1", Addr: "sim", LEDCount: 300},
		},
		Segments: []Segment{
			{ID: "main", Device: "tape1", Start: 0, End: 299,
				Transition: &Transition{Kind: "crossfade", Length: 1}},
		},
		Effects: []Effect{
			{ID: "rainbow1", Kind: "rainbow", Params: map[string]float64{"speed": 10}},
			{ID: "pulse1", Kind: "pulse", Params: map[string]float64{"color": 0x00FF00, "frequency": 1}},
		},
		Timelines: []Timeline{
			{ID: "show", Targets: []string{"main"}, Loop: "all", Autoplay: true,
				Cues: []Cue{
					{Effect: "rainbow1", Duration: 10, Transition: &Transition{Kind: "cut"}},
					{Effect: "pulse1", Duration: 10, Transition: &Transition{Kind: "crossfade", Length: 2}},
				}},
		},
	}
}
