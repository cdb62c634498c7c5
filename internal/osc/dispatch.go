package osc

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/engine"
)

// Dispatch routes one decoded message to a staged engine command. Address
// shapes:
//
//	/effect/{effectID}/segment/{segID}/{param}        numeric param write
//	/device/{devID}/brightness                        numeric
//	/device/{devID}/effect                            string (instance or kind)
//	/device/{devID}/clear
//	/device/{devID}/segment/{segID}/brightness        numeric
//	/device/{devID}/segment/{segID}/transparency      numeric
//	/device/{devID}/segment/{segID}/effect            string
//	/device/{devID}/segment/{segID}/clear
//	/device/{devID}/segment/{segID}/{param}           numeric param write
//
// Identifier resolution happens inside the staged command at the tick
// boundary, so an unknown id is logged and dropped without ever racing the
// render loop. Malformed addresses and missing arguments are dropped here.
func Dispatch(eng *engine.Engine, m Message, log zerolog.Logger) {
	parts := strings.Split(strings.Trim(m.Addr, "/"), "/")

	switch {
	case len(parts) == 5 && parts[0] == "effect" && parts[2] == "segment":
		effectID, segID, param := parts[1], parts[3], parts[4]
		v, ok := m.Float(0)
		if !ok {
			log.Warn().Str("addr", m.Addr).Msg("param write needs a numeric argument")
			return
		}
		eng.Stage(m.Addr, func() error {
			if _, err := eng.Registry().Segment(segID); err != nil {
				return err
			}
			return eng.SetEffectParam(effectID, param, v)
		})

	case len(parts) == 3 && parts[0] == "device":
		dispatchDevice(eng, m, parts[1], parts[2], log)

	case len(parts) == 5 && parts[0] == "device" && parts[2] == "segment":
		dispatchSegment(eng, m, parts[3], parts[4], log)

	default:
		log.Warn().Str("addr", m.Addr).Msg("unroutable address")
	}
}

func dispatchDevice(eng *engine.Engine, m Message, devID, cmd string, log zerolog.Logger) {
	switch cmd {
	case "brightness":
		v, ok := m.Float(0)
		if !ok {
			log.Warn().Str("addr", m.Addr).Msg("brightness needs a numeric argument")
			return
		}
		eng.Stage(m.Addr, func() error { return eng.SetDeviceBrightness(devID, v) })
	case "effect":
		name, ok := m.String(0)
		if !ok {
			log.Warn().Str("addr", m.Addr).Msg("effect needs a string argument")
			return
		}
		eng.Stage(m.Addr, func() error { return eng.ApplyDeviceEffect(devID, name) })
	case "clear":
		eng.Stage(m.Addr, func() error { return eng.ClearDevice(devID) })
	default:
		log.Warn().Str("addr", m.Addr).Str("command", cmd).Msg("unknown device command")
	}
}

func dispatchSegment(eng *engine.Engine, m Message, segID, cmd string, log zerolog.Logger) {
	switch cmd {
	case "brightness":
		// Segment dimming is transparency against the black base, so a
		// brightness write is the complement.
		v, ok := m.Float(0)
		if !ok {
			log.Warn().Str("addr", m.Addr).Msg("brightness needs a numeric argument")
			return
		}
		eng.Stage(m.Addr, func() error { return eng.SetSegmentTransparency(segID, 1-v) })
	case "transparency":
		v, ok := m.Float(0)
		if !ok {
			log.Warn().Str("addr", m.Addr).Msg("transparency needs a numeric argument")
			return
		}
		eng.Stage(m.Addr, func() error { return eng.SetSegmentTransparency(segID, v) })
	case "effect":
		name, ok := m.String(0)
		if !ok {
			log.Warn().Str("addr", m.Addr).Msg("effect needs a string argument")
			return
		}
		eng.Stage(m.Addr, func() error { return eng.ApplyEffect(segID, name, nil) })
	case "clear":
		eng.Stage(m.Addr, func() error { return eng.ClearSegment(segID) })
	default:
		// Any other command name is a parameter write on the bound effect.
		v, ok := m.Float(0)
		if !ok {
			log.Warn().Str("addr", m.Addr).Msg("param write needs a numeric argument")
			return
		}
		eng.Stage(m.Addr, func() error { return eng.SetSegmentParam(segID, cmd, v) })
	}
}
