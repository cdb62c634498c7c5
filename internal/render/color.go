package render

import "math"

// Color is one LED's output value, 8 bits per channel.
type Color struct{ R, G, B uint8 }

// NewColor unpacks a 24-bit RGB integer (0xRRGGBB).
func NewColor(rgb uint32) Color {
	return Color{
		R: uint8(rgb >> 16 & 0xFF),
		G: uint8(rgb >> 8 & 0xFF),
		B: uint8(rgb & 0xFF),
	}
}

// RGB packs the color back into a 24-bit integer.
func (c Color) RGB() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Lerp interpolates a->b channel-wise by f in [0,1].
func Lerp(a, b Color, f float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*f),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*f),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*f),
	}
}

// Scale multiplies all channels by f, clamped to [0,1].
func Scale(c Color, f float64) Color {
	if f <= 0 {
		return Color{}
	}
	if f >= 1 {
		return c
	}
	return Color{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
	}
}

// HSV converts hue/saturation/value (each in [0,1], hue wrapping) to RGB.
func HSV(h, s, v float64) Color {
	h = h - math.Floor(h)
	if s <= 0 {
		g := uint8(v * 255)
		return Color{g, g, g}
	}
	h *= 6
	sector := int(h)
	f := h - float64(sector)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch sector % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return Color{uint8(r * 255), uint8(g * 255), uint8(b * 255)}
}
