// Package color implements the conversions between 8-bit RGB, CIE xy
// chromaticity and correlated color temperature used by the strip, plus the
// perceptual distance that sizes transition steps.
package color

import "fmt"

// RGB is an 8-bit color as it is written to the strip.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	Black  = RGB{0, 0, 0}
	White  = RGB{255, 255, 255}
	Blue   = RGB{0, 0, 255}
	Yellow = RGB{255, 255, 0}
)

// Max returns the largest channel value.
func (c RGB) Max() uint8 {
	m := c.R
	if c.G > m {
		m = c.G
	}
	if c.B > m {
		m = c.B
	}
	return m
}

// IsBlack reports whether all channels are zero.
func (c RGB) IsBlack() bool {
	return c == Black
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// clamp8 rounds v to the nearest integer and clamps it into [0,255].
func clamp8(v float64) uint8 {
	if v != v || v <= 0 { // NaN or negative
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
