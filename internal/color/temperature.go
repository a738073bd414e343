package color

import (
	"errors"
	"math"
)

// ErrZeroMired is returned for a color temperature of 0 mired.
var ErrZeroMired = errors.New("color temperature must be greater than 0 mired")

// Calibration holds per-channel white balance corrections in percent.
type Calibration struct {
	Red   int `yaml:"r" json:"r"`
	Green int `yaml:"g" json:"g"`
	Blue  int `yaml:"b" json:"b"`
}

// DefaultCalibration leaves all channels untouched.
var DefaultCalibration = Calibration{Red: 100, Green: 100, Blue: 100}

// Converter carries the deployment specific calibration used when deriving
// RGB from a color temperature.
type Converter struct {
	cal Calibration
}

// NewConverter creates a converter. Negative percentages are treated as 0.
func NewConverter(cal Calibration) *Converter {
	if cal.Red < 0 {
		cal.Red = 0
	}
	if cal.Green < 0 {
		cal.Green = 0
	}
	if cal.Blue < 0 {
		cal.Blue = 0
	}
	return &Converter{cal: cal}
}

// Calibration returns the converter's channel corrections.
func (c *Converter) Calibration() Calibration {
	return c.cal
}

// CtToRgb approximates the Planckian locus for a temperature given in mired
// and scales the result by bri/255.
func (c *Converter) CtToRgb(bri uint8, mired uint16) (RGB, error) {
	if mired == 0 {
		return RGB{}, ErrZeroMired
	}

	hectemp := float64(10000 / int(mired))

	var r, g, b float64
	if hectemp <= 66 {
		r = 255
		g = 99.4708025861*math.Log(hectemp) - 161.1195681661
		if hectemp <= 19 {
			b = 0
		} else {
			b = 138.5177312231*math.Log(hectemp-10) - 305.0447927307
		}
	} else {
		r = 329.698727446 * math.Pow(hectemp-60, -0.1332047592)
		g = 288.1221695283 * math.Pow(hectemp-60, -0.0755148492)
		b = 255
	}

	r = limit(r) * float64(c.cal.Red) / 100
	g = limit(g) * float64(c.cal.Green) / 100
	b = limit(b) * float64(c.cal.Blue) / 100

	scale := float64(bri) / 255.0
	return RGB{
		R: clamp8(limit(r) * scale),
		G: clamp8(limit(g) * scale),
		B: clamp8(limit(b) * scale),
	}, nil
}

// limit clamps a channel into [0,255] and maps NaN/-Inf to 0.
func limit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
