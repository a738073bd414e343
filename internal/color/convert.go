package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// sRGB / D65 primaries.
const (
	xr, xg, xb = 0.4124, 0.3576, 0.1805
	yr, yg, yb = 0.2126, 0.7152, 0.0722
	zr, zg, zb = 0.0193, 0.1192, 0.9505
)

// labEpsilon is the CIE threshold below which L* is linear in Y.
const labEpsilon = 0.008856

// minXyBrightness keeps very dim xy colors distinguishable on the strip.
const minXyBrightness = 5

// RgbToXy converts an 8-bit color to CIE xy chromaticity and a perceptual
// brightness (CIE L*, 0-100). Black has no chromaticity and yields (0, 0, 0).
func RgbToXy(c RGB) (x, y float64, bri uint8) {
	r, g, b := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.LinearRgb()

	X := r*xr + g*xg + b*xb
	Y := r*yr + g*yg + b*yb
	Z := r*zr + g*zg + b*zb

	sum := X + Y + Z
	if sum <= 0 {
		return 0, 0, 0
	}
	x = X / sum
	y = Y / sum

	var fy float64
	if Y > labEpsilon {
		fy = math.Cbrt(Y)
	} else {
		fy = 7.787*Y + 16.0/116.0
	}
	l := 116*fy - 16
	if l > 100 {
		l = 100
	}
	return x, y, clamp8(l)
}

// XyToRgb converts a chromaticity point to RGB. The brightest channel is
// scaled to exactly bri (floored at 5) so hue and saturation are kept while
// the result never exceeds the requested brightness.
func XyToRgb(bri uint8, x, y float64) RGB {
	effective := float64(bri)
	if bri < minXyBrightness {
		effective = minXyBrightness
	}

	X, Y, Z := x, y, 1-x-y

	lin := colorful.LinearRgb(
		X*3.2406-Y*1.5372-Z*0.4986,
		-X*0.9689+Y*1.8758+Z*0.0415,
		X*0.0557-Y*0.2040+Z*1.0570,
	)
	r, g, b := lin.R, lin.G, lin.B

	if m := math.Max(r, math.Max(g, b)); m > 0 {
		r /= m
		g /= m
		b /= m
	}

	return RGB{
		R: clamp8(unit(r) * effective),
		G: clamp8(unit(g) * effective),
		B: clamp8(unit(b) * effective),
	}
}

// HueSatToRgb converts a hue on the 16-bit wheel, a saturation and a
// brightness (both 0-255) to RGB.
func HueSatToRgb(hue uint16, sat, bri uint8) RGB {
	h := float64(hue) / 65536.0 * 360.0
	c := colorful.Hsv(h, float64(sat)/255.0, float64(bri)/255.0).Clamped()
	r, g, b := c.RGB255()
	return RGB{r, g, b}
}

func unit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
