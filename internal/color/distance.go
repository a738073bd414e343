package color

import "math"

var maxDistance = Distance(White, Black)

// Distance returns a CIE94-like perceptual distance between two colors,
// computed on (brightness, x, y). It is only meaningful relative to other
// distances, see MaxDistance.
func Distance(c1, c2 RGB) float64 {
	x1, y1, bri1 := RgbToXy(c1)
	x2, y2, bri2 := RgbToXy(c2)
	return deltaE(float64(bri1), x1, y1, float64(bri2), x2, y2)
}

// MaxDistance is the distance between full white and black.
func MaxDistance() float64 {
	return maxDistance
}

func deltaE(bri1, x1, y1, bri2, x2, y2 float64) float64 {
	dl := bri1 - bri2
	dx := x1 - x2
	dy := y1 - y2

	c1 := math.Sqrt(x1*x1 + y1*y1)
	c2 := math.Sqrt(x2*x2 + y2*y2)
	dc := c1 - c2

	dh := dx*dx + dy*dy - dc*dc
	if dh < 0 {
		dh = 0
	} else {
		dh = math.Sqrt(dh)
	}

	// geometric mean keeps the metric symmetric in its arguments
	cm := math.Sqrt(c1 * c2)
	sc := 1.0 + 0.045*cm
	sh := 1.0 + 0.015*cm

	i := dl*dl + (dc/sc)*(dc/sc) + (dh/sh)*(dh/sh)
	if i < 0 {
		return 0
	}
	return math.Sqrt(i)
}
