// Package transition sizes and performs the per-frame fades that move strip
// pixels toward a light's target color.
package transition

import (
	"math"
	"time"

	"github.com/dokzlo13/huestrip/internal/color"
)

// DefaultDuration is the transition time in deciseconds used when a command
// does not carry one.
const DefaultDuration = 4

// MinFrameInterval is the recommended minimum delay between two ticks while
// any light is fading.
const MinFrameInterval = 6 * time.Millisecond

// WidthFactor stretches transitions of wide lights so a fade appears to take
// the same time regardless of how many pixels a light owns.
func WidthFactor(pixelsPerLight int) int {
	f := 17 - pixelsPerLight/40
	if f < 1 {
		return 1
	}
	return f
}

// StepLevel returns the per-tick blend rate (1-255) for moving from current to
// target within duration deciseconds. A duration of 0 is an instant change.
func StepLevel(current, target color.RGB, duration, pixelsPerLight int) uint8 {
	if duration <= 0 {
		return 255
	}
	effective := float64(duration * WidthFactor(pixelsPerLight))

	level := math.Round(color.Distance(current, target) / color.MaxDistance() * 255 / effective)
	if level < 1 {
		return 1
	}
	if level > 255 {
		return 255
	}
	return uint8(level)
}

// MaxTicks is the worst-case number of ticks a fade at the given level needs.
func MaxTicks(level uint8) int {
	if level == 0 {
		level = 1
	}
	return (255 + int(level) - 1) / int(level)
}
