// Package light implements the registry of virtual lights that share one
// physical pixel strip: their pixel ranges, stored color parameters, derived
// targets and per-tick transitions.
//
// A Registry is not safe for concurrent use. Callers that tick and apply
// commands from different goroutines must serialise access.
package light

import (
	"fmt"

	"github.com/dokzlo13/huestrip/internal/color"
	"github.com/dokzlo13/huestrip/internal/transition"
)

// Default stored parameters of a freshly set up light (a saturated yellow).
const (
	DefaultBri = 254
	DefaultHue = 10923
	DefaultSat = 254
	DefaultCt  = 346
)

// Brightness bounds. Absolute brightness clamps to [MinBri, MaxBri]; a
// relative change may reach MaxBriInc.
const (
	MinBri    = 1
	MaxBri    = 254
	MaxBriInc = 255
	MaxSat    = 254
)

// Layout describes how lights are laid out on the strip.
type Layout struct {
	Lights         int
	PixelsPerLight int
	GapPixels      int
	// FirstNumber is the externally visible number of the first light.
	FirstNumber int
	// DefaultTransition in deciseconds, used when a command has none.
	DefaultTransition int
}

// PixelCount is the minimum pixel buffer length for the layout.
func (l Layout) PixelCount() int {
	return l.Lights * (l.PixelsPerLight + l.GapPixels)
}

// Validate checks the layout for impossible values.
func (l Layout) Validate() error {
	if l.Lights < 1 {
		return fmt.Errorf("lights must be at least 1, got %d", l.Lights)
	}
	if l.PixelsPerLight < 1 {
		return fmt.Errorf("pixels per light must be at least 1, got %d", l.PixelsPerLight)
	}
	if l.GapPixels < 0 {
		return fmt.Errorf("gap pixels must not be negative, got %d", l.GapPixels)
	}
	if l.DefaultTransition < 0 {
		return fmt.Errorf("default transition must not be negative, got %d", l.DefaultTransition)
	}
	return nil
}

// Light is one virtual light. Its pixel range is fixed at setup.
type Light struct {
	number int
	first  int
	last   int
	sample int

	on    bool
	mode  color.Mode
	bri   int
	x, y  float64
	mired uint16
	hue   uint16
	sat   uint8

	target color.RGB
	step   uint8

	// flash is set while a one-shot alert is running.
	flash      bool
	flashColor color.RGB
}

// Number returns the externally visible light number.
func (l *Light) Number() int { return l.number }

// Range returns the first and last pixel (inclusive) owned by the light.
func (l *Light) Range() (first, last int) { return l.first, l.last }

// SamplePixel returns the index used to read the light's current color.
func (l *Light) SamplePixel() int { return l.sample }

// effectiveTarget is what the pixels fade toward right now.
func (l *Light) effectiveTarget() color.RGB {
	switch {
	case l.flash:
		return l.flashColor
	case l.on:
		return l.target
	default:
		return color.Black
	}
}

// current reads the light's sampled color from px.
func (l *Light) current(px []color.RGB) color.RGB {
	if l.sample < 0 || l.sample >= len(px) {
		return color.Black
	}
	return px[l.sample]
}

// recompute derives the target RGB from the active mode's stored parameters.
func (l *Light) recompute(conv *color.Converter) error {
	bri := uint8(l.bri)
	switch l.mode {
	case color.ModeXy:
		l.target = color.XyToRgb(bri, l.x, l.y)
	case color.ModeColorTemp:
		rgb, err := conv.CtToRgb(bri, l.mired)
		if err != nil {
			return err
		}
		l.target = rgb
	default:
		l.target = color.HueSatToRgb(l.hue, l.sat, bri)
	}
	return nil
}

// retarget recomputes the step level against the effective target.
func (l *Light) retarget(px []color.RGB, duration, pixelsPerLight int) {
	l.step = transition.StepLevel(l.current(px), l.effectiveTarget(), duration, pixelsPerLight)
}

// State is the externally visible state of a light.
type State struct {
	On        bool       `json:"on"`
	Bri       int        `json:"bri"`
	Ct        uint16     `json:"ct"`
	Hue       uint16     `json:"hue"`
	Sat       uint8      `json:"sat"`
	ColorMode string     `json:"colormode"`
	Xy        [2]float64 `json:"xy"`
}

func (l *Light) state() State {
	return State{
		On:        l.on,
		Bri:       l.bri,
		Ct:        l.mired,
		Hue:       l.hue,
		Sat:       l.sat,
		ColorMode: l.mode.String(),
		Xy:        [2]float64{l.x, l.y},
	}
}

// Info is a read-only view of a light's transition status.
type Info struct {
	Number       int       `json:"light"`
	First        int       `json:"first_pixel"`
	Last         int       `json:"last_pixel"`
	Current      color.RGB `json:"current"`
	Target       color.RGB `json:"target"`
	StepLevel    uint8     `json:"step_level"`
	InTransition bool      `json:"in_transition"`
}
