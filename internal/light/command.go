package light

import (
	"errors"
	"fmt"
	"math"

	"github.com/dokzlo13/huestrip/internal/color"
)

var (
	// ErrUnknownLight is returned for a light number outside the registry.
	ErrUnknownLight = errors.New("unknown light")
	// ErrInvalidValue is returned for a field value that cannot be applied.
	ErrInvalidValue = errors.New("invalid value")
)

// AlertSelect is the one-shot flash alert.
const AlertSelect = "select"

// Command is a set of optional changes for one light. Nil fields are left
// untouched.
type Command struct {
	On     *bool
	Bri    *int
	BriInc *int
	// Color is one of color.Xy, color.ColorTemp or color.HueSat.
	Color color.Setting
	// TransitionTime in deciseconds; nil selects the default.
	TransitionTime *int
	Alert          string
}

// FieldError reports a rejected field of one light's command.
type FieldError struct {
	Light int
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("light %d: %v", e.Light, e.Err)
	}
	return fmt.Sprintf("light %d: %s: %v", e.Light, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Apply applies a batch of commands keyed by light number. Invalid fields and
// unknown lights are reported through the returned error (an errors.Join of
// *FieldError) while everything else in the batch is still applied.
func (r *Registry) Apply(px []color.RGB, batch map[int]Command) error {
	var errs []error
	for _, n := range sortedNumbers(batch) {
		l, err := r.Light(n)
		if err != nil {
			errs = append(errs, &FieldError{Light: n, Err: ErrUnknownLight})
			continue
		}
		errs = append(errs, r.apply(px, l, batch[n])...)
	}
	return errors.Join(errs...)
}

// ApplyOne applies a single command.
func (r *Registry) ApplyOne(px []color.RGB, number int, cmd Command) error {
	return r.Apply(px, map[int]Command{number: cmd})
}

func (r *Registry) apply(px []color.RGB, l *Light, cmd Command) []error {
	var errs []error
	reject := func(field string, err error) {
		errs = append(errs, &FieldError{Light: l.number, Field: field, Err: err})
	}

	switch c := cmd.Color.(type) {
	case nil:
	case color.Xy:
		if math.IsNaN(c.X) || math.IsNaN(c.Y) {
			reject("xy", fmt.Errorf("%w: not a number", ErrInvalidValue))
			break
		}
		l.x, l.y = unitClamp(c.X), unitClamp(c.Y)
		l.mode = color.ModeXy
	case color.ColorTemp:
		if c.Mired == 0 {
			reject("ct", color.ErrZeroMired)
			break
		}
		l.mired = c.Mired
		l.mode = color.ModeColorTemp
	case color.HueSat:
		if c.Hue != nil {
			l.hue = *c.Hue
			l.mode = color.ModeHueSat
		}
		if c.Sat != nil {
			l.sat = min(*c.Sat, MaxSat)
			l.mode = color.ModeHueSat
		}
	default:
		reject("color", fmt.Errorf("%w: unsupported color %T", ErrInvalidValue, c))
	}

	if cmd.On != nil {
		l.on = *cmd.On
	}
	if cmd.Bri != nil {
		l.bri = clampInt(*cmd.Bri, MinBri, MaxBri)
	}
	if cmd.BriInc != nil {
		l.bri = clampInt(l.bri+*cmd.BriInc, MinBri, MaxBriInc)
	}

	duration := r.layout.DefaultTransition
	if cmd.TransitionTime != nil {
		if *cmd.TransitionTime < 0 {
			reject("transitiontime", fmt.Errorf("%w: %d", ErrInvalidValue, *cmd.TransitionTime))
		} else {
			duration = *cmd.TransitionTime
		}
	}

	if err := l.recompute(r.conv); err != nil {
		reject(l.mode.String(), err)
	}

	switch cmd.Alert {
	case "", "none":
		l.flash = false
	case AlertSelect:
		l.flash = true
		if l.on {
			l.flashColor = color.Black
		} else {
			l.flashColor = color.Blue
		}
	default:
		reject("alert", fmt.Errorf("%w: %q", ErrInvalidValue, cmd.Alert))
	}

	l.retarget(px, duration, r.layout.PixelsPerLight)
	r.needsSave = true
	return errs
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func unitClamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
