package light

import (
	"errors"
	"fmt"

	"github.com/dokzlo13/huestrip/internal/color"
)

// Snapshot holds the stored parameters of one light. It does not include
// pixel contents.
type Snapshot struct {
	Number int     `json:"light"`
	On     bool    `json:"on"`
	Bri    int     `json:"bri"`
	Mode   string  `json:"colormode"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Ct     uint16  `json:"ct"`
	Hue    uint16  `json:"hue"`
	Sat    uint8   `json:"sat"`
}

// Snapshot captures the stored parameters of every light.
func (r *Registry) Snapshot() []Snapshot {
	out := make([]Snapshot, len(r.lights))
	for i, l := range r.lights {
		out[i] = Snapshot{
			Number: l.number,
			On:     l.on,
			Bri:    l.bri,
			Mode:   l.mode.String(),
			X:      l.x,
			Y:      l.y,
			Ct:     l.mired,
			Hue:    l.hue,
			Sat:    l.sat,
		}
	}
	return out
}

// Restore loads snapshots and starts the default transition toward the
// restored colors. Snapshots of lights that no longer exist are skipped and
// reported. The NeedsSave flag is left unchanged.
func (r *Registry) Restore(px []color.RGB, snaps []Snapshot) error {
	var errs []error
	for _, s := range snaps {
		l, err := r.Light(s.Number)
		if err != nil {
			errs = append(errs, &FieldError{Light: s.Number, Err: ErrUnknownLight})
			continue
		}
		mode, ok := color.ParseMode(s.Mode)
		if !ok {
			errs = append(errs, &FieldError{Light: s.Number, Field: "colormode", Err: fmt.Errorf("%w: %q", ErrInvalidValue, s.Mode)})
			continue
		}
		if mode == color.ModeColorTemp && s.Ct == 0 {
			errs = append(errs, &FieldError{Light: s.Number, Field: "ct", Err: color.ErrZeroMired})
			continue
		}

		l.on = s.On
		l.mode = mode
		l.bri = clampInt(s.Bri, MinBri, MaxBriInc)
		l.x, l.y = unitClamp(s.X), unitClamp(s.Y)
		if s.Ct != 0 {
			l.mired = s.Ct
		}
		l.hue = s.Hue
		l.sat = min(s.Sat, MaxSat)
		l.flash = false
		if err := l.recompute(r.conv); err != nil {
			errs = append(errs, &FieldError{Light: s.Number, Field: mode.String(), Err: err})
			continue
		}
		l.retarget(px, r.layout.DefaultTransition, r.layout.PixelsPerLight)
	}
	return errors.Join(errs...)
}
