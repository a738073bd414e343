package light

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dokzlo13/huestrip/internal/color"
	"github.com/dokzlo13/huestrip/internal/scene"
	"github.com/dokzlo13/huestrip/internal/transition"
)

// ErrBufferTooSmall is returned when a pixel buffer cannot hold the layout.
var ErrBufferTooSmall = errors.New("pixel buffer too small for layout")

// Registry holds all virtual lights of one strip. The pixel buffer is owned
// by the caller and passed to every call that reads or writes pixels.
type Registry struct {
	conv   *color.Converter
	layout Layout
	lights []*Light

	needsSave bool
}

// NewRegistry lays the lights out on the strip, switches them on with the
// default color and starts the default transition toward it.
func NewRegistry(conv *color.Converter, layout Layout, px []color.RGB) (*Registry, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(px) < layout.PixelCount() {
		return nil, fmt.Errorf("%w: need %d pixels, have %d", ErrBufferTooSmall, layout.PixelCount(), len(px))
	}

	r := &Registry{
		conv:   conv,
		layout: layout,
		lights: make([]*Light, layout.Lights),
	}

	width := layout.PixelsPerLight + layout.GapPixels
	for i := range r.lights {
		first := layout.GapPixels/2 + i*width
		last := first + layout.PixelsPerLight - 1
		l := &Light{
			number: layout.FirstNumber + i,
			first:  first,
			last:   last,
			sample: first + (last-first)/2,
			on:     true,
			mode:   color.ModeHueSat,
			bri:    DefaultBri,
			mired:  DefaultCt,
			hue:    DefaultHue,
			sat:    DefaultSat,
		}
		if err := l.recompute(conv); err != nil {
			return nil, err
		}
		l.retarget(px, layout.DefaultTransition, layout.PixelsPerLight)
		r.lights[i] = l
	}
	return r, nil
}

// Layout returns the layout the registry was built with.
func (r *Registry) Layout() Layout { return r.layout }

// Converter returns the color converter used for targets.
func (r *Registry) Converter() *color.Converter { return r.conv }

// Len returns the number of lights.
func (r *Registry) Len() int { return len(r.lights) }

// Numbers returns the light numbers in strip order.
func (r *Registry) Numbers() []int {
	out := make([]int, len(r.lights))
	for i, l := range r.lights {
		out[i] = l.number
	}
	return out
}

// Light returns the light with the given number.
func (r *Registry) Light(number int) (*Light, error) {
	i := number - r.layout.FirstNumber
	if i < 0 || i >= len(r.lights) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLight, number)
	}
	return r.lights[i], nil
}

// State returns the stored state of a light.
func (r *Registry) State(number int) (State, error) {
	l, err := r.Light(number)
	if err != nil {
		return State{}, err
	}
	return l.state(), nil
}

// Info reports the transition status of a light against px.
func (r *Registry) Info(px []color.RGB, number int) (Info, error) {
	l, err := r.Light(number)
	if err != nil {
		return Info{}, err
	}
	cur := l.current(px)
	target := l.effectiveTarget()
	return Info{
		Number:       l.number,
		First:        l.first,
		Last:         l.last,
		Current:      cur,
		Target:       target,
		StepLevel:    l.step,
		InTransition: cur != target,
	}, nil
}

// InTransition reports whether any light's pixels differ from its target.
func (r *Registry) InTransition(px []color.RGB) bool {
	for _, l := range r.lights {
		if l.current(px) != l.effectiveTarget() {
			return true
		}
	}
	return false
}

// NeedsSave reports whether stored parameters changed since MarkSaved.
func (r *Registry) NeedsSave() bool { return r.needsSave }

// MarkSaved clears the NeedsSave flag.
func (r *Registry) MarkSaved() { r.needsSave = false }

// MarkDirty sets the NeedsSave flag.
func (r *Registry) MarkDirty() { r.needsSave = true }

// Tick advances every light that is in transition by one step and reports
// whether any light moved, together with the minimum delay before the next
// tick. The delay is zero when nothing moved.
func (r *Registry) Tick(px []color.RGB) (bool, time.Duration) {
	moving := false
	for _, l := range r.lights {
		// A flash toward the color already shown is over before it starts.
		r.endFlash(px, l)

		target := l.effectiveTarget()
		if l.current(px) == target {
			continue
		}
		moving = true
		transition.FadeRange(px, l.first, l.last, target, l.step)
		r.endFlash(px, l)
	}
	if !moving {
		return false, 0
	}
	return true, transition.MinFrameInterval
}

// endFlash returns a light to its normal target once the flash color is
// reached.
func (r *Registry) endFlash(px []color.RGB, l *Light) {
	if l.flash && l.current(px) == l.flashColor {
		l.flash = false
		l.retarget(px, r.layout.DefaultTransition, r.layout.PixelsPerLight)
	}
}

// ApplyScene sets every light's target to the scene color. On/off state and
// stored parameters are kept, so lights that are off stay dark. Unknown ids
// fall back to scene.Default. A negative duration selects the default
// transition.
func (r *Registry) ApplyScene(px []color.RGB, id, duration int) scene.Scene {
	s, _ := scene.Lookup(id)
	r.applyScene(px, s, duration)
	return s
}

// ApplySceneByName is ApplyScene addressed by scene name.
func (r *Registry) ApplySceneByName(px []color.RGB, name string, duration int) (scene.Scene, error) {
	s, ok := scene.ByName(name)
	if !ok {
		return scene.Scene{}, fmt.Errorf("%w: unknown scene %q", ErrInvalidValue, name)
	}
	r.applyScene(px, s, duration)
	return s, nil
}

func (r *Registry) applyScene(px []color.RGB, s scene.Scene, duration int) {
	if duration < 0 {
		duration = r.layout.DefaultTransition
	}
	target := s.Color(r.conv)
	for _, l := range r.lights {
		l.target = target
		l.flash = false
		l.retarget(px, duration, r.layout.PixelsPerLight)
	}
}

// sortedNumbers returns the keys of a command batch in ascending order.
func sortedNumbers(batch map[int]Command) []int {
	keys := make([]int, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
