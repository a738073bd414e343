// Package protocol translates the diyHue "native_multi" JSON payloads into
// light commands and renders light state and device identification.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/dokzlo13/huestrip/internal/color"
	"github.com/dokzlo13/huestrip/internal/light"
)

// ErrMalformed is returned when a payload is not a JSON object of objects.
var ErrMalformed = errors.New("malformed payload")

// DecodeState parses a payload keyed by light number. Entries whose key or
// body cannot be parsed are skipped and reported as *light.FieldError values
// in the returned error, so the rest of the batch can still be applied.
// A payload that is not a JSON object yields ErrMalformed and no commands.
func DecodeState(data []byte) (map[int]light.Command, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformed)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batch := make(map[int]light.Command, len(raw))
	var errs []error
	for _, key := range keys {
		n, err := strconv.Atoi(key)
		if err != nil {
			errs = append(errs, &light.FieldError{Field: key, Err: fmt.Errorf("%w: light key %q", light.ErrInvalidValue, key)})
			continue
		}
		cmd, ok, fieldErrs := decodeCommand(n, raw[key])
		errs = append(errs, fieldErrs...)
		if ok {
			batch[n] = cmd
		}
	}
	return batch, errors.Join(errs...)
}

// DecodeCommand parses the fields of one light. When several color fields
// are present xy wins over ct, and ct wins over hue/sat. Fields that fail to
// decode are reported as *light.FieldError values while the remaining fields
// are still returned.
func DecodeCommand(data []byte) (light.Command, error) {
	cmd, _, errs := decodeCommand(0, data)
	return cmd, errors.Join(errs...)
}

// decodeCommand reports whether any field of the entry was usable.
func decodeCommand(n int, data []byte) (light.Command, bool, []error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return light.Command{}, false, []error{&light.FieldError{
			Light: n,
			Err:   fmt.Errorf("%w: light entry must be an object", light.ErrInvalidValue),
		}}
	}

	d := fieldDecoder{light: n, raw: raw}
	cmd := light.Command{
		On:             d.boolField("on"),
		Bri:            d.intField("bri"),
		BriInc:         d.intField("bri_inc"),
		TransitionTime: d.intField("transitiontime"),
	}

	xy := d.xyField("xy")
	ct := d.intField("ct")
	hue := d.intField("hue")
	sat := d.intField("sat")
	switch {
	case xy != nil:
		cmd.Color = *xy
	case ct != nil:
		cmd.Color = color.ColorTemp{Mired: mired(*ct)}
	case hue != nil || sat != nil:
		hs := color.HueSat{}
		if hue != nil {
			h := wrapHue(*hue)
			hs.Hue = &h
		}
		if sat != nil {
			s := clampSat(*sat)
			hs.Sat = &s
		}
		cmd.Color = hs
	}

	if alert := d.stringField("alert"); alert != nil {
		cmd.Alert = *alert
	}
	return cmd, d.used > 0, d.errs
}

// fieldDecoder decodes the fields of one light entry independently so a
// single bad field does not discard the others.
type fieldDecoder struct {
	light int
	raw   map[string]json.RawMessage
	used  int
	errs  []error
}

func (d *fieldDecoder) fail(field string, err error) {
	d.errs = append(d.errs, &light.FieldError{
		Light: d.light,
		Field: field,
		Err:   fmt.Errorf("%w: %v", light.ErrInvalidValue, err),
	})
}

// decode reports whether field is present, not null and decodes into dst.
func (d *fieldDecoder) decode(field string, dst any) bool {
	v, ok := d.raw[field]
	if !ok || string(v) == "null" {
		return false
	}
	if err := json.Unmarshal(v, dst); err != nil {
		d.fail(field, err)
		return false
	}
	d.used++
	return true
}

func (d *fieldDecoder) boolField(field string) *bool {
	var v bool
	if !d.decode(field, &v) {
		return nil
	}
	return &v
}

// intField accepts any JSON number with an integral value, so 346.0 is 346.
func (d *fieldDecoder) intField(field string) *int {
	var f float64
	if !d.decode(field, &f) {
		return nil
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		d.used--
		d.fail(field, fmt.Errorf("%v is not an integer", f))
		return nil
	}
	v := int(f)
	return &v
}

func (d *fieldDecoder) stringField(field string) *string {
	var v string
	if !d.decode(field, &v) {
		return nil
	}
	return &v
}

func (d *fieldDecoder) xyField(field string) *color.Xy {
	var v []float64
	if !d.decode(field, &v) {
		return nil
	}
	if len(v) != 2 {
		d.used--
		d.fail(field, fmt.Errorf("want 2 coordinates, got %d", len(v)))
		return nil
	}
	return &color.Xy{X: v[0], Y: v[1]}
}

// mired maps out of range temperatures to 0, which the registry rejects, or
// to the largest representable value.
func mired(v int) uint16 {
	if v <= 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func wrapHue(v int) uint16 {
	v %= 65536
	if v < 0 {
		v += 65536
	}
	return uint16(v)
}

func clampSat(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > light.MaxSat {
		return light.MaxSat
	}
	return uint8(v)
}
