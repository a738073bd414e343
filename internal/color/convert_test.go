package color

import (
	"errors"
	"math"
	"testing"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func channelsWithin(a, b RGB, tol int) bool {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	return d(a.R, b.R) <= tol && d(a.G, b.G) <= tol && d(a.B, b.B) <= tol
}

func TestRgbToXy_Black(t *testing.T) {
	x, y, bri := RgbToXy(Black)
	if x != 0 || y != 0 || bri != 0 {
		t.Errorf("RgbToXy(black) = (%v, %v, %d), want (0, 0, 0)", x, y, bri)
	}
}

func TestRgbToXy_WhiteIsD65(t *testing.T) {
	x, y, bri := RgbToXy(White)
	if !near(x, 0.3127, 0.001) || !near(y, 0.3290, 0.001) {
		t.Errorf("white xy = (%.4f, %.4f), want D65 (0.3127, 0.3290)", x, y)
	}
	if bri != 100 {
		t.Errorf("white brightness = %d, want 100", bri)
	}
}

func TestRgbToXy_DarkerIsDimmer(t *testing.T) {
	_, _, dark := RgbToXy(RGB{40, 40, 40})
	_, _, light := RgbToXy(RGB{200, 200, 200})
	if dark >= light {
		t.Errorf("brightness(40) = %d, brightness(200) = %d, want dark < light", dark, light)
	}
}

func TestXyRoundTrip(t *testing.T) {
	colors := []RGB{
		{255, 0, 0},
		{0, 255, 0},
		{0, 0, 255},
		{255, 255, 0},
		{0, 255, 255},
		{255, 0, 255},
		{255, 255, 255},
		{255, 128, 0},
	}
	for _, c := range colors {
		t.Run(c.String(), func(t *testing.T) {
			x, y, _ := RgbToXy(c)
			got := XyToRgb(c.Max(), x, y)
			if !channelsWithin(got, c, 3) {
				t.Errorf("XyToRgb(RgbToXy(%v)) = %v", c, got)
			}
		})
	}
}

func TestXyToRgb_BrightnessCeiling(t *testing.T) {
	tests := []struct {
		bri  uint8
		x, y float64
	}{
		{200, 0.3127, 0.3290},
		{254, 0.675, 0.322},
		{100, 0.167, 0.04},
		{37, 0.409, 0.518},
	}
	for _, tt := range tests {
		got := XyToRgb(tt.bri, tt.x, tt.y)
		if got.Max() != tt.bri {
			t.Errorf("XyToRgb(%d, %v, %v) = %v, brightest channel %d, want %d",
				tt.bri, tt.x, tt.y, got, got.Max(), tt.bri)
		}
	}
}

func TestXyToRgb_MinimumBrightness(t *testing.T) {
	got := XyToRgb(1, 0.561, 0.4042)
	if got.Max() != minXyBrightness {
		t.Errorf("XyToRgb(1, ...) brightest channel = %d, want %d", got.Max(), minXyBrightness)
	}
}

func TestCtToRgb(t *testing.T) {
	conv := NewConverter(DefaultCalibration)

	got, err := conv.CtToRgb(254, 346)
	if err != nil {
		t.Fatal(err)
	}
	if want := (RGB{254, 170, 95}); got != want {
		t.Errorf("CtToRgb(254, 346) = %v, want %v", got, want)
	}

	cold, err := conv.CtToRgb(255, 100)
	if err != nil {
		t.Fatal(err)
	}
	if cold.B != 255 || !(cold.R < cold.G && cold.G < cold.B) {
		t.Errorf("CtToRgb(255, 100) = %v, want blue dominant", cold)
	}
}

func TestCtToRgb_VeryWarmDoesNotOverflow(t *testing.T) {
	conv := NewConverter(DefaultCalibration)
	got, err := conv.CtToRgb(255, 20000)
	if err != nil {
		t.Fatal(err)
	}
	if want := (RGB{255, 0, 0}); got != want {
		t.Errorf("CtToRgb(255, 20000) = %v, want %v", got, want)
	}
}

func TestCtToRgb_ZeroMired(t *testing.T) {
	conv := NewConverter(DefaultCalibration)
	if _, err := conv.CtToRgb(254, 0); !errors.Is(err, ErrZeroMired) {
		t.Errorf("CtToRgb(254, 0) error = %v, want ErrZeroMired", err)
	}
}

func TestCtToRgb_Calibration(t *testing.T) {
	conv := NewConverter(Calibration{Red: 40, Green: 100, Blue: 100})
	got, err := conv.CtToRgb(255, 153)
	if err != nil {
		t.Fatal(err)
	}
	if got.R != 102 {
		t.Errorf("calibrated red = %d, want 102", got.R)
	}
}

func TestHueSatToRgb(t *testing.T) {
	tests := []struct {
		name     string
		hue      uint16
		sat, bri uint8
		want     RGB
	}{
		{"red", 0, 255, 255, RGB{255, 0, 0}},
		{"green", 21846, 255, 255, RGB{0, 255, 0}},
		{"unsaturated", 12345, 0, 128, RGB{128, 128, 128}},
		{"off", 40000, 255, 0, RGB{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HueSatToRgb(tt.hue, tt.sat, tt.bri)
			if !channelsWithin(got, tt.want, 1) {
				t.Errorf("HueSatToRgb(%d, %d, %d) = %v, want %v", tt.hue, tt.sat, tt.bri, got, tt.want)
			}
		})
	}
}
