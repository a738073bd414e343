package color

// Mode identifies which stored parameters of a light are authoritative.
type Mode uint8

const (
	ModeXy Mode = iota + 1
	ModeColorTemp
	ModeHueSat
)

// String returns the protocol name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeXy:
		return "xy"
	case ModeColorTemp:
		return "ct"
	case ModeHueSat:
		return "hs"
	default:
		return ""
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "xy":
		return ModeXy, true
	case "ct":
		return ModeColorTemp, true
	case "hs":
		return ModeHueSat, true
	}
	return 0, false
}

// Setting is a color request in one of the three modes: Xy, ColorTemp or
// HueSat.
type Setting interface {
	Mode() Mode
}

// Xy selects a chromaticity point.
type Xy struct {
	X, Y float64
}

// ColorTemp selects a color temperature in mired.
type ColorTemp struct {
	Mired uint16
}

// HueSat selects hue and/or saturation; a nil field keeps the stored value.
type HueSat struct {
	Hue *uint16
	Sat *uint8
}

func (Xy) Mode() Mode        { return ModeXy }
func (ColorTemp) Mode() Mode { return ModeColorTemp }
func (HueSat) Mode() Mode    { return ModeHueSat }
