// Package driver pushes frames of the pixel buffer to physical strips.
package driver

import (
	"fmt"

	"github.com/dokzlo13/huestrip/internal/color"
)

// Driver transmits a complete frame. Implementations must not retain frame
// after Write returns.
type Driver interface {
	Write(frame []color.RGB) error
	Close() error
}

// Supported driver types.
const (
	TypeOPC      = "opc"
	TypeAdalight = "adalight"
	TypeNull     = "null"
)

// Config selects and configures a driver.
type Config struct {
	Type string

	// Open Pixel Control
	Host    string
	Port    int
	Channel uint8

	// Adalight over serial
	SerialPort string
	BaudRate   int
}

// New creates the driver selected by cfg.Type.
func New(cfg Config) (Driver, error) {
	switch cfg.Type {
	case TypeOPC:
		return NewOPC(cfg.Host, cfg.Port, cfg.Channel), nil
	case TypeAdalight:
		return OpenAdalight(cfg.SerialPort, cfg.BaudRate)
	case TypeNull, "":
		return &Null{}, nil
	default:
		return nil, fmt.Errorf("unknown driver type %q", cfg.Type)
	}
}
