package driver

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/dokzlo13/huestrip/internal/color"
)

// DefaultBaudRate matches the common Adalight sketches.
const DefaultBaudRate = 115200

// Adalight writes frames to a microcontroller speaking the Adalight serial
// protocol.
type Adalight struct {
	mu  sync.Mutex
	w   io.WriteCloser
	buf []byte
}

// OpenAdalight opens the serial port.
func OpenAdalight(port string, baud int) (*Adalight, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("adalight: open %s: %w", port, err)
	}
	return NewAdalight(p), nil
}

// NewAdalight wraps an already opened connection.
func NewAdalight(w io.WriteCloser) *Adalight {
	return &Adalight{w: w}
}

func (a *Adalight) Write(frame []color.RGB) error {
	if len(frame) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf = AppendAdalight(a.buf[:0], frame)
	if _, err := a.w.Write(a.buf); err != nil {
		return fmt.Errorf("adalight write: %w", err)
	}
	return nil
}

func (a *Adalight) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}

// AppendAdalight appends the encoded frame: the "Ada" magic, the pixel count
// minus one (big endian), a checksum of those two bytes and the RGB triples.
func AppendAdalight(dst []byte, frame []color.RGB) []byte {
	n := len(frame) - 1
	hi, lo := byte(n>>8), byte(n)
	dst = append(dst, 'A', 'd', 'a', hi, lo, hi^lo^0x55)
	for _, p := range frame {
		dst = append(dst, p.R, p.G, p.B)
	}
	return dst
}
