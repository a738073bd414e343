package driver

import (
	"sync"

	"github.com/dokzlo13/huestrip/internal/color"
)

// Null discards frames. It keeps the last one for inspection.
type Null struct {
	mu     sync.Mutex
	last   []color.RGB
	frames int
}

func (n *Null) Write(frame []color.RGB) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = append(n.last[:0], frame...)
	n.frames++
	return nil
}

// Last returns a copy of the most recent frame and the number of frames seen.
func (n *Null) Last() ([]color.RGB, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]color.RGB(nil), n.last...), n.frames
}

func (n *Null) Close() error { return nil }
