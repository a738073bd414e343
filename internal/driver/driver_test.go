package driver

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dokzlo13/huestrip/internal/color"
)

type bufCloser struct {
	bytes.Buffer
	closed bool
	err    error
}

func (b *bufCloser) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	return b.Buffer.Write(p)
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestAppendAdalight(t *testing.T) {
	frame := []color.RGB{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}
	got := AppendAdalight(nil, frame)
	want := []byte{'A', 'd', 'a', 0x00, 0x01, 0x00 ^ 0x01 ^ 0x55, 1, 2, 3, 4, 5, 6}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestAppendAdalight_LargeCount(t *testing.T) {
	frame := make([]color.RGB, 300)
	got := AppendAdalight(nil, frame)
	if got[3] != 0x01 || got[4] != 0x2b || got[5] != 0x01^0x2b^0x55 {
		t.Errorf("header = % x", got[:6])
	}
	if len(got) != 6+900 {
		t.Errorf("len = %d, want %d", len(got), 906)
	}
}

func TestAdalight_Write(t *testing.T) {
	w := &bufCloser{}
	a := NewAdalight(w)
	if err := a.Write([]color.RGB{{R: 9}}); err != nil {
		t.Fatal(err)
	}
	if err := a.Write(nil); err != nil {
		t.Fatal(err)
	}
	if got := w.Bytes(); len(got) != 9 || got[6] != 9 {
		t.Errorf("written % x", got)
	}
	if err := a.Close(); err != nil || !w.closed {
		t.Errorf("Close = %v, closed = %v", err, w.closed)
	}

	w.err = errors.New("unplugged")
	if err := a.Write([]color.RGB{{}}); err == nil {
		t.Error("expected write error")
	}
}

func TestNull_KeepsLastFrame(t *testing.T) {
	n := &Null{}
	frame := []color.RGB{color.White}
	_ = n.Write(frame)
	frame[0] = color.Black

	last, count := n.Last()
	if count != 1 || len(last) != 1 || last[0] != color.White {
		t.Errorf("Last = %v, %d", last, count)
	}
}

func TestNew(t *testing.T) {
	d, err := New(Config{Type: TypeNull})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*Null); !ok {
		t.Errorf("New(null) = %T", d)
	}
	o, err := New(Config{Type: TypeOPC, Host: "127.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if o.(*OPC).addr != "127.0.0.1:7890" {
		t.Errorf("opc addr = %q", o.(*OPC).addr)
	}
	if _, err := New(Config{Type: "dmx"}); err == nil {
		t.Error("unknown driver type should fail")
	}
}
