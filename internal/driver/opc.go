package driver

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/kellydunn/go-opc"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/color"
)

// DefaultOPCPort is the standard Open Pixel Control port.
const DefaultOPCPort = 7890

// OPC sends frames to an Open Pixel Control server (fadecandy, gl_server).
// The connection is established lazily and re-established after a failed
// send.
type OPC struct {
	addr    string
	channel uint8

	mu     sync.Mutex
	client *opc.Client
}

// NewOPC creates an OPC driver for host:port on the given channel.
func NewOPC(host string, port int, channel uint8) *OPC {
	if port == 0 {
		port = DefaultOPCPort
	}
	return &OPC{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		channel: channel,
	}
}

func (o *OPC) Write(frame []color.RGB) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.client == nil {
		c := opc.NewClient()
		if err := c.Connect("tcp", o.addr); err != nil {
			return fmt.Errorf("opc connect %s: %w", o.addr, err)
		}
		log.Info().Str("addr", o.addr).Uint8("channel", o.channel).Msg("Connected to OPC server")
		o.client = c
	}

	if err := o.client.Send(newOPCMessage(o.channel, frame)); err != nil {
		o.client = nil
		return fmt.Errorf("opc send: %w", err)
	}
	return nil
}

func newOPCMessage(channel uint8, frame []color.RGB) *opc.Message {
	msg := opc.NewMessage(channel)
	msg.SetLength(uint16(len(frame) * 3))
	for i, p := range frame {
		msg.SetPixelColor(i, p.R, p.G, p.B)
	}
	return msg
}

func (o *OPC) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.client = nil
	return nil
}
