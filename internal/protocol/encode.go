package protocol

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/dokzlo13/huestrip/internal/light"
)

// Values reported by the detect endpoint.
const (
	ProtocolName   = "native_multi"
	DefaultModelID = "LCT015"
	DefaultType    = "SK9822_strip"
	Version        = "3.1"
)

// Detect identifies the device to a diyHue bridge.
type Detect struct {
	Name     string `json:"name"`
	Lights   int    `json:"lights"`
	Protocol string `json:"protocol"`
	ModelID  string `json:"modelid"`
	Type     string `json:"type"`
	MAC      string `json:"mac"`
	Version  string `json:"version"`
}

// NewDetect fills a detect payload with the protocol defaults.
func NewDetect(name string, lights int, stripType string, mac net.HardwareAddr) Detect {
	if stripType == "" {
		stripType = DefaultType
	}
	return Detect{
		Name:     name,
		Lights:   lights,
		Protocol: ProtocolName,
		ModelID:  DefaultModelID,
		Type:     stripType,
		MAC:      FormatMAC(mac),
		Version:  Version,
	}
}

// FormatMAC renders a hardware address as upper case, colon separated hex.
func FormatMAC(mac net.HardwareAddr) string {
	return strings.ToUpper(mac.String())
}

// EncodeState renders one light's state.
func EncodeState(st light.State) ([]byte, error) {
	return json.Marshal(st)
}

// ErrorReply is the body returned for rejected requests.
type ErrorReply struct {
	Error struct {
		Type        int    `json:"type"`
		Address     string `json:"address"`
		Description string `json:"description"`
	} `json:"error"`
}

// Error types used in ErrorReply.
const (
	ErrorTypeInvalidJSON  = 2
	ErrorTypeUnavailable  = 3
	ErrorTypeInvalidValue = 7
)

// NewErrorReply builds an error reply for address.
func NewErrorReply(typ int, address string, err error) ErrorReply {
	var r ErrorReply
	r.Error.Type = typ
	r.Error.Address = address
	r.Error.Description = err.Error()
	return r
}

// FailMessage is the plain text reply for a payload that could not be parsed.
func FailMessage(payload []byte) string {
	return fmt.Sprintf("FAIL. %s", payload)
}
