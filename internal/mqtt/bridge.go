// Package mqtt bridges the strip to an MQTT broker. Each light accepts
// commands on <prefix>/<n>/set and reports its state, retained, on
// <prefix>/<n>/state.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/light"
	"github.com/dokzlo13/huestrip/internal/protocol"
	"github.com/dokzlo13/huestrip/internal/scene"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Strip is the part of the engine the bridge drives.
type Strip interface {
	Numbers() []int
	Apply(batch map[int]light.Command) error
	ApplyScene(id, duration int) scene.Scene
	ApplySceneByName(name string, duration int) (scene.Scene, error)
	State(number int) (light.State, error)
}

// Recorder stores applied commands.
type Recorder interface {
	Append(requestID, source string, kind ledger.Kind, payload map[string]any, cmdErr error) error
}

// Bridge connects the strip to MQTT.
type Bridge struct {
	client pahomqtt.Client
	strip  Strip
	ledger Recorder
	prefix string
}

// NewBridge creates a bridge. Connect must be called before it talks to the
// broker. rec may be nil.
func NewBridge(strip Strip, cfg Config, rec Recorder) *Bridge {
	return &Bridge{
		strip:  strip,
		ledger: rec,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
	}
}

// Connect dials the broker. Subscriptions and the retained state of every
// light are (re)published on each connect.
func (b *Bridge) Connect(cfg Config) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(b.prefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
			b.publishBridgeState("online")
			b.subscribeCommands()
			b.publishAllStates()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Attach republishes light state whenever it changes.
func (b *Bridge) Attach(bus *eventbus.Bus) {
	bus.Subscribe(b.handleEvent, eventbus.EventTypeState, eventbus.EventTypeScene)
}

// Stop publishes the offline state and disconnects.
func (b *Bridge) Stop() {
	if b.client == nil {
		return
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	log.Info().Msg("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.EventTypeState:
		b.publishState(ev.Light)
	case eventbus.EventTypeScene:
		b.publishAllStates()
	}
}

func (b *Bridge) subscribeCommands() {
	topic := b.prefix + "/+/set"
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := b.handleMessage(msg.Topic(), msg.Payload()); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("MQTT command rejected")
		}
	})
	log.Debug().Str("topic", topic).Msg("Subscribed to MQTT commands")
}

// handleMessage dispatches a payload received on a set topic.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	target, ok := parseSetTopic(b.prefix, topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	reqID := ledger.NewRequestID()
	if target == "scene" {
		err := b.handleScene(payload)
		b.record(reqID, ledger.KindScene, payload, err)
		return err
	}

	n, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("light %q is not a number", target)
	}
	cmd, decodeErr := protocol.DecodeCommand(payload)
	err = errors.Join(decodeErr, b.strip.Apply(map[int]light.Command{n: cmd}))
	b.record(reqID, ledger.KindState, payload, err)
	if err != nil {
		return err
	}
	log.Debug().Str("request_id", reqID).Int("light", n).Msg("Applied MQTT command")
	return nil
}

// sceneRequest is the payload of <prefix>/scene/set. A bare number or name
// is also accepted.
type sceneRequest struct {
	Scene          json.RawMessage `json:"scene"`
	TransitionTime *int            `json:"transitiontime"`
}

func (b *Bridge) handleScene(payload []byte) error {
	id, name, duration, err := parseScene(payload)
	if err != nil {
		return err
	}
	if name != "" {
		_, err = b.strip.ApplySceneByName(name, duration)
		return err
	}
	b.strip.ApplyScene(id, duration)
	return nil
}

// parseScene returns either a scene id or a name, and the transition time
// (-1 for the default).
func parseScene(payload []byte) (id int, name string, duration int, err error) {
	duration = -1
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, "", 0, fmt.Errorf("%w: empty scene payload", light.ErrInvalidValue)
	}

	raw := json.RawMessage(text)
	if strings.HasPrefix(text, "{") {
		var req sceneRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return 0, "", 0, fmt.Errorf("%w: %v", light.ErrInvalidValue, err)
		}
		if req.TransitionTime != nil {
			if *req.TransitionTime < 0 {
				return 0, "", 0, fmt.Errorf("%w: negative transitiontime", light.ErrInvalidValue)
			}
			duration = *req.TransitionTime
		}
		raw = req.Scene
	}

	var s string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, "", duration, nil
	}
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
	} else {
		s = strings.Trim(strings.TrimSpace(string(raw)), `"`)
	}
	if s == "" {
		return 0, "", 0, fmt.Errorf("%w: scene id or name required", light.ErrInvalidValue)
	}
	if n, convErr := strconv.Atoi(s); convErr == nil {
		return n, "", duration, nil
	}
	return 0, s, duration, nil
}

// parseSetTopic extracts the segment between the prefix and "/set".
func parseSetTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	target, ok := strings.CutSuffix(rest, "/set")
	if !ok || target == "" || strings.Contains(target, "/") {
		return "", false
	}
	return target, true
}

func (b *Bridge) publishAllStates() {
	for _, n := range b.strip.Numbers() {
		b.publishState(n)
	}
}

func (b *Bridge) publishState(n int) {
	st, err := b.strip.State(n)
	if err != nil {
		log.Warn().Err(err).Int("light", n).Msg("No state to publish")
		return
	}
	payload, err := protocol.EncodeState(st)
	if err != nil {
		log.Error().Err(err).Int("light", n).Msg("Failed to encode light state")
		return
	}
	b.publish(stateTopic(b.prefix, n), payload, true)
}

func stateTopic(prefix string, n int) string {
	return fmt.Sprintf("%s/%d/state", prefix, n)
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if b.client == nil {
		return
	}
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			log.Warn().Str("topic", topic).Msg("MQTT publish timeout")
		} else if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish error")
		}
	}()
}

func (b *Bridge) record(reqID string, kind ledger.Kind, payload []byte, cmdErr error) {
	if b.ledger == nil {
		return
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		body = map[string]any{"raw": string(payload)}
	}
	if err := b.ledger.Append(reqID, "mqtt", kind, body, cmdErr); err != nil {
		log.Warn().Err(err).Str("request_id", reqID).Msg("Failed to write ledger entry")
	}
}
