package mqtt

import (
	"errors"
	"testing"

	"github.com/dokzlo13/huestrip/internal/color"
	"github.com/dokzlo13/huestrip/internal/driver"
	"github.com/dokzlo13/huestrip/internal/engine"
	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/light"
)

type recorded struct {
	source string
	kind   ledger.Kind
	err    error
}

type fakeRecorder struct {
	entries []recorded
}

func (f *fakeRecorder) Append(_, source string, kind ledger.Kind, _ map[string]any, cmdErr error) error {
	f.entries = append(f.entries, recorded{source: source, kind: kind, err: cmdErr})
	return nil
}

func newTestBridge(t *testing.T) (*Bridge, *engine.Engine, *fakeRecorder) {
	t.Helper()
	layout := light.Layout{Lights: 2, PixelsPerLight: 4, FirstNumber: 1, DefaultTransition: 4}
	e, err := engine.New(color.NewConverter(color.DefaultCalibration), layout, &driver.Null{}, nil, engine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	rec := &fakeRecorder{}
	return NewBridge(e, Config{TopicPrefix: "strip/"}, rec), e, rec
}

func TestParseSetTopic(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"strip/1/set", "1", true},
		{"strip/scene/set", "scene", true},
		{"strip/1/state", "", false},
		{"other/1/set", "", false},
		{"strip/1/2/set", "", false},
		{"strip//set", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := parseSetTopic("strip", tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseSetTopic(%q) = %q, %v, want %q, %v", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseScene(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantID       int
		wantName     string
		wantDuration int
		wantErr      bool
	}{
		{"bare_id", "3", 3, "", -1, false},
		{"bare_name", "relax", 0, "relax", -1, false},
		{"quoted_name", `"read"`, 0, "read", -1, false},
		{"object_id", `{"scene":5,"transitiontime":10}`, 5, "", 10, false},
		{"object_name", `{"scene":"bright"}`, 0, "bright", -1, false},
		{"object_numeric_string", `{"scene":"2"}`, 2, "", -1, false},
		{"empty", "", 0, "", 0, true},
		{"object_without_scene", `{"transitiontime":3}`, 0, "", 0, true},
		{"negative_transition", `{"scene":1,"transitiontime":-1}`, 0, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, name, duration, err := parseScene([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if id != tt.wantID || name != tt.wantName || duration != tt.wantDuration {
				t.Errorf("parseScene(%q) = %d, %q, %d, want %d, %q, %d",
					tt.payload, id, name, duration, tt.wantID, tt.wantName, tt.wantDuration)
			}
		})
	}
}

func TestHandleMessage_LightCommand(t *testing.T) {
	b, e, rec := newTestBridge(t)

	if err := b.handleMessage("strip/2/set", []byte(`{"on":true,"bri":80,"xy":[0.3,0.3]}`)); err != nil {
		t.Fatal(err)
	}

	st, err := e.State(2)
	if err != nil {
		t.Fatal(err)
	}
	if st.Bri != 80 || st.ColorMode != "xy" {
		t.Errorf("state = %+v", st)
	}
	if len(rec.entries) != 1 || rec.entries[0].source != "mqtt" || rec.entries[0].kind != ledger.KindState {
		t.Errorf("ledger = %+v", rec.entries)
	}
}

func TestHandleMessage_Errors(t *testing.T) {
	b, _, rec := newTestBridge(t)

	tests := []struct {
		name    string
		topic   string
		payload string
		wantIs  error
	}{
		{"unknown_light", "strip/7/set", `{"on":true}`, light.ErrUnknownLight},
		{"bad_value", "strip/1/set", `{"alert":"blink"}`, light.ErrInvalidValue},
		{"unknown_scene", "strip/scene/set", `"disco"`, light.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.handleMessage(tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
		})
	}

	if err := b.handleMessage("strip/x/set", []byte(`{}`)); err == nil {
		t.Error("expected error for non-numeric light")
	}
	if err := b.handleMessage("elsewhere/1/set", []byte(`{}`)); err == nil {
		t.Error("expected error for foreign topic")
	}

	for _, r := range rec.entries {
		if r.err == nil {
			t.Errorf("ledger entry %+v recorded without error", r)
		}
	}
}

func TestHandleMessage_Scene(t *testing.T) {
	b, e, rec := newTestBridge(t)

	if err := b.handleMessage("strip/scene/set", []byte(`{"scene":"energize","transitiontime":0}`)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Step(); err != nil {
		t.Fatal(err)
	}

	conv := color.NewConverter(color.DefaultCalibration)
	want, err := conv.CtToRgb(254, 156)
	if err != nil {
		t.Fatal(err)
	}
	for _, info := range e.Info() {
		if info.Current != want {
			t.Errorf("light %d current = %v, want %v", info.Number, info.Current, want)
		}
	}
	if len(rec.entries) != 1 || rec.entries[0].kind != ledger.KindScene {
		t.Errorf("ledger = %+v", rec.entries)
	}
}

func TestStateTopic(t *testing.T) {
	if got := stateTopic("strip", 3); got != "strip/3/state" {
		t.Errorf("stateTopic = %q", got)
	}
}
