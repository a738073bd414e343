package api

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dokzlo13/huestrip/internal/color"
	"github.com/dokzlo13/huestrip/internal/db"
	"github.com/dokzlo13/huestrip/internal/driver"
	"github.com/dokzlo13/huestrip/internal/engine"
	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/light"
	"github.com/dokzlo13/huestrip/internal/protocol"
	"github.com/dokzlo13/huestrip/internal/scene"
)

func newTestServer(t *testing.T, rec Recorder) (*httptest.Server, *engine.Engine) {
	t.Helper()
	layout := light.Layout{Lights: 3, PixelsPerLight: 10, FirstNumber: 1, DefaultTransition: 4}
	e, err := engine.New(color.NewConverter(color.DefaultCalibration), layout, &driver.Null{}, nil, engine.Options{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	mac := net.HardwareAddr{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	srv := NewServer("127.0.0.1", 0, e, protocol.NewDetect("Test strip", 3, "", mac), rec, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, e
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(data)
}

func TestDetect(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, ts.URL+"/detect", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var d protocol.Detect
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatal(err)
	}
	if d.Name != "Test strip" || d.Lights != 3 || d.Protocol != protocol.ProtocolName {
		t.Errorf("detect = %+v", d)
	}
	if d.MAC != "02:AA:BB:CC:DD:EE" {
		t.Errorf("mac = %q", d.MAC)
	}
}

func TestPutStateEchoesPayload(t *testing.T) {
	ts, e := newTestServer(t, nil)

	payload := `{"2":{"on":true,"bri":100,"ct":300}}`
	resp, body := do(t, http.MethodPut, ts.URL+"/state", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if body != payload {
		t.Errorf("body = %s, want %s", body, payload)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	st, err := e.State(2)
	if err != nil {
		t.Fatal(err)
	}
	if !st.On || st.Bri != 100 || st.Ct != 300 || st.ColorMode != "ct" {
		t.Errorf("state = %+v", st)
	}
}

func TestPutStateMalformed(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodPut, ts.URL+"/state", "not json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if body != "FAIL. not json" {
		t.Errorf("body = %q", body)
	}
}

func TestPutStatePartialFailure(t *testing.T) {
	ts, e := newTestServer(t, nil)

	resp, body := do(t, http.MethodPut, ts.URL+"/state", `{"1":{"bri":50},"9":{"on":true}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var replies []protocol.ErrorReply
	if err := json.Unmarshal([]byte(body), &replies); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if len(replies) != 1 {
		t.Fatalf("replies = %+v, want 1", replies)
	}
	if replies[0].Error.Type != protocol.ErrorTypeUnavailable {
		t.Errorf("type = %d, want %d", replies[0].Error.Type, protocol.ErrorTypeUnavailable)
	}
	if !strings.HasPrefix(replies[0].Error.Address, "/lights/9") {
		t.Errorf("address = %q", replies[0].Error.Address)
	}

	st, _ := e.State(1)
	if st.Bri != 50 {
		t.Errorf("light 1 bri = %d, want 50", st.Bri)
	}
}

func TestGetState(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"single", "?light=1", http.StatusOK},
		{"all", "", http.StatusOK},
		{"unknown", "?light=7", http.StatusNotFound},
		{"not_a_number", "?light=x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodGet, ts.URL+"/state"+tt.query, "")
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
		})
	}

	_, body := do(t, http.MethodGet, ts.URL+"/state?light=1", "")
	var st light.State
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatal(err)
	}
	if !st.On || st.Bri != light.DefaultBri || st.ColorMode != "hs" {
		t.Errorf("initial state = %+v", st)
	}
}

func TestScene(t *testing.T) {
	ts, e := newTestServer(t, nil)

	tests := []struct {
		name   string
		query  string
		status int
		want   string
	}{
		{"by_id", "?id=1", http.StatusOK, "read"},
		{"by_name", "?name=Concentrate", http.StatusOK, "concentrate"},
		{"unknown_id_falls_back", "?id=99", http.StatusOK, "relax"},
		{"unknown_name", "?name=disco", http.StatusBadRequest, ""},
		{"missing", "", http.StatusBadRequest, ""},
		{"bad_transition", "?id=1&transitiontime=-3", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPut, ts.URL+"/scene"+tt.query, "")
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
			if tt.want == "" {
				return
			}
			var got struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal([]byte(body), &got); err != nil {
				t.Fatal(err)
			}
			if got.Name != tt.want {
				t.Errorf("scene = %q, want %q", got.Name, tt.want)
			}
		})
	}

	want := scene.Default.Color(color.NewConverter(color.DefaultCalibration))
	if got := e.Info()[0].Target; got != want {
		t.Errorf("target after fallback scene = %v, want %v", got, want)
	}
}

func TestLights(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	_, body := do(t, http.MethodGet, ts.URL+"/lights", "")
	var infos []light.Info
	if err := json.Unmarshal([]byte(body), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Fatalf("lights = %d, want 3", len(infos))
	}
	if infos[1].Number != 2 || infos[1].First != 10 || infos[1].Last != 19 {
		t.Errorf("light 2 = %+v", infos[1])
	}
}

func TestHealthAndReady(t *testing.T) {
	layout := light.Layout{Lights: 1, PixelsPerLight: 1, FirstNumber: 1, DefaultTransition: 4}
	e, err := engine.New(color.NewConverter(color.DefaultCalibration), layout, &driver.Null{}, nil, engine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer("127.0.0.1", 0, e, protocol.Detect{}, nil, nil)
	ready := false
	srv.SetReadyCheck(func() bool { return ready })
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if resp, _ := do(t, http.MethodGet, ts.URL+"/health", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodGet, ts.URL+"/ready", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready before start = %d, want 503", resp.StatusCode)
	}
	ready = true
	if resp, _ := do(t, http.MethodGet, ts.URL+"/ready", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d, want 200", resp.StatusCode)
	}
}

func TestLedgerRecordsRequests(t *testing.T) {
	database, err := db.Open(t.TempDir() + "/ledger.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	ts, _ := newTestServer(t, ledger.New(database.DB))

	do(t, http.MethodPut, ts.URL+"/state", `{"1":{"on":false}}`)
	do(t, http.MethodPut, ts.URL+"/scene?id=2", "")

	resp, body := do(t, http.MethodGet, ts.URL+"/ledger?limit=10", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var entries []ledger.Entry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Source != "http" || e.RequestID == "" {
			t.Errorf("entry = %+v", e)
		}
	}
}

func TestLedgerDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	if resp, _ := do(t, http.MethodGet, ts.URL+"/ledger", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
