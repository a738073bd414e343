package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Strip.Lights != 3 || cfg.Strip.PixelsPerLight != 10 || cfg.Strip.FirstLightNumber != 1 {
		t.Errorf("strip = %+v", cfg.Strip)
	}
	if cfg.Strip.GetDefaultTransition() != 4 {
		t.Errorf("default transition = %d, want 4", cfg.Strip.GetDefaultTransition())
	}
	if cfg.Strip.Calibration.Percent(cfg.Strip.Calibration.R) != 100 {
		t.Error("calibration should default to 100%")
	}
	if cfg.Driver.Type != "null" || cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != "./huestrip.sqlite" {
		t.Errorf("driver/storage = %+v / %+v", cfg.Driver, cfg.Storage)
	}
	if !cfg.API.IsEnabled() || cfg.API.Port != 8080 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.MQTT.Enabled {
		t.Error("mqtt should be disabled by default")
	}
	if !cfg.Ledger.IsEnabled() || cfg.Ledger.Retention() != 30*24*time.Hour {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Log.GetLevel() != "info" {
		t.Errorf("log level = %q", cfg.Log.GetLevel())
	}
	if cfg.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeout.Duration())
	}
}

func TestParse_Values(t *testing.T) {
	data := []byte(`
strip:
  lights: 5
  pixels_per_light: 60
  gap_pixels: 2
  default_transition: 0
  calibration:
    r: 90
    b: 80
driver:
  type: opc
  host: fadecandy.local
api:
  enabled: false
storage:
  backend: bolt
  save_interval: 30s
log:
  level: DEBUG
  json: true
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Strip.Lights != 5 || cfg.Strip.PixelsPerLight != 60 || cfg.Strip.GapPixels != 2 {
		t.Errorf("strip = %+v", cfg.Strip)
	}
	if cfg.Strip.GetDefaultTransition() != 0 {
		t.Errorf("explicit zero transition = %d", cfg.Strip.GetDefaultTransition())
	}
	cal := cfg.Strip.Calibration
	if cal.Percent(cal.R) != 90 || cal.Percent(cal.G) != 100 || cal.Percent(cal.B) != 80 {
		t.Errorf("calibration = %d/%d/%d", cal.Percent(cal.R), cal.Percent(cal.G), cal.Percent(cal.B))
	}
	if cfg.Driver.Type != "opc" || cfg.Driver.Host != "fadecandy.local" || cfg.Driver.Port != 7890 {
		t.Errorf("driver = %+v", cfg.Driver)
	}
	if cfg.API.IsEnabled() {
		t.Error("api should be disabled")
	}
	if cfg.Storage.Path != "./huestrip.db" || cfg.Storage.SaveInterval.Duration() != 30*time.Second {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Log.GetLevel() != "debug" || !cfg.Log.UseJSON {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("HUESTRIP_TEST_BROKER", "tcp://broker:1883")
	cfg, err := Parse([]byte(`
mqtt:
  enabled: true
  broker: ${HUESTRIP_TEST_BROKER}
  password: ${HUESTRIP_TEST_UNSET:secret}
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" || cfg.MQTT.Password != "secret" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
}

func TestParse_BadDuration(t *testing.T) {
	if _, err := Parse([]byte("shutdown_timeout: soon\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("strip:\n  name: Desk\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Strip.Name != "Desk" {
		t.Errorf("name = %q", cfg.Strip.Name)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_Intervals(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantRefresh time.Duration
		wantSave    time.Duration
		wantCleanup time.Duration
	}{
		{
			name:        "defaults",
			yaml:        "",
			wantRefresh: time.Second,
			wantSave:    5 * time.Second,
			wantCleanup: 24 * time.Hour,
		},
		{
			name:        "zero refresh disables resend",
			yaml:        "strip:\n  refresh: 0s\n",
			wantRefresh: 0,
			wantSave:    5 * time.Second,
			wantCleanup: 24 * time.Hour,
		},
		{
			name:        "negative values fall back",
			yaml:        "strip:\n  refresh: -1s\nstorage:\n  save_interval: -5s\nledger:\n  cleanup_interval: -1h\n",
			wantRefresh: time.Second,
			wantSave:    5 * time.Second,
			wantCleanup: 24 * time.Hour,
		},
		{
			name:        "explicit",
			yaml:        "strip:\n  refresh: 250ms\nstorage:\n  save_interval: 1m\nledger:\n  cleanup_interval: 2h\n",
			wantRefresh: 250 * time.Millisecond,
			wantSave:    time.Minute,
			wantCleanup: 2 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			if got := cfg.Strip.GetRefresh(); got != tt.wantRefresh {
				t.Errorf("refresh = %v, want %v", got, tt.wantRefresh)
			}
			if got := cfg.Storage.SaveInterval.Duration(); got != tt.wantSave {
				t.Errorf("save interval = %v, want %v", got, tt.wantSave)
			}
			if got := cfg.Ledger.CleanupInterval.Duration(); got != tt.wantCleanup {
				t.Errorf("cleanup interval = %v, want %v", got, tt.wantCleanup)
			}
		})
	}
}
