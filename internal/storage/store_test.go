package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dokzlo13/huestrip/internal/db"
	"github.com/dokzlo13/huestrip/internal/light"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	database, err := db.Open(filepath.Join(dir, "test.sqlite"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	bolt, err := OpenBolt(filepath.Join(dir, "test.bolt"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		BackendSQLite: NewSQLiteStore(database.DB),
		BackendBolt:   bolt,
	}
}

func TestStore_Lights(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.LoadLights()
			if err != nil || len(got) != 0 {
				t.Fatalf("empty LoadLights = %v, %v", got, err)
			}

			snaps := []light.Snapshot{
				{Number: 10, On: true, Bri: 200, Mode: "xy", X: 0.4, Y: 0.3, Ct: 346, Hue: 100, Sat: 50},
				{Number: 2, On: false, Bri: 1, Mode: "ct", Ct: 500},
			}
			if err := s.SaveLights(snaps); err != nil {
				t.Fatalf("SaveLights: %v", err)
			}
			snaps[1].Bri = 77
			if err := s.SaveLights(snaps[1:]); err != nil {
				t.Fatalf("SaveLights: %v", err)
			}

			got, err = s.LoadLights()
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("len = %d, want 2", len(got))
			}
			if got[0] != snaps[1] || got[1] != snaps[0] {
				t.Errorf("got %+v, want ordered by number", got)
			}
		})
	}
}

func TestStore_Meta(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetMeta("bridge_id"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetMeta on empty store err = %v, want ErrNotFound", err)
			}
			if err := s.SetMeta("bridge_id", "abc"); err != nil {
				t.Fatal(err)
			}
			if err := s.SetMeta("bridge_id", "def"); err != nil {
				t.Fatal(err)
			}
			v, err := s.GetMeta("bridge_id")
			if err != nil || v != "def" {
				t.Errorf("GetMeta = %q, %v; want def", v, err)
			}
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.SetMeta("k", "v")
			_ = s.SaveLights([]light.Snapshot{{Number: 1, Mode: "hs"}})
			if err := s.Clear(); err != nil {
				t.Fatal(err)
			}
			if got, _ := s.LoadLights(); len(got) != 0 {
				t.Errorf("lights after Clear = %v", got)
			}
			if _, err := s.GetMeta("k"); !errors.Is(err, ErrNotFound) {
				t.Errorf("meta after Clear err = %v", err)
			}
		})
	}
}

func TestSQLiteStore_Versions(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "v.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	s := NewSQLiteStore(database.DB)

	_ = s.Set("light", "1", []byte(`{}`))
	_ = s.Set("light", "1", []byte(`{"on":true}`))
	payload, version, err := s.Get("light", "1")
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 || string(payload) != `{"on":true}` {
		t.Errorf("Get = %s v%d, want {\"on\":true} v2", payload, version)
	}
}
