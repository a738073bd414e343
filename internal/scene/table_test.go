package scene

import (
	"testing"

	"github.com/dokzlo13/huestrip/internal/color"
)

func TestLookup_Known(t *testing.T) {
	s, ok := Lookup(1)
	if !ok {
		t.Fatal("scene 1 not found")
	}
	if s.Name != "read" || s.Bri != 254 {
		t.Errorf("scene 1 = %+v", s)
	}
	if ct, isCt := s.Setting.(color.ColorTemp); !isCt || ct.Mired != 346 {
		t.Errorf("scene 1 setting = %#v, want ColorTemp{346}", s.Setting)
	}
}

func TestLookup_UnknownFallsBack(t *testing.T) {
	for _, id := range []int{0, 11, 99, -1} {
		s, ok := Lookup(id)
		if ok {
			t.Errorf("Lookup(%d) reported found", id)
		}
		if s.Name != Default.Name {
			t.Errorf("Lookup(%d) = %q, want default %q", id, s.Name, Default.Name)
		}
	}
}

func TestDefaultIsWarmWhite(t *testing.T) {
	conv := color.NewConverter(color.DefaultCalibration)
	want, err := conv.CtToRgb(144, 447)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := Lookup(99)
	if got := s.Color(conv); got != want {
		t.Errorf("fallback color = %v, want %v", got, want)
	}
	if want.R <= want.B {
		t.Errorf("fallback %v is not warm", want)
	}
}

func TestByName(t *testing.T) {
	s, ok := ByName(" Arctic_Aurora ")
	if !ok || s.ID != 9 {
		t.Errorf("ByName(arctic_aurora) = %+v, %v", s, ok)
	}
	if s, ok := ByName("relax"); !ok || s.ID != DefaultID {
		t.Errorf("ByName(relax) = %+v, %v", s, ok)
	}
	if _, ok := ByName("disco"); ok {
		t.Error("ByName(disco) should not be found")
	}
}

func TestAll_OrderedAndResolvable(t *testing.T) {
	conv := color.NewConverter(color.DefaultCalibration)
	all := All()
	if len(all) != 10 {
		t.Fatalf("len(All()) = %d, want 10", len(all))
	}
	for i, s := range all {
		if s.ID != i+1 {
			t.Errorf("All()[%d].ID = %d", i, s.ID)
		}
		if c := s.Color(conv); c.IsBlack() {
			t.Errorf("scene %q resolves to black", s.Name)
		}
	}
}
