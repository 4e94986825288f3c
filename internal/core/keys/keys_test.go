package keys

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
)

type fakeVideo struct {
	pos   float64
	seeks []float64
}

func (v *fakeVideo) ID() string { return "v" }
func (v *fakeVideo) CurrentTime() float64 { return v.pos }
func (v *fakeVideo) Duration() float64 { return 1400 }
func (v *fakeVideo) Paused() bool { return false }
func (v *fakeVideo) Seek(pos float64) error {
	v.seeks = append(v.seeks, pos)
	v.pos = pos
	return nil
}

func TestMatches(t *testing.T) {
	chord := config.KeyChord{Code: "ArrowRight", Shift: true}
	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"exact", Event{Code: "ArrowRight", Shift: true}, true},
		{"missing shift", Event{Code: "ArrowRight"}, false},
		{"extra ctrl", Event{Code: "ArrowRight", Shift: true, Ctrl: true}, false},
		{"other key", Event{Code: "ArrowLeft", Shift: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(chord, tt.ev); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
	if Matches(config.KeyChord{}, Event{}) {
		t.Error("an empty chord must never match")
	}
}

func TestSeekerHandle(t *testing.T) {
	cfg := config.Defaults()
	cfg.ManualSkipTime = 90

	var dirs []Direction
	s := &Seeker{Toast: func(d Direction, _ float64) { dirs = append(dirs, d) }, Log: zerolog.Nop()}
	v := &fakeVideo{pos: 30}

	if !s.Handle(cfg, Event{Code: "ArrowRight", Shift: true}, v) {
		t.Fatal("forward not handled")
	}
	if !s.Handle(cfg, Event{Code: "ArrowLeft", Shift: true}, v) {
		t.Fatal("rewind not handled")
	}
	if !s.Handle(cfg, Event{Code: "ArrowLeft", Shift: true}, v) {
		t.Fatal("rewind not handled")
	}
	want := []float64{120, 30, 0}
	for i := range want {
		if v.seeks[i] != want[i] {
			t.Fatalf("seeks = %v, want %v", v.seeks, want)
		}
	}
	if len(dirs) != 3 || dirs[0] != Forward || dirs[2] != Rewind {
		t.Errorf("toasts = %v", dirs)
	}

	if s.Handle(cfg, Event{Code: "KeyA"}, v) {
		t.Error("unbound key handled")
	}
	if s.Handle(cfg, Event{Code: "ArrowRight", Shift: true}, nil) {
		t.Error("handled without a video")
	}
}
