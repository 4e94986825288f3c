package skipper

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
)

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

func enabled() config.Config {
	c := config.Defaults()
	c.AutoSkipEnable = true
	return c
}

func seeks(effects []Effect) []float64 {
	var out []float64
	for _, e := range effects {
		if e.Kind == EffectSeek {
			out = append(out, e.Position)
		}
	}
	return out
}

// play feeds ticks spaced by step and collects every seek target.
func play(cfg config.Config, s State, start time.Time, step time.Duration, duration float64, positions ...float64) (State, []float64) {
	var all []float64
	now := start
	for _, pos := range positions {
		var effects []Effect
		s, effects = Transition(cfg, s, Tick{Now: now, Position: pos, Duration: duration})
		all = append(all, seeks(effects)...)
		now = now.Add(step)
	}
	return s, all
}

func TestIntroSkippedOncePerLoad(t *testing.T) {
	cfg := enabled()

	var positions []float64
	for p := 0.0; p < 5; p += 0.25 {
		positions = append(positions, p)
	}
	positions = append(positions, 3, 2, 1, 91, 92, 93)

	for _, step := range []time.Duration{100 * time.Millisecond, 600 * time.Millisecond} {
		s, got := play(cfg, NewState(t0), t0.Add(10*time.Second), step, 1400, positions...)
		if len(got) != 1 || got[0] != cfg.IntroTime {
			t.Errorf("step %v: seeks = %v, want exactly one to %v", step, got, cfg.IntroTime)
		}
		if !s.IntroSkipped() {
			t.Errorf("step %v: intro not marked skipped", step)
		}
	}
}

func TestIntroScenario(t *testing.T) {
	cfg := enabled()
	cfg.IntroTime = 90
	cfg.OutroTime = 0
	cfg.EnableIntro = true

	s := NewState(t0)
	s, effects := Transition(cfg, s, Tick{Now: t0, Position: 0.4, Duration: 1400})
	if len(effects) != 0 || s.IntroSkipped() {
		t.Fatalf("at 0.4s: effects = %v, state = %+v", effects, s)
	}

	s, effects = Transition(cfg, s, Tick{Now: t0.Add(600 * time.Millisecond), Position: 1.0, Duration: 1400})
	if got := seeks(effects); len(got) != 1 || got[0] != 90 {
		t.Fatalf("at 1.0s: seeks = %v, want [90]", got)
	}
	if s.Phase != IntroDone || !s.IntroSkipped() {
		t.Errorf("Phase = %v, want %v", s.Phase, IntroDone)
	}
}

func TestShortVideoNeverSeeks(t *testing.T) {
	cfg := enabled()
	cfg.MinDuration = 300
	cfg.AutoRestart = true
	cfg.AutoPlayNext = true
	cfg.OutroTime = 30

	var positions []float64
	for p := 0.0; p <= 199; p += 1.5 {
		positions = append(positions, p)
	}
	positions = append(positions, 199)

	for _, start := range []time.Time{t0, t0.Add(time.Minute)} {
		s := NewState(t0)
		now := start
		for _, pos := range positions {
			var effects []Effect
			s, effects = Transition(cfg, s, Tick{Now: now, Position: pos, Duration: 200})
			if len(effects) != 0 {
				t.Fatalf("pos %v: effects = %v, want none", pos, effects)
			}
			now = now.Add(600 * time.Millisecond)
		}
	}
}

func TestDisabledOrUnknownDuration(t *testing.T) {
	off := config.Defaults()
	if _, effects := Transition(off, NewState(t0), Tick{Now: t0.Add(time.Minute), Position: 2, Duration: 1400}); len(effects) != 0 {
		t.Errorf("disabled: effects = %v", effects)
	}

	if _, effects := Transition(enabled(), NewState(t0), Tick{Now: t0.Add(time.Minute), Position: 2, Duration: math.NaN()}); len(effects) != 0 {
		t.Errorf("NaN duration: effects = %v", effects)
	}
}

func TestRestartFallsBackToZeroOnOverlap(t *testing.T) {
	cfg := enabled()
	cfg.MinDuration = 0
	cfg.AutoRestart = true
	cfg.IntroTime = 90
	cfg.OutroTime = 20

	s, effects := Transition(cfg, NewState(t0), Tick{Now: t0.Add(time.Second), Position: 99, Duration: 100})
	if got := seeks(effects); len(got) != 1 || got[0] != 0 {
		t.Fatalf("restart seeks = %v, want [0]", got)
	}
	if s.Phase != Restarted || !s.Restarted {
		t.Fatalf("state = %+v", s)
	}

	var positions []float64
	for p := 1.0; p < 100; p++ {
		positions = append(positions, p)
	}
	s, got := play(cfg, s, t0.Add(1600*time.Millisecond), 600*time.Millisecond, 100, positions...)
	for _, target := range got {
		if target == cfg.IntroTime {
			t.Fatalf("seeks = %v, intro target must not be used when it overlaps the outro", got)
		}
	}
	if len(got) != 1 || got[0] != 100 {
		t.Errorf("seeks after restart = %v, want a single outro seek to 100", got)
	}
	if s.Phase != OutroPending {
		t.Errorf("Phase = %v, want %v", s.Phase, OutroPending)
	}
}

func TestRestartToIntroAndCooldown(t *testing.T) {
	cfg := enabled()
	cfg.AutoRestart = true
	cfg.OutroTime = 60

	s, effects := Transition(cfg, NewState(t0), Tick{Now: t0.Add(time.Second), Position: 1390, Duration: 1400})
	if got := seeks(effects); len(got) != 1 || got[0] != 90 {
		t.Fatalf("restart seeks = %v, want [90]", got)
	}
	if s.CooldownUntil != t0.Add(time.Second+Cooldown) {
		t.Errorf("CooldownUntil = %v", s.CooldownUntil)
	}

	// Progress bar jitter back into the outro window during the cooldown.
	s, effects = Transition(cfg, s, Tick{Now: t0.Add(2 * time.Second), Position: 1380, Duration: 1400})
	if len(effects) != 0 {
		t.Fatalf("outro must be suppressed during cooldown, got %v", effects)
	}

	// Scrubbing to the start re-arms the intro, but the cooldown only marks it.
	s, _ = Transition(cfg, s, Seeking{Position: 0.2})
	if s.Phase != Fresh || !s.Restarted {
		t.Fatalf("after seeking: %+v", s)
	}
	s, effects = Transition(cfg, s, Tick{Now: t0.Add(3 * time.Second), Position: 0.8, Duration: 1400})
	if len(effects) != 0 || s.Phase != IntroDone {
		t.Fatalf("in cooldown: effects = %v, phase = %v", effects, s.Phase)
	}

	// Restart fires once per load.
	_, effects = Transition(cfg, s, Tick{Now: t0.Add(3600 * time.Millisecond), Position: 1395, Duration: 1400})
	if len(seeks(effects)) != 0 {
		t.Errorf("second restart: %v", effects)
	}
}

func TestOutro(t *testing.T) {
	cfg := enabled()
	cfg.OutroTime = 60

	s, effects := Transition(cfg, NewState(t0), Tick{Now: t0.Add(time.Second), Position: 1380, Duration: 1400})
	if len(effects) != 0 {
		t.Fatalf("outro right after load must be suppressed, got %v", effects)
	}

	s, effects = Transition(cfg, s, Tick{Now: t0.Add(5 * time.Second), Position: 1381, Duration: 1400})
	if got := seeks(effects); len(got) != 1 || got[0] != 1400 {
		t.Fatalf("seeks = %v, want [1400]", got)
	}

	_, effects = Transition(cfg, s, Tick{Now: t0.Add(6 * time.Second), Position: 1382, Duration: 1400})
	if len(effects) != 0 {
		t.Errorf("outro repeated within the load cycle: %v", effects)
	}

	cfg.AutoPlayNext = true
	_, effects = Transition(cfg, NewState(t0), Tick{Now: t0.Add(5 * time.Second), Position: 1381, Duration: 1400})
	if len(effects) != 1 || effects[0].Kind != EffectAdvance || effects[0].Position != 1400 {
		t.Errorf("auto play next effects = %v", effects)
	}
}

func TestSeekingAndReset(t *testing.T) {
	cfg := enabled()
	s := State{Phase: IntroDone, LoadedAt: t0}

	if s2, _ := Transition(cfg, s, Seeking{Position: 5}); s2.Phase != IntroDone {
		t.Errorf("seeking to 5s changed phase to %v", s2.Phase)
	}
	if s2, _ := Transition(cfg, s, Seeking{Position: 0.5}); s2.Phase != Fresh {
		t.Errorf("seeking below 1s left phase %v", s2.Phase)
	}
	if s2, _ := Transition(cfg, State{Phase: Switching}, Seeking{Position: 0}); s2.Phase != Switching {
		t.Errorf("seeking must not cancel a switch, got %v", s2.Phase)
	}

	later := t0.Add(time.Hour)
	s2, effects := Transition(cfg, State{Phase: Switching, Restarted: true, CooldownUntil: later}, Reset{Now: later})
	if s2 != NewState(later) {
		t.Errorf("reset state = %+v", s2)
	}
	if len(effects) != 2 || effects[0].Kind != EffectInvalidateTopInfo || effects[1].Kind != EffectRematchPreset {
		t.Errorf("reset effects = %v", effects)
	}
}

type fakeVideo struct {
	seeks []float64
	err   error
}

func (v *fakeVideo) ID() string { return "v1" }
func (v *fakeVideo) CurrentTime() float64 { return 0 }
func (v *fakeVideo) Duration() float64 { return 1400 }
func (v *fakeVideo) Paused() bool { return false }
func (v *fakeVideo) Seek(pos float64) error {
	v.seeks = append(v.seeks, pos)
	return v.err
}

type fakeClicker struct {
	ok    bool
	tried [][]string
}

func (c *fakeClicker) ClickFirst(selectors []string) bool {
	c.tried = append(c.tried, selectors)
	return c.ok
}

func TestTrackerAdvance(t *testing.T) {
	cfg := enabled()
	cfg.OutroTime = 60
	cfg.AutoPlayNext = true

	tests := []struct {
		name      string
		clickOK   bool
		wantSeeks int
		wantPhase Phase
		wantToast Message
	}{
		{"next clicked", true, 0, Switching, MsgNextEpisode},
		{"fallback to end", false, 1, OutroPending, MsgSkipOutro},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeVideo{}
			c := &fakeClicker{ok: tt.clickOK}
			var toasts []Message
			tr := NewTracker(v, Env{
				Clicker:       c,
				NextSelectors: []string{".next"},
				Toast:         func(m Message, _ int) { toasts = append(toasts, m) },
				Log:           zerolog.Nop(),
			}, t0)

			tr.Handle(cfg, Tick{Now: t0.Add(10 * time.Second), Position: 1390, Duration: 1400})

			if len(v.seeks) != tt.wantSeeks {
				t.Errorf("seeks = %v", v.seeks)
			}
			if tr.State().Phase != tt.wantPhase {
				t.Errorf("Phase = %v, want %v", tr.State().Phase, tt.wantPhase)
			}
			if len(toasts) != 1 || toasts[0] != tt.wantToast {
				t.Errorf("toasts = %v", toasts)
			}
			if len(c.tried) != 1 || c.tried[0][0] != ".next" {
				t.Errorf("clicker tried %v", c.tried)
			}
		})
	}
}

func TestTrackerSeekFailureStillMarks(t *testing.T) {
	v := &fakeVideo{err: errors.New("not seekable")}
	var resets []EffectKind
	tr := NewTracker(v, Env{
		OnReset: func(k EffectKind) { resets = append(resets, k) },
		Log:     zerolog.Nop(),
	}, t0)

	cfg := enabled()
	tr.Handle(cfg, Tick{Now: t0.Add(time.Minute), Position: 2, Duration: 1400})
	tr.Handle(cfg, Tick{Now: t0.Add(time.Minute + time.Second), Position: 2.5, Duration: 1400})

	if len(v.seeks) != 1 {
		t.Errorf("seeks = %v, a failed seek must not be retried", v.seeks)
	}
	if !tr.State().IntroSkipped() {
		t.Error("intro not marked skipped after a failed seek")
	}

	tr.Handle(cfg, Reset{Now: t0.Add(2 * time.Minute)})
	if len(resets) != 2 {
		t.Errorf("OnReset calls = %v", resets)
	}
	if tr.State().IntroSkipped() {
		t.Error("reset kept the intro flag")
	}
}

func TestTrackerResetClearsFavoriteClock(t *testing.T) {
	tr := NewTracker(&fakeVideo{}, Env{Log: zerolog.Nop()}, t0)
	tr.LastFavoriteUpdate = t0.Add(time.Minute)

	tr.Handle(enabled(), Seeking{Position: 30})
	if tr.LastFavoriteUpdate.IsZero() {
		t.Fatal("seeking cleared LastFavoriteUpdate")
	}

	tr.Handle(enabled(), Reset{Now: t0.Add(2 * time.Minute)})
	if !tr.LastFavoriteUpdate.IsZero() {
		t.Errorf("LastFavoriteUpdate = %v after reset, want zero", tr.LastFavoriteUpdate)
	}
}
