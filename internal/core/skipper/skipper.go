// Package skipper holds the per-video intro/outro state machine.
//
// Transition is pure: it takes the current configuration, the video's state and
// one event, and returns the next state plus the side effects to perform.
// Tracker binds a state to a live media.Video and performs those effects.
package skipper

import (
	"math"
	"time"

	"github.com/guiyumin/vskip/internal/core/config"
)

// Phase is where a video is in its load cycle.
type Phase int

const (
	// Fresh: nothing happened since the last load.
	Fresh Phase = iota
	// IntroDone: the intro was skipped, or marked as skipped.
	IntroDone
	// OutroPending: the outro was cut by seeking to the end.
	OutroPending
	// Switching: a next-episode control was clicked.
	Switching
	// Restarted: a video that loaded near its end was sent back to the intro.
	Restarted
)

func (p Phase) String() string {
	switch p {
	case Fresh:
		return "fresh"
	case IntroDone:
		return "intro-done"
	case OutroPending:
		return "outro-pending"
	case Switching:
		return "switching"
	case Restarted:
		return "restarted"
	}
	return "unknown"
}

const (
	// Debounce is the minimum wall-clock gap between two evaluated ticks.
	Debounce = 500 * time.Millisecond
	// LoadWindow is how long after a load the restart check stays armed and
	// outro skipping stays suppressed.
	LoadWindow = 4 * time.Second
	// Cooldown follows a restart seek; outro detection is off meanwhile.
	Cooldown = 5 * time.Second

	restartRemaining  = 30.0
	restartRatio      = 0.95
	introMinPosition  = 0.5
	seekResetPosition = 1.0
)

// State is the runtime state of one tracked video.
type State struct {
	Phase Phase

	// Restarted stays set for the whole load cycle, even if scrubbing back
	// to the start moves Phase back to Fresh.
	Restarted bool

	LoadedAt      time.Time
	CooldownUntil time.Time
	LastEval      time.Time
}

// NewState returns the state of a video loaded at now.
func NewState(now time.Time) State {
	return State{Phase: Fresh, LoadedAt: now}
}

// IntroSkipped reports whether the intro no longer needs skipping.
func (s State) IntroSkipped() bool { return s.Phase != Fresh }

func (s State) inCooldown(now time.Time) bool { return now.Before(s.CooldownUntil) }

func (s State) inLoadWindow(now time.Time) bool { return now.Sub(s.LoadedAt) < LoadWindow }

// Event is one input to Transition.
type Event interface{ event() }

// Tick is a time-update signal.
type Tick struct {
	Now      time.Time
	Position float64
	Duration float64
}

// Reset is a new source load (loadedmetadata, durationchange, emptied).
type Reset struct{ Now time.Time }

// Seeking is a user or page initiated seek landing at Position.
type Seeking struct{ Position float64 }

// NextClicked confirms that a next-episode control was activated.
type NextClicked struct{}

func (Tick) event()        {}
func (Reset) event()       {}
func (Seeking) event()     {}
func (NextClicked) event() {}

// EffectKind enumerates side effects.
type EffectKind int

const (
	// EffectSeek moves playback to Position.
	EffectSeek EffectKind = iota
	// EffectAdvance tries the next-episode control and falls back to seeking
	// to Position (the duration) when no control could be clicked.
	EffectAdvance
	// EffectToast shows Message.
	EffectToast
	// EffectRematchPreset re-runs preset auto-match shortly after a load.
	EffectRematchPreset
	// EffectInvalidateTopInfo drops the cached top-frame title and URL.
	EffectInvalidateTopInfo
)

// Message identifies a toast text; Arg fills its placeholder.
type Message int

const (
	MsgNone Message = iota
	MsgSkipIntro
	MsgSkipOutro
	MsgRestart
	MsgNextEpisode
)

// Effect is a side effect requested by Transition.
type Effect struct {
	Kind     EffectKind
	Position float64
	Message  Message
	Arg      int
}

func seek(pos float64) Effect { return Effect{Kind: EffectSeek, Position: pos} }

func toast(m Message, arg int) Effect { return Effect{Kind: EffectToast, Message: m, Arg: arg} }

// Transition computes the next state for ev.
func Transition(cfg config.Config, s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Reset:
		return NewState(e.Now), []Effect{
			{Kind: EffectInvalidateTopInfo},
			{Kind: EffectRematchPreset},
		}

	case Seeking:
		if e.Position < seekResetPosition {
			switch s.Phase {
			case IntroDone, OutroPending, Restarted:
				s.Phase = Fresh
			}
		}
		return s, nil

	case NextClicked:
		s.Phase = Switching
		return s, nil

	case Tick:
		return tick(cfg, s, e)
	}
	return s, nil
}

func tick(cfg config.Config, s State, e Tick) (State, []Effect) {
	if !s.LastEval.IsZero() && e.Now.Sub(s.LastEval) < Debounce {
		return s, nil
	}
	s.LastEval = e.Now

	dur, pos := e.Duration, e.Position
	if !cfg.AutoSkipEnable || math.IsNaN(dur) || math.IsInf(dur, 0) || dur <= 0 || dur < cfg.MinDuration {
		return s, nil
	}

	outroWindow := 0.0
	if cfg.EnableOutro {
		outroWindow = cfg.OutroTime
	}
	outroTrigger := dur - outroWindow

	// Safe landing: a video that loads already at its end goes back to the intro.
	if cfg.AutoRestart && !s.Restarted && s.inLoadWindow(e.Now) {
		if dur-pos < restartRemaining || pos/dur > restartRatio {
			target := 0.0
			if cfg.EnableIntro {
				target = cfg.IntroTime
			}
			if target >= outroTrigger {
				target = 0
			}
			s.Phase = Restarted
			s.Restarted = true
			s.CooldownUntil = e.Now.Add(Cooldown)
			return s, []Effect{seek(target), toast(MsgRestart, int(target))}
		}
	}

	if cfg.EnableIntro && cfg.IntroTime < outroTrigger &&
		s.Phase == Fresh && pos < cfg.IntroTime && pos > introMinPosition {
		if s.inCooldown(e.Now) {
			s.Phase = IntroDone
			return s, nil
		}
		if cfg.IntroTime < dur {
			s.Phase = IntroDone
			return s, []Effect{seek(cfg.IntroTime), toast(MsgSkipIntro, int(dur/60))}
		}
	}

	if cfg.EnableOutro && cfg.OutroTime > 0 && !s.inCooldown(e.Now) &&
		pos > outroTrigger && pos < dur {
		if s.inLoadWindow(e.Now) && !s.Restarted {
			return s, nil
		}
		if s.Phase == Switching || s.Phase == OutroPending {
			return s, nil
		}
		s.Phase = OutroPending
		if cfg.AutoPlayNext {
			return s, []Effect{{Kind: EffectAdvance, Position: dur}}
		}
		return s, []Effect{seek(dur), toast(MsgSkipOutro, 0)}
	}

	return s, nil
}
