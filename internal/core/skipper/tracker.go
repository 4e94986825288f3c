package skipper

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/dom"
	"github.com/guiyumin/vskip/internal/core/media"
)

// Env is what a Tracker needs from its execution context.
type Env struct {
	Clicker       dom.Clicker
	NextSelectors []string

	// Toast shows a message; nil drops it.
	Toast func(m Message, arg int)

	// OnReset runs for EffectRematchPreset and EffectInvalidateTopInfo.
	OnReset func(kind EffectKind)

	Log zerolog.Logger
}

// Tracker drives one video element. It is not safe for concurrent use; the
// owning agent serializes calls.
type Tracker struct {
	video media.Video
	env   Env
	state State

	// LastFavoriteUpdate is when progress was last written or forwarded.
	// A Reset clears it.
	LastFavoriteUpdate time.Time
}

// NewTracker starts tracking v as freshly loaded at now.
func NewTracker(v media.Video, env Env, now time.Time) *Tracker {
	return &Tracker{video: v, env: env, state: NewState(now)}
}

func (t *Tracker) Video() media.Video { return t.video }

func (t *Tracker) State() State { return t.state }

// Handle runs ev through Transition and performs the resulting effects.
func (t *Tracker) Handle(cfg config.Config, ev Event) {
	if _, ok := ev.(Reset); ok {
		t.LastFavoriteUpdate = time.Time{}
	}
	next, effects := Transition(cfg, t.state, ev)
	t.state = next
	for _, e := range effects {
		t.perform(cfg, e)
	}
}

func (t *Tracker) perform(cfg config.Config, e Effect) {
	switch e.Kind {
	case EffectSeek:
		t.seek(e.Position)

	case EffectAdvance:
		if t.env.Clicker != nil && t.env.Clicker.ClickFirst(t.env.NextSelectors) {
			t.state, _ = Transition(cfg, t.state, NextClicked{})
			t.show(MsgNextEpisode, 0)
			return
		}
		t.seek(e.Position)
		t.show(MsgSkipOutro, 0)

	case EffectToast:
		t.show(e.Message, e.Arg)

	case EffectRematchPreset, EffectInvalidateTopInfo:
		if t.env.OnReset != nil {
			t.env.OnReset(e.Kind)
		}
	}
}

// seek is best effort; the state already records the skip.
func (t *Tracker) seek(pos float64) {
	if err := t.video.Seek(pos); err != nil {
		t.env.Log.Debug().Err(err).Str("video", t.video.ID()).Float64("target", pos).Msg("seek failed")
		return
	}
	t.env.Log.Debug().Str("video", t.video.ID()).Float64("target", pos).Msg("seek")
}

func (t *Tracker) show(m Message, arg int) {
	if t.env.Toast != nil {
		t.env.Toast(m, arg)
	}
}
