// Package keys maps keyboard chords to manual seeks.
package keys

import (
	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/media"
)

// Event is a keydown as reported by the page.
type Event struct {
	Code  string `json:"code"`
	Shift bool   `json:"shift"`
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
}

// Matches reports whether ev is exactly chord c.
func Matches(c config.KeyChord, ev Event) bool {
	return c.Code != "" && c.Code == ev.Code && c.Shift == ev.Shift && c.Ctrl == ev.Ctrl && c.Alt == ev.Alt
}

// Direction of a manual seek.
type Direction int

const (
	Forward Direction = iota
	Rewind
)

// Seeker moves the main video by the configured manual skip time.
type Seeker struct {
	// Toast reports a performed seek; nil drops it.
	Toast func(d Direction, seconds float64)
	Log   zerolog.Logger
}

// Handle performs the seek bound to ev, if any. A true result means the page
// must suppress the key's default handling.
func (s *Seeker) Handle(cfg config.Config, ev Event, v media.Video) bool {
	var d Direction
	switch {
	case Matches(cfg.KeyForward, ev):
		d = Forward
	case Matches(cfg.KeyRewind, ev):
		d = Rewind
	default:
		return false
	}
	if v == nil {
		return false
	}

	step := cfg.ManualSkipTime
	target := v.CurrentTime() + step
	if d == Rewind {
		target = v.CurrentTime() - step
	}
	if target < 0 {
		target = 0
	}
	if err := v.Seek(target); err != nil {
		s.Log.Debug().Err(err).Float64("target", target).Msg("manual seek failed")
	}
	if s.Toast != nil {
		s.Toast(d, step)
	}
	return true
}
