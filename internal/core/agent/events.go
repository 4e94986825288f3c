package agent

import (
	"fmt"

	"github.com/guiyumin/vskip/internal/core/favorites"
	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/i18n"
	"github.com/guiyumin/vskip/internal/core/keys"
	"github.com/guiyumin/vskip/internal/core/skipper"
)

// Video event types reported by the page.
const (
	EventTimeUpdate     = "timeupdate"
	EventLoadedMetadata = "loadedmetadata"
	EventDurationChange = "durationchange"
	EventEmptied        = "emptied"
	EventSeeking        = "seeking"
)

// VideoEvent is a media element event with the element's state at that moment.
type VideoEvent struct {
	VideoID     string  `json:"id"`
	Type        string  `json:"type"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
}

// OnVideoEvent feeds an element event to its tracker. Events of videos that
// were never the main video are ignored.
func (a *Agent) OnVideoEvent(ev VideoEvent) {
	now := a.opts.Now()

	a.mu.Lock()
	tr, ok := a.trackers[ev.VideoID]
	if !ok {
		a.mu.Unlock()
		a.obs.Notify()
		return
	}
	cfg := a.cfg

	var tick bool
	switch ev.Type {
	case EventTimeUpdate:
		tr.Handle(cfg, skipper.Tick{Now: now, Position: ev.CurrentTime, Duration: ev.Duration})
		tick = true
	case EventLoadedMetadata, EventDurationChange, EventEmptied:
		tr.Handle(cfg, skipper.Reset{Now: now})
	case EventSeeking:
		tr.Handle(cfg, skipper.Seeking{Position: ev.CurrentTime})
	}

	forward := false
	if tick && cfg.AutoUpdateFav && !a.IsTop() {
		if _, ready := a.top.Get(); ready && now.Sub(tr.LastFavoriteUpdate) >= a.opts.ForwardInterval {
			tr.LastFavoriteUpdate = now
			forward = true
		}
	}
	a.mu.Unlock()

	switch {
	case !tick || !cfg.AutoUpdateFav:
	case forward:
		a.forwardProgress(ev.CurrentTime, ev.Duration)
	case a.IsTop():
		a.saveProgress(ev.CurrentTime, ev.Duration)
	}
}

// OnKey handles a keydown. It reports whether the page should suppress the
// key's default action.
func (a *Agent) OnKey(ev keys.Event) bool {
	a.mu.Lock()
	cfg := a.cfg
	v := a.mainLocked()
	a.mu.Unlock()
	return a.seeker.Handle(cfg, ev, v)
}

// HandleMessage answers bus messages addressed to this frame.
func (a *Agent) HandleMessage(msg frames.Message, _ frames.Sender, respond frames.Respond) {
	switch msg.Action {
	case frames.ActionGetNiceTitle:
		res := a.Parse()
		respond(frames.NiceTitle{Series: res.Series, Episode: res.Episode, URL: res.URL, Site: res.Site})

	case frames.ActionGetRequestVideoInfo:
		if info, ok := a.VideoInfo(); ok {
			respond(info)
		}

	case frames.ActionTriggerAutoUpdate:
		if a.IsTop() && a.Config().AutoUpdateFav {
			a.saveProgress(msg.Time, msg.Duration)
		}
	}
}

// VideoInfo describes the main video for the "add to favorites" flow.
func (a *Agent) VideoInfo() (frames.VideoInfo, bool) {
	v := a.MainVideo()
	if v == nil {
		return frames.VideoInfo{}, false
	}
	res := a.Parse()
	pos := v.CurrentTime()
	return frames.VideoInfo{
		IsIframe:  !a.IsTop(),
		Series:    res.Series,
		Episode:   res.Episode,
		Site:      res.Site,
		URL:       favorites.ResumeURL(res.URL, pos),
		Time:      pos,
		Duration:  v.Duration(),
		Timestamp: a.opts.Now().UnixMilli(),
	}, true
}

func (a *Agent) forwardProgress(pos, dur float64) {
	if a.opts.Bus == nil {
		return
	}
	a.opts.Bus.SendRuntime(a.opts.Addr, frames.Message{
		Action:   frames.ActionSyncVideoProgress,
		Time:     pos,
		Duration: dur,
	}, nil)
}

// saveProgress is the authoritative write, top frame only.
func (a *Agent) saveProgress(pos, dur float64) {
	res := a.Parse()
	_, err := a.updater.Update(a.context(), favorites.Progress{
		Series:   res.Series,
		Episode:  res.Episode,
		URL:      favorites.ResumeURL(res.URL, pos),
		Time:     pos,
		Duration: dur,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("series", res.Series).Msg("failed to save progress")
	}
}

func (a *Agent) texts() i18n.ToastTranslations {
	lang := ""
	if a.opts.Lang != nil {
		lang = a.opts.Lang()
	}
	return i18n.T(lang).Toast
}

func (a *Agent) toast(msg string) {
	a.opts.Page.Toast(msg)
	if a.opts.OnToast != nil {
		a.opts.OnToast(a.opts.Addr, msg)
	}
}

func (a *Agent) skipperToast(m skipper.Message, arg int) {
	t := a.texts()
	switch m {
	case skipper.MsgSkipIntro:
		a.toast(fmt.Sprintf(t.SkipIntro, arg))
	case skipper.MsgSkipOutro:
		a.toast(t.SkipOutro)
	case skipper.MsgRestart:
		a.toast(fmt.Sprintf(t.Restart, arg))
	case skipper.MsgNextEpisode:
		a.toast(t.NextEpisode)
	}
}

func (a *Agent) seekToast(d keys.Direction, seconds float64) {
	t := a.texts()
	if d == keys.Forward {
		a.toast(fmt.Sprintf(t.Forward, seconds))
		return
	}
	a.toast(fmt.Sprintf(t.Rewind, seconds))
}

// toaster adapts the agent to notify.Notifier.
type toaster struct{ a *Agent }

func (t toaster) Toast(msg string) { t.a.toast(msg) }
