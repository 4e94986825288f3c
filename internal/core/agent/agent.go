// Package agent is the controller of one execution context (a frame of a
// tab). It owns a configuration snapshot kept current by the store
// subscription, one skipper.Tracker per main video it has seen, and the
// cross-frame plumbing for identity and progress.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/dom"
	"github.com/guiyumin/vskip/internal/core/favorites"
	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/keys"
	"github.com/guiyumin/vskip/internal/core/locator"
	"github.com/guiyumin/vskip/internal/core/media"
	"github.com/guiyumin/vskip/internal/core/observer"
	"github.com/guiyumin/vskip/internal/core/preset"
	"github.com/guiyumin/vskip/internal/core/site"
	"github.com/guiyumin/vskip/internal/core/skipper"
	"github.com/guiyumin/vskip/internal/core/store"
	"github.com/guiyumin/vskip/internal/core/title"
)

const (
	DefaultRematchDelay    = time.Second
	DefaultForwardInterval = 5 * time.Second
)

// Page is the agent's view of its frame.
type Page interface {
	dom.Document
	dom.Clicker

	// Tree returns the document tree the locator searches.
	Tree(ctx context.Context) (locator.Node, error)

	// Toast shows a transient message in the frame.
	Toast(msg string)
}

// Options configures an Agent.
type Options struct {
	Addr   frames.Address
	Page   Page
	Store  store.Store
	Bus    *frames.Bus
	Parser *title.Parser

	// Lang selects toast texts; nil means Chinese.
	Lang func() string

	// OnToast observes every toast, e.g. for the websocket feed.
	OnToast func(addr frames.Address, msg string)

	Now             func() time.Time
	RematchDelay    time.Duration
	ForwardInterval time.Duration

	Log zerolog.Logger
}

// Agent is safe for concurrent use; video events, key events, bus messages
// and store deltas may arrive from different goroutines.
type Agent struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	cfg      config.Config
	trackers map[string]*skipper.Tracker
	main     string
	rematch  *time.Timer

	top     frames.TopInfoCache
	presets *preset.Engine
	updater *favorites.Updater
	seeker  *keys.Seeker
	obs     *observer.Observer

	ctx        context.Context
	cancel     context.CancelFunc
	unsub      func()
	unregister func()
}

func New(opts Options) *Agent {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Parser == nil {
		opts.Parser = title.New(nil)
	}
	if opts.RematchDelay == 0 {
		opts.RematchDelay = DefaultRematchDelay
	}
	if opts.ForwardInterval == 0 {
		opts.ForwardInterval = DefaultForwardInterval
	}

	log := opts.Log.With().Int("tab", opts.Addr.TabID).Int("frame", opts.Addr.FrameID).Logger()
	a := &Agent{
		opts:     opts,
		log:      log,
		cfg:      config.Defaults(),
		trackers: make(map[string]*skipper.Tracker),
		updater:  &favorites.Updater{Store: opts.Store, Now: opts.Now, Log: log},
	}
	a.presets = &preset.Engine{
		Store:    opts.Store,
		Notifier: toaster{a},
		Format:   func(name string) string { return fmt.Sprintf(a.texts().PresetApplied, name) },
		Log:      log,
	}
	a.seeker = &keys.Seeker{Toast: a.seekToast, Log: log}
	a.obs = observer.New(func() { a.Scan(a.context()) })
	return a
}

// IsTop reports whether this context is the tab's top frame.
func (a *Agent) IsTop() bool { return a.opts.Addr.FrameID == frames.TopFrame }

// Start loads the configuration, subscribes to changes, joins the bus and
// runs the initial scan.
func (a *Agent) Start(ctx context.Context) error {
	cfg, err := config.Load(ctx, a.opts.Store)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.cfg = cfg
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	a.mu.Unlock()

	a.unsub = a.opts.Store.Subscribe(a.onStoreChange)
	if a.opts.Bus != nil {
		a.unregister = a.opts.Bus.RegisterFrame(a.opts.Addr, a.HandleMessage)
	}

	a.obs.Start()

	if a.IsTop() {
		a.checkPreset()
	} else {
		a.refreshTopInfo()
	}
	a.log.Debug().Str("url", a.opts.Page.URL()).Msg("agent started")
	return nil
}

// Stop detaches the agent from the store and the bus.
func (a *Agent) Stop() {
	a.obs.Stop()
	if a.unsub != nil {
		a.unsub()
	}
	if a.unregister != nil {
		a.unregister()
	}
	a.mu.Lock()
	if a.rematch != nil {
		a.rematch.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()
}

// Notify reports a DOM mutation batch; a debounced rescan follows.
func (a *Agent) Notify() { a.obs.Notify() }

// Config returns the current configuration snapshot.
func (a *Agent) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *Agent) context() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

func (a *Agent) onStoreChange(changes store.Changes) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.cfg.Apply(changes); err != nil {
		a.log.Warn().Err(err).Msg("ignored config change")
	}
}

// Scan finds the main video and starts tracking it. Trackers of elements
// that left the document are dropped.
func (a *Agent) Scan(ctx context.Context) {
	root, err := a.opts.Page.Tree(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("scan skipped")
		return
	}
	videos := locator.Collect(root)
	main := locator.SelectMain(videos)

	present := make(map[string]bool, len(videos))
	for _, v := range videos {
		present[v.ID()] = true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id := range a.trackers {
		if !present[id] {
			delete(a.trackers, id)
		}
	}
	if main == nil {
		a.main = ""
		return
	}
	if _, ok := a.trackers[main.ID()]; !ok {
		a.trackers[main.ID()] = skipper.NewTracker(main, a.trackerEnv(), a.opts.Now())
		a.log.Debug().Str("video", main.ID()).Float64("duration", main.Duration()).Msg("tracking video")
	}
	a.main = main.ID()
}

// MainVideo returns the last main video found by Scan.
func (a *Agent) MainVideo() media.Video {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mainLocked()
}

func (a *Agent) mainLocked() media.Video {
	if t, ok := a.trackers[a.main]; ok {
		return t.Video()
	}
	return nil
}

func (a *Agent) trackerEnv() skipper.Env {
	strategy := a.opts.Parser.Sites().Resolve(a.currentURL())
	selectors := append(append([]string(nil), strategy.NextSelectors...), site.NextSelectors...)
	return skipper.Env{
		Clicker:       a.opts.Page,
		NextSelectors: selectors,
		Toast:         a.skipperToast,
		OnReset:       a.onReset,
		Log:           a.log,
	}
}

// currentURL prefers the top frame's URL once known.
func (a *Agent) currentURL() string {
	if info, ok := a.top.Get(); ok && !a.IsTop() {
		return info.URL
	}
	return a.opts.Page.URL()
}

// Parse resolves the identity of the current page.
func (a *Agent) Parse() title.Result {
	return a.opts.Parser.Parse(a.Config(), a.page(), title.Override{})
}

func (a *Agent) page() title.Page {
	p := title.Page{Title: a.opts.Page.Title(), URL: a.opts.Page.URL(), Doc: a.opts.Page}
	if !a.IsTop() {
		if info, ok := a.top.Get(); ok {
			p.TopTitle, p.TopURL = info.Title, info.URL
		}
	}
	return p
}

func (a *Agent) refreshTopInfo() {
	if a.opts.Bus == nil {
		return
	}
	a.top.RefreshFromRemote(func(reply func(json.RawMessage)) {
		a.opts.Bus.SendRuntime(a.opts.Addr, frames.Message{Action: frames.ActionGetTabTitle}, reply)
	}, func(info frames.TabTitle) {
		a.log.Debug().Str("title", info.Title).Msg("top frame identity ready")
		a.checkPreset()
	})
}

func (a *Agent) onReset(kind skipper.EffectKind) {
	switch kind {
	case skipper.EffectInvalidateTopInfo:
		if !a.IsTop() {
			a.top.Invalidate()
			a.refreshTopInfo()
		}
	case skipper.EffectRematchPreset:
		if a.rematch != nil {
			a.rematch.Stop()
		}
		a.rematch = time.AfterFunc(a.opts.RematchDelay, a.checkPreset)
	}
}

func (a *Agent) checkPreset() {
	cfg := a.Config()
	url, pageTitle := a.opts.Page.URL(), a.opts.Page.Title()
	if !a.IsTop() {
		info, ok := a.top.Get()
		if !ok {
			return
		}
		url, pageTitle = info.URL, info.Title
	}
	if _, err := a.presets.CheckAndApply(a.context(), cfg, url, pageTitle); err != nil {
		a.log.Warn().Err(err).Msg("preset auto-match failed")
	}
}
