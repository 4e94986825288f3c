// Package browser hosts the skipper in a real Chrome tab driven by rod. Every
// frame of the tab gets its own agent; an injected script reports video and
// key events back through an exposed binding.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/guiyumin/vskip/internal/core/agent"
	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/keys"
	"github.com/guiyumin/vskip/internal/core/store"
	"github.com/guiyumin/vskip/internal/core/title"
)

const (
	DefaultPollInterval = time.Second
	DefaultTabID        = 1

	maxFrameDepth   = 4
	maxPollFailures = 5
)

// Options configures a Host.
type Options struct {
	URL     string
	Visible bool

	// Bin and UserDataDir override the browser binary and profile.
	Bin         string
	UserDataDir string

	// Cookies imports the user's browser cookies for URL before navigating.
	Cookies bool

	TabID  int
	Store  store.Store
	Bus    *frames.Bus
	Parser *title.Parser

	Lang    func() string
	OnToast func(addr frames.Address, msg string)

	PollInterval time.Duration
	Log          zerolog.Logger
}

// Host owns one browser tab and the agents of its frames.
type Host struct {
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	frames    map[string]*frameAgent
	nextFrame int
}

type frameAgent struct {
	id        int
	page      *framePage
	agent     *agent.Agent
	mutations int
	chords    string
}

func New(opts Options) *Host {
	if opts.TabID == 0 {
		opts.TabID = DefaultTabID
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Bus == nil {
		opts.Bus = frames.NewBus(opts.Log)
		frames.NewCoordinator(opts.Bus, opts.Log)
	}
	if opts.Parser == nil {
		opts.Parser = title.New(nil)
	}
	return &Host{
		opts:      opts,
		log:       opts.Log.With().Str("component", "browser").Logger(),
		frames:    make(map[string]*frameAgent),
		nextFrame: 1,
	}
}

// Bus returns the message bus the frame agents are registered on.
func (h *Host) Bus() *frames.Bus { return h.opts.Bus }

// TabID returns the id the watched tab has on the bus.
func (h *Host) TabID() int { return h.opts.TabID }

// Run launches the browser, opens URL and keeps the frame agents in sync
// with the tab until ctx ends or the browser goes away.
func (h *Host) Run(ctx context.Context) error {
	l := newLauncher(!h.opts.Visible, h.opts.Bin, h.opts.UserDataDir)
	defer l.Cleanup()

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer b.Close()

	page, err := stealth.Page(b)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}

	if h.opts.Cookies {
		if cookies := cookieParams(ctx, h.opts.URL, h.log); len(cookies) > 0 {
			if err := page.SetCookies(cookies); err != nil {
				h.log.Warn().Err(err).Msg("failed to set cookies")
			}
		}
	}

	stop, err := page.Expose(bindingName, h.onBinding)
	if err != nil {
		return fmt.Errorf("failed to expose binding: %w", err)
	}
	defer stop()

	if _, err := page.EvalOnNewDocument(bootstrap()); err != nil {
		return fmt.Errorf("failed to install script: %w", err)
	}

	h.log.Info().Str("url", h.opts.URL).Msg("opening page")
	if err := page.Navigate(h.opts.URL); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		h.log.Warn().Err(err).Msg("page did not finish loading")
	}

	defer h.detachAll()

	ticker := time.NewTicker(h.opts.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		if err := h.poll(ctx, page); err != nil {
			failures++
			h.log.Debug().Err(err).Int("failures", failures).Msg("poll failed")
			if failures >= maxPollFailures {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("lost the page: %w", err)
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type polled struct {
	fp    *framePage
	state frameState
	top   bool
}

// poll discovers frames, starts agents for new documents, stops agents of
// documents that are gone and feeds mutation batches to the observers.
func (h *Host) poll(ctx context.Context, top *rod.Page) error {
	var found []polled
	for i, p := range discover(ctx, top, 0) {
		fp := &framePage{ctx: ctx, page: p, log: h.log}
		st, err := fp.inject(ctx)
		if err != nil {
			if i == 0 {
				return err
			}
			continue
		}
		found = append(found, polled{fp: fp, state: st, top: i == 0})
	}

	seen := make(map[string]bool, len(found))
	for _, f := range found {
		seen[f.state.Token] = true
	}

	h.mu.Lock()
	var gone []*frameAgent
	for token, fa := range h.frames {
		if !seen[token] {
			gone = append(gone, fa)
			delete(h.frames, token)
		}
	}
	h.mu.Unlock()
	for _, fa := range gone {
		fa.agent.Stop()
		h.log.Debug().Int("frame", fa.id).Msg("frame detached")
	}

	h.opts.Bus.SetTab(h.opts.TabID, found[0].state.Title, found[0].state.URL)

	for _, f := range found {
		h.mu.Lock()
		fa := h.frames[f.state.Token]
		h.mu.Unlock()

		if fa == nil {
			fa = h.attach(ctx, f)
			if fa == nil {
				continue
			}
		} else if f.state.Mutations != fa.mutations {
			fa.mutations = f.state.Mutations
			fa.agent.Notify()
		}
		h.pushChords(ctx, fa)
	}
	return nil
}

func (h *Host) attach(ctx context.Context, f polled) *frameAgent {
	id := frames.TopFrame
	if !f.top {
		h.mu.Lock()
		id = h.nextFrame
		h.nextFrame++
		h.mu.Unlock()
	}

	a := agent.New(agent.Options{
		Addr:    frames.Address{TabID: h.opts.TabID, FrameID: id},
		Page:    f.fp,
		Store:   h.opts.Store,
		Bus:     h.opts.Bus,
		Parser:  h.opts.Parser,
		Lang:    h.opts.Lang,
		OnToast: h.opts.OnToast,
		Log:     h.opts.Log,
	})
	fa := &frameAgent{id: id, page: f.fp, agent: a, mutations: f.state.Mutations}

	// Register before Start so events racing the initial scan find the frame.
	h.mu.Lock()
	h.frames[f.state.Token] = fa
	h.mu.Unlock()

	if err := a.Start(ctx); err != nil {
		h.log.Warn().Err(err).Int("frame", id).Msg("failed to start agent")
		h.mu.Lock()
		delete(h.frames, f.state.Token)
		h.mu.Unlock()
		return nil
	}
	h.log.Debug().Int("frame", id).Str("url", f.state.URL).Msg("frame attached")
	return fa
}

func (h *Host) detachAll() {
	h.mu.Lock()
	all := h.frames
	h.frames = make(map[string]*frameAgent)
	h.mu.Unlock()
	for _, fa := range all {
		fa.agent.Stop()
	}
}

// pushChords keeps the page-side key filter in line with the configuration,
// so bound keys are suppressed synchronously in the page.
func (h *Host) pushChords(ctx context.Context, fa *frameAgent) {
	cfg := fa.agent.Config()
	chords := []config.KeyChord{cfg.KeyForward, cfg.KeyRewind}
	key := fmt.Sprint(chords)
	if key == fa.chords {
		return
	}
	if err := fa.page.setChords(ctx, chords); err != nil {
		h.log.Debug().Err(err).Int("frame", fa.id).Msg("failed to push key chords")
		return
	}
	fa.chords = key
}

func discover(ctx context.Context, p *rod.Page, depth int) []*rod.Page {
	out := []*rod.Page{p}
	if depth >= maxFrameDepth {
		return out
	}
	els, err := p.Context(ctx).Elements("iframe, frame")
	if err != nil {
		return out
	}
	for _, el := range els {
		f, err := el.Frame()
		if err != nil {
			continue
		}
		out = append(out, discover(ctx, f, depth+1)...)
	}
	return out
}

// emit is one report from the injected script.
type emit struct {
	Token string `json:"token"`
	Kind  string `json:"kind"`
	agent.VideoEvent
	keys.Event
}

func parseEmit(raw []byte) (emit, error) {
	var e emit
	if err := json.Unmarshal(raw, &e); err != nil {
		return emit{}, err
	}
	e.Duration = decodeDuration(e.Duration)
	return e, nil
}

func (h *Host) onBinding(payload gson.JSON) (any, error) {
	raw, err := payload.MarshalJSON()
	if err != nil {
		return nil, err
	}
	e, err := parseEmit(raw)
	if err != nil {
		h.log.Debug().Err(err).Msg("bad binding payload")
		return nil, nil
	}

	h.mu.Lock()
	fa := h.frames[e.Token]
	h.mu.Unlock()
	if fa == nil {
		return nil, nil
	}

	switch e.Kind {
	case "video":
		fa.agent.OnVideoEvent(e.VideoEvent)
	case "key":
		return fa.agent.OnKey(e.Event), nil
	}
	return nil, nil
}
