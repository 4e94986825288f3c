package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/favorites"
	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/keys"
	"github.com/guiyumin/vskip/internal/core/locator"
	"github.com/guiyumin/vskip/internal/core/media"
	"github.com/guiyumin/vskip/internal/core/store"
)

type fakeVideo struct {
	mu       sync.Mutex
	id       string
	pos      float64
	duration float64
	seeks    []float64
}

func (v *fakeVideo) ID() string { return v.id }
func (v *fakeVideo) Paused() bool { return false }

func (v *fakeVideo) CurrentTime() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos
}

func (v *fakeVideo) Duration() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.duration
}

func (v *fakeVideo) Seek(s float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pos = s
	v.seeks = append(v.seeks, s)
	return nil
}

func (v *fakeVideo) Seeks() []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]float64(nil), v.seeks...)
}

type fakeNode struct {
	children []locator.Node
	video    *fakeVideo
}

func (n *fakeNode) Children() []locator.Node { return n.children }
func (n *fakeNode) ShadowRoot() locator.Node { return nil }
func (n *fakeNode) IsFrame() bool { return false }

func (n *fakeNode) Video() media.Video {
	if n.video == nil {
		return nil
	}
	return n.video
}

type fakePage struct {
	title, url string
	root       *fakeNode

	mu     sync.Mutex
	toasts []string
}

func newPage(title, url string, videos ...*fakeVideo) *fakePage {
	root := &fakeNode{}
	for _, v := range videos {
		root.children = append(root.children, &fakeNode{video: v})
	}
	return &fakePage{title: title, url: url, root: root}
}

func (p *fakePage) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) SetTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
}
func (p *fakePage) Text(string) string { return "" }
func (p *fakePage) ClickFirst([]string) bool { return false }

func (p *fakePage) Tree(context.Context) (locator.Node, error) { return p.root, nil }

func (p *fakePage) Toast(msg string) {
	p.mu.Lock()
	p.toasts = append(p.toasts, msg)
	p.mu.Unlock()
}

func (p *fakePage) Toasts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.toasts...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T, values map[string]any) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	if len(values) > 0 {
		if err := s.Set(context.Background(), store.MustEncode(values)); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func start(t *testing.T, opts Options) *Agent {
	t.Helper()
	opts.Log = zerolog.Nop()
	a := New(opts)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Stop)
	return a
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestIntroSkipOnTimeUpdate(t *testing.T) {
	clk := &clock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	v := &fakeVideo{id: "v1", duration: 1400}
	page := newPage("三体 第7集_腾讯视频", "https://v.qq.com/x/cover/abc.html", v)

	var observed []string
	a := start(t, Options{
		Addr:    frames.Address{TabID: 1, FrameID: frames.TopFrame},
		Page:    page,
		Store:   newStore(t, map[string]any{config.KeyAutoSkipEnable: true}),
		Now:     clk.Now,
		OnToast: func(_ frames.Address, msg string) { observed = append(observed, msg) },
	})

	if a.MainVideo() == nil || a.MainVideo().ID() != "v1" {
		t.Fatalf("main video not found at start")
	}

	clk.Advance(time.Second)
	a.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventTimeUpdate, CurrentTime: 10, Duration: 1400})

	if seeks := v.Seeks(); len(seeks) != 1 || seeks[0] != 90 {
		t.Fatalf("seeks = %v, want [90]", seeks)
	}
	want := "🚀 跳过片头 (视频总长 > 23分)"
	if toasts := page.Toasts(); len(toasts) != 1 || toasts[0] != want {
		t.Errorf("toasts = %q", toasts)
	}
	if len(observed) != 1 || observed[0] != want {
		t.Errorf("observed = %q", observed)
	}

	// Once per load.
	clk.Advance(time.Second)
	a.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventSeeking, CurrentTime: 20})
	a.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventTimeUpdate, CurrentTime: 20, Duration: 1400})
	if seeks := v.Seeks(); len(seeks) != 1 {
		t.Errorf("second skip in the same load: %v", seeks)
	}
}

func TestUnknownVideoIgnored(t *testing.T) {
	v := &fakeVideo{id: "v1", duration: 1400}
	a := start(t, Options{
		Addr:  frames.Address{TabID: 1},
		Page:  newPage("x", "https://example.com", v),
		Store: newStore(t, map[string]any{config.KeyAutoSkipEnable: true}),
	})
	a.OnVideoEvent(VideoEvent{VideoID: "other", Type: EventTimeUpdate, CurrentTime: 10, Duration: 1400})
	if len(v.Seeks()) != 0 {
		t.Errorf("seeks = %v", v.Seeks())
	}
}

func TestIframeProgressReachesTopFavorite(t *testing.T) {
	const (
		tabTitle = "三体 第7集_腾讯视频"
		tabURL   = "https://v.qq.com/x/cover/abc.html"
	)
	bus := frames.NewBus(zerolog.Nop())
	frames.NewCoordinator(bus, zerolog.Nop())
	bus.SetTab(1, tabTitle, tabURL)

	s := newStore(t, map[string]any{
		config.KeyFavorites: favorites.Library{
			"三体": {ID: "a", Series: "三体", Episode: "第6集", URL: "https://v.qq.com/x/cover/old.html", Time: 5, Timestamp: 1},
		},
	})

	clk := &clock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	start(t, Options{
		Addr:  frames.Address{TabID: 1, FrameID: frames.TopFrame},
		Page:  newPage(tabTitle, tabURL),
		Store: s,
		Bus:   bus,
		Now:   clk.Now,
	})
	child := start(t, Options{
		Addr:  frames.Address{TabID: 1, FrameID: 3},
		Page:  newPage("player", "https://player.example.com/embed/1", &fakeVideo{id: "v1", duration: 2700}),
		Store: s,
		Bus:   bus,
		Now:   clk.Now,
	})

	eventually(t, "top info", func() bool {
		_, ok := child.top.Get()
		return ok
	})

	clk.Advance(10 * time.Second)
	child.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventTimeUpdate, CurrentTime: 300, Duration: 2700})

	eventually(t, "favorite update", func() bool {
		lib, err := favorites.Load(context.Background(), s)
		return err == nil && lib["三体"].Time == 300
	})
	lib, _ := favorites.Load(context.Background(), s)
	e := lib["三体"]
	if e.Episode != "第7集" || e.URL != tabURL || e.Duration != 2700 || e.ID != "a" {
		t.Errorf("entry = %+v", e)
	}
	if len(lib) != 1 {
		t.Errorf("library = %+v", lib)
	}
}

func TestIframeForwardingIsGatedAndRateLimited(t *testing.T) {
	bus := frames.NewBus(zerolog.Nop())
	frames.NewCoordinator(bus, zerolog.Nop())
	bus.SetTab(1, "三体 第7集", "https://v.qq.com/x/cover/abc.html")

	var mu sync.Mutex
	var got []frames.Message
	bus.RegisterFrame(frames.Address{TabID: 1, FrameID: frames.TopFrame}, func(m frames.Message, _ frames.Sender, _ frames.Respond) {
		if m.Action != frames.ActionTriggerAutoUpdate {
			return
		}
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(got)
	}

	clk := &clock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	child := start(t, Options{
		Addr:  frames.Address{TabID: 1, FrameID: 2},
		Page:  newPage("player", "https://player.example.com/embed/1", &fakeVideo{id: "v1", duration: 2700}),
		Store: newStore(t, nil),
		Bus:   bus,
		Now:   clk.Now,
	})
	eventually(t, "top info", func() bool {
		_, ok := child.top.Get()
		return ok
	})

	for _, step := range []struct {
		advance time.Duration
		pos     float64
	}{
		{10 * time.Second, 100},
		{time.Second, 101},
		{6 * time.Second, 107},
	} {
		clk.Advance(step.advance)
		child.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventTimeUpdate, CurrentTime: step.pos, Duration: 2700})
	}

	eventually(t, "two forwards", func() bool { return count() == 2 })
	time.Sleep(50 * time.Millisecond)
	if n := count(); n != 2 {
		t.Errorf("forwarded %d times, want 2", n)
	}
}

func TestIframeWithoutTopInfoDoesNotForward(t *testing.T) {
	// No coordinator: getTabTitle is never answered.
	bus := frames.NewBus(zerolog.Nop())
	forwarded := make(chan frames.Message, 1)
	bus.RegisterFrame(frames.Address{TabID: 1, FrameID: frames.TopFrame}, func(m frames.Message, _ frames.Sender, _ frames.Respond) {
		forwarded <- m
	})

	clk := &clock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	child := start(t, Options{
		Addr:  frames.Address{TabID: 1, FrameID: 2},
		Page:  newPage("player", "https://player.example.com/embed/1", &fakeVideo{id: "v1", duration: 2700}),
		Store: newStore(t, nil),
		Bus:   bus,
		Now:   clk.Now,
	})
	clk.Advance(10 * time.Second)
	child.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventTimeUpdate, CurrentTime: 100, Duration: 2700})

	select {
	case m := <-forwarded:
		t.Errorf("forwarded %+v before top info was ready", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestVideoInfo(t *testing.T) {
	bus := frames.NewBus(zerolog.Nop())
	bus.SetTab(1, "三体 第7集_腾讯视频", "https://www.bilibili.com/video/BV1xx")

	v := &fakeVideo{id: "v1", pos: 61.5, duration: 2700}
	start(t, Options{
		Addr:  frames.Address{TabID: 1, FrameID: frames.TopFrame},
		Page:  newPage("三体 第7集_哔哩哔哩_bilibili", "https://www.bilibili.com/video/BV1xx", v),
		Store: newStore(t, nil),
		Bus:   bus,
	})
	start(t, Options{
		Addr:  frames.Address{TabID: 1, FrameID: 4},
		Page:  newPage("ad", "https://ads.example.com"),
		Store: newStore(t, nil),
		Bus:   bus,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	raw, err := bus.Request(ctx, 1, frames.Message{Action: frames.ActionGetRequestVideoInfo}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var info frames.VideoInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatalf("bad reply %s: %v", raw, err)
	}
	if info.IsIframe || info.Series != "三体" || info.Episode != "第7集" || info.Site != "哔哩哔哩" {
		t.Errorf("info = %+v", info)
	}
	if info.URL != "https://www.bilibili.com/video/BV1xx?t=61" || info.Time != 61.5 || info.Duration != 2700 {
		t.Errorf("info = %+v", info)
	}

	// A frame without a video stays silent.
	four := 4
	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := bus.Request(ctx, 1, frames.Message{Action: frames.ActionGetRequestVideoInfo}, &four); !errors.Is(err, frames.ErrNoReply) {
		t.Errorf("videoless frame: err = %v", err)
	}
}

func TestOnKey(t *testing.T) {
	v := &fakeVideo{id: "v1", pos: 30, duration: 1400}
	page := newPage("x", "https://example.com", v)
	a := start(t, Options{
		Addr:  frames.Address{TabID: 1},
		Page:  page,
		Store: newStore(t, nil),
	})

	if !a.OnKey(keys.Event{Code: "ArrowRight", Shift: true}) {
		t.Fatal("forward chord not handled")
	}
	if !a.OnKey(keys.Event{Code: "ArrowLeft", Shift: true}) {
		t.Fatal("rewind chord not handled")
	}
	if a.OnKey(keys.Event{Code: "ArrowLeft"}) {
		t.Error("unbound key handled")
	}
	if seeks := v.Seeks(); len(seeks) != 2 || seeks[0] != 120 || seeks[1] != 30 {
		t.Errorf("seeks = %v", seeks)
	}
	if toasts := page.Toasts(); len(toasts) != 2 || toasts[0] != ">>> 快进 90 秒" || toasts[1] != "<<< 快退 90 秒" {
		t.Errorf("toasts = %q", toasts)
	}
}

func TestPresetAppliedAtStart(t *testing.T) {
	s := newStore(t, map[string]any{
		config.KeyAutoApplyPreset: true,
		config.KeySavedPresets:    []config.Preset{{Name: "海贼王", Domain: "海贼王", Intro: 120, Outro: 60}},
	})
	page := newPage("海贼王 第1000集", "https://example.com/op/1000")
	a := start(t, Options{
		Addr:  frames.Address{TabID: 1},
		Page:  page,
		Store: s,
		Lang:  func() string { return "en" },
	})

	cfg, err := config.Load(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.AutoSkipEnable || cfg.IntroTime != 120 || cfg.OutroTime != 60 || cfg.LastActivePreset != "海贼王" {
		t.Errorf("config = %+v", cfg)
	}
	if len(page.Toasts()) != 1 {
		t.Errorf("toasts = %q", page.Toasts())
	}

	eventually(t, "snapshot refresh", func() bool { return a.Config().IntroTime == 120 })
}

func TestResetRematchesPresetAfterDelay(t *testing.T) {
	s := newStore(t, map[string]any{
		config.KeyAutoApplyPreset: true,
		config.KeySavedPresets:    []config.Preset{{Name: "海贼王", Domain: "海贼王", Intro: 120}},
	})
	v := &fakeVideo{id: "v1", duration: 1400}
	page := newPage("火影忍者 第1集", "https://example.com/play/1", v)
	a := start(t, Options{
		Addr:         frames.Address{TabID: 1, FrameID: frames.TopFrame},
		Page:         page,
		Store:        s,
		RematchDelay: 100 * time.Millisecond,
	})
	lastActive := func() string {
		cfg, err := config.Load(context.Background(), s)
		if err != nil {
			t.Fatal(err)
		}
		return cfg.LastActivePreset
	}
	if got := lastActive(); got != "" {
		t.Fatalf("preset %q applied to a page it does not match", got)
	}

	// The site swaps the episode in place.
	page.SetTitle("海贼王 第1000集")
	a.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventLoadedMetadata, Duration: 1400})
	if got := lastActive(); got != "" {
		t.Errorf("preset %q applied before the rematch delay", got)
	}

	eventually(t, "rematch", func() bool { return lastActive() == "海贼王" })
	eventually(t, "snapshot refresh", func() bool { return a.Config().IntroTime == 120 })
}

func TestIframeResetRefreshesTopInfo(t *testing.T) {
	const tabURL = "https://v.qq.com/x/cover/abc.html"
	bus := frames.NewBus(zerolog.Nop())
	frames.NewCoordinator(bus, zerolog.Nop())
	bus.SetTab(1, "火影忍者 第1集", tabURL)

	var mu sync.Mutex
	forwards := 0
	bus.RegisterFrame(frames.Address{TabID: 1, FrameID: frames.TopFrame}, func(m frames.Message, _ frames.Sender, _ frames.Respond) {
		if m.Action == frames.ActionTriggerAutoUpdate {
			mu.Lock()
			forwards++
			mu.Unlock()
		}
	})
	forwarded := func() int {
		mu.Lock()
		defer mu.Unlock()
		return forwards
	}

	s := newStore(t, map[string]any{
		config.KeyAutoApplyPreset: true,
		config.KeySavedPresets:    []config.Preset{{Name: "海贼王", Domain: "海贼王", Intro: 120}},
	})
	clk := &clock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	child := start(t, Options{
		Addr:         frames.Address{TabID: 1, FrameID: 2},
		Page:         newPage("player", "https://player.example.com/embed/1", &fakeVideo{id: "v1", duration: 2700}),
		Store:        s,
		Bus:          bus,
		Now:          clk.Now,
		RematchDelay: 20 * time.Millisecond,
	})
	topTitle := func() string {
		info, _ := child.top.Get()
		return info.Title
	}
	eventually(t, "top info", func() bool { return topTitle() == "火影忍者 第1集" })

	clk.Advance(10 * time.Second)
	child.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventTimeUpdate, CurrentTime: 100, Duration: 2700})
	eventually(t, "first forward", func() bool { return forwarded() == 1 })

	// Next episode plays in the same iframe.
	bus.SetTab(1, "海贼王 第1000集", tabURL)
	clk.Advance(time.Second)
	child.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventLoadedMetadata, Duration: 1500})
	eventually(t, "refreshed top info", func() bool { return topTitle() == "海贼王 第1000集" })

	eventually(t, "preset for the new episode", func() bool {
		cfg, err := config.Load(context.Background(), s)
		return err == nil && cfg.LastActivePreset == "海贼王"
	})

	// The reset cleared the forward clock, so the new episode reports at once.
	clk.Advance(time.Second)
	child.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventTimeUpdate, CurrentTime: 3, Duration: 1500})
	eventually(t, "forward after reset", func() bool { return forwarded() == 2 })
}

func TestConfigSnapshotStableAcrossChanges(t *testing.T) {
	s := newStore(t, map[string]any{
		config.KeyAutoApplyPreset: true,
		config.KeySavedPresets:    []config.Preset{{Name: "p0", Domain: "nomatch.invalid"}},
	})
	v := &fakeVideo{id: "v1", duration: 1400}
	a := start(t, Options{
		Addr:         frames.Address{TabID: 1},
		Page:         newPage("x", "https://example.com", v),
		Store:        s,
		RematchDelay: time.Millisecond,
	})

	held := a.Config()
	if len(held.SavedPresets) != 1 || held.SavedPresets[0].Name != "p0" {
		t.Fatalf("presets = %+v", held.SavedPresets)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 50; i++ {
			p := []config.Preset{{Name: fmt.Sprintf("p%d", i), Domain: "nomatch.invalid"}}
			if err := s.Set(context.Background(), store.MustEncode(map[string]any{config.KeySavedPresets: p})); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	for i := 0; i < 50; i++ {
		a.OnVideoEvent(VideoEvent{VideoID: "v1", Type: EventEmptied})
		for _, p := range a.Config().SavedPresets {
			_ = p.Name
		}
	}
	<-done

	eventually(t, "last change applied", func() bool {
		ps := a.Config().SavedPresets
		return len(ps) == 1 && ps[0].Name == "p50"
	})
	if held.SavedPresets[0].Name != "p0" {
		t.Errorf("held snapshot changed to %q", held.SavedPresets[0].Name)
	}
}
