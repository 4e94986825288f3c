package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/guiyumin/vskip/internal/core/locator"
	"github.com/guiyumin/vskip/internal/core/media"
)

//go:embed inject.js
var injectJS string

// bindingName is the page-side function the injected script reports through.
const bindingName = "__vskipEmit"

// bootstrap is injectJS as a statement for Page.addScriptToEvaluateOnNewDocument.
func bootstrap() string {
	return fmt.Sprintf("(%s)(%q);", injectJS, bindingName)
}

// frameState is what the injected script reports about its document.
type frameState struct {
	Token     string `json:"token"`
	Mutations int    `json:"mutations"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// framePage adapts one frame of the tab to agent.Page. All reads go through
// the injected script, so the same code serves the top frame and iframes.
type framePage struct {
	ctx  context.Context
	page *rod.Page
	log  zerolog.Logger
}

func (f *framePage) eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := f.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

// inject installs the script when the document does not have it yet and
// returns the frame's state.
func (f *framePage) inject(ctx context.Context) (frameState, error) {
	v, err := f.eval(ctx, injectJS, bindingName)
	if err != nil {
		return frameState{}, err
	}
	var st frameState
	if err := decode(v, &st); err != nil {
		return frameState{}, fmt.Errorf("bad frame state: %w", err)
	}
	return st, nil
}

func (f *framePage) Title() string {
	v, err := f.eval(f.ctx, `() => document.title`)
	if err != nil {
		f.log.Debug().Err(err).Msg("failed to read title")
		return ""
	}
	return v.Str()
}

func (f *framePage) URL() string {
	v, err := f.eval(f.ctx, `() => location.href`)
	if err != nil {
		f.log.Debug().Err(err).Msg("failed to read url")
		return ""
	}
	return v.Str()
}

func (f *framePage) Text(selector string) string {
	v, err := f.eval(f.ctx, `(s) => window.__vskip ? window.__vskip.text(s) : ""`, selector)
	if err != nil {
		return ""
	}
	return v.Str()
}

func (f *framePage) ClickFirst(selectors []string) bool {
	v, err := f.eval(f.ctx, `(list) => window.__vskip ? window.__vskip.click(list) : ""`, selectors)
	if err != nil {
		f.log.Debug().Err(err).Msg("next button click failed")
		return false
	}
	if sel := v.Str(); sel != "" {
		f.log.Debug().Str("selector", sel).Msg("clicked next button")
		return true
	}
	return false
}

func (f *framePage) Toast(msg string) {
	if _, err := f.eval(f.ctx, `(m) => window.__vskip && window.__vskip.toast(m)`, msg); err != nil {
		f.log.Debug().Err(err).Str("toast", msg).Msg("failed to show toast")
	}
}

// Tree snapshots the frame's element tree. Only branches that lead to a
// video, a frame or a shadow root are kept.
func (f *framePage) Tree(ctx context.Context) (locator.Node, error) {
	v, err := f.eval(ctx, `() => window.__vskip ? window.__vskip.snapshot() : null`)
	if err != nil {
		return nil, err
	}
	if v.Nil() {
		return nil, fmt.Errorf("script not injected")
	}
	var root snapshotNode
	if err := decode(v, &root); err != nil {
		return nil, fmt.Errorf("bad tree snapshot: %w", err)
	}
	return &treeNode{snap: &root, page: f}, nil
}

func (f *framePage) setChords(ctx context.Context, chords any) error {
	_, err := f.eval(ctx, `(list) => window.__vskip && window.__vskip.setChords(list)`, chords)
	return err
}

type snapshotNode struct {
	Video    string          `json:"video,omitempty"`
	Frame    bool            `json:"frame,omitempty"`
	Shadow   *snapshotNode   `json:"shadow,omitempty"`
	Children []*snapshotNode `json:"children,omitempty"`
}

type treeNode struct {
	snap *snapshotNode
	page *framePage
}

func (n *treeNode) Children() []locator.Node {
	out := make([]locator.Node, 0, len(n.snap.Children))
	for _, c := range n.snap.Children {
		out = append(out, &treeNode{snap: c, page: n.page})
	}
	return out
}

func (n *treeNode) ShadowRoot() locator.Node {
	if n.snap.Shadow == nil {
		return nil
	}
	return &treeNode{snap: n.snap.Shadow, page: n.page}
}

func (n *treeNode) Video() media.Video {
	if n.snap.Video == "" {
		return nil
	}
	return &videoHandle{id: n.snap.Video, page: n.page}
}

func (n *treeNode) IsFrame() bool { return n.snap.Frame }

// videoHandle reads the element live through the script's id registry.
type videoHandle struct {
	id   string
	page *framePage
}

type videoState struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Paused      bool    `json:"paused"`
}

func (v *videoHandle) ID() string { return v.id }

func (v *videoHandle) read() (videoState, bool) {
	res, err := v.page.eval(v.page.ctx, `(id) => window.__vskip ? window.__vskip.read(id) : null`, v.id)
	if err != nil || res.Nil() {
		return videoState{}, false
	}
	var st videoState
	if err := decode(res, &st); err != nil {
		return videoState{}, false
	}
	return st, true
}

func (v *videoHandle) CurrentTime() float64 {
	st, _ := v.read()
	return st.CurrentTime
}

func (v *videoHandle) Duration() float64 {
	st, ok := v.read()
	if !ok {
		return math.NaN()
	}
	return decodeDuration(st.Duration)
}

func (v *videoHandle) Paused() bool {
	st, ok := v.read()
	return !ok || st.Paused
}

func (v *videoHandle) Seek(seconds float64) error {
	res, err := v.page.eval(v.page.ctx, `(id, t) => window.__vskip ? window.__vskip.seek(id, t) : false`, v.id, seconds)
	if err != nil {
		return err
	}
	if !res.Bool() {
		return fmt.Errorf("video %s is gone", v.id)
	}
	return nil
}

func decode(v gson.JSON, dst any) error {
	raw, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// decodeDuration maps the script's encoding back to NaN and +Inf.
func decodeDuration(d float64) float64 {
	switch {
	case d == -2:
		return math.Inf(1)
	case d < 0:
		return math.NaN()
	}
	return d
}
