package locator

import (
	"math"
	"testing"

	"github.com/guiyumin/vskip/internal/core/media"
)

type fakeVideo struct {
	id       string
	duration float64
	paused   bool
}

func (v *fakeVideo) ID() string { return v.id }
func (v *fakeVideo) CurrentTime() float64 { return 0 }
func (v *fakeVideo) Duration() float64 { return v.duration }
func (v *fakeVideo) Paused() bool { return v.paused }
func (v *fakeVideo) Seek(float64) error { return nil }

type fakeNode struct {
	children []Node
	shadow   Node
	video    *fakeVideo
	frame    bool
}

func (n *fakeNode) Children() []Node { return n.children }
func (n *fakeNode) ShadowRoot() Node {
	if n.shadow == nil {
		return nil
	}
	return n.shadow
}
func (n *fakeNode) Video() media.Video {
	if n.video == nil {
		return nil
	}
	return n.video
}
func (n *fakeNode) IsFrame() bool { return n.frame }

func el(children ...Node) *fakeNode { return &fakeNode{children: children} }

func vid(id string, dur float64, paused bool) *fakeNode {
	return &fakeNode{video: &fakeVideo{id: id, duration: dur, paused: paused}}
}

func ids(vs []media.Video) []string {
	var out []string
	for _, v := range vs {
		out = append(out, v.ID())
	}
	return out
}

func TestCollect(t *testing.T) {
	host := el(vid("light", 5, true))
	host.shadow = el(el(vid("shadow", 100, true)))

	frame := &fakeNode{frame: true, children: []Node{vid("inside-frame", 1000, false)}}

	root := el(vid("first", 1, true), host, frame, el(vid("last", 2, true)))

	got := ids(Collect(root))
	want := []string{"first", "shadow", "light", "last"}
	if len(got) != len(want) {
		t.Fatalf("Collect = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Collect = %v, want %v", got, want)
		}
	}
}

func TestSelectMain(t *testing.T) {
	v := func(id string, dur float64, paused bool) media.Video {
		return &fakeVideo{id: id, duration: dur, paused: paused}
	}

	tests := []struct {
		name string
		in   []media.Video
		want string
	}{
		{"none", nil, ""},
		{"single even if short", []media.Video{v("a", 1, true)}, "a"},
		{"playing long wins", []media.Video{v("ad", 3000, true), v("main", 1400, false)}, "main"},
		{"playing preview ignored", []media.Video{v("preview", 8, false), v("main", 1400, true)}, "main"},
		{"longest finite", []media.Video{v("nan", math.NaN(), true), v("inf", math.Inf(1), true), v("b", 30, true)}, "b"},
		{"tie keeps document order", []media.Video{v("x", 60, true), v("y", 60, true)}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectMain(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("SelectMain = %v, want nil", got.ID())
				}
				return
			}
			if got == nil || got.ID() != tt.want {
				t.Fatalf("SelectMain = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestFindMainVideoEmpty(t *testing.T) {
	if FindMainVideo(el(el(), el())) != nil {
		t.Error("expected nil without videos")
	}
}
