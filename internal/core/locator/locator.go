// Package locator finds the main video of a document.
package locator

import (
	"math"

	"github.com/guiyumin/vskip/internal/core/media"
)

// Node is one node of a document tree as seen by the locator.
type Node interface {
	Children() []Node

	// ShadowRoot returns the attached shadow root, or nil.
	ShadowRoot() Node

	// Video returns the element as a video, or nil when it is not one.
	Video() media.Video

	// IsFrame reports an iframe/frame element. Frames are owned by their own
	// execution context and are never entered.
	IsFrame() bool
}

// minPlayingDuration is the shortest playing video preferred over the rest.
const minPlayingDuration = 10

// Collect returns every video under root in document order, descending into
// shadow roots but not into frames.
func Collect(root Node) []media.Video {
	var out []media.Video
	var walk func(n Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		if v := n.Video(); v != nil {
			out = append(out, v)
		}
		if n.IsFrame() {
			return
		}
		if sr := n.ShadowRoot(); sr != nil {
			walk(sr)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}

// SelectMain picks the main video among candidates:
// a single candidate wins outright, then a playing video longer than ten
// seconds, then the longest finite duration (earliest on ties).
func SelectMain(candidates []media.Video) media.Video {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}

	for _, v := range candidates {
		if !v.Paused() && v.Duration() > minPlayingDuration {
			return v
		}
	}

	best := candidates[0]
	bestDur := finite(best.Duration())
	for _, v := range candidates[1:] {
		if d := finite(v.Duration()); d > bestDur {
			best, bestDur = v, d
		}
	}
	return best
}

// FindMainVideo is Collect followed by SelectMain.
func FindMainVideo(root Node) media.Video {
	return SelectMain(Collect(root))
}

func finite(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}
