// Package media defines the contract the skipper needs from a playing video element.
package media

// Video is a handle on a single video element. Implementations read live
// values from the element on every call.
type Video interface {
	// ID is stable for the lifetime of the element within its frame.
	ID() string

	CurrentTime() float64

	// Duration may be NaN or +Inf before metadata is loaded.
	Duration() float64

	Paused() bool

	// Seek sets the playback position. Failures are not retried by callers.
	Seek(seconds float64) error
}

