// Package notify carries transient user notifications (toasts).
package notify

import "github.com/rs/zerolog"

// Notifier shows a short-lived message to the user.
type Notifier interface {
	Toast(msg string)
}

// Func adapts a function to Notifier.
type Func func(msg string)

func (f Func) Toast(msg string) { f(msg) }

// Log writes toasts to a logger, used when no page is attached.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Toast(msg string) {
	l.Logger.Info().Str("toast", msg).Msg("notification")
}

// Nop discards toasts.
type Nop struct{}

func (Nop) Toast(string) {}
