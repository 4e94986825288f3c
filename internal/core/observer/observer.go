// Package observer turns bursts of DOM mutation notifications into
// debounced rescans.
package observer

import (
	"sync"
	"time"
)

const (
	DefaultDelay   = 300 * time.Millisecond
	DefaultMaxWait = 2 * time.Second
)

// Observer calls scan once on Start and then after every quiet period that
// follows one or more Notify calls. A steady stream of notifications still
// triggers a scan every MaxWait.
type Observer struct {
	Delay   time.Duration
	MaxWait time.Duration

	scan func()

	mu           sync.Mutex
	timer        *time.Timer
	pendingSince time.Time
	started      bool
	stopped      bool
}

func New(scan func()) *Observer {
	return &Observer{Delay: DefaultDelay, MaxWait: DefaultMaxWait, scan: scan}
}

// Start runs the initial scan synchronously.
func (o *Observer) Start() {
	o.mu.Lock()
	if o.started || o.stopped {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()

	o.scan()
}

// Notify records a mutation batch.
func (o *Observer) Notify() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started || o.stopped {
		return
	}

	now := time.Now()
	if o.timer == nil {
		o.pendingSince = now
		o.timer = time.AfterFunc(o.Delay, o.fire)
		return
	}
	if now.Sub(o.pendingSince) < o.MaxWait {
		o.timer.Reset(o.Delay)
	}
}

// Stop cancels any pending scan. Notify is ignored afterwards.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Observer) fire() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.mu.Unlock()

	o.scan()
}
