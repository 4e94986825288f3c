package frames

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrNoReply is returned by Request when ctx ends before any answer.
	ErrNoReply = errors.New("no reply")
	// ErrNoTab is returned for messages to a tab without frames.
	ErrNoTab = errors.New("tab not found")
)

// Respond answers a request. Only the first call counts.
type Respond func(v any)

// Handler receives a message in its own goroutine. It may call respond
// synchronously, later, or never.
type Handler func(msg Message, from Sender, respond Respond)

type tab struct {
	meta   Tab
	frames map[int]Handler
}

// Bus is an in-process stand-in for the browser's runtime and tab
// messaging. Delivery is asynchronous and there is no timeout.
type Bus struct {
	mu         sync.RWMutex
	tabs       map[int]*tab
	background Handler
	log        zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{tabs: make(map[int]*tab), log: log}
}

// SetBackground installs the handler for runtime messages.
func (b *Bus) SetBackground(h Handler) {
	b.mu.Lock()
	b.background = h
	b.mu.Unlock()
}

// RegisterFrame attaches a context's handler to a frame. The returned func
// detaches it.
func (b *Bus) RegisterFrame(addr Address, h Handler) (unregister func()) {
	b.mu.Lock()
	t := b.tabLocked(addr.TabID)
	t.frames[addr.FrameID] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if t, ok := b.tabs[addr.TabID]; ok {
			delete(t.frames, addr.FrameID)
			if len(t.frames) == 0 {
				delete(b.tabs, addr.TabID)
			}
		}
	}
}

// SetTab records the tab's current title and URL.
func (b *Bus) SetTab(tabID int, title, url string) {
	b.mu.Lock()
	t := b.tabLocked(tabID)
	t.meta.Title = title
	t.meta.URL = url
	b.mu.Unlock()
}

// Tab returns the metadata of tabID.
func (b *Bus) Tab(tabID int) (Tab, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tabs[tabID]
	if !ok {
		return Tab{}, false
	}
	return t.meta, true
}

// Tabs lists known tabs ordered by id.
func (b *Bus) Tabs() []Tab {
	b.mu.RLock()
	out := make([]Tab, 0, len(b.tabs))
	for _, t := range b.tabs {
		out = append(out, t.meta)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Bus) tabLocked(id int) *tab {
	t, ok := b.tabs[id]
	if !ok {
		t = &tab{meta: Tab{ID: id}, frames: make(map[int]Handler)}
		b.tabs[id] = t
	}
	return t
}

// SendRuntime delivers msg to the background handler. reply may be nil.
func (b *Bus) SendRuntime(from Address, msg Message, reply func(json.RawMessage)) {
	b.mu.RLock()
	h := b.background
	sender := b.senderLocked(from)
	b.mu.RUnlock()

	if h == nil {
		b.log.Debug().Str("action", msg.Action).Msg("no background handler")
		return
	}
	b.deliver([]Handler{h}, msg, sender, reply)
}

// SendTab delivers msg to one frame of tabID, or to all of its frames when
// frame is nil. With several receivers the first reply wins.
func (b *Bus) SendTab(tabID int, msg Message, frame *int, reply func(json.RawMessage)) {
	b.mu.RLock()
	var handlers []Handler
	if t, ok := b.tabs[tabID]; ok {
		ids := make([]int, 0, len(t.frames))
		for id := range t.frames {
			if frame == nil || *frame == id {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
		for _, id := range ids {
			handlers = append(handlers, t.frames[id])
		}
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug().Int("tab", tabID).Str("action", msg.Action).Msg("no receiving frame")
		return
	}
	// Tab messages come from the extension side, which has no tab.
	b.deliver(handlers, msg, Sender{FrameID: -1}, reply)
}

// Request is SendTab that waits for the first reply or for ctx to end.
func (b *Bus) Request(ctx context.Context, tabID int, msg Message, frame *int) (json.RawMessage, error) {
	if _, ok := b.Tab(tabID); !ok {
		return nil, ErrNoTab
	}
	ch := make(chan json.RawMessage, 1)
	b.SendTab(tabID, msg, frame, func(data json.RawMessage) {
		select {
		case ch <- data:
		default:
		}
	})
	select {
	case data := <-ch:
		return data, nil
	case <-ctx.Done():
		return nil, ErrNoReply
	}
}

func (b *Bus) senderLocked(from Address) Sender {
	s := Sender{FrameID: from.FrameID}
	if t, ok := b.tabs[from.TabID]; ok {
		s.Tab = t.meta
	} else {
		s.Tab = Tab{ID: from.TabID}
	}
	return s
}

func (b *Bus) deliver(handlers []Handler, msg Message, from Sender, reply func(json.RawMessage)) {
	var once sync.Once
	respond := func(v any) {
		if reply == nil {
			return
		}
		data, err := json.Marshal(v)
		if err != nil {
			b.log.Warn().Err(err).Str("action", msg.Action).Msg("failed to encode reply")
			return
		}
		once.Do(func() { go reply(data) })
	}
	for _, h := range handlers {
		go h(msg, from, respond)
	}
}
