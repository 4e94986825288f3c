package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const clientBuffer = 64

// FeedMessage is one websocket frame sent to clients.
type FeedMessage struct {
	Type    string        `json:"type"`
	Changes store.Changes `json:"changes,omitempty"`
	TabID   int           `json:"tabId,omitempty"`
	FrameID int           `json:"frameId,omitempty"`
	Message string        `json:"message,omitempty"`
}

const (
	FeedChanges = "changes"
	FeedToast   = "toast"
	FeedPong    = "pong"
)

// Feed pushes store change deltas and page toasts to websocket clients, so
// a settings UI stays current while agents write progress.
type Feed struct {
	log         zerolog.Logger
	unsubscribe func()

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
}

type feedClient struct {
	out  chan FeedMessage
	once sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() { close(c.out) })
}

// NewFeed subscribes to s; a nil store gives a toast-only feed.
func NewFeed(s store.Store, log zerolog.Logger) *Feed {
	f := &Feed{
		log:     log,
		clients: make(map[*feedClient]struct{}),
	}
	if s != nil {
		f.unsubscribe = s.Subscribe(func(c store.Changes) {
			f.Broadcast(FeedMessage{Type: FeedChanges, Changes: c})
		})
	}
	return f
}

// Toast forwards a page toast; it matches the agent's OnToast hook.
func (f *Feed) Toast(addr frames.Address, msg string) {
	f.Broadcast(FeedMessage{Type: FeedToast, TabID: addr.TabID, FrameID: addr.FrameID, Message: msg})
}

// Broadcast queues msg for every client. Slow clients drop messages rather
// than stall the sender.
func (f *Feed) Broadcast(msg FeedMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.out <- msg:
		default:
			f.log.Debug().Str("type", msg.Type).Msg("feed client is behind, dropping message")
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every client and stops listening to the store.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	clients := f.clients
	f.clients = make(map[*feedClient]struct{})
	f.mu.Unlock()

	if f.unsubscribe != nil {
		f.unsubscribe()
	}
	for c := range clients {
		c.close()
	}
}

func (f *Feed) add() (*feedClient, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, false
	}
	c := &feedClient{out: make(chan FeedMessage, clientBuffer)}
	f.clients[c] = struct{}{}
	return c, true
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	delete(f.clients, c)
	f.mu.Unlock()
	c.close()
}

// Handle upgrades the request and serves the feed until the client leaves.
func (f *Feed) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client, open := f.add()
	if !open {
		return
	}
	defer f.remove(client)

	// gorilla/websocket forbids concurrent writes
	var writeMu sync.Mutex
	write := func(msg FeedMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	// Pump queued messages; ends when the client is removed or the feed closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.out {
			if err := write(msg); err != nil {
				break
			}
		}
		conn.Close()
	}()

	for {
		var msg FeedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			if err := write(FeedMessage{Type: FeedPong}); err != nil {
				break
			}
		}
	}
	f.remove(client)
	<-done
}
