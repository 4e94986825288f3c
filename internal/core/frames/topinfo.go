package frames

import (
	"encoding/json"
	"sync"
)

// TopInfoCache holds the top frame's title and URL inside an iframe context.
// Every Invalidate starts a new generation; replies to requests issued for
// an older generation are dropped.
type TopInfoCache struct {
	mu    sync.Mutex
	gen   uint64
	info  TabTitle
	ready bool
}

// Invalidate forgets the cached values.
func (c *TopInfoCache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.info = TabTitle{}
	c.ready = false
	c.mu.Unlock()
}

// Get returns the cached values and whether they are ready.
func (c *TopInfoCache) Get() (TabTitle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info, c.ready
}

// RefreshFromRemote asks for the top frame's title through send and caches
// the answer. onReady, if set, runs after a current-generation answer is
// stored. A request that is never answered leaves the cache not ready.
func (c *TopInfoCache) RefreshFromRemote(send func(reply func(json.RawMessage)), onReady func(TabTitle)) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	send(func(data json.RawMessage) {
		var info TabTitle
		if err := json.Unmarshal(data, &info); err != nil {
			return
		}
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.info = info
		c.ready = true
		c.mu.Unlock()

		if onReady != nil {
			onReady(info)
		}
	})
}
