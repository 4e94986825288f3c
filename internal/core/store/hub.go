package store

import "sync"

// hub fans change deltas out to subscribers. Each subscriber owns a queue
// drained by its own goroutine so delivery order matches write order per
// subscriber and a slow callback never blocks writers.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

type subscriber struct {
	fn    func(Changes)
	mu    sync.Mutex
	cond  *sync.Cond
	queue []Changes
	done  bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]*subscriber)}
}

func (h *hub) subscribe(fn func(Changes)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return func() {}
	}

	s := &subscriber{fn: fn}
	s.cond = sync.NewCond(&s.mu)
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			s.stop()
		})
	}
}

func (h *hub) publish(c Changes) {
	if len(c) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.push(c)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[int]*subscriber)
	h.closed = true
	h.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber) push(c Changes) {
	s.mu.Lock()
	if !s.done {
		s.queue = append(s.queue, c)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) stop() {
	s.mu.Lock()
	s.done = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.done {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.done {
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(next)
	}
}
