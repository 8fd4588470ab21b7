package control

import (
	"sync"
)

// statusHub is a minimal single-topic broadcaster: every connected
// /status/stream client receives every broadcast snapshot. Unlike the
// general pub/sub hub this is adapted from, there is exactly one topic
// (fleet status), so no topic bookkeeping is needed.
//
// Registration mutations go through channels, handled by the run loop in
// a single goroutine; broadcast copies the client set under a read lock and
// sends outside it, so a slow client's blocked channel send never stalls
// registration or other clients.
type statusHub struct {
	mu      sync.RWMutex
	clients map[*statusClient]struct{}

	register   chan *statusClient
	unregister chan *statusClient
	done       chan struct{}
}

func newStatusHub() *statusHub {
	return &statusHub{
		clients:    make(map[*statusClient]struct{}),
		register:   make(chan *statusClient, 16),
		unregister: make(chan *statusClient, 16),
		done:       make(chan struct{}),
	}
}

// run starts the hub's registration loop. It exits when stop is closed.
func (h *statusHub) run(stop <-chan struct{}) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*statusClient]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// broadcast sends snapshot to every connected client. A client whose send
// buffer is full is disconnected rather than allowed to block the tick that
// called broadcast.
func (h *statusHub) broadcast(snapshot any) {
	h.mu.RLock()
	clients := make([]*statusClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- snapshot:
		default:
			h.unregister <- c
		}
	}
}

func (h *statusHub) subscribe(c *statusClient) {
	h.register <- c
}

func (h *statusHub) unsubscribe(c *statusClient) {
	h.unregister <- c
}
