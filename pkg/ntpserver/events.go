package ntpserver

import "sync"

// eventHub fans request events out to subscribers and keeps a bounded history.
type eventHub struct {
	mu          sync.RWMutex
	subscribers map[chan RequestEvent]struct{}
	history     []RequestEvent
	next        int
	full        bool
}

func newEventHub(maxHistory int) *eventHub {
	if maxHistory <= 0 {
		maxHistory = 500
	}
	return &eventHub{
		subscribers: make(map[chan RequestEvent]struct{}),
		history:     make([]RequestEvent, maxHistory),
	}
}

func (h *eventHub) publish(ev RequestEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history[h.next] = ev
	h.next = (h.next + 1) % len(h.history)
	if h.next == 0 {
		h.full = true
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber.
		}
	}
}

func (h *eventHub) subscribe(buffer int) (<-chan RequestEvent, func()) {
	if buffer <= 0 {
		buffer = 128
	}
	ch := make(chan RequestEvent, buffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// snapshotHistory returns the retained events, oldest first.
func (h *eventHub) snapshotHistory() []RequestEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		out := make([]RequestEvent, h.next)
		copy(out, h.history[:h.next])
		return out
	}
	out := make([]RequestEvent, 0, len(h.history))
	out = append(out, h.history[h.next:]...)
	return append(out, h.history[:h.next]...)
}
