package store

import "sync"

// Hub fans change notifications out to watchers. A topic names one
// aggregate ("conversations:<safeEmail>" or "messages:<conversationID>");
// watchers get a signal, not a payload, and re-read their snapshot.
// Signal channels are buffered with size one so notifications coalesce
// instead of backing up behind a slow watcher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]chan struct{}
	nextID int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int64]chan struct{})}
}

// Notify signals every watcher registered on the topic. Never blocks: a
// watcher that already has a pending signal keeps just that one.
func (h *Hub) Notify(topic string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) register(topic string) (int64, chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[topic]; !ok {
		h.subs[topic] = make(map[int64]chan struct{})
	}
	h.nextID++
	id := h.nextID
	ch := make(chan struct{}, 1)
	h.subs[topic][id] = ch
	return id, ch
}

func (h *Hub) unregister(topic string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if watchers, ok := h.subs[topic]; ok {
		delete(watchers, id)
		if len(watchers) == 0 {
			delete(h.subs, topic)
		}
	}
}

func conversationsTopic(safeEmail string) string {
	return "conversations:" + safeEmail
}

func messagesTopic(conversationID string) string {
	return "messages:" + conversationID
}
