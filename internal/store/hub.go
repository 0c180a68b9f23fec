package store

import "sync"

// hub fans collection snapshots out to subscribers. Channels are buffered;
// a slow subscriber loses intermediate snapshots, never the final state,
// because every emission carries the complete collection.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Snapshot
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan Snapshot)}
}

func (h *hub) subscribe(collection string) (chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Snapshot, 16)
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]chan Snapshot)
	}
	h.subs[collection][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[collection][id]; ok {
			delete(h.subs[collection], id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *hub) broadcast(snapshot Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[snapshot.Collection] {
		select {
		case ch <- snapshot:
		default:
			// full buffer: evict the oldest snapshot so the newest
			// is never the one dropped
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (h *hub) hasSubscribers(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection]) > 0
}
