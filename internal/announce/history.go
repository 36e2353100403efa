package announce

import "sync"

// DefaultHistorySize is the number of recent announcements remembered per
// session.
const DefaultHistorySize = 5

// History is a bounded FIFO of recent model-generated announcements. Adding
// to a full history evicts the oldest entry. It is safe for concurrent use.
type History struct {
	mu       sync.Mutex
	entries  []string
	capacity int
}

// NewHistory returns an empty History holding at most capacity entries.
// A non-positive capacity selects DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity, entries: make([]string, 0, capacity)}
}

// Add appends text, evicting the oldest entry when full.
func (h *History) Add(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.capacity-1]
	}
	h.entries = append(h.entries, text)
}

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Cap returns the maximum number of entries.
func (h *History) Cap() int { return h.capacity }
