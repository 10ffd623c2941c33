package main

// MaxHistory is the undo depth of a session.
const MaxHistory = 20

// History is a bounded stack of snapshots. When full, pushing drops the
// oldest entry.
type History struct {
	limit int
	items []Snapshot
}

func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit, items: make([]Snapshot, 0, limit+1)}
}

// Push appends s, evicting the oldest snapshot past the limit.
func (h *History) Push(s Snapshot) {
	h.items = append(h.items, s)
	if len(h.items) > h.limit {
		copy(h.items, h.items[1:])
		h.items[len(h.items)-1] = Snapshot{}
		h.items = h.items[:len(h.items)-1]
	}
}

// Pop removes and returns the most recent snapshot. The boolean is false
// when there is nothing to undo.
func (h *History) Pop() (Snapshot, bool) {
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	last := len(h.items) - 1
	s := h.items[last]
	h.items[last] = Snapshot{}
	h.items = h.items[:last]
	return s, true
}

func (h *History) Clear() {
	clear(h.items)
	h.items = h.items[:0]
}

func (h *History) Len() int { return len(h.items) }

// Bytes returns the total encoded size of the retained snapshots.
func (h *History) Bytes() int {
	total := 0
	for _, s := range h.items {
		total += s.Size()
	}
	return total
}
