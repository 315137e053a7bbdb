package tui

// History is a bounded command history with cursor-based navigation. The
// line being typed when navigation starts is kept as a draft and handed
// back when the cursor moves past the newest entry.
type History struct {
	entries []string
	max     int
	cursor  int // -1 = not navigating, 0..len-1 = position in entries
	draft   string
}

// NewHistory creates a history holding at most max commands.
func NewHistory(max int) *History {
	return &History{
		entries: make([]string, 0, max),
		max:     max,
		cursor:  -1,
	}
}

// Push adds a command. Consecutive duplicates are skipped.
func (h *History) Push(cmd string) {
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	if len(h.entries) == h.max {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.max-1]
	}
	h.entries = append(h.entries, cmd)
}

// Prev moves to the previous (older) entry. current is the line being
// edited; it is saved as the draft when navigation starts.
func (h *History) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.draft = current
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next moves to the next (newer) entry. Past the newest it returns the
// draft and stops navigating; it reports false only when not navigating.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		h.cursor = -1
		return h.draft, true
	}
	return h.entries[h.cursor], true
}

// ResetCursor stops navigating and drops the draft.
func (h *History) ResetCursor() {
	h.cursor = -1
	h.draft = ""
}
