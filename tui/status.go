package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderStatusBar produces a full-width inverted status line showing the
// area, position, save slot and frame count.
func (m Model) renderStatusBar() string {
	s := m.session

	name := s.Area
	if a, ok := s.Engine.World.Lookup(s.Area); ok && a.Name() != "" {
		name = a.Name()
	}

	left := fmt.Sprintf(" %s | (%d, %d)", name, s.X, s.Y)
	right := fmt.Sprintf("Slot: %s | F:%d ", s.Engine.Slot(), m.frames)
	if s.Trace {
		right = "trace | " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
