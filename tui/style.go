package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/tilecore/engine/play"
	"github.com/nathoo/tilecore/types"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleMessage = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleExits = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	styleHint = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	stylePlayer = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	styleWall = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	styleFloor = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	styleExitTile = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	styleMapBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))
)

// lineKind identifies the type of a log line for styling.
type lineKind int

const (
	kindMessage lineKind = iota
	kindExits
	kindSystem
	kindError
	kindTrace
)

// classifyLine determines what kind of log line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.Contains(line, "failed"):
		return kindError
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "Exits:"):
		return kindExits
	case strings.HasPrefix(line, "You can't"),
		strings.HasPrefix(line, "I don't know"):
		return kindError
	default:
		return kindMessage
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindExits:
		return styleExits.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleMessage.Render(line)
	}
}

// cellStyle picks the map style for cell i.
func cellStyle(st *types.AreaState, i int, glyph rune) lipgloss.Style {
	for _, l := range st.Layers {
		if l.Layer != types.LayerProperty || i >= len(l.Tiles) {
			continue
		}
		if len(l.Tiles[i].Exits) > 0 {
			return styleExitTile
		}
	}
	if glyph == '#' {
		return styleWall
	}
	return styleFloor
}

// renderMap draws the area with lipgloss, the player highlighted.
func renderMap(st *types.AreaState, tt play.TileTypes, px, py int) string {
	var b strings.Builder
	for y := 0; y < st.Height; y++ {
		if y > 0 {
			b.WriteString("\n")
		}
		for x := 0; x < st.Width; x++ {
			if x == px && y == py {
				b.WriteString(stylePlayer.Render(string(play.PlayerGlyph)))
				continue
			}
			i := y*st.Width + x
			g := play.Glyph(st, tt, i)
			b.WriteString(cellStyle(st, i, g).Render(string(g)))
		}
	}
	return styleMapBorder.Render(b.String())
}
