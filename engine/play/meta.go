package play

import (
	"context"
	"fmt"
	"strings"

	"github.com/nathoo/tilecore/types"
)

// meta dispatches slash commands.
func (s *Session) meta(ctx context.Context, input string) Result {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/quit", "/exit":
		return Result{Output: []string{system("Goodbye.")}, Quit: true}

	case "/save":
		if s.Store == nil {
			return Result{Output: []string{system("Saving is disabled.")}}
		}
		if err := s.Engine.SaveTo(ctx, s.Store); err != nil {
			return Result{Output: []string{system("Save failed: %v", err)}}
		}
		return Result{Output: []string{system("Game saved to slot %s.", s.Engine.Slot())}}

	case "/load":
		if s.Store == nil {
			return Result{Output: []string{system("Saving is disabled.")}}
		}
		if err := s.Engine.LoadFrom(ctx, s.Store); err != nil {
			return Result{Output: []string{system("Load failed: %v", err)}}
		}
		out := []string{system("Game loaded from slot %s.", s.Engine.Slot())}
		return Result{Output: append(out, s.look(ctx)...)}

	case "/state":
		return Result{Output: s.state()}

	case "/trace":
		s.Trace = !s.Trace
		if s.Trace {
			return Result{Output: []string{system("Trace output enabled.")}}
		}
		return Result{Output: []string{system("Trace output disabled.")}}

	case "/help":
		return Result{Output: Help()}

	default:
		return Result{Output: []string{system("Unknown command: %s. Type /help for available commands.", parts[0])}}
	}
}

func (s *Session) state() []string {
	slot := s.Engine.Save.Slot(s.Engine.Slot())
	out := []string{
		system("Slot: %s", slot.Name()),
		system("Position: %s (%d, %d)", s.Area, s.X, s.Y),
	}
	for _, a := range s.Engine.Loaded() {
		out = append(out, system("Loaded: %s", a.Path()))
	}
	for _, k := range slot.Keys() {
		v, _ := slot.Get(k)
		out = append(out, system("%s = %s", k, formatScalar(v)))
	}
	return out
}

func formatScalar(v types.Scalar) string {
	switch v.Kind {
	case types.ScalarBool:
		return fmt.Sprint(v.Bool)
	case types.ScalarInt:
		return fmt.Sprint(v.Int)
	case types.ScalarFloat:
		return fmt.Sprint(v.Float)
	case types.ScalarString:
		return fmt.Sprintf("%q", v.String)
	}
	return "?"
}

// Help lists every command.
func Help() []string {
	return []string{
		"System:",
		"  /save    Save the active slot",
		"  /load    Load the active slot",
		"  /state   Show position and save-state variables",
		"  /trace   Toggle trigger trace output",
		"  /help    Show this help",
		"  /quit    Exit",
		"",
		"Commands:",
		"  look (l)                Describe where you stand",
		"  n/s/e/w, go <dir>       Step one tile",
		"  use                     Use the tile you stand on",
		"  fire <trigger>          Run a trigger against this area",
		"  goto <area> <x> <y>     Jump to a tile",
		"  map (m)                 Draw the area",
		"  again (g)               Repeat your last command",
	}
}
