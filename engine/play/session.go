// Package play keeps the player's position and turns command lines into
// engine calls. The line-mode CLI and the terminal UI both drive it.
package play

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/tilecore/engine"
	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/parser"
	"github.com/nathoo/tilecore/storage"
	"github.com/nathoo/tilecore/types"
)

// Result is the output of one command line.
type Result struct {
	Output []string
	Quit   bool
}

// Session is one player walking the engine's areas.
type Session struct {
	Engine *engine.Engine
	Store  storage.Store // nil disables /save and /load
	Area   string
	X, Y   int
	Trace  bool

	lastCmd string
}

// New creates a session standing at (x, y) of the area at path.
func New(eng *engine.Engine, store storage.Store, path string, x, y int) *Session {
	return &Session{Engine: eng, Store: store, Area: path, X: x, Y: y}
}

// Start loads the starting area, checks the starting position and
// describes it.
func (s *Session) Start(ctx context.Context) ([]string, error) {
	a, err := s.Engine.World.Area(ctx, s.Area)
	if err != nil {
		return nil, err
	}
	addr, _, err := a.Inspect(ctx, s.X, s.Y, types.PropertyDepth)
	if err != nil {
		return nil, fmt.Errorf("start position: %w", err)
	}
	s.X, s.Y = addr.X, addr.Y
	return s.look(ctx), nil
}

// Exec runs one command line.
func (s *Session) Exec(ctx context.Context, input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{}
	}
	if strings.HasPrefix(input, "/") {
		return s.meta(ctx, input)
	}

	cmd := parser.Parse(input)
	if cmd.Verb == parser.VerbAgain {
		if s.lastCmd == "" {
			return Result{Output: []string{"Nothing to repeat."}}
		}
		cmd = parser.Parse(s.lastCmd)
	} else {
		s.lastCmd = input
	}

	switch cmd.Verb {
	case parser.VerbLook:
		return Result{Output: s.look(ctx)}
	case parser.VerbGo:
		return Result{Output: s.step(ctx, cmd.Dir)}
	case parser.VerbUse:
		return Result{Output: s.use(ctx)}
	case parser.VerbFire:
		return Result{Output: s.fire(ctx, cmd.Args)}
	case parser.VerbGoto:
		return Result{Output: s.teleport(ctx, cmd.Args)}
	case parser.VerbMap:
		return Result{Output: s.drawMap(ctx)}
	default:
		return Result{Output: []string{fmt.Sprintf("I don't know how to %q.", cmd.Verb)}}
	}
}

func (s *Session) look(ctx context.Context) []string {
	a, err := s.Engine.World.Area(ctx, s.Area)
	if err != nil {
		return []string{system("Error: %v", err)}
	}
	name := a.Name()
	if name == "" {
		name = a.Path()
	}
	lines := []string{fmt.Sprintf("%s, at (%d, %d).", name, s.X, s.Y)}

	_, ts, err := a.Inspect(ctx, s.X, s.Y, types.PropertyDepth)
	if err != nil {
		return append(lines, system("Error: %v", err))
	}
	if ts.Scripts.Use != "" {
		lines = append(lines, "There is something here you can use.")
	}
	dirs := make([]int, 0, len(ts.Exits))
	for dir := range ts.Exits {
		dirs = append(dirs, int(dir))
	}
	sort.Ints(dirs)
	var exits []string
	for _, d := range dirs {
		dir := types.ExitDirection(d)
		link := ts.Exits[dir]
		label := parser.DirectionName(dir)
		if label == "" {
			label = "here"
		}
		exits = append(exits, fmt.Sprintf("%s to %s", label, link.Area))
	}
	if len(exits) > 0 {
		lines = append(lines, "Exits: "+strings.Join(exits, ", ")+".")
	}
	return lines
}

func (s *Session) step(ctx context.Context, dir types.ExitDirection) []string {
	if dir == types.ExitNormal {
		return []string{"Go where? Try north, south, east or west."}
	}
	mv, err := s.Engine.Step(ctx, s.Area, s.X, s.Y, dir)
	if err != nil {
		return []string{system("Error: %v", err)}
	}
	var lines []string
	lines = append(lines, s.outcome(mv.Leave)...)
	if mv.Blocked {
		return append(lines, "You can't go that way.")
	}
	lines = append(lines, s.outcome(mv.Enter)...)
	moved := mv.Area != s.Area
	s.Area, s.X, s.Y = mv.Area, mv.X, mv.Y
	if moved {
		lines = append(lines, s.look(ctx)...)
	}
	return lines
}

func (s *Session) use(ctx context.Context) []string {
	out, err := s.Engine.Use(ctx, s.Area, s.X, s.Y)
	if err != nil {
		return []string{system("Error: %v", err)}
	}
	if len(out.Fired) == 0 {
		return []string{"Nothing happens."}
	}
	lines := s.outcome(out)
	if out.Failed() == nil {
		lines = append(lines, "Done.")
	}
	return lines
}

func (s *Session) fire(ctx context.Context, args []string) []string {
	if len(args) != 1 {
		return []string{"Usage: fire <trigger>"}
	}
	res, err := s.Engine.Fire(ctx, s.Area, args[0])
	if err != nil {
		return []string{system("Trigger %s failed: %v", args[0], err)}
	}
	lines := []string{system("Trigger %s ran.", args[0])}
	if s.Trace {
		lines = append(lines, traceResult(args[0], res.ID, res.Changes, res.Vars, res.Sounds)...)
	}
	return lines
}

func (s *Session) teleport(ctx context.Context, args []string) []string {
	if len(args) != 3 {
		return []string{"Usage: goto <area> <x> <y>"}
	}
	x, errX := strconv.Atoi(args[1])
	y, errY := strconv.Atoi(args[2])
	if errX != nil || errY != nil {
		return []string{"Usage: goto <area> <x> <y>"}
	}
	a, err := s.Engine.World.Area(ctx, args[0])
	if err != nil {
		return []string{system("Error: %v", err)}
	}
	addr, _, err := a.Inspect(ctx, x, y, types.PropertyDepth)
	if errors.Is(err, area.ErrOutOfBounds) {
		return []string{system("(%d, %d) is outside %s.", x, y, args[0])}
	}
	if err != nil {
		return []string{system("Error: %v", err)}
	}
	s.Area, s.X, s.Y = a.Path(), addr.X, addr.Y
	return s.look(ctx)
}

func (s *Session) drawMap(ctx context.Context) []string {
	a, err := s.Engine.World.Area(ctx, s.Area)
	if err != nil {
		return []string{system("Error: %v", err)}
	}
	st, err := a.Snapshot(ctx)
	if err != nil {
		return []string{system("Error: %v", err)}
	}
	return RenderMap(st, a, s.X, s.Y)
}

// outcome reports failed triggers and, with tracing on, every run.
func (s *Session) outcome(out *engine.Outcome) []string {
	if out == nil {
		return nil
	}
	var lines []string
	for _, f := range out.Fired {
		if f.Err != nil {
			lines = append(lines, system("Trigger %s failed: %v", f.Binding.Trigger, f.Err))
			continue
		}
		if s.Trace {
			lines = append(lines, traceResult(f.Binding.Trigger, f.Result.ID, f.Result.Changes, f.Result.Vars, f.Result.Sounds)...)
		}
	}
	return lines
}

func traceResult(name, id string, changes int, vars, sounds []string) []string {
	lines := []string{fmt.Sprintf("[trace] %s %s: %d tile write(s)", name, id, changes)}
	if len(vars) > 0 {
		lines = append(lines, fmt.Sprintf("[trace]   vars: %s", strings.Join(vars, ", ")))
	}
	if len(sounds) > 0 {
		lines = append(lines, fmt.Sprintf("[trace]   sounds: %s", strings.Join(sounds, ", ")))
	}
	return lines
}

func system(format string, args ...any) string {
	return "[" + fmt.Sprintf(format, args...) + "]"
}
