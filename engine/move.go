package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/types"
)

// Move is the result of one step by the player.
type Move struct {
	Area    string
	X, Y    int
	Blocked bool     // the step was refused; Area, X and Y are unchanged
	Leave   *Outcome // leave triggers of the tile stepped off
	Enter   *Outcome // enter triggers of the tile stepped on, nil if blocked
}

// Failed returns the first trigger error of the step, if any.
func (m *Move) Failed() error {
	for _, o := range []*Outcome{m.Leave, m.Enter} {
		if o == nil {
			continue
		}
		if err := o.Failed(); err != nil {
			return err
		}
	}
	return nil
}

var stepOffsets = [types.ExitDirections][2]int{
	types.ExitUp:    {0, -1},
	types.ExitDown:  {0, 1},
	types.ExitLeft:  {-1, 0},
	types.ExitRight: {1, 0},
}

// Step moves the player one tile in dir from (x, y). A directional exit
// on the current tile is always taken. Otherwise the neighbour must be
// inside the area and walkable. Leave triggers fire only once the move is
// known to happen, so bumping into a wall runs nothing. Stepping onto the
// neighbour fires its enter triggers and follows its normal exit.
func (e *Engine) Step(ctx context.Context, path string, x, y int, dir types.ExitDirection) (*Move, error) {
	if dir <= types.ExitNormal || dir >= types.ExitDirections {
		return nil, fmt.Errorf("step: invalid direction %d", dir)
	}
	mv := &Move{Area: path, X: x, Y: y}

	a, err := e.World.Area(ctx, path)
	if err != nil {
		return nil, err
	}
	_, hasExit, err := a.ExitAt(ctx, x, y, dir)
	if err != nil {
		return nil, err
	}
	if hasExit {
		leave, err := e.Leave(ctx, path, x, y, dir)
		if err != nil {
			return nil, err
		}
		mv.Leave = leave
		if leave.Arrival != nil {
			mv.Area = leave.Arrival.Area.Path()
			mv.X, mv.Y = leave.Arrival.Address.X, leave.Arrival.Address.Y
		}
		return mv, nil
	}

	off := stepOffsets[dir]
	addr, _, err := a.Inspect(ctx, x+off[0], y+off[1], types.PropertyDepth)
	if errors.Is(err, area.ErrOutOfBounds) {
		mv.Blocked = true
		return mv, nil
	}
	if err != nil {
		return nil, err
	}
	ok, err := e.Walkable(ctx, path, addr.X, addr.Y)
	if err != nil {
		return nil, err
	}
	if !ok {
		mv.Blocked = true
		return mv, nil
	}

	leave, err := e.Leave(ctx, path, x, y, types.ExitNormal)
	if err != nil {
		return nil, err
	}
	mv.Leave = leave

	mv.X, mv.Y = addr.X, addr.Y
	enter, err := e.Enter(ctx, path, addr.X, addr.Y)
	mv.Enter = enter
	if err != nil {
		return mv, err
	}
	if enter.Arrival != nil {
		mv.Area = enter.Arrival.Area.Path()
		mv.X, mv.Y = enter.Arrival.Address.X, enter.Arrival.Address.Y
	}
	return mv, nil
}
