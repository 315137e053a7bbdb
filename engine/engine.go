// Package engine wires the area cache, redraw scheduler, save state and
// trigger runner together and turns tile events into trigger runs and
// traversals.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/events"
	"github.com/nathoo/tilecore/engine/redraw"
	"github.com/nathoo/tilecore/engine/save"
	"github.com/nathoo/tilecore/engine/savestate"
	"github.com/nathoo/tilecore/engine/trigger"
	"github.com/nathoo/tilecore/engine/world"
	"github.com/nathoo/tilecore/storage"
	"github.com/nathoo/tilecore/types"
)

// Options configures an Engine.
type Options struct {
	Loader      world.Loader      // required
	Triggers    *trigger.Registry // nil means an empty registry
	Sound       trigger.Sound     // nil drops sounds
	Slot        string            // save slot; empty means savestate.DefaultSlot
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Engine holds the live areas and save state.
type Engine struct {
	World    *world.World
	Redraw   *redraw.Scheduler
	Save     *savestate.State
	Triggers *trigger.Registry

	runner *trigger.Runner
	slot   string
	logger *slog.Logger
}

// New creates an engine.
func New(opts Options) *Engine {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	slot := opts.Slot
	if slot == "" {
		slot = savestate.DefaultSlot
	}
	reg := opts.Triggers
	if reg == nil {
		reg = trigger.NewRegistry()
	}
	sched := redraw.New()
	st := savestate.New()
	return &Engine{
		World: world.New(opts.Loader, world.Options{
			LockTimeout: opts.LockTimeout,
			Scheduler:   sched,
			Logger:      l,
		}),
		Redraw:   sched,
		Save:     st,
		Triggers: reg,
		runner:   trigger.NewRunner(trigger.Options{Slot: st.Slot(slot), Sound: opts.Sound, Logger: l}),
		slot:     slot,
		logger:   l,
	}
}

// Slot returns the active save slot.
func (e *Engine) Slot() string { return e.slot }

// Fire runs the named trigger against the Area at path.
func (e *Engine) Fire(ctx context.Context, path, name string) (*trigger.Result, error) {
	fn, err := e.Triggers.Lookup(name)
	if err != nil {
		return nil, err
	}
	a, err := e.World.Area(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.runner.Run(ctx, a, name, fn)
}

// Fired records one trigger run caused by an event.
type Fired struct {
	Binding events.Binding
	Result  *trigger.Result
	Err     error
}

// Outcome is what an event caused.
type Outcome struct {
	Fired   []Fired
	Arrival *world.Arrival // set when an exit was followed
}

// Failed returns the first trigger error, if any.
func (o *Outcome) Failed() error {
	for _, f := range o.Fired {
		if f.Err != nil {
			return f.Err
		}
	}
	return nil
}

// Enter fires the enter triggers of (x, y) and then follows the tile's
// normal exit, if it has one.
func (e *Engine) Enter(ctx context.Context, path string, x, y int) (*Outcome, error) {
	out, err := e.dispatch(ctx, path, types.TileEvent{Kind: types.EventEnter, X: x, Y: y})
	if err != nil {
		return nil, err
	}
	if err := e.follow(ctx, out, path, x, y, types.ExitNormal); err != nil {
		return out, err
	}
	return out, nil
}

// Leave fires the leave triggers of (x, y) and, for a directional move,
// follows the exit in that direction if the tile has one.
func (e *Engine) Leave(ctx context.Context, path string, x, y int, dir types.ExitDirection) (*Outcome, error) {
	out, err := e.dispatch(ctx, path, types.TileEvent{Kind: types.EventLeave, X: x, Y: y})
	if err != nil {
		return nil, err
	}
	if dir == types.ExitNormal {
		return out, nil
	}
	if err := e.follow(ctx, out, path, x, y, dir); err != nil {
		return out, err
	}
	return out, nil
}

// Use fires the use triggers of (x, y).
func (e *Engine) Use(ctx context.Context, path string, x, y int) (*Outcome, error) {
	return e.dispatch(ctx, path, types.TileEvent{Kind: types.EventUse, X: x, Y: y})
}

func (e *Engine) dispatch(ctx context.Context, path string, ev types.TileEvent) (*Outcome, error) {
	a, err := e.World.Area(ctx, path)
	if err != nil {
		return nil, err
	}
	bindings, err := events.Dispatch(ctx, []types.TileEvent{ev}, a)
	if err != nil {
		return nil, err
	}
	out := &Outcome{}
	for _, b := range bindings {
		f := Fired{Binding: b}
		fn, err := e.Triggers.Lookup(b.Trigger)
		if err != nil {
			e.logger.Warn("tile bound to unknown trigger", "area", path, "x", ev.X, "y", ev.Y, "trigger", b.Trigger)
			f.Err = err
		} else {
			f.Result, f.Err = e.runner.Run(ctx, a, b.Trigger, fn)
		}
		out.Fired = append(out.Fired, f)
	}
	return out, nil
}

func (e *Engine) follow(ctx context.Context, out *Outcome, path string, x, y int, dir types.ExitDirection) error {
	arr, err := e.World.Traverse(ctx, path, x, y, dir)
	if errors.Is(err, world.ErrNoExit) {
		return nil
	}
	if err != nil {
		return err
	}
	out.Arrival = arr
	return nil
}

// Walkable reports whether the player may stand on (x, y): no layer may
// carry nowalk or nowalk_player, and every typed tile must be walkable.
func (e *Engine) Walkable(ctx context.Context, path string, x, y int) (bool, error) {
	a, err := e.World.Area(ctx, path)
	if err != nil {
		return false, err
	}
	ok := true
	err = a.View(ctx, func(txn *area.Txn) error {
		for _, z := range a.Depths() {
			tile, err := txn.Tiles(x, y, z)
			if err != nil {
				return err
			}
			if !tile.Walkable() {
				ok = false
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Frame drains the redraw queue. Renderers call it once per display frame.
func (e *Engine) Frame() []*area.Area {
	batch := e.Redraw.Drain()
	out := make([]*area.Area, 0, len(batch))
	for _, t := range batch {
		if a, ok := t.(*area.Area); ok {
			out = append(out, a)
		}
	}
	return out
}

// Loaded returns every Area currently in memory.
func (e *Engine) Loaded() []*area.Area { return e.World.Loaded() }

// Snapshot captures the active slot and every loaded Area.
func (e *Engine) Snapshot(ctx context.Context) (*save.SaveData, error) {
	return save.Capture(ctx, e.Save.Slot(e.slot), e.World.Loaded())
}

// Restore applies save data: variables first, then tile state, loading
// areas as needed. On error the slot's previous variables are put back
// and no area is left changed.
func (e *Engine) Restore(ctx context.Context, sd *save.SaveData) error {
	if sd.Slot != e.slot {
		return fmt.Errorf("save is for slot %q, engine uses %q", sd.Slot, e.slot)
	}
	prev := e.Save.Export(e.slot)
	if err := save.ApplySave(e.Save, sd); err != nil {
		return err
	}
	if err := save.ApplyAreas(ctx, sd, e.World.Area); err != nil {
		// prev came out of the state, so it imports cleanly.
		_ = e.Save.Import(e.slot, prev)
		return err
	}
	return nil
}

// SaveTo writes the active slot to store.
func (e *Engine) SaveTo(ctx context.Context, store storage.Store) error {
	sd, err := e.Snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := save.Save(sd)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, e.slot, data); err != nil {
		return fmt.Errorf("save slot %s: %w", e.slot, err)
	}
	e.logger.Info("game saved", "slot", e.slot, "areas", len(sd.Areas), "bytes", len(data))
	return nil
}

// LoadFrom reads the active slot from store and applies it.
func (e *Engine) LoadFrom(ctx context.Context, store storage.Store) error {
	data, err := store.Get(ctx, e.slot)
	if err != nil {
		return fmt.Errorf("load slot %s: %w", e.slot, err)
	}
	sd, err := save.Load(data)
	if err != nil {
		return fmt.Errorf("load slot %s: %w", e.slot, err)
	}
	if err := e.Restore(ctx, sd); err != nil {
		return err
	}
	e.logger.Info("game loaded", "slot", e.slot, "areas", len(sd.Areas))
	return nil
}
