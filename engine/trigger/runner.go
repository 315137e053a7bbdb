package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/savestate"
	"github.com/nathoo/tilecore/logger"
)

// Options configures a Runner.
type Options struct {
	Slot   *savestate.Slot // required
	Sound  Sound           // nil drops sounds
	Logger *slog.Logger
}

// Runner executes triggers.
type Runner struct {
	slot   *savestate.Slot
	sound  Sound
	logger *slog.Logger
}

// Result summarises a committed run.
type Result struct {
	ID      string
	Changes int      // tile writes
	Vars    []string // save-state variables written
	Sounds  []string // resources handed to Sound
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Runner{slot: opts.Slot, sound: opts.Sound, logger: l}
}

// Slot returns the save slot triggers read and write.
func (r *Runner) Slot() *savestate.Slot { return r.slot }

// Run executes fn as one step on a. On error every tile and save-state
// write is undone, no redraw is queued and no sound plays.
func (r *Runner) Run(ctx context.Context, a *area.Area, name string, fn Func) (*Result, error) {
	id := uuid.NewString()
	l := logger.WithTrigger(r.logger, id, name, a.Path())

	txn, err := a.Begin(ctx)
	if err != nil {
		logger.WithError(l, err).Warn("trigger could not lock area", "retryable", IsRetryable(err))
		return nil, &Error{ID: id, Trigger: name, Area: a.Path(), Err: err}
	}

	c := &Context{
		ctx:    ctx,
		id:     id,
		name:   name,
		txn:    txn,
		vars:   savestate.NewOverlay(r.slot),
		logger: l,
	}
	if err := call(fn, c); err != nil {
		txn.Rollback()
		c.vars.Discard()
		logger.WithError(l, err).Warn("trigger failed, step rolled back")
		return nil, &Error{ID: id, Trigger: name, Area: a.Path(), Err: err}
	}

	res := &Result{ID: id, Changes: txn.Changes(), Vars: c.vars.Changes(), Sounds: c.sounds}
	// Variables go first so anyone who can lock the Area next also sees them.
	c.vars.Commit()
	txn.Commit()

	if r.sound != nil {
		for _, s := range c.sounds {
			r.sound.Play(s)
		}
	}
	l.Debug("trigger committed", "changes", res.Changes, "vars", len(res.Vars), "sounds", len(res.Sounds))
	return res, nil
}

func call(fn Func, c *Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("trigger panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(c)
}
