// Package trigger runs content triggers against the one Area they are bound
// to. A run is a single locked step: tile writes and save-state writes are
// published together on success and discarded together on failure, and
// side effects such as sound are only released after the Area is unlocked.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/savestate"
	"github.com/nathoo/tilecore/types"
)

// Func is a trigger body. Returning an error rolls the whole step back.
type Func func(*Context) error

// Sound plays a resource. Play must not block.
type Sound interface {
	Play(resource string)
}

// ErrUnknownTrigger is returned for a name nobody registered.
var ErrUnknownTrigger = errors.New("unknown trigger")

// Area is the part of a locked step a trigger body may use. Committing,
// rolling back and reaching the Area itself stay with the Runner.
type Area interface {
	Path() string
	Tiles(x, y int, z float64) (*area.Tile, error)
	TileAt(addr types.TileAddress) (*area.Tile, error)
	GetTileType(id int) (*types.TileType, error)
	RequestRedraw()
}

// step hides the *area.Txn so a body cannot assert its way back to it.
type step struct {
	txn *area.Txn
}

func (s step) Path() string { return s.txn.Path() }

func (s step) Tiles(x, y int, z float64) (*area.Tile, error) { return s.txn.Tiles(x, y, z) }

func (s step) TileAt(addr types.TileAddress) (*area.Tile, error) { return s.txn.TileAt(addr) }

func (s step) GetTileType(id int) (*types.TileType, error) { return s.txn.GetTileType(id) }

func (s step) RequestRedraw() { s.txn.RequestRedraw() }

// Context is what a running trigger can reach: its bound Area step, its
// save slot and deferred sound playback. Nothing else.
type Context struct {
	ctx    context.Context
	id     string
	name   string
	txn    *area.Txn
	vars   *savestate.Overlay
	sounds []string
	logger *slog.Logger
}

// ID returns the invocation id.
func (c *Context) ID() string { return c.id }

// Name returns the trigger name.
func (c *Context) Name() string { return c.name }

// Context returns the caller's context.
func (c *Context) Context() context.Context { return c.ctx }

// Area returns the locked step on the bound Area.
func (c *Context) Area() Area { return step{txn: c.txn} }

// Save returns the slot's variables. Reads see this run's own writes;
// other callers see them only once the run commits.
func (c *Context) Save() *savestate.Overlay { return c.vars }

// PlaySound queues resource for playback after a successful commit.
func (c *Context) PlaySound(resource string) {
	c.sounds = append(c.sounds, resource)
}

// Logger returns a logger tagged with the invocation.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Error wraps a failed run.
type Error struct {
	ID      string
	Trigger string
	Area    string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("trigger %s on %s: %v", e.Trigger, e.Area, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err means the Area was busy and the same
// run may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, area.ErrConcurrentMutationTimeout)
}

// Registry maps trigger names to bodies.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register binds name to fn. Names are unique.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("trigger: empty name or nil func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.funcs[name]; dup {
		return fmt.Errorf("trigger %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup returns the body registered under name.
func (r *Registry) Lookup(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}
	return fn, nil
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
