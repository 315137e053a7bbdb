// Package area implements the multi-layer tile map that triggers mutate.
//
// An Area owns a Property layer (gameplay: walkability, exits, tile
// scripts) at depth 0.0 and any number of Graphics sub-layers at non-zero
// depths. All tile access happens inside a Txn, which holds the Area's
// exclusive lock, so no reader ever sees half of a step.
package area

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nathoo/tilecore/engine/redraw"
	"github.com/nathoo/tilecore/engine/tiletype"
	"github.com/nathoo/tilecore/types"
)

// DefaultLockTimeout bounds how long Begin waits for the Area lock.
const DefaultLockTimeout = 250 * time.Millisecond

const depthEpsilon = 1e-9

// Invalidator receives redraw requests. *redraw.Scheduler satisfies it.
type Invalidator interface {
	Enqueue(t redraw.Target) bool
}

// Spec is everything a content loader supplies to build an Area.
type Spec struct {
	Path    string
	Name    string
	Music   string
	Width   int
	Height  int
	LoopX   bool
	LoopY   bool
	TileSet *tiletype.Registry
	Layers  []LayerSpec
}

// LayerSpec is the initial content of one layer. Tiles is row-major with
// Width*Height entries, or nil for an empty layer.
type LayerSpec struct {
	Depth float64
	Tiles []types.TileState
}

// Option configures an Area.
type Option func(*Area)

// WithLockTimeout sets the bounded wait for the Area lock. Zero waits
// until the caller's context is done.
func WithLockTimeout(d time.Duration) Option {
	return func(a *Area) { a.lockTimeout = d }
}

// WithScheduler routes RequestRedraw into sched.
func WithScheduler(sched Invalidator) Option {
	return func(a *Area) { a.sched = sched }
}

type cell struct {
	typ     *types.TileType
	flags   types.TileFlags
	exits   [types.ExitDirections]*types.ExitLink
	scripts types.TileScripts
}

type grid struct {
	layer types.Layer
	depth float64
	cells []cell
}

// Area is one map's tile state across all layers. Identity is the path.
type Area struct {
	path   string
	name   string
	music  string
	width  int
	height int
	loopX  bool
	loopY  bool

	tiles  *tiletype.Registry
	layers []*grid // layers[0] is the Property layer

	sem         *semaphore.Weighted
	lockTimeout time.Duration
	sched       Invalidator
	dirty       atomic.Bool
}

// New builds an Area from spec. Unknown tile types in the initial content
// fail construction.
func New(spec Spec, opts ...Option) (*Area, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("area: empty path")
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("area %s: invalid dimensions %dx%d", spec.Path, spec.Width, spec.Height)
	}
	a := &Area{
		path:        spec.Path,
		name:        spec.Name,
		music:       spec.Music,
		width:       spec.Width,
		height:      spec.Height,
		loopX:       spec.LoopX,
		loopY:       spec.LoopY,
		tiles:       spec.TileSet,
		sem:         semaphore.NewWeighted(1),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	n := spec.Width * spec.Height
	a.layers = []*grid{{layer: types.LayerProperty, depth: types.PropertyDepth, cells: make([]cell, n)}}
	for _, ls := range spec.Layers {
		if ls.Tiles != nil && len(ls.Tiles) != n {
			return nil, fmt.Errorf("area %s: layer %g has %d tiles, want %d", spec.Path, ls.Depth, len(ls.Tiles), n)
		}
		g := a.layerAt(ls.Depth)
		if g == nil {
			g = &grid{layer: types.LayerGraphics, depth: ls.Depth, cells: make([]cell, n)}
			a.layers = append(a.layers, g)
		} else if g.depth != types.PropertyDepth {
			return nil, fmt.Errorf("area %s: duplicate layer depth %g", spec.Path, ls.Depth)
		}
		for i, ts := range ls.Tiles {
			c, err := a.cellFromState(ts)
			if err != nil {
				return nil, fmt.Errorf("area %s: layer %g tile (%d, %d): %w", spec.Path, ls.Depth, i%a.width, i/a.width, err)
			}
			g.cells[i] = c
		}
	}
	// Property first, then graphics by ascending depth.
	gfx := a.layers[1:]
	sort.SliceStable(gfx, func(i, j int) bool { return gfx[i].depth < gfx[j].depth })
	return a, nil
}

// Path returns the Area's identity.
func (a *Area) Path() string { return a.path }

// Name returns the display name.
func (a *Area) Name() string { return a.name }

// Music returns the background music resource, if any.
func (a *Area) Music() string { return a.music }

// Size returns the grid dimensions.
func (a *Area) Size() (width, height int) { return a.width, a.height }

// Loops reports which axes wrap around.
func (a *Area) Loops() (x, y bool) { return a.loopX, a.loopY }

// TileSet returns the registry backing GetTileType.
func (a *Area) TileSet() *tiletype.Registry { return a.tiles }

// Depths returns the declared layer depths, Property first.
func (a *Area) Depths() []float64 {
	out := make([]float64, len(a.layers))
	for i, g := range a.layers {
		out[i] = g.depth
	}
	return out
}

// GetTileType looks id up in the Area's tile set. Safe without the lock.
func (a *Area) GetTileType(id int) (*types.TileType, error) {
	if a.tiles == nil {
		return nil, fmt.Errorf("%w: %d (area %s has no tile set)", tiletype.ErrUnknownTileType, id, a.path)
	}
	return a.tiles.Lookup(id)
}

// RequestRedraw marks the Area dirty and queues it for repaint. Repeated
// calls before the next drain queue it once.
func (a *Area) RequestRedraw() {
	if a.sched == nil {
		a.dirty.Store(true)
		return
	}
	a.sched.Enqueue(a)
}

// Dirty reports whether a redraw is pending.
func (a *Area) Dirty() bool { return a.dirty.Load() }

// MarkDirty is called by the redraw scheduler.
func (a *Area) MarkDirty() { a.dirty.Store(true) }

// MarkClean is called by the redraw scheduler when the Area is drained.
func (a *Area) MarkClean() { a.dirty.Store(false) }

func (a *Area) lock(ctx context.Context) (func(), error) {
	wctx := ctx
	if a.lockTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, a.lockTimeout)
		defer cancel()
	}
	if err := a.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s after %v", ErrConcurrentMutationTimeout, a.path, a.lockTimeout)
	}
	var once sync.Once
	return func() { once.Do(func() { a.sem.Release(1) }) }, nil
}

// Begin acquires the Area lock and opens a mutation step.
func (a *Area) Begin(ctx context.Context) (*Txn, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return nil, err
	}
	return &Txn{area: a, unlock: unlock}, nil
}

// Edit runs fn as one step: committed if fn returns nil, rolled back
// otherwise.
func (a *Area) Edit(ctx context.Context, fn func(*Txn) error) error {
	txn, err := a.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(txn); err != nil {
		txn.Rollback()
		return err
	}
	txn.Commit()
	return nil
}

// View runs fn under the lock and discards any writes it made. Renderers
// and validators use it to read several tiles consistently.
func (a *Area) View(ctx context.Context, fn func(*Txn) error) error {
	txn, err := a.Begin(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback()
	return fn(txn)
}

// Snapshot returns a copy of every layer taken under the lock.
func (a *Area) Snapshot(ctx context.Context) (*types.AreaState, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st := &types.AreaState{
		Path:   a.path,
		Name:   a.name,
		Width:  a.width,
		Height: a.height,
		Layers: make([]types.LayerState, 0, len(a.layers)),
	}
	for _, g := range a.layers {
		ls := types.LayerState{Layer: g.layer, Depth: g.depth, Tiles: make([]types.TileState, len(g.cells))}
		for i := range g.cells {
			ls.Tiles[i] = g.cells[i].state()
		}
		st.Layers = append(st.Layers, ls)
	}
	return st, nil
}

// Restore overwrites tile state from a snapshot of the same Area. Layers
// the snapshot does not mention are left alone. Validation happens before
// any write, so a bad snapshot changes nothing.
func (a *Area) Restore(ctx context.Context, st *types.AreaState) error {
	if st.Width != a.width || st.Height != a.height {
		return fmt.Errorf("area %s: snapshot is %dx%d, want %dx%d", a.path, st.Width, st.Height, a.width, a.height)
	}
	unlock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	type pending struct {
		g     *grid
		cells []cell
	}
	var writes []pending
	for _, ls := range st.Layers {
		g := a.layerAt(ls.Depth)
		if g == nil {
			return &BoundsError{Path: a.path, Z: ls.Depth, Err: ErrUnknownLayer}
		}
		if len(ls.Tiles) != len(g.cells) {
			return fmt.Errorf("area %s: layer %g has %d tiles, want %d", a.path, ls.Depth, len(ls.Tiles), len(g.cells))
		}
		cells := make([]cell, len(ls.Tiles))
		for i, ts := range ls.Tiles {
			c, err := a.cellFromState(ts)
			if err != nil {
				return fmt.Errorf("area %s: restore layer %g: %w", a.path, ls.Depth, err)
			}
			cells[i] = c
		}
		writes = append(writes, pending{g: g, cells: cells})
	}
	for _, w := range writes {
		copy(w.g.cells, w.cells)
	}

	a.RequestRedraw()
	return nil
}

// ExitAt returns the exit in direction dir on Property tile (x, y).
func (a *Area) ExitAt(ctx context.Context, x, y int, dir types.ExitDirection) (types.ExitLink, bool, error) {
	if dir < 0 || dir >= types.ExitDirections {
		return types.ExitLink{}, false, fmt.Errorf("area %s: invalid exit direction %d", a.path, dir)
	}
	unlock, err := a.lock(ctx)
	if err != nil {
		return types.ExitLink{}, false, err
	}
	defer unlock()

	c, _, err := a.resolve(x, y, types.PropertyDepth)
	if err != nil {
		return types.ExitLink{}, false, err
	}
	if e := c.exits[dir]; e != nil {
		return *e, true, nil
	}
	return types.ExitLink{}, false, nil
}

// Scripts returns the trigger names bound to Property tile (x, y).
func (a *Area) Scripts(ctx context.Context, x, y int) (types.TileScripts, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return types.TileScripts{}, err
	}
	defer unlock()

	c, _, err := a.resolve(x, y, types.PropertyDepth)
	if err != nil {
		return types.TileScripts{}, err
	}
	return c.scripts, nil
}

// ScriptChain returns the bindings that apply at (x, y) in run order: the
// Property tile's own scripts, then the scripts of each tile type stacked
// there, Property layer first and then Graphics from the top down. A type
// shared by several layers appears once.
func (a *Area) ScriptChain(ctx context.Context, x, y int) ([]types.TileScripts, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, addr, err := a.resolve(x, y, types.PropertyDepth)
	if err != nil {
		return nil, err
	}
	chain := []types.TileScripts{c.scripts}
	seen := map[int]bool{}
	add := func(tt *types.TileType) {
		if tt == nil || seen[tt.ID] {
			return
		}
		seen[tt.ID] = true
		if tt.Scripts != (types.TileScripts{}) {
			chain = append(chain, tt.Scripts)
		}
	}
	add(c.typ)
	i := addr.Y*a.width + addr.X
	for l := len(a.layers) - 1; l >= 1; l-- {
		add(a.layers[l].cells[i].typ)
	}
	return chain, nil
}

// Inspect resolves an address under the lock and returns a copy of the
// tile there. Used to validate exit arrivals.
func (a *Area) Inspect(ctx context.Context, x, y int, z float64) (types.TileAddress, types.TileState, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return types.TileAddress{}, types.TileState{}, err
	}
	defer unlock()

	c, addr, err := a.resolve(x, y, z)
	if err != nil {
		return types.TileAddress{}, types.TileState{}, err
	}
	return addr, c.state(), nil
}

// ExitTargets returns the distinct target paths of every exit in the Area.
func (a *Area) ExitTargets(ctx context.Context) ([]string, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	seen := map[string]bool{}
	var out []string
	for i := range a.layers[0].cells {
		for _, e := range a.layers[0].cells[i].exits {
			if e != nil && !seen[e.Area] {
				seen[e.Area] = true
				out = append(out, e.Area)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// resolve maps (x, y, z) to a cell. Caller holds the lock.
// z == 0.0 selects the Property layer; any other z selects the Graphics
// sub-layer declared at that depth.
func (a *Area) resolve(x, y int, z float64) (*cell, types.TileAddress, error) {
	if a.loopX {
		x = wrap(x, a.width)
	}
	if a.loopY {
		y = wrap(y, a.height)
	}
	if x < 0 || x >= a.width || y < 0 || y >= a.height {
		return nil, types.TileAddress{}, &BoundsError{Path: a.path, X: x, Y: y, Z: z, Err: ErrOutOfBounds}
	}
	g := a.layerAt(z)
	if g == nil {
		return nil, types.TileAddress{}, &BoundsError{Path: a.path, X: x, Y: y, Z: z, Err: ErrUnknownLayer}
	}
	addr := types.TileAddress{Layer: g.layer, X: x, Y: y, Z: g.depth}
	return &g.cells[y*a.width+x], addr, nil
}

func (a *Area) layerAt(z float64) *grid {
	for _, g := range a.layers {
		if math.Abs(g.depth-z) < depthEpsilon {
			return g
		}
	}
	return nil
}

func (a *Area) cellFromState(ts types.TileState) (cell, error) {
	c := cell{flags: ts.Flags, scripts: ts.Scripts}
	if ts.Type != 0 {
		tt, err := a.GetTileType(ts.Type)
		if err != nil {
			return cell{}, err
		}
		c.typ = tt
	}
	for dir, e := range ts.Exits {
		if dir < 0 || dir >= types.ExitDirections {
			return cell{}, fmt.Errorf("invalid exit direction %d", dir)
		}
		link := e
		c.exits[dir] = &link
	}
	return c, nil
}

func (c *cell) state() types.TileState {
	ts := types.TileState{Flags: c.flags, Scripts: c.scripts}
	if c.typ != nil {
		ts.Type = c.typ.ID
	}
	for dir, e := range c.exits {
		if e == nil {
			continue
		}
		if ts.Exits == nil {
			ts.Exits = map[types.ExitDirection]types.ExitLink{}
		}
		ts.Exits[types.ExitDirection(dir)] = *e
	}
	return ts
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
