// Package world caches Areas by path and moves between them along exits.
//
// Areas are created on first reference and shared by every caller asking
// for the same path. Traversal never holds two Area locks: the source exit
// is read in one locked step and the arrival is checked in another.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/types"
)

// Loader supplies the content of an Area. Implementations live in the
// loader package.
type Loader interface {
	LoadArea(ctx context.Context, path string) (area.Spec, error)
}

// Options configures a World.
type Options struct {
	LockTimeout time.Duration    // per-Area lock wait; zero means area.DefaultLockTimeout
	Scheduler   area.Invalidator // receives redraw requests from every Area
	Logger      *slog.Logger
}

type entry struct {
	area *area.Area
	refs int
}

// World is the process's Area cache.
type World struct {
	loader Loader
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	areas map[string]*entry
	group singleflight.Group
}

// New creates an empty World backed by loader.
func New(loader Loader, opts Options) *World {
	if opts.LockTimeout == 0 {
		opts.LockTimeout = area.DefaultLockTimeout
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &World{
		loader: loader,
		opts:   opts,
		logger: l.With("component", "world"),
		areas:  map[string]*entry{},
	}
}

// Area returns the Area for path, loading it on first use. Concurrent
// first requests for one path share a single load.
func (w *World) Area(ctx context.Context, path string) (*area.Area, error) {
	if a, ok := w.Lookup(path); ok {
		return a, nil
	}
	v, err, _ := w.group.Do(path, func() (any, error) {
		if a, ok := w.Lookup(path); ok {
			return a, nil
		}
		// The load is shared; one waiter giving up must not fail the rest.
		return w.load(context.WithoutCancel(ctx), path)
	})
	if err != nil {
		return nil, err
	}
	return v.(*area.Area), nil
}

func (w *World) load(ctx context.Context, path string) (*area.Area, error) {
	start := time.Now()
	spec, err := w.loader.LoadArea(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load area %s: %w", path, err)
	}
	if spec.Path == "" {
		spec.Path = path
	}
	if spec.Path != path {
		return nil, fmt.Errorf("load area %s: loader returned %s", path, spec.Path)
	}
	opts := []area.Option{area.WithLockTimeout(w.opts.LockTimeout)}
	if w.opts.Scheduler != nil {
		opts = append(opts, area.WithScheduler(w.opts.Scheduler))
	}
	a, err := area.New(spec, opts...)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.areas[path] = &entry{area: a}
	w.mu.Unlock()

	w.logger.Debug("area loaded", "path", path, "width", spec.Width, "height", spec.Height,
		"layers", len(a.Depths()), "took", time.Since(start))
	return a, nil
}

// Lookup returns a cached Area without loading.
func (w *World) Lookup(path string) (*area.Area, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.areas[path]
	if !ok {
		return nil, false
	}
	return e.area, true
}

// Acquire returns the Area for path and pins it against Unload until the
// returned release func is called.
func (w *World) Acquire(ctx context.Context, path string) (*area.Area, func(), error) {
	for {
		a, err := w.Area(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		w.mu.Lock()
		e, ok := w.areas[path]
		if ok && e.area == a {
			e.refs++
			w.mu.Unlock()
			var once sync.Once
			return a, func() { once.Do(func() { w.release(path, a) }) }, nil
		}
		// Unloaded between load and pin; load again.
		w.mu.Unlock()
	}
}

func (w *World) release(path string, a *area.Area) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.areas[path]; ok && e.area == a && e.refs > 0 {
		e.refs--
	}
}

// Refs returns the number of active Acquire pins on path.
func (w *World) Refs(path string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.areas[path]; ok {
		return e.refs
	}
	return 0
}

// Loaded returns every cached Area ordered by path.
func (w *World) Loaded() []*area.Area {
	w.mu.Lock()
	out := make([]*area.Area, 0, len(w.areas))
	for _, e := range w.areas {
		out = append(out, e.area)
	}
	w.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

// Unload drops path from the cache. It fails with ErrAreaInUse while the
// Area is pinned or while another loaded Area has an exit into it.
func (w *World) Unload(ctx context.Context, path string) error {
	w.mu.Lock()
	e, ok := w.areas[path]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotLoaded, path)
	}
	if e.refs > 0 {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s has %d references", ErrAreaInUse, path, e.refs)
	}
	w.mu.Unlock()

	// One Area lock at a time.
	for _, other := range w.Loaded() {
		if other.Path() == path {
			continue
		}
		targets, err := other.ExitTargets(ctx)
		if err != nil {
			return err
		}
		i := sort.SearchStrings(targets, path)
		if i < len(targets) && targets[i] == path {
			return fmt.Errorf("%w: %s is the target of an exit in %s", ErrAreaInUse, path, other.Path())
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.areas[path]; !ok || cur != e {
		return nil
	}
	if e.refs > 0 {
		return fmt.Errorf("%w: %s has %d references", ErrAreaInUse, path, e.refs)
	}
	delete(w.areas, path)
	w.logger.Debug("area unloaded", "path", path)
	return nil
}

// Preload loads every path concurrently and returns the first error.
func (w *World) Preload(ctx context.Context, paths ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range paths {
		g.Go(func() error {
			_, err := w.Area(gctx, p)
			return err
		})
	}
	return g.Wait()
}

// Arrival is the result of a completed traversal.
type Arrival struct {
	Area    *area.Area
	Exit    types.ExitLink
	Address types.TileAddress
	Tile    types.TileState
}

// Traverse follows the exit in direction dir on tile (x, y) of from. The
// source and destination are locked in two separate steps, so a concurrent
// trigger may change either in between. A target that cannot be loaded or
// a coordinate outside it fails with ErrUnresolvedExit.
func (w *World) Traverse(ctx context.Context, from string, x, y int, dir types.ExitDirection) (*Arrival, error) {
	src, err := w.Area(ctx, from)
	if err != nil {
		return nil, err
	}
	link, ok, err := src.ExitAt(ctx, x, y, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (%d, %d)", ErrNoExit, from, x, y)
	}

	dst, err := w.Area(ctx, link.Area)
	if err != nil {
		w.logger.Warn("exit target failed to load", "from", from, "x", x, "y", y, "target", link.Area, "error", err)
		return nil, &ExitError{From: from, X: x, Y: y, Exit: link, Err: err}
	}
	addr, ts, err := dst.Inspect(ctx, link.X, link.Y, types.PropertyDepth)
	if err != nil {
		if errors.Is(err, area.ErrOutOfBounds) {
			return nil, &ExitError{From: from, X: x, Y: y, Exit: link, Err: err}
		}
		return nil, err
	}
	return &Arrival{Area: dst, Exit: link, Address: addr, Tile: ts}, nil
}
