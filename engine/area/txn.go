package area

import (
	"github.com/nathoo/tilecore/types"
)

type undoEntry struct {
	c    *cell
	prev cell
}

// Txn is one locked mutation step over a single Area. Tile handles it
// returns stay valid until Commit or Rollback. A Txn is not safe for use
// by more than one goroutine.
type Txn struct {
	area    *Area
	unlock  func()
	undo    []undoEntry
	redraw  bool
	done    bool
	changes int
}

// Path returns the bound Area's path.
func (t *Txn) Path() string { return t.area.path }

// Area returns the Area this step is bound to.
func (t *Txn) Area() *Area { return t.area }

// Tiles resolves (x, y, z) to a mutable handle. z == 0.0 addresses the
// Property layer; any other z addresses the Graphics sub-layer at that
// depth. Two handles to the same slot share storage.
func (t *Txn) Tiles(x, y int, z float64) (*Tile, error) {
	if t.done {
		return nil, ErrStaleHandle
	}
	c, addr, err := t.area.resolve(x, y, z)
	if err != nil {
		return nil, err
	}
	return &Tile{txn: t, c: c, addr: addr}, nil
}

// TileAt resolves a previously returned address.
func (t *Txn) TileAt(addr types.TileAddress) (*Tile, error) {
	return t.Tiles(addr.X, addr.Y, addr.Z)
}

// GetTileType looks id up in the Area's tile set.
func (t *Txn) GetTileType(id int) (*types.TileType, error) {
	return t.area.GetTileType(id)
}

// RequestRedraw asks for a repaint once the step commits. A rolled back
// step requests nothing.
func (t *Txn) RequestRedraw() {
	t.redraw = true
}

// Changes returns how many tile writes the step has made.
func (t *Txn) Changes() int { return t.changes }

// Commit publishes the step's writes and releases the lock.
func (t *Txn) Commit() {
	if t.done {
		return
	}
	t.done = true
	t.undo = nil
	redraw := t.redraw
	t.unlock()
	if redraw {
		t.area.RequestRedraw()
	}
}

// Rollback restores every slot the step wrote and releases the lock.
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		*t.undo[i].c = t.undo[i].prev
	}
	t.undo = nil
	t.changes = 0
	t.unlock()
}

func (t *Txn) record(c *cell) error {
	if t.done {
		return ErrStaleHandle
	}
	t.undo = append(t.undo, undoEntry{c: c, prev: *c})
	t.changes++
	return nil
}
