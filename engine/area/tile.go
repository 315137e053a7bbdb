package area

import (
	"fmt"

	"github.com/nathoo/tilecore/engine/tiletype"
	"github.com/nathoo/tilecore/types"
)

// Tile is a transient handle into engine-owned storage. Writes are in
// place and visible to every other handle on the same slot at once.
type Tile struct {
	txn  *Txn
	c    *cell
	addr types.TileAddress
}

// Address returns the resolved address of this slot.
func (t *Tile) Address() types.TileAddress { return t.addr }

// Type returns the current tile type, or nil.
func (t *Tile) Type() *types.TileType {
	if t.txn.done {
		return nil
	}
	return t.c.typ
}

// Flags returns the tile's own flags, not including its type's.
func (t *Tile) Flags() types.TileFlags {
	if t.txn.done {
		return 0
	}
	return t.c.flags
}

// HasFlag reports whether the tile or its type carries f.
func (t *Tile) HasFlag(f types.TileFlags) bool {
	if t.txn.done {
		return false
	}
	if t.c.flags&f != 0 {
		return true
	}
	return t.c.typ != nil && t.c.typ.Flags&f != 0
}

// Walkable reports whether the player may enter the tile.
func (t *Tile) Walkable() bool {
	if t.HasFlag(types.FlagNowalk | types.FlagNowalkPlayer) {
		return false
	}
	typ := t.Type()
	return typ == nil || typ.Walkable
}

// Exit returns the normal exit, taken on arrival.
func (t *Tile) Exit() (types.ExitLink, bool) {
	return t.ExitAt(types.ExitNormal)
}

// ExitAt returns the exit for dir.
func (t *Tile) ExitAt(dir types.ExitDirection) (types.ExitLink, bool) {
	if t.txn.done || dir < 0 || dir >= types.ExitDirections {
		return types.ExitLink{}, false
	}
	if e := t.c.exits[dir]; e != nil {
		return *e, true
	}
	return types.ExitLink{}, false
}

// Scripts returns the trigger names bound to the tile.
func (t *Tile) Scripts() types.TileScripts {
	if t.txn.done {
		return types.TileScripts{}
	}
	return t.c.scripts
}

// SetType changes the tile's type reference. Flags are left alone. tt must
// come from the Area's own tile set; nil clears the type.
func (t *Tile) SetType(tt *types.TileType) error {
	if tt != nil {
		own, err := t.txn.area.GetTileType(tt.ID)
		if err != nil {
			return err
		}
		if own != tt {
			return fmt.Errorf("%w: %d is not from tile set of %s", tiletype.ErrUnknownTileType, tt.ID, t.txn.area.path)
		}
	}
	if err := t.txn.record(t.c); err != nil {
		return err
	}
	t.c.typ = tt
	return nil
}

// SetFlag turns flag f on or off.
func (t *Tile) SetFlag(f types.TileFlags, on bool) error {
	if err := t.txn.record(t.c); err != nil {
		return err
	}
	if on {
		t.c.flags |= f
	} else {
		t.c.flags &^= f
	}
	return nil
}

// SetExit attaches link as the normal exit, replacing any previous one.
func (t *Tile) SetExit(link types.ExitLink) error {
	return t.SetExitAt(types.ExitNormal, link)
}

// SetExitAt attaches link as the exit for dir, replacing any previous one.
func (t *Tile) SetExitAt(dir types.ExitDirection, link types.ExitLink) error {
	if dir < 0 || dir >= types.ExitDirections {
		return fmt.Errorf("invalid exit direction %d", dir)
	}
	if link.Area == "" {
		return fmt.Errorf("exit at %s (%d, %d): empty target area", t.txn.area.path, t.addr.X, t.addr.Y)
	}
	if err := t.txn.record(t.c); err != nil {
		return err
	}
	t.c.exits[dir] = &link
	return nil
}

// ClearExit removes the exit for dir.
func (t *Tile) ClearExit(dir types.ExitDirection) error {
	if dir < 0 || dir >= types.ExitDirections {
		return fmt.Errorf("invalid exit direction %d", dir)
	}
	if err := t.txn.record(t.c); err != nil {
		return err
	}
	t.c.exits[dir] = nil
	return nil
}

// SetScripts rebinds the tile's enter/leave/use triggers.
func (t *Tile) SetScripts(s types.TileScripts) error {
	if err := t.txn.record(t.c); err != nil {
		return err
	}
	t.c.scripts = s
	return nil
}
