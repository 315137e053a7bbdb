// Package tiletype maps numeric tile-type IDs to immutable descriptors.
// A Registry is built once when a tile set is loaded and is read-only
// afterwards, so lookups need no locking.
package tiletype

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nathoo/tilecore/types"
)

// ErrUnknownTileType is returned for an ID that was never registered.
var ErrUnknownTileType = errors.New("unknown tile type")

// Registry is the tile-type table of one tile set.
type Registry struct {
	name  string
	types map[int]*types.TileType
}

// NewRegistry builds a registry for the named tile set. IDs must be
// positive and unique; 0 is reserved for "no type".
func NewRegistry(name string, tts ...types.TileType) (*Registry, error) {
	r := &Registry{
		name:  name,
		types: make(map[int]*types.TileType, len(tts)),
	}
	for _, tt := range tts {
		if tt.ID <= 0 {
			return nil, fmt.Errorf("tile set %q: tile type id %d must be positive", name, tt.ID)
		}
		if _, dup := r.types[tt.ID]; dup {
			return nil, fmt.Errorf("tile set %q: duplicate tile type id %d", name, tt.ID)
		}
		t := tt
		r.types[tt.ID] = &t
	}
	return r, nil
}

// Name returns the tile set name.
func (r *Registry) Name() string {
	return r.name
}

// Lookup returns the descriptor for id. The returned pointer is shared
// and must not be modified.
func (r *Registry) Lookup(id int) (*types.TileType, error) {
	tt, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d in tile set %q", ErrUnknownTileType, id, r.name)
	}
	return tt, nil
}

// IDs returns every registered ID in ascending order.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types)
}
