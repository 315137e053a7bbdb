// Package types defines the shared data structures for the tilecore engine.
// This package contains only type definitions. No logic, no methods.
package types

// Layer names one of the grids an Area keeps per cell.
type Layer string

const (
	// LayerProperty holds gameplay state: walkability, exits, tile scripts.
	LayerProperty Layer = "Property"
	// LayerGraphics holds visual state. An Area may stack several graphics
	// sub-layers, told apart by depth.
	LayerGraphics Layer = "Graphics"
)

// PropertyDepth is the depth of the Property layer. Any other depth
// addresses a Graphics sub-layer.
const PropertyDepth = 0.0

// TileAddress is a resolved (layer, x, y, depth) coordinate in one Area.
type TileAddress struct {
	Layer Layer
	X     int
	Y     int
	Z     float64
}

// TileFlags is a bit set of gameplay flags carried by tiles and tile types.
type TileFlags uint32

const (
	// FlagNowalk: neither the player nor NPCs can walk here.
	FlagNowalk TileFlags = 1 << iota
	// FlagNowalkPlayer: the player cannot walk here. NPCs can.
	FlagNowalkPlayer
	// FlagNowalkNPC: NPCs cannot walk here. The player can.
	FlagNowalkNPC
)

// ExitDirection selects which of a tile's exits is taken.
type ExitDirection int

const (
	ExitNormal ExitDirection = iota // taken on arriving at the tile
	ExitUp                          // taken when leaving upwards
	ExitDown
	ExitLeft
	ExitRight
	ExitDirections // number of directions; keep last
)

// ExitLink is a navigation edge from a tile to a coordinate in another Area.
// Orientation is handed to whatever arrives; the engine only validates the
// coordinate.
type ExitLink struct {
	Area        string  `json:"area"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Orientation float64 `json:"orientation"`
}

// TileType is an immutable tile-type descriptor shared by every tile of
// that type.
type TileType struct {
	ID       int
	Walkable bool
	Flags    TileFlags
	Visual   string      // opaque to the engine; renderers interpret it
	Scripts  TileScripts // run for every tile of this type, after the tile's own
}

// TileScripts names the triggers bound to a Property tile.
type TileScripts struct {
	Enter string `json:"enter,omitempty"`
	Leave string `json:"leave,omitempty"`
	Use   string `json:"use,omitempty"`
}

// TileState is a detached copy of one tile's mutable state.
// Type 0 means the cell has no tile type.
type TileState struct {
	Type    int                        `json:"type"`
	Flags   TileFlags                  `json:"flags,omitempty"`
	Exits   map[ExitDirection]ExitLink `json:"exits,omitempty"`
	Scripts TileScripts                `json:"scripts,omitempty"`
}

// LayerState is a detached copy of one layer, row-major.
type LayerState struct {
	Layer Layer       `json:"layer"`
	Depth float64     `json:"depth"`
	Tiles []TileState `json:"tiles"`
}

// AreaState is a lock-consistent copy of an Area's layers.
type AreaState struct {
	Path   string       `json:"path"`
	Name   string       `json:"name,omitempty"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Layers []LayerState `json:"layers"`
}

// ScalarKind tags the value held by a Scalar.
type ScalarKind string

const (
	ScalarBool   ScalarKind = "bool"
	ScalarInt    ScalarKind = "int"
	ScalarFloat  ScalarKind = "float"
	ScalarString ScalarKind = "string"
)

// Scalar is one named save-state value. Only the field matching Kind is
// meaningful.
type Scalar struct {
	Kind   ScalarKind `json:"type"`
	Bool   bool       `json:"bool,omitempty"`
	Int    int64      `json:"int,omitempty"`
	Float  float64    `json:"float,omitempty"`
	String string     `json:"string,omitempty"`
}

// EventKind names a tile event that can fire a bound trigger.
type EventKind string

const (
	EventEnter EventKind = "enter" // something stepped onto the tile
	EventLeave EventKind = "leave" // something stepped off the tile
	EventUse   EventKind = "use"   // the player used the tile
)

// TileEvent is one event on a Property tile.
type TileEvent struct {
	Kind EventKind
	Area string
	X, Y int
}
