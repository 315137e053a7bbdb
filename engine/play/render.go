package play

import (
	"github.com/nathoo/tilecore/types"
)

// TileTypes resolves tile-type IDs. *area.Area satisfies it.
type TileTypes interface {
	GetTileType(id int) (*types.TileType, error)
}

// PlayerGlyph marks the player on a rendered map.
const PlayerGlyph = '@'

// Glyph picks the character for cell i of st: the visual of the typed
// tile on the highest layer, '#' for an untyped nowalk tile, or a space.
func Glyph(st *types.AreaState, tt TileTypes, i int) rune {
	var (
		best  *types.TileType
		depth float64
	)
	for _, l := range st.Layers {
		if i >= len(l.Tiles) || l.Tiles[i].Type == 0 {
			continue
		}
		typ, err := tt.GetTileType(l.Tiles[i].Type)
		if err != nil {
			continue
		}
		if best == nil || l.Depth > depth {
			best, depth = typ, l.Depth
		}
	}
	if best != nil {
		for _, r := range best.Visual {
			return r
		}
		return '?'
	}
	for _, l := range st.Layers {
		if l.Layer == types.LayerProperty && i < len(l.Tiles) && l.Tiles[i].Flags&types.FlagNowalk != 0 {
			return '#'
		}
	}
	return ' '
}

// RenderMap draws st one row per line with the player at (px, py).
func RenderMap(st *types.AreaState, tt TileTypes, px, py int) []string {
	lines := make([]string, 0, st.Height)
	for y := 0; y < st.Height; y++ {
		row := make([]rune, st.Width)
		for x := 0; x < st.Width; x++ {
			if x == px && y == py {
				row[x] = PlayerGlyph
				continue
			}
			row[x] = Glyph(st, tt, y*st.Width+x)
		}
		lines = append(lines, string(row))
	}
	return lines
}
