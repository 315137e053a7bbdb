// Package loader turns area content into area.Spec values. Content comes
// either from Lua files using a small sandboxed DSL or from JSON documents
// validated against an embedded schema. Both go through the same document
// types and the same validation.
package loader

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// rawTileSet holds a tile set table before compilation.
type rawTileSet struct {
	name  string
	table *lua.LTable
}

// rawArea holds an area table before compilation.
type rawArea struct {
	path  string
	table *lua.LTable
}

type tileTypeDoc struct {
	ID       int    `json:"id"`
	Visual   string `json:"visual,omitempty"`
	Walkable bool   `json:"walkable,omitempty"`
	Flags    string `json:"flags,omitempty"`
	Enter    string `json:"enter,omitempty"`
	Leave    string `json:"leave,omitempty"`
	Use      string `json:"use,omitempty"`
}

type tileSetDoc struct {
	Name  string        `json:"name"`
	Types []tileTypeDoc `json:"types"`
}

type tileDoc struct {
	X     int               `json:"x"`
	Y     int               `json:"y"`
	Type  int               `json:"type,omitempty"`
	Flags string            `json:"flags,omitempty"`
	Exit  string            `json:"exit,omitempty"`
	Exits map[string]string `json:"exits,omitempty"`
	Enter string            `json:"enter,omitempty"`
	Leave string            `json:"leave,omitempty"`
	Use   string            `json:"use,omitempty"`
}

type layerDoc struct {
	Depth float64   `json:"depth"`
	Fill  int       `json:"fill,omitempty"`
	Tiles []tileDoc `json:"tiles,omitempty"`
}

type areaDoc struct {
	Path    string     `json:"-"`
	Name    string     `json:"name,omitempty"`
	Music   string     `json:"music,omitempty"`
	TileSet string     `json:"tileset"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	LoopX   bool       `json:"loop_x,omitempty"`
	LoopY   bool       `json:"loop_y,omitempty"`
	Layers  []layerDoc `json:"layers,omitempty"`
}

type contentDocs struct {
	tileSets []tileSetDoc
	areas    []areaDoc
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// hasNumber reports whether key holds a number.
func hasNumber(tbl *lua.LTable, key string) bool {
	_, ok := tbl.RawGetString(key).(lua.LNumber)
	return ok
}

// getFlags accepts "nowalk,nowalk_npc" or {"nowalk", "nowalk_npc"}.
func getFlags(tbl *lua.LTable, key string) string {
	switch v := tbl.RawGetString(key).(type) {
	case lua.LString:
		return string(v)
	case *lua.LTable:
		s := ""
		for i := 1; i <= v.MaxN(); i++ {
			if name, ok := v.RawGetInt(i).(lua.LString); ok {
				if s != "" {
					s += ","
				}
				s += string(name)
			}
		}
		return s
	}
	return ""
}

// tableToStringMap converts a Lua table to a map[string]string.
func tableToStringMap(tbl *lua.LTable) map[string]string {
	if tbl == nil {
		return nil
	}
	m := map[string]string{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if vs, ok := v.(lua.LString); ok {
				m[string(ks)] = string(vs)
			}
		}
	})
	return m
}

// elements returns the array part of tbl as tables, failing on anything
// else.
func elements(tbl *lua.LTable, what string) ([]*lua.LTable, error) {
	if tbl == nil {
		return nil, nil
	}
	out := make([]*lua.LTable, 0, tbl.MaxN())
	for i := 1; i <= tbl.MaxN(); i++ {
		t, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%s %d is not a table", what, i)
		}
		out = append(out, t)
	}
	return out, nil
}

// compile converts all collected Lua data into documents.
func compile(coll *collector) (*contentDocs, error) {
	docs := &contentDocs{}

	for _, raw := range coll.tileSets {
		ts, err := compileTileSet(raw)
		if err != nil {
			return nil, fmt.Errorf("compiling tile set %s: %w", raw.name, err)
		}
		docs.tileSets = append(docs.tileSets, ts)
	}

	for _, raw := range coll.areas {
		a, err := compileArea(raw)
		if err != nil {
			return nil, fmt.Errorf("compiling area %s: %w", raw.path, err)
		}
		docs.areas = append(docs.areas, a)
	}

	return docs, nil
}

func compileTileSet(raw rawTileSet) (tileSetDoc, error) {
	doc := tileSetDoc{Name: raw.name}
	items, err := elements(raw.table, "tile type")
	if err != nil {
		return doc, err
	}
	for i, tbl := range items {
		if !hasNumber(tbl, "id") {
			return doc, fmt.Errorf("tile type %d has no id", i+1)
		}
		doc.Types = append(doc.Types, tileTypeDoc{
			ID:       getInt(tbl, "id"),
			Visual:   getString(tbl, "visual"),
			Walkable: getBool(tbl, "walkable", false),
			Flags:    getFlags(tbl, "flags"),
			Enter:    getString(tbl, "enter"),
			Leave:    getString(tbl, "leave"),
			Use:      getString(tbl, "use"),
		})
	}
	return doc, nil
}

func compileArea(raw rawArea) (areaDoc, error) {
	tbl := raw.table
	doc := areaDoc{
		Path:    raw.path,
		Name:    getString(tbl, "name"),
		Music:   getString(tbl, "music"),
		TileSet: getString(tbl, "tileset"),
		Width:   getInt(tbl, "width"),
		Height:  getInt(tbl, "height"),
		LoopX:   getBool(tbl, "loop_x", false),
		LoopY:   getBool(tbl, "loop_y", false),
	}
	layers, err := elements(getTable(tbl, "layers"), "layer")
	if err != nil {
		return doc, err
	}
	for li, lt := range layers {
		ld := layerDoc{Depth: getNumber(lt, "depth"), Fill: getInt(lt, "fill")}
		tiles, err := elements(getTable(lt, "tiles"), "tile")
		if err != nil {
			return doc, fmt.Errorf("layer %d: %w", li+1, err)
		}
		for ti, tt := range tiles {
			if !hasNumber(tt, "x") || !hasNumber(tt, "y") {
				return doc, fmt.Errorf("layer %d tile %d: x and y are required", li+1, ti+1)
			}
			ld.Tiles = append(ld.Tiles, tileDoc{
				X:     getInt(tt, "x"),
				Y:     getInt(tt, "y"),
				Type:  getInt(tt, "type"),
				Flags: getFlags(tt, "flags"),
				Exit:  getString(tt, "exit"),
				Exits: tableToStringMap(getTable(tt, "exits")),
				Enter: getString(tt, "enter"),
				Leave: getString(tt, "leave"),
				Use:   getString(tt, "use"),
			})
		}
		doc.Layers = append(doc.Layers, ld)
	}
	return doc, nil
}
