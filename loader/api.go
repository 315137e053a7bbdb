package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// TileSet "name" { {id = 1, ...}, ... } (curried).
	L.SetGlobal("TileSet", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.tileSets = append(coll.tileSets, rawTileSet{name: name, table: tbl})
			return 0
		}))
		return 1
	}))

	// Area "areas/house.tmx" { ... } (curried).
	L.SetGlobal("Area", L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.areas = append(coll.areas, rawArea{path: path, table: tbl})
			return 0
		}))
		return 1
	}))
}

func registerHelpers(L *lua.LState) {
	// Exit("areas/secret_room.tmx", 4, 5, 0.0) -> "areas/secret_room.tmx,4,5,0"
	L.SetGlobal("Exit", L.NewFunction(func(L *lua.LState) int {
		link := types.ExitLink{
			Area:        L.CheckString(1),
			X:           L.CheckInt(2),
			Y:           L.CheckInt(3),
			Orientation: float64(L.OptNumber(4, 0)),
		}
		L.Push(lua.LString(area.FormatExit(link)))
		return 1
	}))
}
