package loader

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/tiletype"
	"github.com/nathoo/tilecore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// build validates the compiled documents and turns them into a Catalog.
// Every problem is collected before failing.
func build(docs *contentDocs) (*Catalog, error) {
	ve := &ValidationError{}
	cat := &Catalog{
		TileSets: map[string]*tiletype.Registry{},
		Areas:    map[string]area.Spec{},
	}

	for _, d := range docs.tileSets {
		if _, dup := cat.TileSets[d.Name]; dup {
			ve.errorf("tile set %q defined twice", d.Name)
			continue
		}
		reg, err := buildTileSet(d)
		if err != nil {
			ve.errorf("%v", err)
			continue
		}
		cat.TileSets[d.Name] = reg
	}

	for _, d := range docs.areas {
		if _, dup := cat.Areas[d.Path]; dup {
			ve.errorf("area %q defined twice", d.Path)
			continue
		}
		ts, ok := cat.TileSets[d.TileSet]
		if !ok {
			ve.errorf("area %q: unknown tile set %q", d.Path, d.TileSet)
			continue
		}
		spec, ok := buildSpec(d, ts, ve)
		if ok {
			cat.Areas[d.Path] = spec
		}
	}

	checkExitTargets(cat, ve)

	if len(ve.Errors) > 0 {
		return nil, ve
	}
	cat.Warnings = ve.Warnings
	return cat, nil
}

// buildTileSet turns one tile set document into a registry.
func buildTileSet(d tileSetDoc) (*tiletype.Registry, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("tile set with empty name")
	}
	tts := make([]types.TileType, 0, len(d.Types))
	for _, t := range d.Types {
		flags, err := area.ParseFlags(t.Flags)
		if err != nil {
			return nil, fmt.Errorf("tile set %q: type %d: %w", d.Name, t.ID, err)
		}
		tts = append(tts, types.TileType{
			ID:       t.ID,
			Walkable: t.Walkable,
			Flags:    flags,
			Visual:   t.Visual,
			Scripts:  types.TileScripts{Enter: t.Enter, Leave: t.Leave, Use: t.Use},
		})
	}
	return tiletype.NewRegistry(d.Name, tts...)
}

// buildSpec checks one area document against its tile set and returns the
// resulting spec. It reports false if any error was recorded.
func buildSpec(d areaDoc, ts *tiletype.Registry, ve *ValidationError) (area.Spec, bool) {
	before := len(ve.Errors)
	spec := area.Spec{
		Path:    d.Path,
		Name:    d.Name,
		Music:   d.Music,
		Width:   d.Width,
		Height:  d.Height,
		LoopX:   d.LoopX,
		LoopY:   d.LoopY,
		TileSet: ts,
	}
	if d.Width <= 0 || d.Height <= 0 {
		ve.errorf("area %q: invalid dimensions %dx%d", d.Path, d.Width, d.Height)
		return spec, false
	}

	knownType := func(id int) bool {
		if id == 0 {
			return true
		}
		_, err := ts.Lookup(id)
		return err == nil
	}

	n := d.Width * d.Height
	var depths []float64
	for _, ld := range d.Layers {
		where := fmt.Sprintf("area %q: layer %g", d.Path, ld.Depth)
		dup := false
		for _, z := range depths {
			if math.Abs(z-ld.Depth) < 1e-9 {
				dup = true
			}
		}
		if dup {
			ve.errorf("%s: duplicate depth", where)
			continue
		}
		depths = append(depths, ld.Depth)
		property := ld.Depth == types.PropertyDepth

		if !knownType(ld.Fill) {
			ve.errorf("%s: unknown fill type %d", where, ld.Fill)
			continue
		}
		tiles := make([]types.TileState, n)
		for i := range tiles {
			tiles[i].Type = ld.Fill
		}

		for _, td := range ld.Tiles {
			at := fmt.Sprintf("%s: tile (%d, %d)", where, td.X, td.Y)
			if td.X < 0 || td.X >= d.Width || td.Y < 0 || td.Y >= d.Height {
				ve.errorf("%s: out of bounds", at)
				continue
			}
			st := &tiles[td.Y*d.Width+td.X]
			if td.Type != 0 {
				if !knownType(td.Type) {
					ve.errorf("%s: unknown tile type %d", at, td.Type)
				}
				st.Type = td.Type
			}
			flags, err := area.ParseFlags(td.Flags)
			if err != nil {
				ve.errorf("%s: %v", at, err)
			}
			st.Flags = flags

			scripts := types.TileScripts{Enter: td.Enter, Leave: td.Leave, Use: td.Use}
			hasExits := td.Exit != "" || len(td.Exits) > 0
			if !property && (scripts != (types.TileScripts{}) || hasExits) {
				ve.errorf("%s: exits and scripts belong on the Property layer", at)
				continue
			}
			st.Scripts = scripts
			if td.Exit != "" {
				link, err := area.ParseExit(td.Exit)
				if err != nil {
					ve.errorf("%s: %v", at, err)
				} else {
					setExit(st, types.ExitNormal, link)
				}
			}
			for name, raw := range td.Exits {
				dir, err := area.ParseExitDirection(name)
				if err != nil {
					ve.errorf("%s: %v", at, err)
					continue
				}
				link, err := area.ParseExit(raw)
				if err != nil {
					ve.errorf("%s: %v", at, err)
					continue
				}
				setExit(st, dir, link)
			}
		}
		spec.Layers = append(spec.Layers, area.LayerSpec{Depth: ld.Depth, Tiles: tiles})
	}
	return spec, len(ve.Errors) == before
}

func setExit(ts *types.TileState, dir types.ExitDirection, link types.ExitLink) {
	if ts.Exits == nil {
		ts.Exits = map[types.ExitDirection]types.ExitLink{}
	}
	ts.Exits[dir] = link
}

// checkExitTargets warns about exits that leave the catalog or land
// outside their target. Neither is fatal: the target may come from
// another loader.
func checkExitTargets(cat *Catalog, ve *ValidationError) {
	for _, path := range cat.Paths() {
		spec := cat.Areas[path]
		for _, ls := range spec.Layers {
			if ls.Depth != types.PropertyDepth {
				continue
			}
			for i, ts := range ls.Tiles {
				dirs := make([]int, 0, len(ts.Exits))
				for dir := range ts.Exits {
					dirs = append(dirs, int(dir))
				}
				sort.Ints(dirs)
				for _, dir := range dirs {
					link := ts.Exits[types.ExitDirection(dir)]
					at := fmt.Sprintf("area %q: tile (%d, %d)", path, i%spec.Width, i/spec.Width)
					target, ok := cat.Areas[link.Area]
					if !ok {
						ve.warnf("%s: exit target %q is not in this catalog", at, link.Area)
						continue
					}
					if link.X < 0 || link.X >= target.Width || link.Y < 0 || link.Y >= target.Height {
						ve.warnf("%s: exit lands outside %q at (%d, %d)", at, link.Area, link.X, link.Y)
					}
				}
			}
		}
	}
}
