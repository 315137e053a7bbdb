// Package save implements JSON serialization of save-state slots and the
// tile state of loaded areas.
package save

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/savestate"
	"github.com/nathoo/tilecore/types"
)

// FormatVersion is written into every save.
const FormatVersion = "1"

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version string                      `json:"version"`
	Slot    string                      `json:"slot"`
	Vars    map[string]types.Scalar     `json:"vars"`
	Areas   map[string]*types.AreaState `json:"areas"`
}

// Capture snapshots one slot's variables and the tile state of every area
// given. Each area is read under its own lock, one at a time.
func Capture(ctx context.Context, slot *savestate.Slot, areas []*area.Area) (*SaveData, error) {
	sd := &SaveData{
		Version: FormatVersion,
		Slot:    slot.Name(),
		Vars:    slot.State().Export(slot.Name()),
		Areas:   make(map[string]*types.AreaState, len(areas)),
	}
	for _, a := range areas {
		st, err := a.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", a.Path(), err)
		}
		sd.Areas[a.Path()] = st
	}
	return sd, nil
}

// Save serializes save data to JSON bytes.
func Save(sd *SaveData) ([]byte, error) {
	return json.MarshalIndent(sd, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	if sd.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported save version %q", sd.Version)
	}
	// Ensure maps are never nil after load.
	if sd.Vars == nil {
		sd.Vars = map[string]types.Scalar{}
	}
	if sd.Areas == nil {
		sd.Areas = map[string]*types.AreaState{}
	}
	return &sd, nil
}

// ApplySave replaces the slot's variables with the saved ones.
func ApplySave(st *savestate.State, sd *SaveData) error {
	return st.Import(sd.Slot, sd.Vars)
}

// AreaResolver returns the live Area for a path, loading it if needed.
type AreaResolver func(ctx context.Context, path string) (*area.Area, error)

// ApplyAreas restores saved tile state into each area, in path order.
// Every area is resolved before any is written. If a restore fails, the
// areas already restored get their previous state back, so on error no
// area is left changed.
func ApplyAreas(ctx context.Context, sd *SaveData, resolve AreaResolver) error {
	paths := make([]string, 0, len(sd.Areas))
	for p := range sd.Areas {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	areas := make([]*area.Area, len(paths))
	for i, p := range paths {
		a, err := resolve(ctx, p)
		if err != nil {
			return fmt.Errorf("restore %s: %w", p, err)
		}
		areas[i] = a
	}

	var undo []*types.AreaState
	for i, a := range areas {
		prev, err := a.Snapshot(ctx)
		if err == nil {
			err = a.Restore(ctx, sd.Areas[paths[i]])
		}
		if err != nil {
			for j := len(undo) - 1; j >= 0; j-- {
				// Same area, same shape: this cannot fail validation.
				_ = areas[j].Restore(context.WithoutCancel(ctx), undo[j])
			}
			return fmt.Errorf("restore %s: %w", paths[i], err)
		}
		undo = append(undo, prev)
	}
	return nil
}
