// Package events implements single-pass dispatch of tile events to the
// trigger names bound on Property tiles. Dispatch only resolves names;
// the caller runs them.
package events

import (
	"context"
	"fmt"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/types"
)

// Binding pairs an event with the trigger it fires.
type Binding struct {
	Event   types.TileEvent
	Trigger string
}

// Dispatch resolves each event against the script chain of its tile: the
// tile's own binding first, then those of the tile types under it. Events
// with no script for their kind are dropped. Single pass; order is kept.
func Dispatch(ctx context.Context, evs []types.TileEvent, a *area.Area) ([]Binding, error) {
	var result []Binding

	for _, ev := range evs {
		if ev.Area != "" && ev.Area != a.Path() {
			return nil, fmt.Errorf("event for %s dispatched to %s", ev.Area, a.Path())
		}
		chain, err := a.ScriptChain(ctx, ev.X, ev.Y)
		if err != nil {
			return nil, err
		}
		ev.Area = a.Path()
		for _, scripts := range chain {
			if name := ScriptFor(scripts, ev.Kind); name != "" {
				result = append(result, Binding{Event: ev, Trigger: name})
			}
		}
	}

	return result, nil
}

// ScriptFor picks the trigger name bound for kind.
func ScriptFor(s types.TileScripts, kind types.EventKind) string {
	switch kind {
	case types.EventEnter:
		return s.Enter
	case types.EventLeave:
		return s.Leave
	case types.EventUse:
		return s.Use
	}
	return ""
}
