package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/tiletype"
	"github.com/nathoo/tilecore/engine/trigger"
	"github.com/nathoo/tilecore/engine/world"
	"github.com/nathoo/tilecore/storage"
	"github.com/nathoo/tilecore/types"
)

type mapLoader map[string]func() area.Spec

func (m mapLoader) LoadArea(_ context.Context, path string) (area.Spec, error) {
	mk, ok := m[path]
	if !ok {
		return area.Spec{}, fmt.Errorf("no area %q", path)
	}
	return mk(), nil
}

type recorder struct{ played []string }

func (r *recorder) Play(resource string) { r.played = append(r.played, resource) }

const housePath = "areas/house.tmx"

func testLoader(t *testing.T) mapLoader {
	t.Helper()
	reg, err := tiletype.NewRegistry("house",
		types.TileType{ID: 1, Walkable: true},
		types.TileType{ID: 12},
		types.TileType{ID: 66, Walkable: true},
	)
	if err != nil {
		t.Fatal(err)
	}
	return mapLoader{
		housePath: func() area.Spec {
			const w, h = 8, 6
			prop := make([]types.TileState, w*h)
			gfx := make([]types.TileState, w*h)
			for i := range gfx {
				gfx[i].Type = 1
			}
			prop[4].Flags = types.FlagNowalk
			gfx[4].Type = 12
			// The switch.
			prop[2*w+2].Scripts = types.TileScripts{Use: "open_door"}
			// Doormat with an enter trigger and a way out.
			prop[5*w+4].Scripts = types.TileScripts{Enter: "count_steps"}
			prop[5*w+4].Exits = map[types.ExitDirection]types.ExitLink{
				types.ExitNormal: {Area: "areas/field.tmx", X: 1, Y: 1},
			}
			// West edge leads left into the field.
			prop[3*w].Exits = map[types.ExitDirection]types.ExitLink{
				types.ExitLeft: {Area: "areas/field.tmx", X: 3, Y: 1},
			}
			// Below the door; counts the times it is left.
			prop[1*w+4].Scripts = types.TileScripts{Leave: "count_leaves"}
			prop[1].Scripts = types.TileScripts{Use: "nobody_registered_this"}
			prop[2].Exits = map[types.ExitDirection]types.ExitLink{
				types.ExitNormal: {Area: "areas/void.tmx", X: 0, Y: 0},
			}
			return area.Spec{Path: housePath, Width: w, Height: h, TileSet: reg,
				Layers: []area.LayerSpec{{Depth: 0, Tiles: prop}, {Depth: -0.2, Tiles: gfx}}}
		},
		"areas/field.tmx": func() area.Spec {
			return area.Spec{Path: "areas/field.tmx", Width: 4, Height: 4, TileSet: reg}
		},
	}
}

func openDoor(c *trigger.Context) error {
	if c.Save().Bool("door_open") {
		return nil
	}
	_ = c.Save().SetBool("door_open", true)
	wall, err := c.Area().Tiles(4, 0, 0.0)
	if err != nil {
		return err
	}
	if err := wall.SetFlag(types.FlagNowalk, false); err != nil {
		return err
	}
	door, err := c.Area().Tiles(4, 0, -0.2)
	if err != nil {
		return err
	}
	open, err := c.Area().GetTileType(66)
	if err != nil {
		return err
	}
	if err := door.SetType(open); err != nil {
		return err
	}
	c.Area().RequestRedraw()
	c.PlaySound("sounds/door.oga")
	return nil
}

func countSteps(c *trigger.Context) error {
	return c.Save().SetInt("steps", c.Save().Int("steps")+1)
}

func countLeaves(c *trigger.Context) error {
	return c.Save().SetInt("leaves", c.Save().Int("leaves")+1)
}

func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	reg := trigger.NewRegistry()
	_ = reg.Register("open_door", openDoor)
	_ = reg.Register("count_steps", countSteps)
	_ = reg.Register("count_leaves", countLeaves)
	snd := &recorder{}
	e := New(Options{
		Loader:   testLoader(t),
		Triggers: reg,
		Sound:    snd,
		Slot:     "slot1",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return e, snd
}

func TestFire(t *testing.T) {
	e, snd := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Fire(ctx, housePath, "open_door")
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if res.Changes != 2 {
		t.Errorf("Changes = %d, want 2", res.Changes)
	}
	if !e.Save.Bool("slot1", "door_open") {
		t.Error("guard not set in engine save state")
	}
	if len(snd.played) != 1 {
		t.Errorf("played = %v", snd.played)
	}

	if _, err := e.Fire(ctx, housePath, "missing"); !errors.Is(err, trigger.ErrUnknownTrigger) {
		t.Errorf("error = %v, want ErrUnknownTrigger", err)
	}
	if _, err := e.Fire(ctx, "areas/nope.tmx", "open_door"); err == nil {
		t.Error("expected load error")
	}
}

func TestUse(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	walk, err := e.Walkable(ctx, housePath, 4, 0)
	if err != nil || walk {
		t.Fatalf("door should start blocked: walk=%v err=%v", walk, err)
	}

	out, err := e.Use(ctx, housePath, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Fired) != 1 || out.Fired[0].Binding.Trigger != "open_door" || out.Failed() != nil {
		t.Fatalf("Fired = %+v", out.Fired)
	}
	if walk, _ := e.Walkable(ctx, housePath, 4, 0); !walk {
		t.Error("door should be walkable after the switch")
	}

	out, err = e.Use(ctx, housePath, 3, 3)
	if err != nil || len(out.Fired) != 0 {
		t.Errorf("tile without use script fired %v (err %v)", out, err)
	}
}

func TestUse_UnknownTrigger(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.Use(context.Background(), housePath, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(out.Failed(), trigger.ErrUnknownTrigger) {
		t.Errorf("Failed() = %v, want ErrUnknownTrigger", out.Failed())
	}
}

func TestEnter_FiresThenTraverses(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.Enter(context.Background(), housePath, 4, 5)
	if err != nil {
		t.Fatal(err)
	}
	if e.Save.Int("slot1", "steps") != 1 {
		t.Error("enter trigger did not run")
	}
	if out.Arrival == nil || out.Arrival.Area.Path() != "areas/field.tmx" {
		t.Fatalf("Arrival = %+v", out.Arrival)
	}
	if out.Arrival.Address.X != 1 || out.Arrival.Address.Y != 1 {
		t.Errorf("arrival = %+v", out.Arrival.Address)
	}
}

func TestEnter_NoExit(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.Enter(context.Background(), housePath, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if out.Arrival != nil {
		t.Error("tile without exit should not move")
	}
}

func TestEnter_UnresolvedExit(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Enter(context.Background(), housePath, 2, 0)
	if !errors.Is(err, world.ErrUnresolvedExit) {
		t.Errorf("error = %v, want ErrUnresolvedExit", err)
	}
}

func TestLeave_Directional(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	out, err := e.Leave(ctx, housePath, 0, 3, types.ExitLeft)
	if err != nil {
		t.Fatal(err)
	}
	if out.Arrival == nil || out.Arrival.Address.X != 3 {
		t.Errorf("Arrival = %+v", out.Arrival)
	}

	out, err = e.Leave(ctx, housePath, 0, 3, types.ExitRight)
	if err != nil || out.Arrival != nil {
		t.Errorf("no right exit: arrival=%v err=%v", out.Arrival, err)
	}
}

func TestFrame_DrainsOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if got := e.Frame(); len(got) != 0 {
		t.Errorf("nothing dirty yet, Frame() = %v", got)
	}
	_, _ = e.Fire(ctx, housePath, "open_door")
	got := e.Frame()
	if len(got) != 1 || got[0].Path() != housePath {
		t.Fatalf("Frame() = %v", got)
	}
	if len(e.Frame()) != 0 {
		t.Error("second Frame() should be empty")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	e, _ := newTestEngine(t)
	if _, err := e.Fire(ctx, housePath, "open_door"); err != nil {
		t.Fatal(err)
	}
	if err := e.SaveTo(ctx, store); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	fresh, snd := newTestEngine(t)
	if err := fresh.LoadFrom(ctx, store); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !fresh.Save.Bool("slot1", "door_open") {
		t.Error("guard not restored")
	}
	if walk, _ := fresh.Walkable(ctx, housePath, 4, 0); !walk {
		t.Error("door state not restored")
	}

	// The restored guard keeps the trigger from firing twice.
	res, err := fresh.Fire(ctx, housePath, "open_door")
	if err != nil {
		t.Fatal(err)
	}
	if res.Changes != 0 || len(snd.played) != 0 {
		t.Errorf("restored trigger re-ran: %+v played=%v", res, snd.played)
	}
}

func TestLoadFrom_Missing(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.LoadFrom(context.Background(), storage.NewMemoryStore())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStep(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	mv, err := e.Step(ctx, housePath, 4, 3, types.ExitDown)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Blocked || mv.Area != housePath || mv.X != 4 || mv.Y != 4 {
		t.Errorf("Step down = %+v", mv)
	}

	// Onto the doormat: the enter trigger runs, then its exit is taken.
	mv, err = e.Step(ctx, housePath, 4, 4, types.ExitDown)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Area != "areas/field.tmx" || mv.X != 1 || mv.Y != 1 {
		t.Errorf("Step onto mat = %+v", mv)
	}
	if mv.Enter == nil || len(mv.Enter.Fired) != 1 {
		t.Errorf("enter outcome = %+v", mv.Enter)
	}
	if got := e.Save.Slot("slot1").Int("steps"); got != 1 {
		t.Errorf("steps = %d, want 1", got)
	}
}

func TestStep_Blocked(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// The closed door at (4,0).
	mv, err := e.Step(ctx, housePath, 4, 1, types.ExitUp)
	if err != nil {
		t.Fatal(err)
	}
	if !mv.Blocked || mv.X != 4 || mv.Y != 1 {
		t.Errorf("Step into wall = %+v", mv)
	}

	// Off the east edge; the house does not loop.
	mv, err = e.Step(ctx, housePath, 7, 2, types.ExitRight)
	if err != nil {
		t.Fatal(err)
	}
	if !mv.Blocked {
		t.Errorf("Step off edge = %+v", mv)
	}

	// Once the door is open the wall is walkable.
	if _, err := e.Fire(ctx, housePath, "open_door"); err != nil {
		t.Fatal(err)
	}
	mv, err = e.Step(ctx, housePath, 4, 1, types.ExitUp)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Blocked || mv.Y != 0 {
		t.Errorf("Step through open door = %+v", mv)
	}
}

func TestStep_DirectionalExit(t *testing.T) {
	e, _ := newTestEngine(t)
	mv, err := e.Step(context.Background(), housePath, 0, 3, types.ExitLeft)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Area != "areas/field.tmx" || mv.X != 3 || mv.Y != 1 {
		t.Errorf("Step left = %+v", mv)
	}
	if mv.Enter != nil {
		t.Error("a directional exit should not enter a neighbour")
	}
}

func TestStep_InvalidDirection(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.Step(context.Background(), housePath, 1, 1, types.ExitNormal); err == nil {
		t.Error("expected an error for ExitNormal")
	}
}

func TestStep_BlockedRunsNoLeave(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	mv, err := e.Step(ctx, housePath, 4, 1, types.ExitUp)
	if err != nil {
		t.Fatal(err)
	}
	if !mv.Blocked {
		t.Fatalf("closed door should block: %+v", mv)
	}
	if mv.Leave != nil {
		t.Errorf("blocked step fired leave triggers: %+v", mv.Leave)
	}
	if got := e.Save.Slot("slot1").Int("leaves"); got != 0 {
		t.Errorf("leaves = %d after bumping the door, want 0", got)
	}

	mv, err = e.Step(ctx, housePath, 4, 1, types.ExitDown)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Blocked || mv.Leave == nil || len(mv.Leave.Fired) != 1 {
		t.Errorf("real step should fire the leave trigger once: %+v", mv)
	}
	if got := e.Save.Slot("slot1").Int("leaves"); got != 1 {
		t.Errorf("leaves = %d, want 1", got)
	}
}

func TestRestore_FailureChangesNothing(t *testing.T) {
	ctx := context.Background()

	e, _ := newTestEngine(t)
	if _, err := e.Fire(ctx, housePath, "open_door"); err != nil {
		t.Fatal(err)
	}
	sd, err := e.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sd.Areas["areas/void.tmx"] = &types.AreaState{Path: "areas/void.tmx", Width: 1, Height: 1}

	fresh, _ := newTestEngine(t)
	_ = fresh.Save.SetInt("slot1", "steps", 7)
	if walk, _ := fresh.Walkable(ctx, housePath, 4, 0); walk {
		t.Fatal("door should start closed")
	}
	if err := fresh.Restore(ctx, sd); err == nil {
		t.Fatal("expected an error for an area the loader cannot resolve")
	}
	if fresh.Save.Bool("slot1", "door_open") {
		t.Error("guard restored although the load failed")
	}
	if got := fresh.Save.Int("slot1", "steps"); got != 7 {
		t.Errorf("steps = %d, want the pre-load 7", got)
	}
	if walk, _ := fresh.Walkable(ctx, housePath, 4, 0); walk {
		t.Error("door tiles restored although the load failed")
	}
}
