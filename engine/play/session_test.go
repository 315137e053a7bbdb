package play

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nathoo/tilecore/audio"
	"github.com/nathoo/tilecore/engine"
	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/tiletype"
	"github.com/nathoo/tilecore/engine/trigger"
	"github.com/nathoo/tilecore/storage"
	"github.com/nathoo/tilecore/triggers"
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

const housePath = "areas/house.tmx"

func testLoader(t *testing.T) mapLoader {
	t.Helper()
	reg, err := tiletype.NewRegistry("house",
		types.TileType{ID: 1, Walkable: true, Visual: "."},
		types.TileType{ID: 12, Visual: "+"},
		types.TileType{ID: triggers.OpenDoorType, Walkable: true, Visual: "/"},
	)
	if err != nil {
		t.Fatal(err)
	}
	return mapLoader{
		housePath: func() area.Spec {
			const w, h = 8, 6
			prop := make([]types.TileState, w*h)
			floor := make([]types.TileState, w*h)
			door := make([]types.TileState, w*h)
			for i := range floor {
				floor[i].Type = 1
			}
			prop[triggers.DoorY*w+triggers.DoorX].Flags = types.FlagNowalk
			door[triggers.DoorY*w+triggers.DoorX].Type = 12
			prop[1*w+5].Scripts = types.TileScripts{Use: triggers.HouseSwitch}
			return area.Spec{Path: housePath, Name: "House", Width: w, Height: h, TileSet: reg,
				Layers: []area.LayerSpec{
					{Depth: 0, Tiles: prop},
					{Depth: -1, Tiles: floor},
					{Depth: triggers.DoorDepth, Tiles: door},
				}}
		},
		triggers.SecretRoomPath: func() area.Spec {
			return area.Spec{Path: triggers.SecretRoomPath, Name: "Secret Room", Width: 6, Height: 6, TileSet: reg}
		},
	}
}

func newTestSession(t *testing.T) (*Session, *audio.Recorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := trigger.NewRegistry()
	if err := triggers.Register(reg); err != nil {
		t.Fatal(err)
	}
	snd := audio.NewRecorder(logger)
	eng := engine.New(engine.Options{
		Loader:   testLoader(t),
		Triggers: reg,
		Sound:    snd,
		Logger:   logger,
	})
	s := New(eng, storage.NewMemoryStore(), housePath, 4, 2)
	if _, err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, snd
}

func run(t *testing.T, s *Session, input string) string {
	t.Helper()
	return strings.Join(s.Exec(context.Background(), input).Output, "\n")
}

func TestStart_Describes(t *testing.T) {
	s, _ := newTestSession(t)
	out, err := s.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 || !strings.Contains(out[0], "House, at (4, 2)") {
		t.Errorf("Start output = %v", out)
	}
}

func TestStart_BadPosition(t *testing.T) {
	s, _ := newTestSession(t)
	s.X = 40
	if _, err := s.Start(context.Background()); err == nil {
		t.Error("expected error for a start outside the area")
	}
}

func TestSecretDoorScenario(t *testing.T) {
	s, snd := newTestSession(t)

	run(t, s, "n")
	if s.Y != 1 {
		t.Fatalf("after n: at (%d, %d)", s.X, s.Y)
	}
	if out := run(t, s, "n"); !strings.Contains(out, "can't go that way") {
		t.Errorf("closed door: %q", out)
	}

	run(t, s, "e")
	if out := run(t, s, "look"); !strings.Contains(out, "something here you can use") {
		t.Errorf("look at switch: %q", out)
	}
	if out := run(t, s, "use"); !strings.Contains(out, "Done.") {
		t.Errorf("use: %q", out)
	}
	if got := snd.Played(); len(got) != 1 || got[0] != triggers.DoorSound {
		t.Errorf("sounds = %v", got)
	}

	// Using it again changes nothing and plays nothing.
	run(t, s, "use")
	if got := snd.Played(); len(got) != 1 {
		t.Errorf("sounds after second use = %v", got)
	}

	run(t, s, "w")
	out := run(t, s, "n")
	if s.Area != triggers.SecretRoomPath || s.X != 4 || s.Y != 5 {
		t.Fatalf("through the door: at %s (%d, %d), output %q", s.Area, s.X, s.Y, out)
	}
	if !strings.Contains(out, "Secret Room") {
		t.Errorf("arrival output = %q", out)
	}

	if out := run(t, s, "/state"); !strings.Contains(out, triggers.DoorGuard+" = true") {
		t.Errorf("/state = %q", out)
	}
}

func TestUse_Nothing(t *testing.T) {
	s, _ := newTestSession(t)
	if out := run(t, s, "use"); out != "Nothing happens." {
		t.Errorf("use = %q", out)
	}
}

func TestAgain(t *testing.T) {
	s, _ := newTestSession(t)
	if out := run(t, s, "g"); out != "Nothing to repeat." {
		t.Errorf("again with no history = %q", out)
	}
	run(t, s, "s")
	run(t, s, "again")
	if s.Y != 4 {
		t.Errorf("after s, again: y = %d, want 4", s.Y)
	}
}

func TestGoto(t *testing.T) {
	s, _ := newTestSession(t)
	run(t, s, "goto "+triggers.SecretRoomPath+" 2 3")
	if s.Area != triggers.SecretRoomPath || s.X != 2 || s.Y != 3 {
		t.Errorf("goto: at %s (%d, %d)", s.Area, s.X, s.Y)
	}
	if out := run(t, s, "goto "+housePath+" 9 9"); !strings.Contains(out, "outside") {
		t.Errorf("goto out of bounds = %q", out)
	}
	if out := run(t, s, "goto nowhere"); !strings.Contains(out, "Usage") {
		t.Errorf("goto usage = %q", out)
	}
}

func TestFire(t *testing.T) {
	s, _ := newTestSession(t)
	run(t, s, "/trace")
	out := run(t, s, "fire "+triggers.HouseSwitch)
	if !strings.Contains(out, "ran") || !strings.Contains(out, "[trace]") {
		t.Errorf("fire = %q", out)
	}
	if out := run(t, s, "fire no_such_trigger"); !strings.Contains(out, "failed") {
		t.Errorf("fire unknown = %q", out)
	}
}

func TestMap(t *testing.T) {
	s, _ := newTestSession(t)
	out := s.Exec(context.Background(), "map").Output
	if len(out) != 6 {
		t.Fatalf("map has %d rows, want 6", len(out))
	}
	if out[0] != "....+..." {
		t.Errorf("row 0 = %q", out[0])
	}
	if out[2] != "....@..." {
		t.Errorf("row 2 = %q", out[2])
	}
}

func TestSaveLoad(t *testing.T) {
	s, _ := newTestSession(t)
	run(t, s, "fire "+triggers.HouseSwitch)
	if out := run(t, s, "/save"); !strings.Contains(out, "saved") {
		t.Fatalf("/save = %q", out)
	}

	// A fresh engine sharing the store sees the open door after /load.
	fresh, _ := newTestSession(t)
	fresh.Store = s.Store
	if out := run(t, fresh, "/load"); !strings.Contains(out, "loaded") {
		t.Fatalf("/load = %q", out)
	}
	if !fresh.Engine.Save.Slot(fresh.Engine.Slot()).Bool(triggers.DoorGuard) {
		t.Error("guard not restored")
	}
	if out := run(t, fresh, "map"); !strings.Contains(out, "/") {
		t.Errorf("door not open after load:\n%s", out)
	}
}

func TestMeta(t *testing.T) {
	s, _ := newTestSession(t)
	if r := s.Exec(context.Background(), "/quit"); !r.Quit {
		t.Error("/quit should quit")
	}
	if out := run(t, s, "/help"); !strings.Contains(out, "/save") {
		t.Errorf("/help = %q", out)
	}
	if out := run(t, s, "/bogus"); !strings.Contains(out, "Unknown command") {
		t.Errorf("/bogus = %q", out)
	}
	if out := run(t, s, "dance"); !strings.Contains(out, "don't know") {
		t.Errorf("dance = %q", out)
	}

	s.Store = nil
	if out := run(t, s, "/save"); !strings.Contains(out, "disabled") {
		t.Errorf("/save without store = %q", out)
	}
}
