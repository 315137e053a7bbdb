package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/redraw"
	"github.com/nathoo/tilecore/engine/savestate"
	"github.com/nathoo/tilecore/engine/tiletype"
	"github.com/nathoo/tilecore/types"
)

type lockCheckSound struct {
	area     *area.Area
	played   []string
	unlocked []bool
}

func (s *lockCheckSound) Play(resource string) {
	s.played = append(s.played, resource)
	txn, err := s.area.Begin(context.Background())
	s.unlocked = append(s.unlocked, err == nil)
	if err == nil {
		txn.Rollback()
	}
}

func setup(t *testing.T) (*Runner, *area.Area, *savestate.State, *redraw.Scheduler, *lockCheckSound) {
	t.Helper()
	reg, err := tiletype.NewRegistry("test", types.TileType{ID: 1}, types.TileType{ID: 2})
	if err != nil {
		t.Fatal(err)
	}
	sched := redraw.New()
	a, err := area.New(area.Spec{Path: "areas/test.tmx", Width: 4, Height: 4, TileSet: reg,
		Layers: []area.LayerSpec{{Depth: -0.2}}},
		area.WithScheduler(sched), area.WithLockTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	st := savestate.New()
	snd := &lockCheckSound{area: a}
	r := NewRunner(Options{
		Slot:   st.Slot("slot1"),
		Sound:  snd,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return r, a, st, sched, snd
}

func TestRun_CommitsEverything(t *testing.T) {
	r, a, st, sched, snd := setup(t)

	res, err := r.Run(context.Background(), a, "flip", func(c *Context) error {
		if c.Save().Bool("done") {
			t.Error("guard should start false")
		}
		if err := c.Save().SetBool("done", true); err != nil {
			return err
		}
		if !c.Save().Bool("done") {
			t.Error("trigger should read its own write")
		}
		tile, err := c.Area().Tiles(1, 1, 0.0)
		if err != nil {
			return err
		}
		if err := tile.SetFlag(types.FlagNowalk, true); err != nil {
			return err
		}
		c.Area().RequestRedraw()
		c.PlaySound("sounds/click.oga")
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ID == "" || res.Changes != 1 || len(res.Vars) != 1 || len(res.Sounds) != 1 {
		t.Errorf("Result = %+v", res)
	}
	if !st.Bool("slot1", "done") {
		t.Error("save-state write not committed")
	}
	if _, ts, _ := a.Inspect(context.Background(), 1, 1, 0.0); ts.Flags != types.FlagNowalk {
		t.Error("tile write not committed")
	}
	if !sched.Pending(a.Path()) {
		t.Error("area should be queued for redraw")
	}
	if len(snd.played) != 1 || snd.played[0] != "sounds/click.oga" {
		t.Errorf("played = %v", snd.played)
	}
	if !snd.unlocked[0] {
		t.Error("sound must play after the area lock is released")
	}
}

func TestRun_ErrorRollsBack(t *testing.T) {
	r, a, st, sched, snd := setup(t)

	_, err := r.Run(context.Background(), a, "bad", func(c *Context) error {
		_ = c.Save().SetBool("done", true)
		tile, _ := c.Area().Tiles(0, 0, 0.0)
		_ = tile.SetFlag(types.FlagNowalk, true)
		c.Area().RequestRedraw()
		c.PlaySound("sounds/click.oga")
		_, err := c.Area().Tiles(9, 9, 0.0)
		return err
	})
	if !errors.Is(err, area.ErrOutOfBounds) {
		t.Fatalf("error = %v, want ErrOutOfBounds", err)
	}
	var te *Error
	if !errors.As(err, &te) || te.Trigger != "bad" || te.Area != a.Path() || te.ID == "" {
		t.Errorf("error should be *Error with context, got %#v", err)
	}
	if IsRetryable(err) {
		t.Error("out of bounds is not retryable")
	}
	if st.Bool("slot1", "done") {
		t.Error("save-state write leaked from failed step")
	}
	if _, ts, _ := a.Inspect(context.Background(), 0, 0, 0.0); ts.Flags != 0 {
		t.Error("tile write leaked from failed step")
	}
	if sched.Len() != 0 {
		t.Error("failed step must not queue a redraw")
	}
	if len(snd.played) != 0 {
		t.Error("failed step must not play sound")
	}
}

func TestRun_UnknownTileTypeRollsBack(t *testing.T) {
	r, a, _, _, _ := setup(t)
	_, err := r.Run(context.Background(), a, "bad_type", func(c *Context) error {
		tile, _ := c.Area().Tiles(0, 0, 0.0)
		_ = tile.SetFlag(types.FlagNowalkNPC, true)
		_, err := c.Area().GetTileType(404)
		return err
	})
	if !errors.Is(err, tiletype.ErrUnknownTileType) {
		t.Fatalf("error = %v, want ErrUnknownTileType", err)
	}
	if _, ts, _ := a.Inspect(context.Background(), 0, 0, 0.0); ts.Flags != 0 {
		t.Error("tile write leaked")
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	r, a, _, _, _ := setup(t)
	_, err := r.Run(context.Background(), a, "panics", func(c *Context) error {
		tile, _ := c.Area().Tiles(2, 2, 0.0)
		_ = tile.SetFlag(types.FlagNowalk, true)
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected error from panicking trigger")
	}
	if _, ts, _ := a.Inspect(context.Background(), 2, 2, 0.0); ts.Flags != 0 {
		t.Error("panicking step should roll back")
	}
	// Lock must be free again.
	if _, err := r.Run(context.Background(), a, "noop", func(*Context) error { return nil }); err != nil {
		t.Errorf("area still locked after panic: %v", err)
	}
}

func TestRun_TimeoutIsRetryable(t *testing.T) {
	r, a, _, _, _ := setup(t)
	holder, err := a.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ran := false
	_, err = r.Run(context.Background(), a, "blocked", func(*Context) error {
		ran = true
		return nil
	})
	holder.Commit()

	if !IsRetryable(err) {
		t.Errorf("error = %v, want retryable timeout", err)
	}
	if ran {
		t.Error("trigger body must not run without the lock")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	noop := func(*Context) error { return nil }
	if err := reg.Register("b", noop); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("a", noop); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("a", noop); err == nil {
		t.Error("duplicate name should fail")
	}
	if err := reg.Register("", noop); err == nil {
		t.Error("empty name should fail")
	}
	if _, err := reg.Lookup("a"); err != nil {
		t.Errorf("Lookup(a): %v", err)
	}
	if _, err := reg.Lookup("zzz"); !errors.Is(err, ErrUnknownTrigger) {
		t.Errorf("error = %v, want ErrUnknownTrigger", err)
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "a" {
		t.Errorf("Names() = %v", names)
	}
}

func TestRun_BodyCannotEndStep(t *testing.T) {
	r, a, st, sched, snd := setup(t)

	_, err := r.Run(context.Background(), a, "early_commit", func(c *Context) error {
		if err := c.Save().SetBool("done", true); err != nil {
			return err
		}
		tile, err := c.Area().Tiles(1, 1, 0.0)
		if err != nil {
			return err
		}
		if err := tile.SetFlag(types.FlagNowalk, true); err != nil {
			return err
		}
		if _, ok := c.Area().(*area.Txn); ok {
			t.Error("trigger body reached the raw *area.Txn")
		}
		if ender, ok := c.Area().(interface{ Commit() }); ok {
			ender.Commit()
		}
		if _, ok := c.Area().(interface{ Area() *area.Area }); ok {
			t.Error("trigger body reached the Area")
		}
		c.Area().RequestRedraw()
		c.PlaySound("sounds/click.oga")
		return errors.New("step failed late")
	})
	if err == nil {
		t.Fatal("expected the late failure")
	}
	if st.Bool("slot1", "done") {
		t.Error("guard leaked from failed step")
	}
	if _, ts, _ := a.Inspect(context.Background(), 1, 1, 0.0); ts.Flags != 0 {
		t.Error("tile write published by failed step")
	}
	if sched.Len() != 0 || len(snd.played) != 0 {
		t.Error("failed step queued a redraw or played sound")
	}
}
