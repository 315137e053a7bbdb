package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/tilecore/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestJSONLoader_LoadArea(t *testing.T) {
	l := NewJSONLoader("testdata/json", quietLogger())
	spec, err := l.LoadArea(context.Background(), "areas/house.tmx")
	if err != nil {
		t.Fatalf("LoadArea: %v", err)
	}
	if spec.Path != "areas/house.tmx" {
		t.Errorf("Path = %q", spec.Path)
	}
	if spec.Width != 8 || spec.Height != 6 {
		t.Errorf("size = %dx%d", spec.Width, spec.Height)
	}
	sw := propertyTile(t, spec, 4, 0)
	if sw.Flags != types.FlagNowalk || sw.Scripts.Use != "house_switch" {
		t.Errorf("switch tile = %+v", sw)
	}
	side := propertyTile(t, spec, 0, 3)
	if side.Exits[types.ExitLeft].Area != "areas/field.tmx" {
		t.Errorf("left exit = %+v", side.Exits)
	}
	if door, err := spec.TileSet.Lookup(12); err != nil || door.Scripts.Use != "knock" {
		t.Errorf("door type = %+v, %v; want use knock", door, err)
	}
	if _, err := spec.TileSet.Lookup(66); err != nil {
		t.Errorf("tile set missing type 66: %v", err)
	}
}

func TestJSONLoader_CachesTileSets(t *testing.T) {
	l := NewJSONLoader("testdata/json", quietLogger())
	ctx := context.Background()
	a, err := l.LoadArea(ctx, "areas/house.tmx")
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.LoadArea(ctx, "areas/house.tmx")
	if err != nil {
		t.Fatal(err)
	}
	if a.TileSet != b.TileSet {
		t.Error("expected the tile set registry to be shared")
	}
}

func TestJSONLoader_NotFound(t *testing.T) {
	l := NewJSONLoader("testdata/json", quietLogger())
	_, err := l.LoadArea(context.Background(), "areas/nowhere.tmx")
	if !errors.Is(err, ErrAreaNotFound) {
		t.Errorf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestJSONLoader_SchemaViolation(t *testing.T) {
	l := NewJSONLoader("testdata/json", quietLogger())
	_, err := l.LoadArea(context.Background(), "areas/invalid.tmx")
	if err == nil || !strings.Contains(err.Error(), "validating") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestJSONLoader_UnknownType(t *testing.T) {
	l := NewJSONLoader("testdata/json", quietLogger())
	_, err := l.LoadArea(context.Background(), "areas/badtype.tmx")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(ve.Errors[0], "unknown fill type 7") {
		t.Errorf("Errors = %v", ve.Errors)
	}
}

func TestJSONLoader_RejectsEscapingPaths(t *testing.T) {
	l := NewJSONLoader("testdata/json", quietLogger())
	for _, p := range []string{"../secret.tmx", "/etc/passwd", "areas/../../x.tmx", ""} {
		if _, err := l.LoadArea(context.Background(), p); err == nil || errors.Is(err, ErrAreaNotFound) {
			t.Errorf("LoadArea(%q) = %v, want a path error", p, err)
		}
	}
}

func TestJSONLoader_MissingTileSet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"tileset": "nope", "width": 1, "height": 1}`)
	l := NewJSONLoader(dir, quietLogger())
	_, err := l.LoadArea(context.Background(), "a.tmx")
	if err == nil || !strings.Contains(err.Error(), "tile set nope") {
		t.Fatalf("expected tile set error, got %v", err)
	}
}

func TestJSONLoader_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewJSONLoader("testdata/json", quietLogger())
	if _, err := l.LoadArea(ctx, "areas/house.tmx"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
