package loader

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/tiletype"
)

//go:embed schemas/area.schema.json
var areaSchemaSrc string

//go:embed schemas/tileset.schema.json
var tileSetSchemaSrc string

var (
	areaSchema    = jsonschema.MustCompileString("area.schema.json", areaSchemaSrc)
	tileSetSchema = jsonschema.MustCompileString("tileset.schema.json", tileSetSchemaSrc)
)

// JSONLoader loads areas on demand from JSON documents under a root
// directory. "areas/house.tmx" is read from <root>/areas/house.json and
// its tile set from <root>/tilesets/<name>.json. Tile sets are cached.
type JSONLoader struct {
	root   string
	logger *slog.Logger

	mu       sync.Mutex
	tileSets map[string]*tiletype.Registry
}

// NewJSONLoader returns a loader rooted at root.
func NewJSONLoader(root string, logger *slog.Logger) *JSONLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONLoader{root: root, logger: logger, tileSets: map[string]*tiletype.Registry{}}
}

// LoadArea implements world.Loader.
func (l *JSONLoader) LoadArea(ctx context.Context, areaPath string) (area.Spec, error) {
	if err := ctx.Err(); err != nil {
		return area.Spec{}, err
	}
	file, err := l.areaFile(areaPath)
	if err != nil {
		return area.Spec{}, err
	}

	var doc areaDoc
	if err := readDocument(file, areaSchema, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return area.Spec{}, fmt.Errorf("%w: %s", ErrAreaNotFound, areaPath)
		}
		return area.Spec{}, fmt.Errorf("area %s: %w", areaPath, err)
	}
	doc.Path = areaPath

	ts, err := l.tileSet(doc.TileSet)
	if err != nil {
		return area.Spec{}, fmt.Errorf("area %s: %w", areaPath, err)
	}

	ve := &ValidationError{}
	spec, ok := buildSpec(doc, ts, ve)
	if !ok {
		return area.Spec{}, ve
	}
	for _, w := range ve.Warnings {
		l.logger.Warn("content warning", "area", areaPath, "warning", w)
	}
	l.logger.Debug("area loaded", "area", areaPath, "file", file, "layers", len(spec.Layers))
	return spec, nil
}

func (l *JSONLoader) areaFile(areaPath string) (string, error) {
	clean := path.Clean(areaPath)
	if areaPath == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("area path %q escapes the content root", areaPath)
	}
	base := strings.TrimSuffix(clean, path.Ext(clean))
	return filepath.Join(l.root, filepath.FromSlash(base)+".json"), nil
}

func (l *JSONLoader) tileSet(name string) (*tiletype.Registry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reg, ok := l.tileSets[name]; ok {
		return reg, nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil, fmt.Errorf("invalid tile set name %q", name)
	}

	var doc tileSetDoc
	file := filepath.Join(l.root, "tilesets", name+".json")
	if err := readDocument(file, tileSetSchema, &doc); err != nil {
		return nil, fmt.Errorf("tile set %s: %w", name, err)
	}
	doc.Name = name
	reg, err := buildTileSet(doc)
	if err != nil {
		return nil, err
	}
	l.tileSets[name] = reg
	return reg, nil
}

// readDocument reads a JSON file, validates it against schema, and decodes
// it into v.
func readDocument(file string, schema *jsonschema.Schema, v any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}
	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("validating %s: %w", file, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", file, err)
	}
	return nil
}
