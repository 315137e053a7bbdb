package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nathoo/tilecore/engine/area"
	"github.com/nathoo/tilecore/engine/tiletype"
	"github.com/nathoo/tilecore/engine/world"
)

// ErrAreaNotFound is returned when a loader has no area at a path.
var ErrAreaNotFound = errors.New("area not found")

// Catalog is the validated result of loading a content directory.
type Catalog struct {
	TileSets map[string]*tiletype.Registry
	Areas    map[string]area.Spec
	Warnings []string
}

// LoadArea implements world.Loader.
func (c *Catalog) LoadArea(_ context.Context, path string) (area.Spec, error) {
	spec, ok := c.Areas[path]
	if !ok {
		return area.Spec{}, fmt.Errorf("%w: %s", ErrAreaNotFound, path)
	}
	return spec, nil
}

// Paths returns every area path in the catalog, sorted.
func (c *Catalog) Paths() []string {
	paths := make([]string, 0, len(c.Areas))
	for p := range c.Areas {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type chain []world.Loader

// Chain tries each loader in order and returns the first area found.
// Errors other than ErrAreaNotFound stop the search.
func Chain(loaders ...world.Loader) world.Loader {
	return chain(loaders)
}

func (c chain) LoadArea(ctx context.Context, path string) (area.Spec, error) {
	for _, l := range c {
		spec, err := l.LoadArea(ctx, path)
		if err == nil {
			return spec, nil
		}
		if !errors.Is(err, ErrAreaNotFound) {
			return area.Spec{}, err
		}
	}
	return area.Spec{}, fmt.Errorf("%w: %s", ErrAreaNotFound, path)
}
