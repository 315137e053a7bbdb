package area

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when an address falls outside the grid.
	ErrOutOfBounds = errors.New("tile address out of bounds")

	// ErrUnknownLayer is returned for a depth the Area never declared. It
	// matches ErrOutOfBounds as well.
	ErrUnknownLayer = fmt.Errorf("%w: unknown layer depth", ErrOutOfBounds)

	// ErrConcurrentMutationTimeout is returned when the Area lock could not
	// be acquired within the configured wait. Callers may retry.
	ErrConcurrentMutationTimeout = errors.New("timed out waiting for area lock")

	// ErrStaleHandle is returned when a Tile handle or Txn is used after
	// its step committed or rolled back.
	ErrStaleHandle = errors.New("tile handle used outside its step")
)

// BoundsError reports which address failed to resolve.
type BoundsError struct {
	Path string
	X, Y int
	Z    float64
	Err  error // ErrOutOfBounds or ErrUnknownLayer
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s (%d, %d, %g): %v", e.Path, e.X, e.Y, e.Z, e.Err)
}

func (e *BoundsError) Unwrap() error {
	return e.Err
}
