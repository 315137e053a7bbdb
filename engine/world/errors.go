package world

import (
	"errors"
	"fmt"

	"github.com/nathoo/tilecore/types"
)

var (
	// ErrUnresolvedExit is returned at traversal time when an exit's target
	// cannot be loaded or its coordinate does not exist there.
	ErrUnresolvedExit = errors.New("unresolved exit")

	// ErrNoExit is returned when the tile has no exit in the requested
	// direction.
	ErrNoExit = errors.New("no exit")

	// ErrAreaInUse is returned by Unload while an Area is referenced.
	ErrAreaInUse = errors.New("area in use")

	// ErrNotLoaded is returned by Unload for a path that is not cached.
	ErrNotLoaded = errors.New("area not loaded")
)

// ExitError describes a traversal that could not be completed. It matches
// both ErrUnresolvedExit and the underlying cause.
type ExitError struct {
	From string
	X, Y int
	Exit types.ExitLink
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit %s (%d, %d) -> %s (%d, %d): %v: %v",
		e.From, e.X, e.Y, e.Exit.Area, e.Exit.X, e.Exit.Y, ErrUnresolvedExit, e.Err)
}

func (e *ExitError) Unwrap() []error {
	return []error{ErrUnresolvedExit, e.Err}
}
