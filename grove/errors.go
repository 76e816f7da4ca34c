package grove

import "fmt"

var (
	// ErrWrongElementKind is returned when an operation expects a
	// specific element tag at a path/key (e.g. a non-Merk append
	// targeting a plain Item) and finds another.
	ErrWrongElementKind = fmt.Errorf("grove: wrong element kind")

	// ErrCyclicReference is returned when resolving a reference chain
	// revisits a path already seen in the same resolution (spec §4.5).
	ErrCyclicReference = fmt.Errorf("grove: cyclic reference")

	// ErrReferenceLimit is returned when a reference chain exceeds its
	// hop cap (MaxReferenceHops, or an element's own MaxHop override).
	ErrReferenceLimit = fmt.Errorf("grove: reference hop limit exceeded")

	// ErrInvalidReferenceTarget is returned when a reference resolves
	// to the grove root itself, which never holds an element.
	ErrInvalidReferenceTarget = fmt.Errorf("grove: reference target has no element")
)
