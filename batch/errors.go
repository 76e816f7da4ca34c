package batch

import "fmt"

var (
	// ErrInternalOpKind is returned when a caller hands a synthesized/
	// internal op to NewBatch directly (spec §4.7: "from_ops constructors
	// must reject internal ops").
	ErrInternalOpKind = fmt.Errorf("batch: internal op kind cannot be constructed directly")

	// ErrUnsortedOrDuplicate is returned when two ops in the same batch
	// target the identical (path, key).
	ErrUnsortedOrDuplicate = fmt.Errorf("batch: duplicate op for the same path/key")

	// ErrWrongElementKind is returned when an op expects a specific
	// element tag at its target and finds another (e.g. Patch against a
	// plain Item, DeleteTree against a non-tree element).
	ErrWrongElementKind = fmt.Errorf("batch: wrong element kind")

	// ErrNonEmptySubtree is returned by DeleteTree against a Tree-like
	// element whose child subtree still holds data, unless the op
	// requests Cascade (spec §9's DeleteTree/Cascade decision).
	ErrNonEmptySubtree = fmt.Errorf("batch: subtree is not empty")
)
