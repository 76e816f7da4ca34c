package element

import "errors"

var (
	// ErrInvalidPath is returned when a reference or element path cannot
	// be resolved (out-of-range upstream height, missing parent, etc).
	ErrInvalidPath = errors.New("element: invalid path")

	// ErrUnknownTag is returned when decoding an Element whose leading
	// discriminant byte does not match any known Tag.
	ErrUnknownTag = errors.New("element: unknown tag")

	// ErrTruncated is returned when a buffer ends before a fixed-size or
	// length-prefixed field can be fully read.
	ErrTruncated = errors.New("element: truncated encoding")

	// ErrWrongKind is returned when an operation expects one Element
	// kind (plain/reference/subtree) but is given another.
	ErrWrongKind = errors.New("element: wrong element kind")
)
