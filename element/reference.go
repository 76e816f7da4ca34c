package element

import (
	"bytes"
	"fmt"
)

// ReferencePathMode selects one of GroveDB's 7 relative/absolute path
// modes for a Reference element (spec §4.5).
type ReferencePathMode uint8

const (
	RefAbsolutePath ReferencePathMode = iota
	RefUpstreamRootHeight
	RefUpstreamRootHeightWithParentPathAddition
	RefUpstreamFromElementHeight
	RefCousin
	RefRemovedCousin
	RefSibling
)

// ReferencePath is the payload of a Reference element: a mode plus the
// fields that mode needs to resolve to an absolute path.
type ReferencePath struct {
	Mode ReferencePathMode

	// AbsolutePath, RemovedCousin
	Segments [][]byte

	// UpstreamRootHeight, UpstreamRootHeightWithParentPathAddition,
	// UpstreamFromElementHeight
	Height uint32
	Suffix [][]byte

	// Cousin, Sibling
	Key []byte
}

// Resolve computes the absolute target path of r given the path of the
// element that holds the reference (currentPath), per the rules
// documented in DESIGN.md's element section (the retrieved
// corpus's original_source/ is empty, so the exact semantics of
// UpstreamRootHeightWithParentPathAddition and the cousin modes are
// implementer judgment, recorded there).
func (r ReferencePath) Resolve(currentPath [][]byte) ([][]byte, error) {
	switch r.Mode {
	case RefAbsolutePath:
		return clonePath(r.Segments), nil

	case RefUpstreamRootHeight:
		if int(r.Height) > len(currentPath) {
			return nil, fmt.Errorf("%w: height %d exceeds current path depth %d", ErrInvalidPath, r.Height, len(currentPath))
		}
		out := clonePath(currentPath[:r.Height])
		return append(out, clonePath(r.Suffix)...), nil

	case RefUpstreamRootHeightWithParentPathAddition:
		if int(r.Height) > len(currentPath) {
			return nil, fmt.Errorf("%w: height %d exceeds current path depth %d", ErrInvalidPath, r.Height, len(currentPath))
		}
		out := clonePath(currentPath[:r.Height])
		if int(r.Height) < len(currentPath) {
			out = append(out, append([]byte(nil), currentPath[r.Height]...))
		}
		return append(out, clonePath(r.Suffix)...), nil

	case RefUpstreamFromElementHeight:
		if int(r.Height) > len(currentPath) {
			return nil, fmt.Errorf("%w: height %d exceeds current path depth %d", ErrInvalidPath, r.Height, len(currentPath))
		}
		cut := len(currentPath) - int(r.Height)
		out := clonePath(currentPath[:cut])
		return append(out, clonePath(r.Suffix)...), nil

	case RefSibling:
		if len(currentPath) == 0 {
			return nil, fmt.Errorf("%w: Sibling reference has no parent", ErrInvalidPath)
		}
		out := clonePath(currentPath[:len(currentPath)-1])
		return append(out, append([]byte(nil), r.Key...)), nil

	case RefCousin:
		if len(currentPath) < 2 {
			return nil, fmt.Errorf("%w: Cousin reference requires a grandparent", ErrInvalidPath)
		}
		leaf := currentPath[len(currentPath)-1]
		out := clonePath(currentPath[:len(currentPath)-2])
		out = append(out, append([]byte(nil), r.Key...))
		out = append(out, append([]byte(nil), leaf...))
		return out, nil

	case RefRemovedCousin:
		if len(currentPath) == 0 {
			return nil, fmt.Errorf("%w: RemovedCousin reference has no leaf", ErrInvalidPath)
		}
		leaf := currentPath[len(currentPath)-1]
		out := clonePath(r.Segments)
		out = append(out, append([]byte(nil), leaf...))
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown reference path mode %d", ErrInvalidPath, r.Mode)
	}
}

func clonePath(p [][]byte) [][]byte {
	out := make([][]byte, len(p))
	for i, seg := range p {
		out[i] = append([]byte(nil), seg...)
	}
	return out
}

// PathEqual reports whether two paths name the same subtree/key sequence.
func PathEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (r ReferencePath) marshal(buf []byte) []byte {
	buf = append(buf, byte(r.Mode))
	switch r.Mode {
	case RefAbsolutePath:
		buf = marshalSegments(buf, r.Segments)
	case RefUpstreamRootHeight, RefUpstreamRootHeightWithParentPathAddition, RefUpstreamFromElementHeight:
		buf = writeUint32(buf, r.Height)
		buf = marshalSegments(buf, r.Suffix)
	case RefCousin, RefSibling:
		buf = writeBytes(buf, r.Key)
	case RefRemovedCousin:
		buf = marshalSegments(buf, r.Segments)
	}
	return buf
}

func unmarshalReferencePath(buf []byte, off int) (ReferencePath, int, error) {
	var r ReferencePath
	if off >= len(buf) {
		return r, 0, fmt.Errorf("element: truncated reference mode")
	}
	r.Mode = ReferencePathMode(buf[off])
	off++

	var err error
	switch r.Mode {
	case RefAbsolutePath:
		r.Segments, off, err = unmarshalSegments(buf, off)
	case RefUpstreamRootHeight, RefUpstreamRootHeightWithParentPathAddition, RefUpstreamFromElementHeight:
		r.Height, off, err = readUint32(buf, off)
		if err != nil {
			return r, 0, err
		}
		r.Suffix, off, err = unmarshalSegments(buf, off)
	case RefCousin, RefSibling:
		r.Key, off, err = readBytes(buf, off)
	case RefRemovedCousin:
		r.Segments, off, err = unmarshalSegments(buf, off)
	default:
		return r, 0, fmt.Errorf("element: unknown reference path mode %d", r.Mode)
	}
	if err != nil {
		return r, 0, err
	}
	return r, off, nil
}

func marshalSegments(buf []byte, segs [][]byte) []byte {
	buf = writeUint32(buf, uint32(len(segs)))
	for _, s := range segs {
		buf = writeBytes(buf, s)
	}
	return buf
}

func unmarshalSegments(buf []byte, off int) ([][]byte, int, error) {
	n, off, err := readUint32(buf, off)
	if err != nil {
		return nil, 0, err
	}
	segs := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		var seg []byte
		seg, off, err = readBytes(buf, off)
		if err != nil {
			return nil, 0, err
		}
		segs = append(segs, seg)
	}
	return segs, off, nil
}
