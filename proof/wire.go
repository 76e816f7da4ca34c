// Package proof builds and verifies multi-layer proofs over a grove
// (spec §4.9): V0 Merk stack-machine proofs for plain-Merk-only
// queries, and V1 layered proofs once a query crosses into a non-Merk
// subtree. The V0 stack machine itself lives in package avl (it needs
// avl node internals no exported primitive surfaces); this package
// wraps it with the recursive per-path layering, wire encoding, and
// the query-shaped Prove/Verify entry points.
package proof

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grovedb/hash"
)

// ErrTruncated is returned by any decoder that runs out of bytes
// mid-field, following element.Unmarshal's own error naming.
var ErrTruncated = fmt.Errorf("proof: truncated")

func writeUint8(buf []byte, v uint8) []byte  { return append(buf, v) }
func writeUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}
func writeUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
func writeUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
func writeDigest(buf []byte, h hash.Digest) []byte { return append(buf, h[:]...) }
func writeBytes(buf []byte, v []byte) []byte {
	buf = writeUint32(buf, uint32(len(v)))
	return append(buf, v...)
}

func readUint8(buf []byte, off int) (uint8, int, error) {
	if off+1 > len(buf) {
		return 0, off, ErrTruncated
	}
	return buf[off], off + 1, nil
}
func readUint16(buf []byte, off int) (uint16, int, error) {
	if off+2 > len(buf) {
		return 0, off, ErrTruncated
	}
	return binary.BigEndian.Uint16(buf[off:]), off + 2, nil
}
func readUint32(buf []byte, off int) (uint32, int, error) {
	if off+4 > len(buf) {
		return 0, off, ErrTruncated
	}
	return binary.BigEndian.Uint32(buf[off:]), off + 4, nil
}
func readUint64(buf []byte, off int) (uint64, int, error) {
	if off+8 > len(buf) {
		return 0, off, ErrTruncated
	}
	return binary.BigEndian.Uint64(buf[off:]), off + 8, nil
}
func readDigest(buf []byte, off int) (hash.Digest, int, error) {
	var h hash.Digest
	if off+hash.Size > len(buf) {
		return h, off, ErrTruncated
	}
	copy(h[:], buf[off:off+hash.Size])
	return h, off + hash.Size, nil
}
func readBytes(buf []byte, off int) ([]byte, int, error) {
	n, off, err := readUint32(buf, off)
	if err != nil {
		return nil, off, err
	}
	if off+int(n) > len(buf) {
		return nil, off, ErrTruncated
	}
	v := append([]byte(nil), buf[off:off+int(n)]...)
	return v, off + int(n), nil
}
