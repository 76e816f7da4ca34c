package avl

// Node on-disk record layout (stored under the node's own key in the
// subtree's main namespace):
//
//	key_len      u32 BE
//	key          key_len bytes
//	element_len  u32 BE
//	element      element_len bytes (element.Element.Marshal())
//	value_hash   32 bytes
//	kv_hash      32 bytes
//	own_count    u64 BE
//	own_sum      i64 BE (two's complement)
//	own_bigsum   16 bytes (two's complement)
//	left         link record (see encodeLinkRef)
//	right        link record
//
// A link record is a single presence byte; if 1 it is followed by:
//
//	hash         32 bytes
//	height       u32 BE
//	agg_count    u64 BE
//	agg_sum      i64 BE
//	agg_bigsum   16 bytes
//	key_len      u32 BE
//	key          key_len bytes

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/hash"
)

func putU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func getU32(buf []byte, off int) (uint32, int, error) {
	if off+4 > len(buf) {
		return 0, 0, fmt.Errorf("avl: truncated uint32 at %d", off)
	}
	return binary.BigEndian.Uint32(buf[off : off+4]), off + 4, nil
}

func putU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func getU64(buf []byte, off int) (uint64, int, error) {
	if off+8 > len(buf) {
		return 0, 0, fmt.Errorf("avl: truncated uint64 at %d", off)
	}
	return binary.BigEndian.Uint64(buf[off : off+8]), off + 8, nil
}

func putI64(buf []byte, v int64) []byte {
	return putU64(buf, uint64(v))
}

func getI64(buf []byte, off int) (int64, int, error) {
	v, off, err := getU64(buf, off)
	return int64(v), off, err
}

func putBytes(buf, b []byte) []byte {
	buf = putU32(buf, uint32(len(b)))
	return append(buf, b...)
}

func getBytes(buf []byte, off int) ([]byte, int, error) {
	n, off, err := getU32(buf, off)
	if err != nil {
		return nil, 0, err
	}
	if off+int(n) > len(buf) {
		return nil, 0, fmt.Errorf("avl: truncated payload at %d (want %d bytes)", off, n)
	}
	return buf[off : off+int(n)], off + int(n), nil
}

func putAggregate(buf []byte, a Aggregate) []byte {
	buf = putU64(buf, a.Count)
	buf = putI64(buf, a.Sum)
	big, err := a.BigSum.Bytes()
	if err != nil {
		panic(fmt.Sprintf("avl: encode aggregate: %v", err))
	}
	return append(buf, big[:]...)
}

func getAggregate(buf []byte, off int) (Aggregate, int, error) {
	var a Aggregate
	var err error
	a.Count, off, err = getU64(buf, off)
	if err != nil {
		return a, 0, err
	}
	a.Sum, off, err = getI64(buf, off)
	if err != nil {
		return a, 0, err
	}
	if off+16 > len(buf) {
		return a, 0, fmt.Errorf("avl: truncated bigsum at %d", off)
	}
	a.BigSum, err = element.Int128FromBytes(buf[off : off+16])
	if err != nil {
		return a, 0, err
	}
	return a, off + 16, nil
}

func encodeLinkRef(buf []byte, l *Link) []byte {
	if l == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = append(buf, l.Hash[:]...)
	buf = putU32(buf, uint32(l.Height))
	buf = putAggregate(buf, l.Agg)
	buf = putBytes(buf, l.Key)
	return buf
}

func decodeLinkRef(buf []byte, off int) (*Link, int, error) {
	if off >= len(buf) {
		return nil, 0, fmt.Errorf("avl: truncated link presence flag at %d", off)
	}
	present := buf[off] != 0
	off++
	if !present {
		return nil, off, nil
	}
	if off+hash.Size > len(buf) {
		return nil, 0, fmt.Errorf("avl: truncated link hash at %d", off)
	}
	var h hash.Digest
	copy(h[:], buf[off:off+hash.Size])
	off += hash.Size

	height, off, err := getU32(buf, off)
	if err != nil {
		return nil, 0, err
	}
	agg, off, err := getAggregate(buf, off)
	if err != nil {
		return nil, 0, err
	}
	key, off, err := getBytes(buf, off)
	if err != nil {
		return nil, 0, err
	}
	return &Link{State: LinkReference, Hash: h, Height: int(height), Agg: agg, Key: key}, off, nil
}

// encodeNode serializes n for storage. Children must already be
// pruned-or-fresh links (n must have been rehashed first).
func encodeNode(n *Node) []byte {
	buf := make([]byte, 0, 128+len(n.ElementBytes))
	buf = putBytes(buf, n.Key)
	buf = putBytes(buf, n.ElementBytes)
	buf = append(buf, n.ValueHash[:]...)
	buf = append(buf, n.KVHash[:]...)
	buf = putAggregate(buf, n.Own)
	buf = encodeLinkRef(buf, n.Left)
	buf = encodeLinkRef(buf, n.Right)
	return buf
}

// decodeNode deserializes a node record previously produced by
// encodeNode. The returned node's Left/Right are LinkReference stubs
// (not yet loaded); recomputing n.Agg from Own + children is cheap
// since child aggregates are cached in the link stubs.
func decodeNode(buf []byte) (*Node, error) {
	var n Node
	var err error
	n.Key, _, err = getBytes(buf, 0)
	if err != nil {
		return nil, err
	}
	off := 4 + len(n.Key)

	n.ElementBytes, off, err = getBytes(buf, off)
	if err != nil {
		return nil, err
	}

	if off+2*hash.Size > len(buf) {
		return nil, fmt.Errorf("%w: truncated node hashes", ErrCorruption)
	}
	copy(n.ValueHash[:], buf[off:off+hash.Size])
	off += hash.Size
	copy(n.KVHash[:], buf[off:off+hash.Size])
	off += hash.Size

	n.Own, off, err = getAggregate(buf, off)
	if err != nil {
		return nil, err
	}
	n.Left, off, err = decodeLinkRef(buf, off)
	if err != nil {
		return nil, err
	}
	n.Right, _, err = decodeLinkRef(buf, off)
	if err != nil {
		return nil, err
	}
	n.recomputeAggregate()
	return &n, nil
}
