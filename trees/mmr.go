// Package trees implements GroveDB's four non-Merk specialized trees
// (spec §4.8): MMR, BulkAppendTree, DenseFixedSizeTree and
// CommitmentTree. Each stores its data under the owning subtree's path
// prefix in the storage main namespace (with single-byte sub-prefixes
// segregating its own keys) and produces a type-specific 32-byte root
// that the grove layer feeds upward as a Merk child hash, the same way
// merkle.Builder computes a Bitcoin merkle root that a caller folds
// into something else.
package trees

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

// MMR sub-prefixes within the main namespace (spec §4.8.1/§6).
const (
	mmrMetaKey    = byte('M')
	mmrNodePrefix = byte('m')
)

const (
	mmrNodeTagInternal = 0
	mmrNodeTagLeaf     = 1

	// mmrMaxSelectedIndices caps proof generation (spec §4.8.1).
	mmrMaxSelectedIndices = 10_000_000
)

type peak struct {
	height   uint8
	position uint64
	hash     hash.Digest
}

// MMR is an append-only Merkle Mountain Range (spec §4.8.1).
type MMR struct {
	ctx        *storage.Context
	metaKey    byte
	nodePrefix byte
	leafIdxTag byte
	leafCount  uint64
	size       uint64
	peaks      []peak
}

// OpenMMR loads an MMR's metadata (peak list, leaf count, size) from
// ctx under the standard 'M'/'m' keys, or returns an empty MMR if none
// has been written yet. Use this for a standalone MmrTree element.
func OpenMMR(ctx *storage.Context) (*MMR, error) {
	return openMMRWithPrefix(ctx, mmrMetaKey, mmrNodePrefix, 'l')
}

// openMMRWithPrefix is used by BulkAppend to embed a chunk-root MMR in
// the same storage context as its own buffer/blob/metadata keys,
// under a distinct key prefix pair so the two don't collide.
func openMMRWithPrefix(ctx *storage.Context, metaKey, nodePrefix, leafIdxTag byte) (*MMR, error) {
	raw, err := ctx.Get(storage.Main, []byte{metaKey})
	if err == storage.ErrNotFound {
		return &MMR{ctx: ctx, metaKey: metaKey, nodePrefix: nodePrefix, leafIdxTag: leafIdxTag}, nil
	}
	if err != nil {
		return nil, err
	}
	m := &MMR{ctx: ctx, metaKey: metaKey, nodePrefix: nodePrefix, leafIdxTag: leafIdxTag}
	if err := m.decodeMeta(raw); err != nil {
		return nil, err
	}
	return m, nil
}

// LeafCount returns the number of leaves appended so far.
func (m *MMR) LeafCount() uint64 { return m.leafCount }

// Size returns mmr_size = 2*leaf_count - popcount(leaf_count).
func (m *MMR) Size() uint64 { return m.size }

// RootHash bags the current peaks right-to-left (spec §4.8.1), or
// returns hash.Zero for an empty MMR.
func (m *MMR) RootHash() hash.Digest {
	if len(m.peaks) == 0 {
		return hash.Zero
	}
	acc := m.peaks[len(m.peaks)-1].hash
	for i := len(m.peaks) - 2; i >= 0; i-- {
		acc = hash.CombineHash(m.peaks[i].hash, acc)
	}
	return acc
}

// Append adds v as a new leaf, merging completed peak pairs, and
// persists every touched node plus refreshed metadata.
func (m *MMR) Append(v []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	var oc cost.OperationCost
	leafIndex := m.leafCount
	leafPos := m.size

	leafHash := hash.ValueHash(v)
	oc.AddHashBlocks(hash.Blocks(len(v)))

	if err := m.putNode(leafPos, mmrNodeTagLeaf, leafHash, v); err != nil {
		return hash.Zero, 0, oc, err
	}
	m.size++

	cur := peak{height: 0, position: leafPos, hash: leafHash}
	for len(m.peaks) > 0 && m.peaks[len(m.peaks)-1].height == cur.height {
		left := m.peaks[len(m.peaks)-1]
		m.peaks = m.peaks[:len(m.peaks)-1]

		parentHash := hash.CombineHash(left.hash, cur.hash)
		oc.AddHashBlocks(hash.Blocks(2 * hash.Size))
		parentPos := m.size
		if err := m.putNode(parentPos, mmrNodeTagInternal, parentHash, nil); err != nil {
			return hash.Zero, 0, oc, err
		}
		m.size++
		cur = peak{height: left.height + 1, position: parentPos, hash: parentHash}
	}
	m.peaks = append(m.peaks, cur)
	m.leafCount++

	if err := m.putLeafIndex(leafIndex, leafPos); err != nil {
		return hash.Zero, 0, oc, err
	}
	if err := m.saveMeta(); err != nil {
		return hash.Zero, 0, oc, err
	}

	oc.Storage.AddedBytes += uint64(len(v)) + hash.Size
	return m.RootHash(), leafIndex, oc, nil
}

// GetValue returns the raw bytes appended at leafIndex.
func (m *MMR) GetValue(leafIndex uint64) ([]byte, cost.OperationCost, error) {
	var oc cost.OperationCost
	if leafIndex >= m.leafCount {
		return nil, oc, storage.ErrNotFound
	}
	posRaw, err := m.ctx.Get(storage.Main, m.leafIndexKey(leafIndex))
	oc.AddSeek(len(posRaw))
	if err != nil {
		return nil, oc, err
	}
	pos := binary.BigEndian.Uint64(posRaw)

	raw, err := m.ctx.Get(storage.Main, m.nodeKey(pos))
	oc.AddSeek(len(raw))
	if err != nil {
		return nil, oc, err
	}
	tag, _, value, err := decodeMMRNode(raw)
	if err != nil {
		return nil, oc, err
	}
	if tag != mmrNodeTagLeaf {
		return nil, oc, fmt.Errorf("%w: position %d is not a leaf", ErrCapacityExceeded, pos)
	}
	return value, oc, nil
}

func (m *MMR) nodeKey(pos uint64) []byte {
	key := make([]byte, 9)
	key[0] = m.nodePrefix
	binary.BigEndian.PutUint64(key[1:], pos)
	return key
}

func (m *MMR) leafIndexKey(idx uint64) []byte {
	key := make([]byte, 9)
	key[0] = m.leafIdxTag
	binary.BigEndian.PutUint64(key[1:], idx)
	return key
}

func (m *MMR) putNode(pos uint64, tag uint8, h hash.Digest, leafValue []byte) error {
	return m.ctx.Put(storage.Main, m.nodeKey(pos), encodeMMRNode(tag, h, leafValue))
}

func (m *MMR) putLeafIndex(idx, pos uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], pos)
	return m.ctx.Put(storage.Main, m.leafIndexKey(idx), buf[:])
}

// encodeMMRNode is the bit-exact wire format from spec §6:
// tag:u8 || hash[32] for internal, tag:u8 || hash[32] || len:u32_be || bytes for leaf.
func encodeMMRNode(tag uint8, h hash.Digest, leafValue []byte) []byte {
	if tag == mmrNodeTagInternal {
		buf := make([]byte, 1+hash.Size)
		buf[0] = tag
		copy(buf[1:], h[:])
		return buf
	}
	buf := make([]byte, 1+hash.Size+4+len(leafValue))
	buf[0] = tag
	copy(buf[1:1+hash.Size], h[:])
	binary.BigEndian.PutUint32(buf[1+hash.Size:], uint32(len(leafValue)))
	copy(buf[1+hash.Size+4:], leafValue)
	return buf
}

func decodeMMRNode(buf []byte) (tag uint8, h hash.Digest, value []byte, err error) {
	if len(buf) < 1+hash.Size {
		return 0, h, nil, fmt.Errorf("trees: truncated mmr node")
	}
	tag = buf[0]
	copy(h[:], buf[1:1+hash.Size])
	if tag == mmrNodeTagInternal {
		return tag, h, nil, nil
	}
	rest := buf[1+hash.Size:]
	if len(rest) < 4 {
		return 0, h, nil, fmt.Errorf("trees: truncated mmr leaf length")
	}
	n := binary.BigEndian.Uint32(rest)
	if len(rest) < 4+int(n) {
		return 0, h, nil, fmt.Errorf("trees: truncated mmr leaf value")
	}
	return tag, h, rest[4 : 4+n], nil
}

// metadata record (not bit-exact pinned by spec §6, only the node
// format is): leaf_count u64, mmr_size u64, peak_count u8, repeated
// {height u8, position u64, hash 32B}.
func (m *MMR) saveMeta() error {
	return m.ctx.Put(storage.Main, []byte{m.metaKey}, m.encodeMeta())
}

func (m *MMR) encodeMeta() []byte {
	buf := make([]byte, 0, 17+len(m.peaks)*(1+8+hash.Size))
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], m.leafCount)
	buf = append(buf, u64[:]...)
	binary.BigEndian.PutUint64(u64[:], m.size)
	buf = append(buf, u64[:]...)
	buf = append(buf, uint8(len(m.peaks)))
	for _, p := range m.peaks {
		buf = append(buf, p.height)
		binary.BigEndian.PutUint64(u64[:], p.position)
		buf = append(buf, u64[:]...)
		buf = append(buf, p.hash[:]...)
	}
	return buf
}

func (m *MMR) decodeMeta(buf []byte) error {
	if len(buf) < 17 {
		return fmt.Errorf("trees: truncated mmr metadata")
	}
	m.leafCount = binary.BigEndian.Uint64(buf[0:8])
	m.size = binary.BigEndian.Uint64(buf[8:16])
	count := int(buf[16])
	off := 17
	m.peaks = make([]peak, 0, count)
	for i := 0; i < count; i++ {
		if off+1+8+hash.Size > len(buf) {
			return fmt.Errorf("trees: truncated mmr peak %d", i)
		}
		p := peak{height: buf[off]}
		off++
		p.position = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
		copy(p.hash[:], buf[off:off+hash.Size])
		off += hash.Size
		m.peaks = append(m.peaks, p)
	}
	return nil
}
