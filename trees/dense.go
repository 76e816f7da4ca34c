package trees

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

const (
	denseMetaKey    = byte('D')
	denseNodePrefix = byte('d')

	// DenseMaxHeight is the largest height a DenseFixedSizeTree may be
	// opened with (spec §4.8.3: h in 1..=16).
	DenseMaxHeight = 16
)

// Dense is a fixed-height complete binary tree, BFS-indexed, whose root
// hash recomputes bottom-up from stored values on every read (spec
// §4.8.3). It never rebalances and never shrinks: height is fixed at
// creation and capacity is 2^height-1 positions.
type Dense struct {
	ctx    *storage.Context
	height uint8
	count  uint16
}

// OpenDense loads (or starts) a DenseFixedSizeTree of the given height.
// height is only consulted when no prior metadata exists; once created,
// the persisted height is authoritative even if the caller passes a
// different value, since shrinking or growing a fixed tree isn't a
// meaningful operation.
func OpenDense(ctx *storage.Context, height uint8) (*Dense, error) {
	if height < 1 || height > DenseMaxHeight {
		return nil, fmt.Errorf("trees: dense height %d out of range 1..=%d", height, DenseMaxHeight)
	}
	raw, err := ctx.Get(storage.Main, []byte{denseMetaKey})
	if err == storage.ErrNotFound {
		return &Dense{ctx: ctx, height: height}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) < 3 {
		return nil, fmt.Errorf("trees: truncated dense metadata")
	}
	return &Dense{ctx: ctx, height: raw[0], count: binary.BigEndian.Uint16(raw[1:3])}, nil
}

// Capacity returns 2^height - 1, the number of addressable positions.
func (d *Dense) Capacity() uint16 { return uint16(1<<d.height) - 1 }

// Count returns how many positions are filled.
func (d *Dense) Count() uint16 { return d.count }

// Insert appends v at the next free position.
func (d *Dense) Insert(v []byte) (uint16, cost.OperationCost, error) {
	var oc cost.OperationCost
	if d.count >= d.Capacity() {
		return 0, oc, ErrCapacityExceeded
	}
	pos := d.count
	if err := d.ctx.Put(storage.Main, densePosKey(pos), v); err != nil {
		return 0, oc, err
	}
	d.count++
	if err := d.saveMeta(); err != nil {
		return 0, oc, err
	}
	oc.Storage.AddedBytes += uint64(len(v))
	return pos, oc, nil
}

// Get returns the raw value at pos.
func (d *Dense) Get(pos uint16) ([]byte, cost.OperationCost, error) {
	var oc cost.OperationCost
	if pos >= d.count {
		return nil, oc, storage.ErrNotFound
	}
	raw, err := d.ctx.Get(storage.Main, densePosKey(pos))
	oc.AddSeek(len(raw))
	return raw, oc, err
}

// RootHash recomputes the tree hash bottom-up from position 0 (spec
// §4.8.3: O(n) Blake3 calls, acceptable up to 65,535 positions).
func (d *Dense) RootHash() (hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost
	h, sub, err := d.hashAt(0)
	oc.Add(sub)
	return h, oc, err
}

func (d *Dense) hashAt(pos uint16) (hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost
	if pos >= d.count || uint32(pos) >= uint32(d.Capacity()) {
		return hash.Zero, oc, nil
	}
	raw, err := d.ctx.Get(storage.Main, densePosKey(pos))
	oc.AddSeek(len(raw))
	if err != nil {
		return hash.Zero, oc, err
	}
	ownHash := hash.Blake3(raw)
	oc.AddHashBlocks(hash.Blocks(len(raw)))

	leftPos := uint32(2*pos + 1)
	rightPos := uint32(2*pos + 2)
	var l, r hash.Digest
	if leftPos < uint32(d.Capacity()) {
		lv, sub, err := d.hashAt(uint16(leftPos))
		oc.Add(sub)
		if err != nil {
			return hash.Zero, oc, err
		}
		l = lv
	}
	if rightPos < uint32(d.Capacity()) {
		rv, sub, err := d.hashAt(uint16(rightPos))
		oc.Add(sub)
		if err != nil {
			return hash.Zero, oc, err
		}
		r = rv
	}

	combined := hash.CombineHash(ownHash, hash.CombineHash(l, r))
	oc.AddHashBlocks(hash.Blocks(2 * hash.Size))
	return combined, oc, nil
}

func densePosKey(pos uint16) []byte {
	key := make([]byte, 3)
	key[0] = denseNodePrefix
	binary.BigEndian.PutUint16(key[1:], pos)
	return key
}

func (d *Dense) saveMeta() error {
	buf := make([]byte, 3)
	buf[0] = d.height
	binary.BigEndian.PutUint16(buf[1:], d.count)
	return d.ctx.Put(storage.Main, []byte{denseMetaKey}, buf)
}
