package trees

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

const (
	bulkMetaKey      = byte('M')
	bulkBufferPrefix = byte('b')
	bulkChunkPrefix  = byte('e')

	chunkBlobFixed    = 0x01
	chunkBlobVariable = 0x00
)

// BulkAppend is a two-tier append-only log (spec §4.8.2): a small
// in-buffer tier of raw entries, sealed into an immutable chunk blob
// and folded into an MMR of chunk roots once the buffer fills.
// The chunk-root MMR shares this tree's data namespace under its own
// keys ('C' metadata, 'c' nodes, 'i' leaf index), which never collide
// with the buffer ('b'), chunk blobs ('e') or metadata ('M').
type BulkAppend struct {
	ctx        *storage.Context
	chunkPower uint8
	chunkSize  uint32
	totalCount uint64
	chunkMMR   *MMR
	buffer     [][]byte
}

// OpenBulkAppend loads (or starts) a BulkAppendTree with the given
// chunk_power (spec: chunk_power in 1..=16).
func OpenBulkAppend(ctx *storage.Context, chunkPower uint8) (*BulkAppend, error) {
	if chunkPower < 1 || chunkPower > 16 {
		return nil, fmt.Errorf("trees: bulk chunk_power %d out of range 1..=16", chunkPower)
	}
	// The chunk-root MMR shares this BulkAppendTree's storage context, so
	// it uses its own key prefixes ('C' metadata, 'c' nodes, 'i' leaf
	// index) distinct from the bulk tree's own 'M'/'b'/'e' keys.
	mmr, err := openMMRWithPrefix(ctx, 'C', 'c', 'i')
	if err != nil {
		return nil, err
	}
	b := &BulkAppend{
		ctx:        ctx,
		chunkPower: chunkPower,
		chunkSize:  1 << chunkPower,
		chunkMMR:   mmr,
	}

	raw, err := ctx.Get(storage.Main, []byte{bulkMetaKey})
	if err == storage.ErrNotFound {
		return b, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("trees: truncated bulk metadata")
	}
	b.totalCount = binary.BigEndian.Uint64(raw)

	bufferedCount := b.totalCount % uint64(b.chunkSize)
	b.buffer = make([][]byte, 0, bufferedCount)
	for i := uint64(0); i < bufferedCount; i++ {
		v, err := ctx.Get(storage.Main, bufferEntryKey(uint32(i)))
		if err != nil {
			return nil, err
		}
		b.buffer = append(b.buffer, v)
	}
	return b, nil
}

// TotalCount returns the number of values appended.
func (b *BulkAppend) TotalCount() uint64 { return b.totalCount }

// ChunkCount returns how many chunks have been sealed.
func (b *BulkAppend) ChunkCount() uint64 { return b.chunkMMR.LeafCount() }

// BufferLen returns how many entries sit in the unsealed buffer.
func (b *BulkAppend) BufferLen() int { return len(b.buffer) }

// Append writes v into the buffer, sealing a chunk when it fills.
func (b *BulkAppend) Append(v []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	var oc cost.OperationCost
	index := b.totalCount
	bufPos := uint32(len(b.buffer))

	if err := b.ctx.Put(storage.Main, bufferEntryKey(bufPos), v); err != nil {
		return hash.Zero, 0, oc, err
	}
	b.buffer = append(b.buffer, v)
	b.totalCount++
	oc.Storage.AddedBytes += uint64(len(v))

	if uint32(len(b.buffer)) == b.chunkSize {
		sub, err := b.sealChunk()
		oc.Add(sub)
		if err != nil {
			return hash.Zero, 0, oc, err
		}
	}

	if err := b.saveMeta(); err != nil {
		return hash.Zero, 0, oc, err
	}
	return b.StateRoot(), index, oc, nil
}

// sealChunk hashes the full buffer, appends the chunk root to the
// chunk MMR, persists the chunk blob, and clears the buffer.
func (b *BulkAppend) sealChunk() (cost.OperationCost, error) {
	var oc cost.OperationCost
	denseRoot := denseConcatRoot(b.buffer)
	oc.AddHashBlocks(hash.Blocks(hash.Size * len(b.buffer)))

	_, _, sub, err := b.chunkMMR.Append(denseRoot.Bytes())
	oc.Add(sub)
	if err != nil {
		return oc, err
	}

	chunkIdx := b.chunkMMR.LeafCount() - 1
	blob := encodeChunkBlob(b.buffer)
	if err := b.ctx.Put(storage.Main, chunkBlobKey(chunkIdx), blob); err != nil {
		return oc, err
	}
	oc.Storage.AddedBytes += uint64(len(blob))

	for i := range b.buffer {
		if err := b.ctx.Delete(storage.Main, bufferEntryKey(uint32(i))); err != nil {
			return oc, err
		}
	}
	b.buffer = b.buffer[:0]
	return oc, nil
}

// denseConcatRoot computes Blake3(H(e_0) || ... || H(e_{n-1})), the
// buffer's root per spec §4.8.2 — a flat concatenation hash, distinct
// from DenseFixedSizeTree's recursive complete-binary-tree hash (see
// the design notes for why the buffer isn't a literal Dense instance).
func denseConcatRoot(entries [][]byte) hash.Digest {
	if len(entries) == 0 {
		return hash.Zero
	}
	buf := make([]byte, 0, hash.Size*len(entries))
	for _, e := range entries {
		h := hash.Blake3(e)
		buf = append(buf, h[:]...)
	}
	return hash.Blake3(buf)
}

// StateRoot is the child hash fed to the parent Merk (spec §4.8.2).
func (b *BulkAppend) StateRoot() hash.Digest {
	mmrRoot := b.chunkMMR.RootHash()
	bufRoot := denseConcatRoot(b.buffer)
	buf := make([]byte, 0, len("bulk_state")+2*hash.Size)
	buf = append(buf, "bulk_state"...)
	buf = append(buf, mmrRoot[:]...)
	buf = append(buf, bufRoot[:]...)
	return hash.Blake3(buf)
}

// GetValue returns the raw bytes appended at index, whether still
// buffered or sealed into a chunk blob.
func (b *BulkAppend) GetValue(index uint64) ([]byte, cost.OperationCost, error) {
	var oc cost.OperationCost
	if index >= b.totalCount {
		return nil, oc, storage.ErrNotFound
	}
	chunkIdx := index / uint64(b.chunkSize)
	offset := index % uint64(b.chunkSize)

	if chunkIdx == b.chunkMMR.LeafCount() {
		if int(offset) >= len(b.buffer) {
			return nil, oc, storage.ErrNotFound
		}
		return b.buffer[offset], oc, nil
	}

	raw, err := b.ctx.Get(storage.Main, chunkBlobKey(chunkIdx))
	oc.AddSeek(len(raw))
	if err != nil {
		return nil, oc, err
	}
	entries, err := decodeChunkBlob(raw)
	if err != nil {
		return nil, oc, err
	}
	if int(offset) >= len(entries) {
		return nil, oc, storage.ErrNotFound
	}
	return entries[offset], oc, nil
}

func bufferEntryKey(pos uint32) []byte {
	key := make([]byte, 5)
	key[0] = bulkBufferPrefix
	binary.BigEndian.PutUint32(key[1:], pos)
	return key
}

func chunkBlobKey(idx uint64) []byte {
	key := make([]byte, 9)
	key[0] = bulkChunkPrefix
	binary.BigEndian.PutUint64(key[1:], idx)
	return key
}

func (b *BulkAppend) saveMeta() error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b.totalCount)
	return b.ctx.Put(storage.Main, []byte{bulkMetaKey}, buf[:])
}

// encodeChunkBlob auto-selects fixed or variable form (spec §4.8.2).
func encodeChunkBlob(entries [][]byte) []byte {
	fixed := len(entries) > 0
	if fixed {
		for _, e := range entries[1:] {
			if len(e) != len(entries[0]) {
				fixed = false
				break
			}
		}
	}
	if fixed {
		entrySize := 0
		if len(entries) > 0 {
			entrySize = len(entries[0])
		}
		buf := make([]byte, 0, 9+len(entries)*entrySize)
		buf = append(buf, chunkBlobFixed)
		var u32 [4]byte
		binary.BigEndian.PutUint32(u32[:], uint32(len(entries)))
		buf = append(buf, u32[:]...)
		binary.BigEndian.PutUint32(u32[:], uint32(entrySize))
		buf = append(buf, u32[:]...)
		for _, e := range entries {
			buf = append(buf, e...)
		}
		return buf
	}
	buf := []byte{chunkBlobVariable}
	var u32 [4]byte
	for _, e := range entries {
		binary.BigEndian.PutUint32(u32[:], uint32(len(e)))
		buf = append(buf, u32[:]...)
		buf = append(buf, e...)
	}
	return buf
}

func decodeChunkBlob(buf []byte) ([][]byte, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("trees: empty chunk blob")
	}
	switch buf[0] {
	case chunkBlobFixed:
		if len(buf) < 9 {
			return nil, fmt.Errorf("trees: truncated fixed chunk blob header")
		}
		count := binary.BigEndian.Uint32(buf[1:5])
		entrySize := binary.BigEndian.Uint32(buf[5:9])
		want := 9 + int(count)*int(entrySize)
		if len(buf) != want {
			return nil, fmt.Errorf("trees: fixed chunk blob length mismatch: got %d want %d", len(buf), want)
		}
		entries := make([][]byte, count)
		off := 9
		for i := range entries {
			entries[i] = buf[off : off+int(entrySize)]
			off += int(entrySize)
		}
		return entries, nil
	case chunkBlobVariable:
		off := 1
		var entries [][]byte
		for off < len(buf) {
			if off+4 > len(buf) {
				return nil, fmt.Errorf("trees: truncated variable chunk blob length")
			}
			n := binary.BigEndian.Uint32(buf[off : off+4])
			off += 4
			if off+int(n) > len(buf) {
				return nil, fmt.Errorf("trees: truncated variable chunk blob entry")
			}
			entries = append(entries, buf[off:off+int(n)])
			off += int(n)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("trees: unknown chunk blob flag %#x", buf[0])
	}
}
