package trees

import (
	"sort"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

// BulkEntryValue discloses a queried entry's full raw value.
type BulkEntryValue struct {
	Index uint64
	Value []byte
}

// BulkEntryHash discloses an unqueried entry's value hash, the minimum
// needed to fold it into its chunk's or the buffer's concat root.
type BulkEntryHash struct {
	Index uint64
	Hash  hash.Digest
}

// BulkAppendTreeProof is the wire form of a BulkAppendTree proof (spec
// §4.9.2): the chunk-root MMR's own inclusion proof for every sealed
// chunk a queried index falls in, full-or-hash-only disclosure of
// every entry in those chunks (bounded by 2^chunk_power per chunk),
// and the same full-or-hash-only split over the live buffer.
type BulkAppendTreeProof struct {
	TotalCount uint64
	ChunkPower uint8
	MMRProof   MMRProof

	ChunkEntryValues []BulkEntryValue
	ChunkEntryHashes []BulkEntryHash

	BufferEntryValues []BulkEntryValue
	BufferEntryHashes []BulkEntryHash
}

// Prove builds a BulkAppendTreeProof disclosing every index in
// indices, per spec §4.9.2.
func (b *BulkAppend) Prove(indices []uint64) (BulkAppendTreeProof, cost.OperationCost, error) {
	var oc cost.OperationCost
	proof := BulkAppendTreeProof{TotalCount: b.totalCount, ChunkPower: b.chunkPower}

	queried := make(map[uint64]bool, len(indices))
	touchedChunks := map[uint64]bool{}
	bufferQueried := map[uint32]bool{}
	chunkCount := b.chunkMMR.LeafCount()

	for _, idx := range indices {
		if idx >= b.totalCount {
			continue
		}
		queried[idx] = true
		chunkIdx := idx / uint64(b.chunkSize)
		if chunkIdx == chunkCount {
			bufferQueried[uint32(idx%uint64(b.chunkSize))] = true
		} else {
			touchedChunks[chunkIdx] = true
		}
	}

	for i, v := range b.buffer {
		idx := uint32(i)
		if bufferQueried[idx] {
			proof.BufferEntryValues = append(proof.BufferEntryValues, BulkEntryValue{Index: uint64(i), Value: v})
		} else {
			proof.BufferEntryHashes = append(proof.BufferEntryHashes, BulkEntryHash{Index: uint64(i), Hash: hash.Blake3(v)})
		}
	}

	var chunkIndices []uint64
	for c := range touchedChunks {
		chunkIndices = append(chunkIndices, c)
	}
	sort.Slice(chunkIndices, func(i, j int) bool { return chunkIndices[i] < chunkIndices[j] })

	for _, chunkIdx := range chunkIndices {
		raw, err := b.ctx.Get(storage.Main, chunkBlobKey(chunkIdx))
		oc.AddSeek(len(raw))
		if err != nil {
			return BulkAppendTreeProof{}, oc, err
		}
		entries, err := decodeChunkBlob(raw)
		if err != nil {
			return BulkAppendTreeProof{}, oc, err
		}
		base := chunkIdx * uint64(b.chunkSize)
		for i, v := range entries {
			globalIdx := base + uint64(i)
			if queried[globalIdx] {
				proof.ChunkEntryValues = append(proof.ChunkEntryValues, BulkEntryValue{Index: globalIdx, Value: v})
			} else {
				proof.ChunkEntryHashes = append(proof.ChunkEntryHashes, BulkEntryHash{Index: globalIdx, Hash: hash.Blake3(v)})
			}
		}
	}

	mmrProof, sub, err := b.chunkMMR.Prove(chunkIndices)
	oc.Add(sub)
	if err != nil {
		return BulkAppendTreeProof{}, oc, err
	}
	proof.MMRProof = mmrProof
	return proof, oc, nil
}

// concatRootFromDisclosure rebuilds Blake3(H(e0)||...||H(en-1)) for a
// run of n entries indexed base..base+n-1, given full values for
// queried ones and bare hashes for the rest. Fails if any index in the
// run is missing from both disclosure sets.
func concatRootFromDisclosure(base, n uint64, values []BulkEntryValue, hashes []BulkEntryHash) (hash.Digest, bool) {
	if n == 0 {
		return hash.Zero, true
	}
	known := make([]hash.Digest, n)
	have := make([]bool, n)
	for _, v := range values {
		if v.Index < base || v.Index >= base+n {
			continue
		}
		known[v.Index-base] = hash.Blake3(v.Value)
		have[v.Index-base] = true
	}
	for _, h := range hashes {
		if h.Index < base || h.Index >= base+n {
			continue
		}
		known[h.Index-base] = h.Hash
		have[h.Index-base] = true
	}
	buf := make([]byte, 0, hash.Size*int(n))
	for i := uint64(0); i < n; i++ {
		if !have[i] {
			return hash.Zero, false
		}
		buf = append(buf, known[i][:]...)
	}
	return hash.Blake3(buf), true
}

// ReconstructBulkAppendTreeRoot recomputes BulkAppend.StateRoot from
// proof, without comparing against any expected value. Pure: touches
// no storage.
func ReconstructBulkAppendTreeRoot(proof BulkAppendTreeProof) (hash.Digest, bool) {
	chunkSize := uint64(1) << proof.ChunkPower
	chunkCount := proof.MMRProof.LeafCount
	bufferLen := proof.TotalCount - chunkCount*chunkSize

	bufRoot, ok := concatRootFromDisclosure(0, bufferLen, proof.BufferEntryValues, proof.BufferEntryHashes)
	if !ok {
		return hash.Zero, false
	}

	touchedChunks := map[uint64]bool{}
	for _, v := range proof.ChunkEntryValues {
		touchedChunks[v.Index/chunkSize] = true
	}
	for _, h := range proof.ChunkEntryHashes {
		touchedChunks[h.Index/chunkSize] = true
	}
	chunkRoots := make(map[uint64]hash.Digest, len(touchedChunks))
	for c := range touchedChunks {
		root, ok := concatRootFromDisclosure(c*chunkSize, chunkSize, proof.ChunkEntryValues, proof.ChunkEntryHashes)
		if !ok {
			return hash.Zero, false
		}
		chunkRoots[c] = root
	}

	mmrRoot, ok := ReconstructMMRRoot(proof.MMRProof)
	if !ok {
		return hash.Zero, false
	}
	for _, leaf := range proof.MMRProof.Leaves {
		root, ok := chunkRoots[leaf.LeafIndex]
		if !ok {
			return hash.Zero, false
		}
		want, ok := hash.FromBytes(leaf.Value)
		if !ok || root != want {
			return hash.Zero, false
		}
	}

	buf := make([]byte, 0, len("bulk_state")+2*hash.Size)
	buf = append(buf, "bulk_state"...)
	buf = append(buf, mmrRoot[:]...)
	buf = append(buf, bufRoot[:]...)
	return hash.Blake3(buf), true
}

// VerifyBulkAppendTreeProof recomputes BulkAppend.StateRoot from proof
// and compares it against expectedRoot. Pure: touches no storage.
func VerifyBulkAppendTreeProof(proof BulkAppendTreeProof, expectedRoot hash.Digest) bool {
	root, ok := ReconstructBulkAppendTreeRoot(proof)
	return ok && root == expectedRoot
}
