package trees

import (
	"fmt"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

// MMRLeafEntry is one disclosed leaf in an MMR proof.
type MMRLeafEntry struct {
	LeafIndex uint64
	Value     []byte
}

// MMRProof is the wire form of an MMR inclusion proof (spec §4.9.2).
// LeafCount augments the spec's literal {mmr_size, proof_items,
// leaves} sketch: the peak decomposition this package's Prove/Verify
// pair shares is most directly computed from leaf_count (each set bit
// is one peak), so it's carried explicitly rather than re-derived from
// mmr_size by a separate inversion of the size formula.
type MMRProof struct {
	MmrSize    uint64
	LeafCount  uint64
	ProofItems []hash.Digest
	Leaves     []MMRLeafEntry
}

type mmrPeakMeta struct {
	position  uint64
	height    uint8
	leafStart uint64
	leafCount uint64
}

// peaksFromLeafCount decomposes leafCount into its peaks (spec
// §4.8.1): each set bit of leafCount, from the high end, is one peak
// of height = bit position holding 2^height leaves. Shared verbatim by
// Prove and VerifyMMRProof so the two can never disagree about shape.
func peaksFromLeafCount(leafCount uint64) []mmrPeakMeta {
	var peaks []mmrPeakMeta
	var leafOffset, posOffset uint64
	for h := 63; h >= 0; h-- {
		bit := uint64(1) << uint(h)
		if leafCount&bit == 0 {
			continue
		}
		size := (uint64(1) << uint(h+1)) - 1
		pos := posOffset + size - 1
		peaks = append(peaks, mmrPeakMeta{position: pos, height: uint8(h), leafStart: leafOffset, leafCount: bit})
		leafOffset += bit
		posOffset += size
	}
	return peaks
}

// mmrDescendByLeaf walks from a peak of the given height to the
// leafOffset-th leaf under it (0-indexed), returning top-down which
// side holds the leaf at each level (true = right). Pure leaf-index
// arithmetic: neither side needs a byte position to agree on shape.
func mmrDescendByLeaf(height uint8, leafOffset uint64) []bool {
	path := make([]bool, 0, height)
	for h := height; h > 0; h-- {
		half := uint64(1) << (h - 1)
		if leafOffset < half {
			path = append(path, false)
		} else {
			path = append(path, true)
			leafOffset -= half
		}
	}
	return path
}

func (m *MMR) nodeHashAt(pos uint64) (hash.Digest, error) {
	raw, err := m.ctx.Get(storage.Main, m.nodeKey(pos))
	if err != nil {
		return hash.Zero, err
	}
	_, h, _, err := decodeMMRNode(raw)
	return h, err
}

// Prove builds an inclusion proof for leafIndices (spec §4.9.2),
// capped at mmrMaxSelectedIndices leaves.
func (m *MMR) Prove(leafIndices []uint64) (MMRProof, cost.OperationCost, error) {
	var oc cost.OperationCost
	if len(leafIndices) > mmrMaxSelectedIndices {
		return MMRProof{}, oc, fmt.Errorf("%w: %d leaves requested", ErrCapacityExceeded, len(leafIndices))
	}
	sorted := append([]uint64(nil), leafIndices...)
	sortUint64s(sorted)

	proof := MMRProof{MmrSize: m.size, LeafCount: m.leafCount}
	peaks := peaksFromLeafCount(m.leafCount)

	i := 0
	for _, peak := range peaks {
		var inPeak []uint64
		for i < len(sorted) && sorted[i] < peak.leafStart+peak.leafCount {
			inPeak = append(inPeak, sorted[i])
			i++
		}
		if len(inPeak) == 0 {
			h, err := m.nodeHashAt(peak.position)
			if err != nil {
				return MMRProof{}, oc, err
			}
			proof.ProofItems = append(proof.ProofItems, h)
			continue
		}
		for _, idx := range inPeak {
			value, sub, err := m.GetValue(idx)
			oc.Add(sub)
			if err != nil {
				return MMRProof{}, oc, err
			}
			proof.Leaves = append(proof.Leaves, MMRLeafEntry{LeafIndex: idx, Value: value})

			localOffset := idx - peak.leafStart
			path := mmrDescendByLeaf(peak.height, localOffset)
			pos, height := peak.position, peak.height
			for _, wentRight := range path {
				leftPos := pos - (uint64(1) << height)
				rightPos := pos - 1
				var siblingPos uint64
				if wentRight {
					siblingPos = leftPos
					pos = rightPos
				} else {
					siblingPos = rightPos
					pos = leftPos
				}
				height--
				h, err := m.nodeHashAt(siblingPos)
				if err != nil {
					return MMRProof{}, oc, err
				}
				proof.ProofItems = append(proof.ProofItems, h)
			}
		}
	}
	return proof, oc, nil
}

// ReconstructMMRRoot replays proof's sibling/peak hashes against its
// disclosed leaves and returns the root it implies, without comparing
// against any expected value. Pure: touches no storage.
func ReconstructMMRRoot(proof MMRProof) (hash.Digest, bool) {
	peaks := peaksFromLeafCount(proof.LeafCount)
	if len(peaks) == 0 {
		if len(proof.Leaves) != 0 {
			return hash.Zero, false
		}
		return hash.Zero, true
	}

	items := proof.ProofItems
	take := func() (hash.Digest, bool) {
		if len(items) == 0 {
			return hash.Zero, false
		}
		h := items[0]
		items = items[1:]
		return h, true
	}

	leafIdx := 0
	peakHashes := make([]hash.Digest, len(peaks))
	for pi, peak := range peaks {
		var inPeak []MMRLeafEntry
		for leafIdx < len(proof.Leaves) && proof.Leaves[leafIdx].LeafIndex < peak.leafStart+peak.leafCount {
			inPeak = append(inPeak, proof.Leaves[leafIdx])
			leafIdx++
		}
		if len(inPeak) == 0 {
			h, ok := take()
			if !ok {
				return hash.Zero, false
			}
			peakHashes[pi] = h
			continue
		}
		// Only single-leaf-per-peak paths are folded independently here;
		// multiple queried leaves under one peak each consume their own
		// full sibling path (no shared-prefix compression), so they can
		// be verified one at a time and must all agree on the peak hash.
		var lastHash hash.Digest
		for li, leaf := range inPeak {
			localOffset := leaf.LeafIndex - peak.leafStart
			path := mmrDescendByLeaf(peak.height, localOffset)
			siblings := make([]hash.Digest, len(path))
			for i := range path {
				h, ok := take()
				if !ok {
					return hash.Zero, false
				}
				siblings[i] = h
			}
			cur := hash.ValueHash(leaf.Value)
			for i := len(path) - 1; i >= 0; i-- {
				if path[i] {
					cur = hash.CombineHash(siblings[i], cur)
				} else {
					cur = hash.CombineHash(cur, siblings[i])
				}
			}
			if li > 0 && cur != lastHash {
				return hash.Zero, false
			}
			lastHash = cur
		}
		peakHashes[pi] = lastHash
	}

	root := peakHashes[len(peakHashes)-1]
	for i := len(peakHashes) - 2; i >= 0; i-- {
		root = hash.CombineHash(peakHashes[i], root)
	}
	return root, true
}

// VerifyMMRProof reconstructs proof's root and compares it against
// expectedRoot, returning the disclosed leaves on success.
func VerifyMMRProof(proof MMRProof, expectedRoot hash.Digest) ([]MMRLeafEntry, bool) {
	root, ok := ReconstructMMRRoot(proof)
	if !ok || root != expectedRoot {
		return nil, false
	}
	return proof.Leaves, true
}

func sortUint64s(s []uint64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
