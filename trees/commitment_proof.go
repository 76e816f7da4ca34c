package trees

import (
	"fmt"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
)

// CommitmentTreeProofPeak is the disclosed form of one frontier peak;
// exported separately from the internal ctPeak so callers outside this
// package (the wire-layer proof package) can read and serialize it.
type CommitmentTreeProofPeak struct {
	Height uint8
	Hash   hash.Digest
}

// CommitmentTreeProof composes a BulkAppendTreeProof over the backing
// record log with a Sinsemilla sibling path per queried position, plus
// the full current frontier peak list (at most ctDepth entries, so
// disclosing it whole costs little) so a verifier can fold Anchor the
// same way CommitmentTree.Anchor does (spec §4.9.2).
type CommitmentTreeProof struct {
	BulkProof    BulkAppendTreeProof
	Peaks        []CommitmentTreeProofPeak
	SiblingPaths map[uint64][]hash.Digest
}

func ctPeaksToProof(peaks []ctPeak) []CommitmentTreeProofPeak {
	out := make([]CommitmentTreeProofPeak, len(peaks))
	for i, p := range peaks {
		out[i] = CommitmentTreeProofPeak{Height: p.height, Hash: p.hash}
	}
	return out
}

func ctPeaksFromProof(peaks []CommitmentTreeProofPeak) []ctPeak {
	out := make([]ctPeak, len(peaks))
	for i, p := range peaks {
		out[i] = ctPeak{height: p.Height, hash: p.Hash}
	}
	return out
}

// subtreeSinsemillaHash recomputes the Sinsemilla combine of the cmx
// values under [leafStart, leafStart+2^height), the same left-to-right
// fold order Insert's peak-merge uses. No per-node hash is persisted
// beyond the current frontier peaks, so a proof recomputes it live from
// raw cmx leaves, the same "recompute is cheap enough" call
// DenseFixedSizeTree already makes for its own RootHash.
func (ct *CommitmentTree) subtreeSinsemillaHash(leafStart uint64, height uint8) (hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost
	if height == 0 {
		cmx, _, _, sub, err := ct.GetValue(leafStart)
		oc.Add(sub)
		return cmx, oc, err
	}
	half := uint64(1) << (height - 1)
	l, subl, err := ct.subtreeSinsemillaHash(leafStart, height-1)
	oc.Add(subl)
	if err != nil {
		return hash.Zero, oc, err
	}
	r, subr, err := ct.subtreeSinsemillaHash(leafStart+half, height-1)
	oc.Add(subr)
	if err != nil {
		return hash.Zero, oc, err
	}
	oc.AddSinsemilla()
	return sinCombine(l, r), oc, nil
}

// Prove builds a CommitmentTreeProof for positions: full record
// disclosure via the backing BulkAppendTree, plus a per-position
// Sinsemilla sibling path up to its frontier peak's root.
func (ct *CommitmentTree) Prove(positions []uint64) (CommitmentTreeProof, cost.OperationCost, error) {
	var oc cost.OperationCost
	bulkProof, sub, err := ct.records.Prove(positions)
	oc.Add(sub)
	if err != nil {
		return CommitmentTreeProof{}, oc, err
	}

	proof := CommitmentTreeProof{
		BulkProof:    bulkProof,
		Peaks:        ctPeaksToProof(ct.peaks),
		SiblingPaths: map[uint64][]hash.Digest{},
	}

	ranges := peaksFromLeafCount(ct.Count())
	for _, pos := range positions {
		if pos >= ct.Count() {
			continue
		}
		var rng mmrPeakMeta
		found := false
		for _, r := range ranges {
			if pos >= r.leafStart && pos < r.leafStart+r.leafCount {
				rng = r
				found = true
				break
			}
		}
		if !found {
			return CommitmentTreeProof{}, oc, fmt.Errorf("trees: position %d not covered by any frontier peak", pos)
		}

		path := mmrDescendByLeaf(rng.height, pos-rng.leafStart)
		siblings := make([]hash.Digest, len(path))
		pos0, height := rng.leafStart, rng.height
		for i, wentRight := range path {
			half := uint64(1) << (height - 1)
			var siblingStart uint64
			if wentRight {
				siblingStart = pos0
				pos0 += half
			} else {
				siblingStart = pos0 + half
			}
			h, sub, err := ct.subtreeSinsemillaHash(siblingStart, height-1)
			oc.Add(sub)
			if err != nil {
				return CommitmentTreeProof{}, oc, err
			}
			siblings[i] = h
			height--
		}
		proof.SiblingPaths[pos] = siblings
	}
	return proof, oc, nil
}

// VerifyCommitmentTreeProof recomputes CombinedRoot from proof and
// compares it against expectedRoot. Pure: touches no storage.
func VerifyCommitmentTreeProof(proof CommitmentTreeProof, expectedRoot hash.Digest) bool {
	bulkRoot, ok := ReconstructBulkAppendTreeRoot(proof.BulkProof)
	if !ok {
		return false
	}

	ranges := peaksFromLeafCount(proof.BulkProof.TotalCount)
	if len(ranges) != len(proof.Peaks) {
		return false
	}

	recordByIndex := map[uint64][]byte{}
	for _, v := range proof.BulkProof.ChunkEntryValues {
		recordByIndex[v.Index] = v.Value
	}
	for _, v := range proof.BulkProof.BufferEntryValues {
		recordByIndex[v.Index] = v.Value
	}

	for pos, siblings := range proof.SiblingPaths {
		rngIdx := -1
		var rng mmrPeakMeta
		for i, r := range ranges {
			if pos >= r.leafStart && pos < r.leafStart+r.leafCount {
				rng, rngIdx = r, i
				break
			}
		}
		if rngIdx < 0 {
			return false
		}

		record, ok := recordByIndex[pos]
		if !ok || len(record) < hash.Size {
			return false
		}
		var cmx hash.Digest
		copy(cmx[:], record[:hash.Size])

		path := mmrDescendByLeaf(rng.height, pos-rng.leafStart)
		if len(siblings) != len(path) {
			return false
		}
		cur := cmx
		for i := len(path) - 1; i >= 0; i-- {
			if path[i] {
				cur = sinCombine(siblings[i], cur)
			} else {
				cur = sinCombine(cur, siblings[i])
			}
		}
		if cur != proof.Peaks[rngIdx].Hash {
			return false
		}
	}

	anchor := anchorFromPeaks(ctPeaksFromProof(proof.Peaks))
	buf := make([]byte, 0, len("ct_state")+2*hash.Size)
	buf = append(buf, "ct_state"...)
	buf = append(buf, anchor[:]...)
	buf = append(buf, bulkRoot[:]...)
	return hash.Blake3(buf) == expectedRoot
}
