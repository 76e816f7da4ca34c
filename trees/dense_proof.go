package trees

import (
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

// DensePosValue discloses a queried position's raw stored value.
type DensePosValue struct {
	Pos   uint16
	Value []byte
}

// DensePosHash discloses a 32-byte digest at pos: either an unqueried
// on-path ancestor's own-value hash (node_value_hashes) or a pruned
// subtree's fully combined hash (node_hashes), distinguished by which
// DenseProof field it's appended to.
type DensePosHash struct {
	Pos  uint16
	Hash hash.Digest
}

// DenseProof is the wire form of a DenseFixedSizeTree proof (spec
// §4.9.2): full values for queried positions, own-value hashes for
// unqueried ancestors on the path to them, and combined hashes for
// subtrees pruned off entirely.
type DenseProof struct {
	Entries         []DensePosValue
	NodeValueHashes []DensePosHash
	NodeHashes      []DensePosHash
}

// Prove builds a proof disclosing every position in positions (spec
// §4.9.2), mirroring RootHash's own recursive hashAt structure.
func (d *Dense) Prove(positions []uint16) (DenseProof, cost.OperationCost, error) {
	onPath := map[uint16]bool{}
	queried := map[uint16]bool{}
	for _, p := range positions {
		queried[p] = true
		cur := p
		for {
			onPath[cur] = true
			if cur == 0 {
				break
			}
			cur = (cur - 1) / 2
		}
	}
	var proof DenseProof
	_, oc, err := d.proveAt(0, onPath, queried, &proof)
	return proof, oc, err
}

func (d *Dense) proveAt(pos uint16, onPath, queried map[uint16]bool, proof *DenseProof) (hash.Digest, cost.OperationCost, error) {
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
		lh, sub, err := d.proveChild(uint16(leftPos), onPath, queried, proof)
		oc.Add(sub)
		if err != nil {
			return hash.Zero, oc, err
		}
		l = lh
	}
	if rightPos < uint32(d.Capacity()) {
		rh, sub, err := d.proveChild(uint16(rightPos), onPath, queried, proof)
		oc.Add(sub)
		if err != nil {
			return hash.Zero, oc, err
		}
		r = rh
	}

	if queried[pos] {
		proof.Entries = append(proof.Entries, DensePosValue{Pos: pos, Value: raw})
	} else {
		proof.NodeValueHashes = append(proof.NodeValueHashes, DensePosHash{Pos: pos, Hash: ownHash})
	}

	combined := hash.CombineHash(ownHash, hash.CombineHash(l, r))
	oc.AddHashBlocks(hash.Blocks(2 * hash.Size))
	return combined, oc, nil
}

func (d *Dense) proveChild(pos uint16, onPath, queried map[uint16]bool, proof *DenseProof) (hash.Digest, cost.OperationCost, error) {
	if onPath[pos] {
		return d.proveAt(pos, onPath, queried, proof)
	}
	h, oc, err := d.hashAt(pos)
	if err != nil {
		return hash.Zero, oc, err
	}
	proof.NodeHashes = append(proof.NodeHashes, DensePosHash{Pos: pos, Hash: h})
	return h, oc, nil
}

// VerifyDenseProof replays proof against count/capacity and checks the
// reconstructed root against expectedRoot, returning the disclosed
// position/value pairs on success. Pure: no storage access.
func VerifyDenseProof(proof DenseProof, count, capacity uint16, expectedRoot hash.Digest) (map[uint16][]byte, bool) {
	ownHash := map[uint16]hash.Digest{}
	values := map[uint16][]byte{}
	for _, e := range proof.Entries {
		ownHash[e.Pos] = hash.Blake3(e.Value)
		values[e.Pos] = e.Value
	}
	for _, e := range proof.NodeValueHashes {
		ownHash[e.Pos] = e.Hash
	}
	combined := map[uint16]hash.Digest{}
	for _, e := range proof.NodeHashes {
		combined[e.Pos] = e.Hash
	}

	var resolve func(pos uint16) (hash.Digest, bool)
	resolve = func(pos uint16) (hash.Digest, bool) {
		if pos >= count || uint32(pos) >= uint32(capacity) {
			return hash.Zero, true
		}
		if h, ok := combined[pos]; ok {
			return h, true
		}
		own, ok := ownHash[pos]
		if !ok {
			return hash.Zero, false
		}
		l, ok := resolve(2*pos + 1)
		if !ok {
			return hash.Zero, false
		}
		r, ok := resolve(2*pos + 2)
		if !ok {
			return hash.Zero, false
		}
		return hash.CombineHash(own, hash.CombineHash(l, r)), true
	}

	root, ok := resolve(0)
	if !ok || root != expectedRoot {
		return nil, false
	}
	return values, true
}
