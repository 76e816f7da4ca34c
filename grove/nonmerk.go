package grove

import (
	"fmt"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/trees"
)

// loadNonMerkElement opens the Merk at path (with its own correct
// feature, since the caller is about to mutate it) and returns the
// element stored at key, asserting it carries wantTag.
func (g *Grove) loadNonMerkElement(path Path, key []byte, wantTag element.Tag) (*avl.Tree, element.Element, cost.OperationCost, error) {
	var oc cost.OperationCost
	feature, sub, err := g.featureForPath(path)
	oc.Add(sub)
	if err != nil {
		return nil, element.Element{}, oc, err
	}
	t, sub, err := avl.Open(g.ctxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return nil, element.Element{}, oc, err
	}
	e, sub, err := t.Get(key)
	oc.Add(sub)
	if err != nil {
		return nil, element.Element{}, oc, err
	}
	if e.Tag != wantTag {
		return nil, element.Element{}, oc, fmt.Errorf("%w: want %s at key, got %s", ErrWrongElementKind, wantTag, e.Tag)
	}
	return t, e, oc, nil
}

// storeUpdatedElement writes e's fresh metadata with the new child
// root hash back into t and propagates the change to the grove root.
func (g *Grove) storeUpdatedElement(path Path, key []byte, t *avl.Tree, e element.Element, childRoot hash.Digest) (cost.OperationCost, error) {
	var oc cost.OperationCost
	marshaled := e.Marshal()
	addElementHashCost(&oc, e, len(marshaled))
	vh := e.ValueHash(childRoot)

	sub, err := t.Put(key, marshaled, vh, false)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	sub, err = t.Commit(false)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	sub, err = g.propagate(path)
	oc.Add(sub)
	return oc, err
}

// AppendMMR appends v to the MmrTree element at (path,key) and
// propagates the new root upward (batch op MmrTreeAppend, spec §4.7).
func (g *Grove) AppendMMR(path Path, key []byte, v []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	var oc cost.OperationCost
	t, e, sub, err := g.loadNonMerkElement(path, key, element.TagMmrTree)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}

	m, err := trees.OpenMMR(g.ctxFor(appendKey(path, key)))
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	root, leafIndex, sub, err := m.Append(v)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	e.MmrSize = m.Size()

	sub, err = g.storeUpdatedElement(path, key, t, e, root)
	oc.Add(sub)
	return root, leafIndex, oc, err
}

// AppendBulk appends v to the BulkAppendTree element at (path,key) and
// propagates the new root upward (batch op BulkAppend, spec §4.7).
func (g *Grove) AppendBulk(path Path, key []byte, v []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	var oc cost.OperationCost
	t, e, sub, err := g.loadNonMerkElement(path, key, element.TagBulkAppendTree)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}

	b, err := trees.OpenBulkAppend(g.ctxFor(appendKey(path, key)), e.ChunkPower)
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	root, index, sub, err := b.Append(v)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	e.TotalCount = b.TotalCount()

	sub, err = g.storeUpdatedElement(path, key, t, e, root)
	oc.Add(sub)
	return root, index, oc, err
}

// InsertDense inserts v into the DenseFixedSizeTree element at
// (path,key) and propagates the new root upward (batch op
// DenseTreeInsert, spec §4.7).
func (g *Grove) InsertDense(path Path, key []byte, v []byte) (hash.Digest, uint16, cost.OperationCost, error) {
	var oc cost.OperationCost
	t, e, sub, err := g.loadNonMerkElement(path, key, element.TagDenseFixedSizeTree)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}

	d, err := trees.OpenDense(g.ctxFor(appendKey(path, key)), e.DenseHeight)
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	pos, sub, err := d.Insert(v)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	e.DenseCount = d.Count()

	root, sub, err := d.RootHash()
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}

	sub, err = g.storeUpdatedElement(path, key, t, e, root)
	oc.Add(sub)
	return root, pos, oc, err
}

// InsertCommitment inserts (cmx, rho, ciphertext) into the
// CommitmentTree element at (path,key) and propagates the new combined
// root upward (batch op CommitmentTreeInsert, spec §4.7, §4.8.4).
func (g *Grove) InsertCommitment(path Path, key []byte, cmx, rho hash.Digest, ciphertext []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	var oc cost.OperationCost
	t, e, sub, err := g.loadNonMerkElement(path, key, element.TagCommitmentTree)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}

	ct, err := trees.OpenCommitmentTree(g.ctxFor(appendKey(path, key)), e.ChunkPower, g.commitmentMemoSize)
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	_, position, sub, err := ct.Insert(cmx, rho, ciphertext)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, 0, oc, err
	}
	e.TotalCount = ct.Count()

	root, sub := ct.CombinedRoot()
	oc.Add(sub)

	sub, err = g.storeUpdatedElement(path, key, t, e, root)
	oc.Add(sub)
	return root, position, oc, err
}

// GetMMRValue reads the leaf at leafIndex from the MmrTree element at
// (path,key).
func (g *Grove) GetMMRValue(path Path, key []byte, leafIndex uint64) ([]byte, cost.OperationCost, error) {
	var oc cost.OperationCost
	_, _, sub, err := g.loadNonMerkElement(path, key, element.TagMmrTree)
	oc.Add(sub)
	if err != nil {
		return nil, oc, err
	}
	m, err := trees.OpenMMR(g.ctxFor(appendKey(path, key)))
	if err != nil {
		return nil, oc, err
	}
	v, sub, err := m.GetValue(leafIndex)
	oc.Add(sub)
	return v, oc, err
}

// GetBulkValue reads the entry at index from the BulkAppendTree element
// at (path,key).
func (g *Grove) GetBulkValue(path Path, key []byte, index uint64) ([]byte, cost.OperationCost, error) {
	var oc cost.OperationCost
	_, e, sub, err := g.loadNonMerkElement(path, key, element.TagBulkAppendTree)
	oc.Add(sub)
	if err != nil {
		return nil, oc, err
	}
	b, err := trees.OpenBulkAppend(g.ctxFor(appendKey(path, key)), e.ChunkPower)
	if err != nil {
		return nil, oc, err
	}
	v, sub, err := b.GetValue(index)
	oc.Add(sub)
	return v, oc, err
}

// GetDenseValue reads the entry at pos from the DenseFixedSizeTree
// element at (path,key).
func (g *Grove) GetDenseValue(path Path, key []byte, pos uint16) ([]byte, cost.OperationCost, error) {
	var oc cost.OperationCost
	_, e, sub, err := g.loadNonMerkElement(path, key, element.TagDenseFixedSizeTree)
	oc.Add(sub)
	if err != nil {
		return nil, oc, err
	}
	d, err := trees.OpenDense(g.ctxFor(appendKey(path, key)), e.DenseHeight)
	if err != nil {
		return nil, oc, err
	}
	v, sub, err := d.Get(pos)
	oc.Add(sub)
	return v, oc, err
}

// GetCommitmentValue reads the record at position from the
// CommitmentTree element at (path,key).
func (g *Grove) GetCommitmentValue(path Path, key []byte, position uint64) (cmx, rho hash.Digest, ciphertext []byte, oc cost.OperationCost, err error) {
	var sub cost.OperationCost
	_, e, sub, err := g.loadNonMerkElement(path, key, element.TagCommitmentTree)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, hash.Zero, nil, oc, err
	}
	ct, err := trees.OpenCommitmentTree(g.ctxFor(appendKey(path, key)), e.ChunkPower, g.commitmentMemoSize)
	if err != nil {
		return hash.Zero, hash.Zero, nil, oc, err
	}
	cmx, rho, ciphertext, sub, err = ct.GetValue(position)
	oc.Add(sub)
	return cmx, rho, ciphertext, oc, err
}

// CommitmentAnchor returns the current Sinsemilla anchor of the
// CommitmentTree element at (path,key) (spec §4.8.4).
func (g *Grove) CommitmentAnchor(path Path, key []byte) (hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost
	_, e, sub, err := g.loadNonMerkElement(path, key, element.TagCommitmentTree)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, oc, err
	}
	ct, err := trees.OpenCommitmentTree(g.ctxFor(appendKey(path, key)), e.ChunkPower, g.commitmentMemoSize)
	if err != nil {
		return hash.Zero, oc, err
	}
	anchor, sub := ct.Anchor()
	oc.Add(sub)
	return anchor, oc, nil
}
