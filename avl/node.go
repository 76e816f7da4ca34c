package avl

import (
	"github.com/grovedb/grovedb/hash"
)

// Node is a resident Merk AVL node (spec §3): a key, the serialized
// Element stored there, its hashes, its rolled-up aggregate, and links
// to its two children.
type Node struct {
	Key          []byte
	ElementBytes []byte

	ValueHash hash.Digest
	KVHash    hash.Digest

	// Own is this node's aggregate contribution alone, before folding
	// in children; Agg is Own + Left.Agg + Right.Agg, valid once the
	// node has been (re)hashed.
	Own Aggregate
	Agg Aggregate

	Left  *Link
	Right *Link
}

// height returns the height of the subtree rooted at n (1 for a leaf).
func (n *Node) height() int {
	if n == nil {
		return 0
	}
	lh := n.Left.height()
	rh := n.Right.height()
	if lh > rh {
		return lh + 1
	}
	return rh + 1
}

// balanceFactor is h(right) - h(left); an AVL invariant requires it in
// {-1, 0, 1} after every rebalance (spec §3, §8).
func (n *Node) balanceFactor() int {
	return n.Right.height() - n.Left.height()
}

// nodeHash computes this node's node_hash per spec §3, given the
// feature type of the owning tree (which selects the plain or
// count-baked hash form).
func (n *Node) nodeHash(f FeatureType) hash.Digest {
	left := n.Left.hashOrNil()
	right := n.Right.hashOrNil()
	if f.BakesCountIntoHash() {
		return hash.NodeHashWithCount(n.KVHash, left, right, n.Agg.Count)
	}
	return hash.NodeHash(n.KVHash, left, right)
}

// recomputeAggregate refreshes n.Agg from n.Own and both children's
// cached aggregates. Children must already be hashed/committed (or
// themselves pruned references carrying a valid cached Agg).
func (n *Node) recomputeAggregate() {
	n.Agg = n.Own.Add(n.Left.aggregateOrZero()).Add(n.Right.aggregateOrZero())
}
