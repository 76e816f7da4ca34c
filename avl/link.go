package avl

import "github.com/grovedb/grovedb/hash"

// LinkState is the four-state lifecycle of a child link (spec §3):
// only Reference is ever written to disk as part of a parent node.
type LinkState uint8

const (
	// LinkReference is pruned: only hash/height/key/aggregate are
	// cached, the child Node itself is not resident.
	LinkReference LinkState = iota
	// LinkModified has a resident Node whose hash/aggregate are stale
	// because of a write somewhere in its subtree.
	LinkModified
	// LinkUncommitted has a resident Node with a freshly recomputed
	// hash/aggregate, not yet persisted to storage.
	LinkUncommitted
	// LinkLoaded has a resident Node with a fresh hash, persisted.
	LinkLoaded
)

// Link is an edge from a parent node to a child, abstracting over
// whether the child is pruned to disk or resident in memory.
type Link struct {
	State LinkState

	// Hash, Height and Agg are always meaningful except while
	// State == LinkModified, during which they are stale until the
	// Put/Delete return path rebuilds the link through fromNode.
	Hash   hash.Digest
	Height int
	Agg    Aggregate

	// Key is the child node's key, used to fetch it from storage when
	// State == LinkReference and Node has not yet been loaded.
	Key []byte

	// Node is the resident child; nil only for an unloaded Reference.
	Node *Node
}

// height returns l's cached subtree height, or 0 for a nil link.
func (l *Link) height() int {
	if l == nil {
		return 0
	}
	return l.Height
}

// aggregateOrZero returns l's cached aggregate, or the zero Aggregate
// for a nil link.
func (l *Link) aggregateOrZero() Aggregate {
	if l == nil {
		return Aggregate{}
	}
	return l.Agg
}

// hashOrNil returns a pointer to l's cached hash, or nil for a missing
// child (hash.NodeHash treats a nil pointer as the zero sentinel).
// Precondition: l.State != LinkModified; callers rehash bottom-up so
// every child is fresh before its parent's hash is computed.
func (l *Link) hashOrNil() *hash.Digest {
	if l == nil {
		return nil
	}
	if l.State == LinkModified {
		panic("avl: hashOrNil called on a stale (Modified) link")
	}
	h := l.Hash
	return &h
}

// modifiedLink wraps a dirty resident node.
func modifiedLink(n *Node) *Link {
	return &Link{State: LinkModified, Node: n}
}

// fromNode builds an Uncommitted link for a just-rehashed resident
// node, capturing its fresh height/hash/aggregate.
func fromNode(n *Node, f FeatureType) *Link {
	return &Link{
		State:  LinkUncommitted,
		Hash:   n.nodeHash(f),
		Height: n.height(),
		Agg:    n.Agg,
		Key:    n.Key,
		Node:   n,
	}
}
