package avl

import (
	"bytes"
	"fmt"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
)

// rootStorageKey is the fixed local key under which a Merk's root
// node's own key is recorded in the roots namespace (spec §4.3).
var rootStorageKey = []byte("root")

// Tree is a single Merk AVL tree scoped to one storage.Context (one
// subtree prefix). Feature selects the aggregate it tracks.
type Tree struct {
	ctx     *storage.Context
	feature FeatureType
	root    *Link
}

// Open reads a Tree's root key from ctx's roots namespace and, when one
// is set, loads and decodes the root node itself; nodes below the root
// are not loaded by Open.
func Open(ctx *storage.Context, feature FeatureType) (*Tree, cost.OperationCost, error) {
	var oc cost.OperationCost
	rootKey, err := ctx.Get(storage.Roots, rootStorageKey)
	oc.AddSeek(len(rootKey))
	if err != nil {
		if err == storage.ErrNotFound {
			return &Tree{ctx: ctx, feature: feature}, oc, nil
		}
		return nil, oc, err
	}

	raw, err := ctx.Get(storage.Main, rootKey)
	oc.AddSeek(len(raw))
	if err != nil {
		return nil, oc, fmt.Errorf("avl: loading root %x: %w", rootKey, err)
	}

	n, err := decodeNode(raw)
	if err != nil {
		return nil, oc, err
	}
	return &Tree{ctx: ctx, feature: feature, root: fromNode(n, feature)}, oc, nil
}

// IsEmpty reports whether the tree has no nodes.
func (t *Tree) IsEmpty() bool {
	return t.root == nil
}

// RootHash returns the tree's root_hash, or hash.Zero if empty.
func (t *Tree) RootHash() hash.Digest {
	if t.root == nil {
		return hash.Zero
	}
	return t.root.Hash
}

// RootKey returns the root node's own key, used by the grove layer as
// a Tree element's child_root_key. Empty for an empty tree.
func (t *Tree) RootKey() []byte {
	if t.root == nil {
		return nil
	}
	return t.root.Key
}

// Aggregate returns the whole tree's rolled-up aggregate.
func (t *Tree) Aggregate() Aggregate {
	return t.root.aggregateOrZero()
}

func (t *Tree) load(l *Link) (*Node, cost.OperationCost, error) {
	var oc cost.OperationCost
	if l.Node != nil {
		return l.Node, oc, nil
	}
	raw, err := t.ctx.Get(storage.Main, l.Key)
	oc.AddSeek(len(raw))
	if err != nil {
		return nil, oc, fmt.Errorf("avl: loading node %x: %w", l.Key, err)
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, oc, err
	}
	l.Node = n
	l.State = LinkLoaded
	return n, oc, nil
}

// Get returns the decoded Element stored at key.
func (t *Tree) Get(key []byte) (element.Element, cost.OperationCost, error) {
	var total cost.OperationCost
	link := t.root
	for link != nil {
		n, oc, err := t.load(link)
		total.Add(oc)
		if err != nil {
			return element.Element{}, total, err
		}
		switch c := bytes.Compare(key, n.Key); {
		case c == 0:
			e, err := element.Unmarshal(n.ElementBytes)
			return e, total, err
		case c < 0:
			link = n.Left
		default:
			link = n.Right
		}
	}
	return element.Element{}, total, ErrKeyNotFound
}

// Put inserts or replaces key with elementBytes, whose value_hash the
// caller has already computed (avl does not know how to combine a
// subtree/reference element's hash with its child/target; that is the
// grove layer's job). onlyIfAbsent rejects the write if key exists.
func (t *Tree) Put(key, elementBytes []byte, valueHash hash.Digest, onlyIfAbsent bool) (cost.OperationCost, error) {
	var total cost.OperationCost
	newRoot, oc, err := t.putInto(t.root, key, elementBytes, valueHash, onlyIfAbsent)
	total.Add(oc)
	if err != nil {
		return total, err
	}
	t.root = newRoot
	return total, nil
}

func (t *Tree) putInto(link *Link, key, elementBytes []byte, valueHash hash.Digest, onlyIfAbsent bool) (*Link, cost.OperationCost, error) {
	var total cost.OperationCost
	if link == nil {
		n, oc, err := t.newLeaf(key, elementBytes, valueHash)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		return fromNode(n, t.feature), total, nil
	}

	n, oc, err := t.load(link)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}

	switch c := bytes.Compare(key, n.Key); {
	case c == 0:
		if onlyIfAbsent {
			return nil, total, ErrKeyAlreadyExists
		}
		e, err := element.Unmarshal(elementBytes)
		if err != nil {
			return nil, total, err
		}
		n.ElementBytes = elementBytes
		n.ValueHash = valueHash
		n.KVHash = hash.KVHash(n.Key, valueHash)
		n.Own = ownAggregate(e, t.feature)
		n.recomputeAggregate()
		total.AddHashBlocks(hash.Blocks(len(n.Key) + hash.Size))
		return fromNode(n, t.feature), total, nil

	case c < 0:
		newLeft, oc, err := t.putInto(n.Left, key, elementBytes, valueHash, onlyIfAbsent)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		n.Left = newLeft

	default:
		newRight, oc, err := t.putInto(n.Right, key, elementBytes, valueHash, onlyIfAbsent)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		n.Right = newRight
	}

	n.recomputeAggregate()
	balanced, oc, err := t.maybeBalance(n)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}
	total.AddHashBlocks(hash.Blocks(3 * hash.Size))
	return fromNode(balanced, t.feature), total, nil
}

func (t *Tree) newLeaf(key, elementBytes []byte, valueHash hash.Digest) (*Node, cost.OperationCost, error) {
	var oc cost.OperationCost
	e, err := element.Unmarshal(elementBytes)
	if err != nil {
		return nil, oc, err
	}
	n := &Node{
		Key:          append([]byte(nil), key...),
		ElementBytes: elementBytes,
		ValueHash:    valueHash,
		KVHash:       hash.KVHash(key, valueHash),
		Own:          ownAggregate(e, t.feature),
	}
	n.recomputeAggregate()
	oc.AddHashBlocks(hash.Blocks(len(key) + hash.Size))
	return n, oc, nil
}

// Delete removes key, or returns ErrKeyNotFound if absent.
func (t *Tree) Delete(key []byte) (cost.OperationCost, error) {
	var total cost.OperationCost
	newRoot, oc, err := t.deleteFrom(t.root, key)
	total.Add(oc)
	if err != nil {
		return total, err
	}
	t.root = newRoot
	return total, nil
}

func (t *Tree) deleteFrom(link *Link, key []byte) (*Link, cost.OperationCost, error) {
	var total cost.OperationCost
	if link == nil {
		return nil, total, ErrKeyNotFound
	}
	n, oc, err := t.load(link)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}

	switch c := bytes.Compare(key, n.Key); {
	case c < 0:
		newLeft, oc, err := t.deleteFrom(n.Left, key)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		n.Left = newLeft

	case c > 0:
		newRight, oc, err := t.deleteFrom(n.Right, key)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		n.Right = newRight

	default:
		return t.deleteNode(n)
	}

	n.recomputeAggregate()
	balanced, oc, err := t.maybeBalance(n)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}
	return fromNode(balanced, t.feature), total, nil
}

// deleteNode removes n itself, promoting from the taller subtree per
// spec §4.4: "if h(right) >= h(left), replace with the leftmost of the
// right subtree; else the rightmost of the left subtree".
func (t *Tree) deleteNode(n *Node) (*Link, cost.OperationCost, error) {
	var total cost.OperationCost
	switch {
	case n.Left == nil && n.Right == nil:
		return nil, total, nil
	case n.Left == nil:
		return n.Right, total, nil
	case n.Right == nil:
		return n.Left, total, nil
	}

	if n.Right.height() >= n.Left.height() {
		succ, newRight, oc, err := t.popLeftmost(n.Right)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		succ.Left = n.Left
		succ.Right = newRight
		succ.recomputeAggregate()
		balanced, oc, err := t.maybeBalance(succ)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		return fromNode(balanced, t.feature), total, nil
	}

	pred, newLeft, oc, err := t.popRightmost(n.Left)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}
	pred.Left = newLeft
	pred.Right = n.Right
	pred.recomputeAggregate()
	balanced, oc, err := t.maybeBalance(pred)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}
	return fromNode(balanced, t.feature), total, nil
}

// popLeftmost removes and returns the leftmost node of the subtree
// rooted at link, along with the link to what remains.
func (t *Tree) popLeftmost(link *Link) (*Node, *Link, cost.OperationCost, error) {
	var total cost.OperationCost
	n, oc, err := t.load(link)
	total.Add(oc)
	if err != nil {
		return nil, nil, total, err
	}
	if n.Left == nil {
		return n, n.Right, total, nil
	}
	leftmost, newLeft, oc, err := t.popLeftmost(n.Left)
	total.Add(oc)
	if err != nil {
		return nil, nil, total, err
	}
	n.Left = newLeft
	n.recomputeAggregate()
	balanced, oc, err := t.maybeBalance(n)
	total.Add(oc)
	if err != nil {
		return nil, nil, total, err
	}
	return leftmost, fromNode(balanced, t.feature), total, nil
}

// popRightmost is popLeftmost's mirror image.
func (t *Tree) popRightmost(link *Link) (*Node, *Link, cost.OperationCost, error) {
	var total cost.OperationCost
	n, oc, err := t.load(link)
	total.Add(oc)
	if err != nil {
		return nil, nil, total, err
	}
	if n.Right == nil {
		return n, n.Left, total, nil
	}
	rightmost, newRight, oc, err := t.popRightmost(n.Right)
	total.Add(oc)
	if err != nil {
		return nil, nil, total, err
	}
	n.Right = newRight
	n.recomputeAggregate()
	balanced, oc, err := t.maybeBalance(n)
	total.Add(oc)
	if err != nil {
		return nil, nil, total, err
	}
	return rightmost, fromNode(balanced, t.feature), total, nil
}
