// Package grove implements GroveDB's hierarchical core (spec §4.6):
// path-prefixed nesting of Merk subtrees (and the four non-Merk
// specialized trees) with upward propagation of child root hashes to a
// single 32-byte state root.
//
// Grounded on metadata/store.go's BlockMeta/subtree-index nesting model
// (a block's metadata names subtree roots by merkle_root; grove
// generalizes "block -> subtrees" into "parent Merk -> child Merk" with
// the same prefix-derivation idea) and processor/processor.go's
// orchestration style: a thin struct holding a store handle plus one
// method per operation.
package grove

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
	"github.com/grovedb/grovedb/trees"
)

// MaxReferenceHops is the global cap on reference-resolution chains
// (spec §4.5), overridable per-element via Element.MaxHop.
const MaxReferenceHops = 10

// Path is an ordered sequence of key segments naming a subtree; the
// empty path names the grove's root Merk.
type Path = [][]byte

// Grove is a hierarchy of Merk (and non-Merk) subtrees nested by path,
// each isolated by a storage.Prefix derived from its path, with child
// root hashes propagated upward to a single state root. A Grove is
// either backed directly by a storage.Engine (auto-committing) or by a
// single storage.Txn (staged until the caller commits it), mirroring
// storage.Context's own dual mode.
type Grove struct {
	engine storage.Engine
	txn    storage.Txn

	// commitmentMemoSize fixes the ciphertext payload length every
	// CommitmentTree in this grove validates inserts against (spec §9:
	// a runtime config parameter, not a per-element field).
	commitmentMemoSize int

	// referenceHopLimit overrides MaxReferenceHops when nonzero
	// (grovedb.Options.ReferenceHopLimit).
	referenceHopLimit int
}

// SetReferenceHopLimit overrides the grove's reference hop cap; n <= 0
// restores the MaxReferenceHops default.
func (g *Grove) SetReferenceHopLimit(n int) { g.referenceHopLimit = n }

func (g *Grove) referenceHopLimitOrDefault() int {
	if g.referenceHopLimit > 0 {
		return g.referenceHopLimit
	}
	return MaxReferenceHops
}

// Open returns a Grove backed directly by engine; every mutation
// auto-commits.
func Open(engine storage.Engine, commitmentMemoSize int) *Grove {
	return &Grove{engine: engine, commitmentMemoSize: commitmentMemoSize}
}

// OpenTxn returns a Grove whose mutations are staged against txn until
// the caller commits it directly.
func OpenTxn(txn storage.Txn, commitmentMemoSize int) *Grove {
	return &Grove{txn: txn, commitmentMemoSize: commitmentMemoSize}
}

func (g *Grove) ctxFor(path Path) *storage.Context {
	prefix := DerivePrefix(path)
	if g.txn != nil {
		return storage.NewTransactionalContext(g.txn, prefix)
	}
	return storage.NewContext(g.engine, prefix)
}

// DerivePrefix computes the 32-byte storage prefix for path: a
// domain-separated Blake3 hash over its length-prefixed segments (spec
// §4.3/§4.6: "the prefix of a subtree is a deterministic 32-byte digest
// of its path").
func DerivePrefix(path Path) storage.Prefix {
	return storage.Prefix(hash.Blake3(encodePath(path)))
}

func encodePath(path Path) []byte {
	buf := make([]byte, 0, 16+32*len(path))
	buf = append(buf, "grovedb-path"...)
	var lenBuf [4]byte
	for _, seg := range path {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(seg)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, seg...)
	}
	return buf
}

func pathKey(path Path) string {
	return hash.Blake3(encodePath(path)).String()
}

func appendKey(path Path, key []byte) Path {
	out := make(Path, len(path)+1)
	copy(out, path)
	out[len(path)] = append([]byte(nil), key...)
	return out
}

// featureForTag maps a Tree-like element's tag to the aggregate its
// child Merk tracks (avl.FeatureType); non-Merk tags and plain/
// reference tags never reach this function from featureForPath.
func featureForTag(tag element.Tag) avl.FeatureType {
	switch tag {
	case element.TagSumTree:
		return avl.FeatureSum
	case element.TagBigSumTree:
		return avl.FeatureBigSum
	case element.TagCountTree:
		return avl.FeatureCount
	case element.TagCountSumTree:
		return avl.FeatureCountSum
	case element.TagProvableCountTree:
		return avl.FeatureProvableCount
	case element.TagProvableCountSumTree:
		return avl.FeatureProvableCountSum
	default:
		return avl.FeatureBasic
	}
}

// featureForPath returns the aggregate feature the Merk at path itself
// was configured with, read from the Tree-like element describing path
// inside path's own parent. The grove root always uses FeatureBasic.
func (g *Grove) featureForPath(path Path) (avl.FeatureType, cost.OperationCost, error) {
	var oc cost.OperationCost
	if len(path) == 0 {
		return avl.FeatureBasic, oc, nil
	}
	parentPath, key := path[:len(path)-1], path[len(path)-1]
	t, sub, err := avl.Open(g.ctxFor(parentPath), avl.FeatureBasic)
	oc.Add(sub)
	if err != nil {
		return avl.FeatureBasic, oc, err
	}
	e, sub, err := t.Get(key)
	oc.Add(sub)
	if err != nil {
		return avl.FeatureBasic, oc, err
	}
	return featureForTag(e.Tag), oc, nil
}

// childRootHash returns the current root hash the element e at
// (path,key) feeds into its own value_hash: a Merk root_hash for
// Tree-like tags, or the type-specific root for the four non-Merk
// trees (spec §4.6, §4.8). For a never-yet-written child this is the
// natural empty root of that structure (hash.Zero for Merk/MMR/Dense,
// the BulkAppend state root over an empty chunk MMR and empty buffer
// for BulkAppendTree, EmptySinsemillaRoot-derived for CommitmentTree).
func (g *Grove) childRootHash(path Path, key []byte, e element.Element) (hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost
	childCtx := g.ctxFor(appendKey(path, key))

	switch e.Tag {
	case element.TagMmrTree:
		m, err := trees.OpenMMR(childCtx)
		if err != nil {
			return hash.Zero, oc, err
		}
		return m.RootHash(), oc, nil

	case element.TagBulkAppendTree:
		b, err := trees.OpenBulkAppend(childCtx, e.ChunkPower)
		if err != nil {
			return hash.Zero, oc, err
		}
		return b.StateRoot(), oc, nil

	case element.TagDenseFixedSizeTree:
		d, err := trees.OpenDense(childCtx, e.DenseHeight)
		if err != nil {
			return hash.Zero, oc, err
		}
		root, sub, err := d.RootHash()
		oc.Add(sub)
		return root, oc, err

	case element.TagCommitmentTree:
		ct, err := trees.OpenCommitmentTree(childCtx, e.ChunkPower, g.commitmentMemoSize)
		if err != nil {
			return hash.Zero, oc, err
		}
		root, sub := ct.CombinedRoot()
		oc.Add(sub)
		return root, oc, nil

	default:
		t, sub, err := avl.Open(childCtx, avl.FeatureBasic)
		oc.Add(sub)
		if err != nil {
			return hash.Zero, oc, err
		}
		return t.RootHash(), oc, nil
	}
}

// applyAggregate copies a Merk-type element's rollup fields from its
// child subtree's current Aggregate (spec §4.4's bottom-up rollup,
// exposed as part of the parent's own describing element so a reader
// of the parent alone sees the whole child subtree's aggregate).
func applyAggregate(e *element.Element, agg avl.Aggregate) {
	switch e.Tag {
	case element.TagSumTree:
		e.SumValue = agg.Sum
	case element.TagBigSumTree:
		e.BigSumValue = agg.BigSum
	case element.TagCountTree, element.TagProvableCountTree:
		e.CountValue = agg.Count
	case element.TagCountSumTree, element.TagProvableCountSumTree:
		e.CountValue = agg.Count
		e.SumValue = agg.Sum
	}
}

// refreshSubtreeFields brings e's own denormalized view of its child
// subtree up to date (root_key and aggregate fields for Merk-type
// tags; non-Merk tags manage their own count/size fields at their
// specific append/insert call sites in nonmerk.go) and returns the
// child root hash to fold into e's value_hash. e is mutated in place.
func (g *Grove) refreshSubtreeFields(path Path, key []byte, e *element.Element) (hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost
	if e.Tag.IsNonMerk() {
		root, sub, err := g.childRootHash(path, key, *e)
		oc.Add(sub)
		return root, oc, err
	}
	t, sub, err := avl.Open(g.ctxFor(appendKey(path, key)), avl.FeatureBasic)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, oc, err
	}
	e.RootKey = t.RootKey()
	applyAggregate(e, t.Aggregate())
	return t.RootHash(), oc, nil
}

// addElementHashCost accounts the hash work behind e.ValueHash/
// e.SelfValueHash: one value_hash pass over the marshaled element,
// plus one combine_hash block when the element links to a child or
// reference target.
func addElementHashCost(oc *cost.OperationCost, e element.Element, marshaledLen int) {
	oc.AddHashBlocks(hash.Blocks(marshaledLen))
	if e.Tag.Kind() != element.KindPlain {
		oc.AddHashBlocks(hash.Blocks(2 * hash.Size))
	}
}

// valueHashFor computes the value_hash e must be stored with, resolving
// a reference chain or refreshing e's own child-subtree fields as
// needed (spec §4.5), returning the (possibly mutated) element so the
// caller persists the refreshed root_key/aggregate fields alongside the
// value_hash they were computed from.
func (g *Grove) valueHashFor(path Path, key []byte, e element.Element) (element.Element, hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost

	switch e.Tag.Kind() {
	case element.KindPlain:
		marshaled := e.Marshal()
		addElementHashCost(&oc, e, len(marshaled))
		return e, e.SelfValueHash(), oc, nil

	case element.KindReference:
		ownPath := appendKey(path, key)
		targetPath, err := e.Ref.Resolve(ownPath)
		if err != nil {
			return e, hash.Zero, oc, err
		}
		maxHop := g.referenceHopLimitOrDefault()
		if e.MaxHop != nil {
			maxHop = int(*e.MaxHop)
		}
		visited := map[string]bool{pathKey(ownPath): true}
		linked, sub, err := g.resolveReferenceValueHash(targetPath, 1, maxHop, visited)
		oc.Add(sub)
		if err != nil {
			return e, hash.Zero, oc, err
		}
		marshaled := e.Marshal()
		addElementHashCost(&oc, e, len(marshaled))
		return e, e.ValueHash(linked), oc, nil

	default:
		root, sub, err := g.refreshSubtreeFields(path, key, &e)
		oc.Add(sub)
		if err != nil {
			return e, hash.Zero, oc, err
		}
		marshaled := e.Marshal()
		addElementHashCost(&oc, e, len(marshaled))
		return e, e.ValueHash(root), oc, nil
	}
}

// resolveReferenceValueHash walks targetPath's element, recursing
// through further references, enforcing the global hop cap and a
// per-resolution visited set (spec §4.5: cycle -> ErrCyclicReference,
// cap exceeded -> ErrReferenceLimit).
func (g *Grove) resolveReferenceValueHash(targetPath Path, hops, maxHop int, visited map[string]bool) (hash.Digest, cost.OperationCost, error) {
	var oc cost.OperationCost
	if hops > maxHop {
		return hash.Zero, oc, ErrReferenceLimit
	}
	if len(targetPath) == 0 {
		return hash.Zero, oc, fmt.Errorf("%w: reference resolves to the grove root", ErrInvalidReferenceTarget)
	}
	k := pathKey(targetPath)
	if visited[k] {
		return hash.Zero, oc, ErrCyclicReference
	}
	visited[k] = true

	parentPath, key := targetPath[:len(targetPath)-1], targetPath[len(targetPath)-1]
	t, sub, err := avl.Open(g.ctxFor(parentPath), avl.FeatureBasic)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, oc, err
	}
	e, sub, err := t.Get(key)
	oc.Add(sub)
	if err != nil {
		return hash.Zero, oc, err
	}
	marshaled := e.Marshal()

	if e.Tag == element.TagReference {
		nextPath, err := e.Ref.Resolve(targetPath)
		if err != nil {
			return hash.Zero, oc, err
		}
		nextMaxHop := maxHop
		if e.MaxHop != nil {
			nextMaxHop = int(*e.MaxHop)
		}
		linked, sub, err := g.resolveReferenceValueHash(nextPath, hops+1, nextMaxHop, visited)
		oc.Add(sub)
		if err != nil {
			return hash.Zero, oc, err
		}
		addElementHashCost(&oc, e, len(marshaled))
		return e.ValueHash(linked), oc, nil
	}

	if e.Tag.Kind() == element.KindSubtree {
		root, sub, err := g.childRootHash(parentPath, key, e)
		oc.Add(sub)
		if err != nil {
			return hash.Zero, oc, err
		}
		addElementHashCost(&oc, e, len(marshaled))
		return e.ValueHash(root), oc, nil
	}

	addElementHashCost(&oc, e, len(marshaled))
	return e.SelfValueHash(), oc, nil
}

// GetElement returns the decoded Element stored at (path,key).
func (g *Grove) GetElement(path Path, key []byte) (element.Element, cost.OperationCost, error) {
	t, oc, err := avl.Open(g.ctxFor(path), avl.FeatureBasic)
	if err != nil {
		return element.Element{}, oc, err
	}
	e, sub, err := t.Get(key)
	oc.Add(sub)
	return e, oc, err
}

// InsertElement writes e at (path,key), computing its value_hash and
// propagating the change up through every ancestor Merk to the grove
// root (spec §4.6).
func (g *Grove) InsertElement(path Path, key []byte, e element.Element, onlyIfAbsent bool) (cost.OperationCost, error) {
	var oc cost.OperationCost
	e, vh, sub, err := g.valueHashFor(path, key, e)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}

	feature, sub, err := g.featureForPath(path)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	t, sub, err := avl.Open(g.ctxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	sub, err = t.Put(key, e.Marshal(), vh, onlyIfAbsent)
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

// DeleteElement removes key from the Merk at path and propagates the
// change upward. Callers that must refuse deleting a non-empty subtree
// enforce that policy before calling DeleteElement (the batch layer
// does so for a DeleteTreeOp, and purges the child first when the op's
// cascade flag, Op.Cascade, is set).
func (g *Grove) DeleteElement(path Path, key []byte) (cost.OperationCost, error) {
	var oc cost.OperationCost
	feature, sub, err := g.featureForPath(path)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	t, sub, err := avl.Open(g.ctxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	sub, err = t.Delete(key)
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

// propagateOneLevel recomputes and rewrites the Tree-like element
// describing the subtree at path inside path's own parent, after
// path's own Merk (or non-Merk tree) root has changed (spec §4.4,
// §4.6). It touches only path's immediate parent; propagate loops it
// up to the grove root, and the batch engine calls it directly to
// dedupe repeated ancestors across a multi-op batch.
func (g *Grove) propagateOneLevel(path Path) (cost.OperationCost, error) {
	var oc cost.OperationCost
	parentPath, key := path[:len(path)-1], path[len(path)-1]

	parentFeature, sub, err := g.featureForPath(parentPath)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	parentTree, sub, err := avl.Open(g.ctxFor(parentPath), parentFeature)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	e, sub, err := parentTree.Get(key)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	childRoot, sub, err := g.refreshSubtreeFields(parentPath, key, &e)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	marshaled := e.Marshal()
	addElementHashCost(&oc, e, len(marshaled))
	newVH := e.ValueHash(childRoot)

	sub, err = parentTree.Put(key, marshaled, newVH, false)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	sub, err = parentTree.Commit(false)
	oc.Add(sub)
	return oc, err
}

// propagate repeats propagateOneLevel from path up to the grove root
// (spec §4.6).
func (g *Grove) propagate(path Path) (cost.OperationCost, error) {
	var oc cost.OperationCost
	for len(path) > 0 {
		sub, err := g.propagateOneLevel(path)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
		path = path[:len(path)-1]
	}
	return oc, nil
}

// RootHash returns the grove's single 32-byte state root: the root
// Merk's root_hash (spec §4.6).
func (g *Grove) RootHash() (hash.Digest, cost.OperationCost, error) {
	t, oc, err := avl.Open(g.ctxFor(nil), avl.FeatureBasic)
	if err != nil {
		return hash.Zero, oc, err
	}
	return t.RootHash(), oc, nil
}

// The exports below expose the internals above for the batch package,
// which needs to open and mutate the same Merks directly (to apply many
// ops per subtree before propagating once) rather than going through
// the single-op InsertElement/DeleteElement path.

// CtxFor returns the storage.Context for the Merk (or non-Merk data
// namespace) rooted at path.
func (g *Grove) CtxFor(path Path) *storage.Context { return g.ctxFor(path) }

// FeatureForPath is the exported form of featureForPath.
func (g *Grove) FeatureForPath(path Path) (avl.FeatureType, cost.OperationCost, error) {
	return g.featureForPath(path)
}

// ChildRootHash is the exported form of childRootHash.
func (g *Grove) ChildRootHash(path Path, key []byte, e element.Element) (hash.Digest, cost.OperationCost, error) {
	return g.childRootHash(path, key, e)
}

// RefreshSubtreeFields is the exported form of refreshSubtreeFields.
func (g *Grove) RefreshSubtreeFields(path Path, key []byte, e *element.Element) (hash.Digest, cost.OperationCost, error) {
	return g.refreshSubtreeFields(path, key, e)
}

// ValueHashFor is the exported form of valueHashFor.
func (g *Grove) ValueHashFor(path Path, key []byte, e element.Element) (element.Element, hash.Digest, cost.OperationCost, error) {
	return g.valueHashFor(path, key, e)
}

// Propagate is the exported form of propagate: rewrite every ancestor
// of path whose describing element must reflect a change already
// committed at path, up to the root. The batch engine does not call
// it; it uses PropagateOneLevel.
func (g *Grove) Propagate(path Path) (cost.OperationCost, error) { return g.propagate(path) }

// PropagateOneLevel is the exported form of propagateOneLevel. The
// batch engine uses this directly (instead of Propagate) to dedupe
// ancestors shared by several touched subtrees within one batch,
// updating each at most once (spec §4.7 phase 2 step 3).
func (g *Grove) PropagateOneLevel(path Path) (cost.OperationCost, error) {
	return g.propagateOneLevel(path)
}

// PathKey returns a collision-negligible string key for path, suitable
// for grouping/deduplicating paths in a map (Blake3 over path's
// length-prefixed encoding, so arbitrary byte segments can't collide
// via naive string concatenation).
func PathKey(path Path) string { return pathKey(path) }

// AppendKey returns a new Path with key appended as the last segment.
func AppendKey(path Path, key []byte) Path { return appendKey(path, key) }

// CommitmentMemoSize returns the ciphertext length every CommitmentTree
// in g validates inserts against.
func (g *Grove) CommitmentMemoSize() int { return g.commitmentMemoSize }

// IsTxn reports whether g is backed by an existing transaction rather
// than a bare storage.Engine.
func (g *Grove) IsTxn() bool { return g.txn != nil }

// BeginTxn starts a fresh writable transaction on g's underlying engine
// and returns a Grove backed by it, plus the transaction itself so the
// caller can Commit or Discard it once their work is done. Used by the
// batch engine to make a whole multi-op batch atomic (spec §4.7's
// atomicity guarantee): every write during the batch stages against
// this one transaction, discarded wholesale on any failure. g must not
// already be transaction-backed.
func (g *Grove) BeginTxn() (*Grove, storage.Txn, error) {
	txn, err := g.engine.Begin(true)
	if err != nil {
		return nil, nil, err
	}
	return &Grove{txn: txn, commitmentMemoSize: g.commitmentMemoSize, referenceHopLimit: g.referenceHopLimit}, txn, nil
}
