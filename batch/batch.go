package batch

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/grove"
	"github.com/grovedb/grovedb/storage"
	"github.com/grovedb/grovedb/trees"
)

// Batch is a validated, sorted list of ops ready to apply as one
// atomic unit (spec §4.7).
type Batch struct {
	ops []QualifiedGroveDbOp
}

// NewBatch validates and sorts ops: rejects internal op kinds, sorts
// by (path, key) so every subtree's own ops land contiguously, and
// rejects two ops targeting the identical (path, key) unless both are
// non-Merk append ops — those are folded into one synthesized write
// during Apply instead (spec §4.7 phase 1 and phase 2 step 1).
func NewBatch(ops []QualifiedGroveDbOp) (*Batch, error) {
	out := make([]QualifiedGroveDbOp, len(ops))
	copy(out, ops)

	for _, op := range out {
		if op.Op.Kind.isInternal() {
			return nil, ErrInternalOpKind
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	for i := 1; i < len(out); i++ {
		if samePathKey(out[i-1], out[i]) {
			if !out[i-1].Op.Kind.isNonMerkAppend() || !out[i].Op.Kind.isNonMerkAppend() {
				return nil, ErrUnsortedOrDuplicate
			}
		}
	}

	return &Batch{ops: out}, nil
}

func less(a, b QualifiedGroveDbOp) bool {
	pa, pb := grove.PathKey(a.Path), grove.PathKey(b.Path)
	if pa != pb {
		return pa < pb
	}
	return bytes.Compare(a.Key, b.Key) < 0
}

func samePathKey(a, b QualifiedGroveDbOp) bool {
	return grove.PathKey(a.Path) == grove.PathKey(b.Path) && bytes.Equal(a.Key, b.Key)
}

// Apply applies every op in b against g as one atomic unit. If g is
// not already transaction-backed, Apply opens its own transaction and
// commits it only once every op has succeeded, discarding the whole
// thing on any failure — the spec §4.7 atomicity guarantee that either
// every op's effect lands in the final state root, or none do. If g is
// already transaction-backed (the caller is running a multi-batch
// GroveDB transaction), Apply writes into g's existing transaction and
// leaves committing it to the caller.
func (b *Batch) Apply(g *grove.Grove) (cost.OperationCost, error) {
	var oc cost.OperationCost

	work := g
	var txn storage.Txn
	if !g.IsTxn() {
		var err error
		work, txn, err = g.BeginTxn()
		if err != nil {
			return oc, err
		}
	}

	sub, err := b.apply(work)
	oc.Add(sub)
	if err != nil {
		if txn != nil {
			txn.Discard()
		}
		return oc, err
	}
	if txn != nil {
		if err := txn.Commit(); err != nil {
			return oc, err
		}
	}
	return oc, nil
}

func (b *Batch) apply(g *grove.Grove) (cost.OperationCost, error) {
	var oc cost.OperationCost

	ops, sub, err := preprocessNonMerkAppends(g, b.ops)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}

	groups := groupByPath(ops)

	cache, err := NewTreeCache(g, len(groups))
	if err != nil {
		return oc, err
	}

	touched := make(map[string]grove.Path, len(groups))
	for _, grp := range groups {
		sub, err := applyGroup(g, cache, grp)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
		touched[grove.PathKey(grp.path)] = grp.path
	}

	ancestors := ancestorClosure(touched)
	sort.Slice(ancestors, func(i, j int) bool { return len(ancestors[i]) > len(ancestors[j]) })
	for _, p := range ancestors {
		sub, err := g.PropagateOneLevel(p)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
	}
	return oc, nil
}

// ancestorClosure returns every path that needs its entry in its own
// parent refreshed: each touched subtree plus every one of its
// ancestors up to (not including) the grove root, each listed once
// even when several touched subtrees share an ancestor (spec §4.7
// phase 2 step 3: "each ancestor updated at most once per batch").
func ancestorClosure(touched map[string]grove.Path) []grove.Path {
	seen := make(map[string]bool, len(touched))
	var out []grove.Path
	for _, p := range touched {
		cur := p
		for len(cur) > 0 {
			k := grove.PathKey(cur)
			if seen[k] {
				break
			}
			seen[k] = true
			out = append(out, cur)
			cur = cur[:len(cur)-1]
		}
	}
	return out
}

// preprocessNonMerkAppends scans ops for runs of consecutive entries
// sharing both (path, key) and a non-Merk append kind, applies them in
// order directly against the four non-Merk tree structures, and
// collapses each run into one internal replaceNonMerkTreeRoot op
// carrying the refreshed element, sitting at the run's first position
// (spec §4.7 phase 2 step 1).
func preprocessNonMerkAppends(g *grove.Grove, ops []QualifiedGroveDbOp) ([]QualifiedGroveDbOp, cost.OperationCost, error) {
	var oc cost.OperationCost
	out := make([]QualifiedGroveDbOp, 0, len(ops))

	i := 0
	for i < len(ops) {
		op := ops[i]
		if !op.Op.Kind.isNonMerkAppend() {
			out = append(out, op)
			i++
			continue
		}
		j := i + 1
		for j < len(ops) && samePathKey(ops[j], op) && ops[j].Op.Kind.isNonMerkAppend() {
			j++
		}
		e, sub, err := applyNonMerkGroup(g, op.Path, op.Key, ops[i:j])
		oc.Add(sub)
		if err != nil {
			return nil, oc, err
		}
		out = append(out, QualifiedGroveDbOp{Path: op.Path, Key: op.Key, Op: Op{Kind: replaceNonMerkTreeRoot, Element: e}})
		i = j
	}
	return out, oc, nil
}

// applyNonMerkGroup runs a same-(path,key) run of non-Merk append ops
// against the child tree structure in order, returning the parent's
// describing element with its denormalized count/size field refreshed.
// The element's value_hash and the parent Merk write itself are left
// to the ordinary per-subtree apply phase, via the synthesized
// replaceNonMerkTreeRoot op.
func applyNonMerkGroup(g *grove.Grove, path grove.Path, key []byte, ops []QualifiedGroveDbOp) (element.Element, cost.OperationCost, error) {
	var oc cost.OperationCost
	feature, sub, err := g.FeatureForPath(path)
	oc.Add(sub)
	if err != nil {
		return element.Element{}, oc, err
	}
	t, sub, err := avl.Open(g.CtxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return element.Element{}, oc, err
	}
	e, sub, err := t.Get(key)
	oc.Add(sub)
	if err != nil {
		return element.Element{}, oc, err
	}

	childCtx := g.CtxFor(grove.AppendKey(path, key))
	switch ops[0].Op.Kind {
	case MmrTreeAppend:
		if e.Tag != element.TagMmrTree {
			return element.Element{}, oc, ErrWrongElementKind
		}
		m, err := trees.OpenMMR(childCtx)
		if err != nil {
			return element.Element{}, oc, err
		}
		for _, qop := range ops {
			_, _, sub, err := m.Append(qop.Op.Value)
			oc.Add(sub)
			if err != nil {
				return element.Element{}, oc, err
			}
		}
		e.MmrSize = m.Size()

	case BulkAppend:
		if e.Tag != element.TagBulkAppendTree {
			return element.Element{}, oc, ErrWrongElementKind
		}
		bk, err := trees.OpenBulkAppend(childCtx, e.ChunkPower)
		if err != nil {
			return element.Element{}, oc, err
		}
		for _, qop := range ops {
			_, _, sub, err := bk.Append(qop.Op.Value)
			oc.Add(sub)
			if err != nil {
				return element.Element{}, oc, err
			}
		}
		e.TotalCount = bk.TotalCount()

	case DenseTreeInsert:
		if e.Tag != element.TagDenseFixedSizeTree {
			return element.Element{}, oc, ErrWrongElementKind
		}
		d, err := trees.OpenDense(childCtx, e.DenseHeight)
		if err != nil {
			return element.Element{}, oc, err
		}
		for _, qop := range ops {
			_, sub, err := d.Insert(qop.Op.Value)
			oc.Add(sub)
			if err != nil {
				return element.Element{}, oc, err
			}
		}
		e.DenseCount = d.Count()

	case CommitmentTreeInsert:
		if e.Tag != element.TagCommitmentTree {
			return element.Element{}, oc, ErrWrongElementKind
		}
		ct, err := trees.OpenCommitmentTree(childCtx, e.ChunkPower, g.CommitmentMemoSize())
		if err != nil {
			return element.Element{}, oc, err
		}
		for _, qop := range ops {
			_, _, sub, err := ct.Insert(qop.Op.Cmx, qop.Op.Rho, qop.Op.Ciphertext)
			oc.Add(sub)
			if err != nil {
				return element.Element{}, oc, err
			}
		}
		e.TotalCount = ct.Count()
	}
	return e, oc, nil
}

// group is every op in a sorted batch that targets one Merk subtree.
type group struct {
	path grove.Path
	ops  []QualifiedGroveDbOp
}

func groupByPath(ops []QualifiedGroveDbOp) []group {
	var groups []group
	for _, op := range ops {
		if n := len(groups); n > 0 && grove.PathKey(groups[n-1].path) == grove.PathKey(op.Path) {
			groups[n-1].ops = append(groups[n-1].ops, op)
			continue
		}
		groups = append(groups, group{path: op.Path, ops: []QualifiedGroveDbOp{op}})
	}
	return groups
}

// applyGroup applies every op targeting one subtree through a single
// cached tree handle, then commits it exactly once (spec §4.7 phase 2
// step 2), whether the subtree was named by one op or by many.
func applyGroup(g *grove.Grove, cache *TreeCache, grp group) (cost.OperationCost, error) {
	var oc cost.OperationCost
	t, sub, err := cache.Open(grp.path)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}

	for _, qop := range grp.ops {
		sub, err := applyOne(g, t, grp.path, qop.Key, qop.Op)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
	}

	sub, err = t.Commit(false)
	oc.Add(sub)
	return oc, err
}

func applyOne(g *grove.Grove, t *avl.Tree, path grove.Path, key []byte, op Op) (cost.OperationCost, error) {
	var oc cost.OperationCost

	switch op.Kind {
	case InsertOnly:
		sub, err := putElement(g, t, path, key, op.Element, true)
		oc.Add(sub)
		return oc, err

	case InsertOrReplace, replaceNonMerkTreeRoot:
		sub, err := putElement(g, t, path, key, op.Element, false)
		oc.Add(sub)
		return oc, err

	case Replace:
		_, sub, err := t.Get(key)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
		sub, err = putElement(g, t, path, key, op.Element, false)
		oc.Add(sub)
		return oc, err

	case Patch:
		e, sub, err := t.Get(key)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
		if e.Tag != element.TagSumItem && e.Tag != element.TagItemWithSumItem {
			return oc, ErrWrongElementKind
		}
		e.SumValue += op.Delta
		sub, err = putElement(g, t, path, key, e, false)
		oc.Add(sub)
		return oc, err

	case RefreshReference:
		e, sub, err := t.Get(key)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
		if e.Tag != element.TagReference {
			return oc, ErrWrongElementKind
		}
		sub, err = putElement(g, t, path, key, e, false)
		oc.Add(sub)
		return oc, err

	case Delete:
		sub, err := t.Delete(key)
		oc.Add(sub)
		return oc, err

	case DeleteTree:
		sub, err := applyDeleteTree(g, t, path, key, op)
		oc.Add(sub)
		return oc, err

	default:
		return oc, fmt.Errorf("batch: unsupported op kind %d", op.Kind)
	}
}

// putElement recomputes e's value_hash (refreshing its root_key/
// aggregate fields along the way, for a Merk-type tag) and writes it.
func putElement(g *grove.Grove, t *avl.Tree, path grove.Path, key []byte, e element.Element, onlyIfAbsent bool) (cost.OperationCost, error) {
	var oc cost.OperationCost
	e, vh, sub, err := g.ValueHashFor(path, key, e)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	sub, err = t.Put(key, e.Marshal(), vh, onlyIfAbsent)
	oc.Add(sub)
	return oc, err
}

// applyDeleteTree removes a Tree-like element, refusing non-empty
// children unless op.Cascade asks for a full recursive purge first
// (spec §9's DeleteTree/Cascade decision).
func applyDeleteTree(g *grove.Grove, t *avl.Tree, path grove.Path, key []byte, op Op) (cost.OperationCost, error) {
	var oc cost.OperationCost
	e, sub, err := t.Get(key)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	if e.Tag != op.TreeType {
		return oc, ErrWrongElementKind
	}

	childPath := grove.AppendKey(path, key)
	empty, sub, err := subtreeIsEmpty(g, childPath, e)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	if !empty {
		if !op.Cascade {
			return oc, ErrNonEmptySubtree
		}
		sub, err := purgeSubtree(g, childPath, e)
		oc.Add(sub)
		if err != nil {
			return oc, err
		}
	}

	sub, err = t.Delete(key)
	oc.Add(sub)
	return oc, err
}

func subtreeIsEmpty(g *grove.Grove, childPath grove.Path, e element.Element) (bool, cost.OperationCost, error) {
	var oc cost.OperationCost
	if e.Tag.IsNonMerk() {
		switch e.Tag {
		case element.TagMmrTree:
			return e.MmrSize == 0, oc, nil
		case element.TagBulkAppendTree, element.TagCommitmentTree:
			return e.TotalCount == 0, oc, nil
		case element.TagDenseFixedSizeTree:
			return e.DenseCount == 0, oc, nil
		}
		return true, oc, nil
	}
	ct, sub, err := avl.Open(g.CtxFor(childPath), avl.FeatureBasic)
	oc.Add(sub)
	if err != nil {
		return false, oc, err
	}
	return ct.IsEmpty(), oc, nil
}

// purgeSubtree wipes a non-empty subtree's entire data footprint ahead
// of its own describing key being deleted from its parent. A Merk-type
// child is walked so any nested Merk/non-Merk grandchildren are purged
// first; a non-Merk child's whole namespace is wiped directly via
// storage.Context.Purge.
func purgeSubtree(g *grove.Grove, childPath grove.Path, e element.Element) (cost.OperationCost, error) {
	var oc cost.OperationCost
	if e.Tag.IsNonMerk() {
		return oc, g.CtxFor(childPath).Purge()
	}

	ct, sub, err := avl.Open(g.CtxFor(childPath), avl.FeatureBasic)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}

	sub, err = ct.Walk(func(k []byte, ge element.Element) error {
		if ge.Tag.Kind() != element.KindSubtree {
			return nil
		}
		grandchildPath := grove.AppendKey(childPath, k)
		empty, sub2, err2 := subtreeIsEmpty(g, grandchildPath, ge)
		oc.Add(sub2)
		if err2 != nil {
			return err2
		}
		if empty {
			return nil
		}
		sub2, err2 = purgeSubtree(g, grandchildPath, ge)
		oc.Add(sub2)
		return err2
	})
	oc.Add(sub)
	if err != nil {
		return oc, err
	}

	return oc, g.CtxFor(childPath).Purge()
}
