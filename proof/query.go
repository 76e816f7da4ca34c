package proof

import (
	"fmt"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/grove"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/query"
)

// ErrProofMismatch covers every way a GroveDBProof fails to check out
// against the claimed root: a malformed chunk, a chunk root that
// disagrees with its siblings, or a cross-layer binding that doesn't
// match the parent's disclosed child root.
var ErrProofMismatch = fmt.Errorf("proof: verification failed")

type proveBudget struct {
	offset int
	limit  int // negative means unlimited
}

func newProveBudget(q *query.Query) *proveBudget {
	b := &proveBudget{limit: -1}
	if q.Offset != nil {
		b.offset = int(*q.Offset)
	}
	if q.Limit != nil {
		b.limit = int(*q.Limit)
	}
	return b
}

// ProveQuery runs pq against g the same way query.Evaluate does,
// emitting a GroveDBProof instead of plain Results (spec §4.9.2).
//
// Only Merk-to-Merk descents become nested LayerProof.LowerLayers
// entries: PathQuery's subquery mechanism only ever names a nested
// subtree by key, and the four non-Merk trees address their contents
// by leaf index or position instead, so a matched element that holds
// one of them is disclosed at this layer like any other value and
// proven (if needed) through that tree's own Prove/Verify* pair in
// package trees rather than through a query subquery.
func ProveQuery(g *grove.Grove, pq query.PathQuery) (GroveDBProof, []query.Result, cost.OperationCost, error) {
	b := newProveBudget(&pq.Query)
	lp, results, oc, err := proveLayer(g, pq.Path, &pq.Query, b)
	if err != nil {
		return GroveDBProof{}, nil, oc, err
	}
	return newGroveDBProof(lp), results, oc, nil
}

func proveLayer(g *grove.Grove, path grove.Path, q *query.Query, b *proveBudget) (LayerProof, []query.Result, cost.OperationCost, error) {
	var oc cost.OperationCost
	var results []query.Result

	feature, sub, err := g.FeatureForPath(path)
	oc.Add(sub)
	if err != nil {
		return LayerProof{}, nil, oc, err
	}
	t, sub, err := avl.Open(g.CtxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return LayerProof{}, nil, oc, err
	}

	items := q.Items
	if len(items) == 0 {
		items = []query.QueryItem{query.RangeFullItem()}
	}
	reverse := !q.LeftToRight
	if reverse {
		items = reverseQueryItems(items)
	}

	lp := LayerProof{}
	var chunks [][]avl.ProofOp

	for _, item := range items {
		if b.limit == 0 {
			break
		}
		low, high := item.Bounds()
		ops, sub, err := t.Prove(low, high, reverse)
		oc.Add(sub)
		if err != nil {
			return LayerProof{}, nil, oc, err
		}
		chunks = append(chunks, ops)

		_, revealed, err := avl.Execute(ops, feature)
		if err != nil {
			return LayerProof{}, nil, oc, err
		}

		for _, r := range revealed {
			if b.limit == 0 {
				break
			}
			if b.offset > 0 {
				b.offset--
				continue
			}

			sub := conditionalSubquery(q, r.Key)
			if sub != nil && r.Element.IsSubtree() && !r.Element.Tag.IsNonMerk() {
				if q.AddParentTreeOnSubquery {
					results = append(results, query.Result{Path: path, Key: r.Key, Element: r.Element})
				}
				childPath := grove.AppendKey(path, r.Key)
				childLP, children, csub, err := proveLayer(g, childPath, sub, b)
				oc.Add(csub)
				if err != nil {
					return LayerProof{}, nil, oc, err
				}
				if lp.LowerLayers == nil {
					lp.LowerLayers = map[string]LayerProof{}
				}
				lp.LowerLayers[string(r.Key)] = childLP
				results = append(results, children...)
				continue
			}

			results = append(results, query.Result{Path: path, Key: r.Key, Element: r.Element})
			if b.limit > 0 {
				b.limit--
			}
		}
	}

	lp.MerkProof = MerkProofBytes(chunks)
	return lp, results, oc, nil
}

func conditionalSubquery(q *query.Query, key []byte) *query.Query {
	if q.ConditionalSubqueries != nil {
		if sub, ok := q.ConditionalSubqueries[string(key)]; ok {
			return sub
		}
	}
	return q.DefaultSubquery
}

func reverseQueryItems(items []query.QueryItem) []query.QueryItem {
	out := make([]query.QueryItem, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

// VerifyQuery replays proof against pq, checking every layer's chunks
// reconstruct a consistent root, every cross-layer binding matches
// (value_hash = combine_hash(Blake3(elem_bytes), child_root), spec
// §4.9.2), and the top-level root equals expectedRoot. It returns the
// same []query.Result shape query.Evaluate would, reconstructed purely
// from what the proof discloses (no storage access).
func VerifyQuery(proof GroveDBProof, pq query.PathQuery, expectedRoot hash.Digest) ([]query.Result, error) {
	lp := proof.V1
	if proof.Version == V0 {
		lp = LayerProof{MerkProof: proof.V0}
	}

	b := newProveBudget(&pq.Query)
	root, results, err := verifyLayer(lp, pq.Path, &pq.Query, b)
	if err != nil {
		return nil, err
	}
	if root != expectedRoot {
		return nil, ErrProofMismatch
	}
	return results, nil
}

func verifyLayer(lp LayerProof, path grove.Path, q *query.Query, b *proveBudget) (hash.Digest, []query.Result, error) {
	chunks, err := lp.MerkProof.MerkProof()
	if err != nil {
		return hash.Zero, nil, err
	}
	if len(chunks) == 0 && b.limit != 0 {
		return hash.Zero, nil, ErrProofMismatch
	}
	if len(chunks) == 0 {
		return hash.Zero, nil, nil
	}

	items := q.Items
	if len(items) == 0 {
		items = []query.QueryItem{query.RangeFullItem()}
	}
	reverse := !q.LeftToRight
	if reverse {
		items = reverseQueryItems(items)
	}
	if len(chunks) > len(items) {
		return hash.Zero, nil, ErrProofMismatch
	}

	// The stack machine only needs to know whether counts are baked
	// into node_hash, and a proof never descends into a feature that
	// does (see avl.Execute's own doc comment), so plain FeatureBasic
	// always suffices for replay.
	feature := avl.FeatureBasic

	var root hash.Digest
	var results []query.Result
	processed := 0
	for i := range chunks {
		if b.limit == 0 {
			break
		}
		processed++
		chunkRoot, revealed, err := avl.Execute(chunks[i], feature)
		if err != nil {
			return hash.Zero, nil, err
		}
		if i == 0 {
			root = chunkRoot
		} else if chunkRoot != root {
			return hash.Zero, nil, ErrProofMismatch
		}

		for _, r := range revealed {
			if b.limit == 0 {
				break
			}
			if b.offset > 0 {
				b.offset--
				continue
			}

			sub := conditionalSubquery(q, r.Key)
			if sub != nil && r.Element.IsSubtree() && !r.Element.Tag.IsNonMerk() {
				if q.AddParentTreeOnSubquery {
					results = append(results, query.Result{Path: path, Key: r.Key, Element: r.Element})
				}
				childLP, ok := lp.LowerLayers[string(r.Key)]
				if !ok {
					return hash.Zero, nil, ErrProofMismatch
				}
				childPath := grove.AppendKey(path, r.Key)
				childRoot, children, err := verifyLayer(childLP, childPath, sub, b)
				if err != nil {
					return hash.Zero, nil, err
				}
				// cross-layer binding: the parent proof disclosed
				// value_hash = combine_hash(Blake3(elem_bytes), child_root)
				// for this key (spec §4.9.2); it must match what the
				// child's own reconstructed root implies.
				if r.Element.ValueHash(childRoot) != r.ValueHash {
					return hash.Zero, nil, ErrProofMismatch
				}
				results = append(results, children...)
				continue
			}

			results = append(results, query.Result{Path: path, Key: r.Key, Element: r.Element})
			if b.limit > 0 {
				b.limit--
			}
		}
	}
	// A prover only stops short of proving every item once the limit
	// hits zero; fewer chunks than items with budget still open means
	// the proof silently dropped coverage it owed.
	if processed < len(items) && b.limit != 0 {
		return hash.Zero, nil, ErrProofMismatch
	}
	return root, results, nil
}
