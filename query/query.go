// Package query evaluates a PathQuery against a grove (spec §6): a
// path naming the starting subtree, a list of QueryItems selecting
// keys within it, and an optional subquery describing how to keep
// descending into any matched element that is itself a subtree.
package query

import (
	"bytes"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/grove"
)

// ItemKind discriminates a QueryItem variant (spec §6's QueryItem enum).
type ItemKind uint8

const (
	Key ItemKind = iota
	Range
	RangeInclusive
	RangeFull
	RangeFrom
	RangeTo
	RangeToInclusive
	RangeAfter
	RangeAfterTo
	RangeAfterToInclusive
)

// QueryItem selects one key or one contiguous key range within a
// subtree. Only the fields relevant to Kind are populated.
type QueryItem struct {
	Kind     ItemKind
	Low      []byte // Key, Range/RangeInclusive from, RangeFrom/RangeAfter(*) from
	High     []byte // Range/RangeInclusive/RangeTo/RangeToInclusive/RangeAfterTo(*) to
}

func KeyItem(key []byte) QueryItem               { return QueryItem{Kind: Key, Low: key} }
func RangeItem(from, to []byte) QueryItem        { return QueryItem{Kind: Range, Low: from, High: to} }
func RangeInclusiveItem(from, to []byte) QueryItem {
	return QueryItem{Kind: RangeInclusive, Low: from, High: to}
}
func RangeFullItem() QueryItem             { return QueryItem{Kind: RangeFull} }
func RangeFromItem(from []byte) QueryItem  { return QueryItem{Kind: RangeFrom, Low: from} }
func RangeToItem(to []byte) QueryItem      { return QueryItem{Kind: RangeTo, High: to} }
func RangeToInclusiveItem(to []byte) QueryItem {
	return QueryItem{Kind: RangeToInclusive, High: to}
}
func RangeAfterItem(after []byte) QueryItem { return QueryItem{Kind: RangeAfter, Low: after} }
func RangeAfterToItem(after, to []byte) QueryItem {
	return QueryItem{Kind: RangeAfterTo, Low: after, High: to}
}
func RangeAfterToInclusiveItem(after, to []byte) QueryItem {
	return QueryItem{Kind: RangeAfterToInclusive, Low: after, High: to}
}

// Bounds translates item into the (low, high) avl.RangeBound pair a
// range-shaped proof or walk needs, including Key (a degenerate
// inclusive [k, k] range) so a single bounds call covers every kind.
func (item QueryItem) Bounds() (low, high *avl.RangeBound) {
	if item.Kind == Key {
		return &avl.RangeBound{Key: item.Low, Inclusive: true}, &avl.RangeBound{Key: item.Low, Inclusive: true}
	}
	return item.bounds()
}

// bounds translates item into the (low, high) avl.RangeBound pair
// WalkRange needs. Only called for non-Key kinds.
func (item QueryItem) bounds() (low, high *avl.RangeBound) {
	switch item.Kind {
	case Range:
		return &avl.RangeBound{Key: item.Low, Inclusive: true}, &avl.RangeBound{Key: item.High, Inclusive: false}
	case RangeInclusive:
		return &avl.RangeBound{Key: item.Low, Inclusive: true}, &avl.RangeBound{Key: item.High, Inclusive: true}
	case RangeFull:
		return nil, nil
	case RangeFrom:
		return &avl.RangeBound{Key: item.Low, Inclusive: true}, nil
	case RangeTo:
		return nil, &avl.RangeBound{Key: item.High, Inclusive: false}
	case RangeToInclusive:
		return nil, &avl.RangeBound{Key: item.High, Inclusive: true}
	case RangeAfter:
		return &avl.RangeBound{Key: item.Low, Inclusive: false}, nil
	case RangeAfterTo:
		return &avl.RangeBound{Key: item.Low, Inclusive: false}, &avl.RangeBound{Key: item.High, Inclusive: false}
	case RangeAfterToInclusive:
		return &avl.RangeBound{Key: item.Low, Inclusive: false}, &avl.RangeBound{Key: item.High, Inclusive: true}
	default:
		return nil, nil
	}
}

// Query is one level of a PathQuery: the items to match in the
// subtree named by the enclosing path, plus how to continue into any
// matched subtree element (spec §6: default_subquery,
// conditional_subqueries, left_to_right, add_parent_tree_on_subquery).
type Query struct {
	Items       []QueryItem
	LeftToRight bool
	Limit       *uint16
	Offset      *uint16

	// DefaultSubquery applies to every matched subtree element that has
	// no entry in ConditionalSubqueries.
	DefaultSubquery *Query
	// ConditionalSubqueries overrides DefaultSubquery for specific
	// matched keys (keyed by the raw key bytes).
	ConditionalSubqueries map[string]*Query

	// AddParentTreeOnSubquery includes the matched subtree element
	// itself in the results, in addition to whatever its subquery
	// returns from inside it.
	AddParentTreeOnSubquery bool
}

func (q *Query) subqueryFor(key []byte) *Query {
	if q.ConditionalSubqueries != nil {
		if sub, ok := q.ConditionalSubqueries[string(key)]; ok {
			return sub
		}
	}
	return q.DefaultSubquery
}

// PathQuery names the subtree a top-level Query starts matching
// within.
type PathQuery struct {
	Path  grove.Path
	Query Query
}

// Result is one matched element, with the full path of the subtree it
// lives in (which may be deeper than PathQuery.Path once a subquery
// has descended).
type Result struct {
	Path    grove.Path
	Key     []byte
	Element element.Element
}

type budget struct {
	offset int
	limit  int // negative means unlimited
}

func newBudget(q *Query) *budget {
	b := &budget{limit: -1}
	if q.Offset != nil {
		b.offset = int(*q.Offset)
	}
	if q.Limit != nil {
		b.limit = int(*q.Limit)
	}
	return b
}

// Evaluate runs pq against g, returning every matched leaf (and any
// AddParentTreeOnSubquery subtree elements) in query order, honoring
// limit/offset across the whole nested traversal.
func Evaluate(g *grove.Grove, pq PathQuery) ([]Result, cost.OperationCost, error) {
	b := newBudget(&pq.Query)
	return evalQuery(g, pq.Path, &pq.Query, b)
}

func evalQuery(g *grove.Grove, path grove.Path, q *Query, b *budget) ([]Result, cost.OperationCost, error) {
	var oc cost.OperationCost
	var out []Result

	feature, sub, err := g.FeatureForPath(path)
	oc.Add(sub)
	if err != nil {
		return nil, oc, err
	}
	t, sub, err := avl.Open(g.CtxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return nil, oc, err
	}

	items := q.Items
	if len(items) == 0 {
		items = []QueryItem{RangeFullItem()}
	}
	if !q.LeftToRight {
		items = reversed(items)
	}

	for _, item := range items {
		if b.limit == 0 {
			break
		}
		matches, sub, err := matchItem(t, item, !q.LeftToRight)
		oc.Add(sub)
		if err != nil {
			return nil, oc, err
		}

		for _, m := range matches {
			if b.limit == 0 {
				break
			}
			if b.offset > 0 {
				b.offset--
				continue
			}

			sub := q.subqueryFor(m.Key)
			if sub != nil && m.Element.IsSubtree() {
				if q.AddParentTreeOnSubquery {
					out = append(out, Result{Path: path, Key: m.Key, Element: m.Element})
				}
				childPath := grove.AppendKey(path, m.Key)
				children, csub, err := evalQuery(g, childPath, sub, b)
				oc.Add(csub)
				if err != nil {
					return nil, oc, err
				}
				out = append(out, children...)
				continue
			}

			out = append(out, Result{Path: path, Key: m.Key, Element: m.Element})
			if b.limit > 0 {
				b.limit--
			}
		}
	}
	return out, oc, nil
}

type match struct {
	Key     []byte
	Element element.Element
}

func matchItem(t *avl.Tree, item QueryItem, reverse bool) ([]match, cost.OperationCost, error) {
	var oc cost.OperationCost
	if item.Kind == Key {
		e, sub, err := t.Get(item.Low)
		oc.Add(sub)
		if err == avl.ErrKeyNotFound {
			return nil, oc, nil
		}
		if err != nil {
			return nil, oc, err
		}
		return []match{{Key: item.Low, Element: e}}, oc, nil
	}

	low, high := item.bounds()
	var matches []match
	sub, err := t.WalkRange(low, high, reverse, func(k []byte, e element.Element) error {
		matches = append(matches, match{Key: append([]byte(nil), k...), Element: e})
		return nil
	})
	oc.Add(sub)
	return matches, oc, err
}

func reversed(items []QueryItem) []QueryItem {
	out := make([]QueryItem, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

// SortItems orders items ascending by their low bound (Key items sort
// by their own key), the convention PathQuery construction is expected
// to already follow; exported so callers assembling a Query from
// unordered user input can normalize it before evaluating.
func SortItems(items []QueryItem) []QueryItem {
	out := make([]QueryItem, len(items))
	copy(out, items)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && itemKey(out[j-1]) != nil && bytes.Compare(itemKey(out[j-1]), itemKey(out[j])) > 0; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func itemKey(item QueryItem) []byte {
	if item.Low != nil {
		return item.Low
	}
	return item.High
}
