package avl

import "github.com/grovedb/grovedb/element"

// FeatureType selects which aggregate a Merk tracks and whether that
// aggregate is folded into node_hash (spec §3's `feature_type`, borne
// uniformly by every node of a given subtree since a Merk belongs to
// exactly one Element kind).
type FeatureType uint8

const (
	// FeatureBasic trees keep no aggregate; node_hash is the plain form.
	FeatureBasic FeatureType = iota
	FeatureSum
	FeatureBigSum
	FeatureCount
	FeatureCountSum
	// FeatureProvableCount bakes the subtree count into node_hash via
	// NodeHashWithCount, so the count itself becomes tamper-evident.
	FeatureProvableCount
	FeatureProvableCountSum
)

// BakesCountIntoHash reports whether f requires node_hash_with_count.
func (f FeatureType) BakesCountIntoHash() bool {
	return f == FeatureProvableCount || f == FeatureProvableCountSum
}

// Aggregate is the bottom-up rollup carried by every node: own
// contribution plus both children's (spec §3: "Aggregate ... at a node
// = own + left_aggregate + right_aggregate").
type Aggregate struct {
	Count  uint64
	Sum    int64
	BigSum element.Int128
}

// Add returns a + b.
func (a Aggregate) Add(b Aggregate) Aggregate {
	return Aggregate{
		Count:  a.Count + b.Count,
		Sum:    a.Sum + b.Sum,
		BigSum: a.BigSum.Add(b.BigSum),
	}
}

// ownAggregate computes a single node's own contribution (before
// folding in children) from its decoded Element, per f.
func ownAggregate(e element.Element, f FeatureType) Aggregate {
	switch f {
	case FeatureSum:
		return Aggregate{Sum: sumOf(e)}
	case FeatureBigSum:
		return Aggregate{BigSum: e.BigSumValue}
	case FeatureCount, FeatureProvableCount:
		return Aggregate{Count: 1}
	case FeatureCountSum, FeatureProvableCountSum:
		return Aggregate{Count: 1, Sum: sumOf(e)}
	default:
		return Aggregate{}
	}
}

func sumOf(e element.Element) int64 {
	switch e.Tag {
	case element.TagSumItem, element.TagItemWithSumItem, element.TagSumTree,
		element.TagCountSumTree, element.TagProvableCountSumTree:
		return e.SumValue
	default:
		return 0
	}
}
