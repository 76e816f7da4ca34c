package avl

import (
	"bytes"

	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
)

// VisitFunc is called once per node in key order during Walk.
type VisitFunc func(key []byte, e element.Element) error

// Walk performs an in-order traversal of the whole tree, used by the
// batch engine to enumerate a subtree's keys when purging it (the
// query and proof layers use WalkRange and Prove instead).
func (t *Tree) Walk(visit VisitFunc) (cost.OperationCost, error) {
	var total cost.OperationCost
	oc, err := t.walkLink(t.root, visit)
	total.Add(oc)
	return total, err
}

func (t *Tree) walkLink(l *Link, visit VisitFunc) (cost.OperationCost, error) {
	var total cost.OperationCost
	if l == nil {
		return total, nil
	}
	n, oc, err := t.load(l)
	total.Add(oc)
	if err != nil {
		return total, err
	}

	oc, err = t.walkLink(n.Left, visit)
	total.Add(oc)
	if err != nil {
		return total, err
	}

	e, err := element.Unmarshal(n.ElementBytes)
	if err != nil {
		return total, err
	}
	if err := visit(n.Key, e); err != nil {
		return total, err
	}

	oc, err = t.walkLink(n.Right, visit)
	total.Add(oc)
	return total, err
}

// RangeBound names one edge of a key range: nil means unbounded on
// that side. Used by WalkRange to prune whole subtrees the query layer
// (spec §6's QueryItem range variants) has already excluded, rather
// than visiting every node the way Walk does.
type RangeBound struct {
	Key       []byte
	Inclusive bool
}

func belowLow(key []byte, low *RangeBound) bool {
	if low == nil {
		return false
	}
	c := bytes.Compare(key, low.Key)
	if low.Inclusive {
		return c < 0
	}
	return c <= 0
}

func aboveHigh(key []byte, high *RangeBound) bool {
	if high == nil {
		return false
	}
	c := bytes.Compare(key, high.Key)
	if high.Inclusive {
		return c > 0
	}
	return c >= 0
}

// WalkRange visits every key in [low, high] (each bound optionally
// exclusive, or nil for unbounded), in ascending order or descending
// when reverse is set. A subtree entirely outside the range is never
// loaded from storage.
func (t *Tree) WalkRange(low, high *RangeBound, reverse bool, visit VisitFunc) (cost.OperationCost, error) {
	var total cost.OperationCost
	oc, err := t.walkRangeLink(t.root, low, high, reverse, visit)
	total.Add(oc)
	return total, err
}

func (t *Tree) walkRangeLink(l *Link, low, high *RangeBound, reverse bool, visit VisitFunc) (cost.OperationCost, error) {
	var total cost.OperationCost
	if l == nil {
		return total, nil
	}
	n, oc, err := t.load(l)
	total.Add(oc)
	if err != nil {
		return total, err
	}

	// left holds keys < n.Key, right holds keys > n.Key: once n.Key
	// itself is below low (or above high), that whole side is out of
	// range too and never needs loading.
	skipLeft := belowLow(n.Key, low)
	skipRight := aboveHigh(n.Key, high)

	first, second := n.Left, n.Right
	skipFirst, skipSecond := skipLeft, skipRight
	if reverse {
		first, second = n.Right, n.Left
		skipFirst, skipSecond = skipRight, skipLeft
	}

	if !skipFirst {
		oc, err := t.walkRangeLink(first, low, high, reverse, visit)
		total.Add(oc)
		if err != nil {
			return total, err
		}
	}

	if !belowLow(n.Key, low) && !aboveHigh(n.Key, high) {
		e, err := element.Unmarshal(n.ElementBytes)
		if err != nil {
			return total, err
		}
		if err := visit(n.Key, e); err != nil {
			return total, err
		}
	}

	if !skipSecond {
		oc, err := t.walkRangeLink(second, low, high, reverse, visit)
		total.Add(oc)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
