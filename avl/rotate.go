package avl

import "github.com/grovedb/grovedb/cost"

// maybeBalance restores the AVL invariant at n, rotating at most twice
// (spec §4.4). It may return a different node as the new subtree root.
func (t *Tree) maybeBalance(n *Node) (*Node, cost.OperationCost, error) {
	var total cost.OperationCost
	bf := n.balanceFactor()
	if bf >= -1 && bf <= 1 {
		return n, total, nil
	}

	leanLeft := bf < 0 // left-heavy: the overweight child is on the left
	var heavy *Node
	var oc cost.OperationCost
	var err error
	if leanLeft {
		heavy, oc, err = t.load(n.Left)
	} else {
		heavy, oc, err = t.load(n.Right)
	}
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}

	heavyLeansOpposite := (leanLeft && heavy.balanceFactor() > 0) || (!leanLeft && heavy.balanceFactor() < 0)

	if heavyLeansOpposite {
		rotated, oc, err := t.rotate(heavy, leanLeft)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		if leanLeft {
			n.Left = fromNode(rotated, t.feature)
		} else {
			n.Right = fromNode(rotated, t.feature)
		}
		n.recomputeAggregate()
	}

	result, oc, err := t.rotate(n, !leanLeft)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}

	// Rotation can bubble imbalance further up; rebalance again.
	return t.maybeBalance2(result, total)
}

// maybeBalance2 re-checks the invariant after a rotation without
// re-entering the caller's own recursion, since the rotated node may
// itself now be unbalanced at one level removed.
func (t *Tree) maybeBalance2(n *Node, acc cost.OperationCost) (*Node, cost.OperationCost, error) {
	bf := n.balanceFactor()
	if bf >= -1 && bf <= 1 {
		return n, acc, nil
	}
	balanced, oc, err := t.maybeBalance(n)
	acc.Add(oc)
	return balanced, acc, err
}

// rotate performs a single rotation of n in the given direction:
// left=true rotates left (n's right child becomes the new subtree
// root), left=false rotates right (n's left child becomes the root).
func (t *Tree) rotate(n *Node, left bool) (*Node, cost.OperationCost, error) {
	var total cost.OperationCost
	if left {
		pivotLink := n.Right
		pivot, oc, err := t.load(pivotLink)
		total.Add(oc)
		if err != nil {
			return nil, total, err
		}
		n.Right = pivot.Left
		n.recomputeAggregate()
		pivot.Left = fromNode(n, t.feature)
		pivot.recomputeAggregate()
		return pivot, total, nil
	}

	pivotLink := n.Left
	pivot, oc, err := t.load(pivotLink)
	total.Add(oc)
	if err != nil {
		return nil, total, err
	}
	n.Left = pivot.Right
	n.recomputeAggregate()
	pivot.Right = fromNode(n, t.feature)
	pivot.recomputeAggregate()
	return pivot, total, nil
}
