package avl

import (
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/storage"
)

// Commit persists every dirty (Uncommitted) node reachable from the
// root into the main namespace, updates the root pointer in the roots
// namespace, and transitions persisted links to Loaded. When prune is
// true, persisted links are immediately pruned back to Reference
// (Node dropped), keeping the resident set proportional to recently
// touched paths rather than total tree size (spec §4.4, §5).
func (t *Tree) Commit(prune bool) (cost.OperationCost, error) {
	var total cost.OperationCost
	oc, err := t.commitLink(t.root, prune)
	total.Add(oc)
	if err != nil {
		return total, err
	}

	if t.root == nil {
		if err := t.ctx.Delete(storage.Roots, rootStorageKey); err != nil {
			return total, err
		}
		return total, nil
	}
	if err := t.ctx.Put(storage.Roots, rootStorageKey, t.root.Key); err != nil {
		return total, err
	}
	total.Storage.Add(cost.StorageCost{AddedBytes: uint64(len(t.root.Key))})
	return total, nil
}

func (t *Tree) commitLink(l *Link, prune bool) (cost.OperationCost, error) {
	var total cost.OperationCost
	if l == nil || l.State == LinkReference || l.State == LinkLoaded {
		return total, nil
	}

	n := l.Node
	oc, err := t.commitLink(n.Left, prune)
	total.Add(oc)
	if err != nil {
		return total, err
	}
	oc, err = t.commitLink(n.Right, prune)
	total.Add(oc)
	if err != nil {
		return total, err
	}

	raw := encodeNode(n)
	if err := t.ctx.Put(storage.Main, n.Key, raw); err != nil {
		return total, err
	}
	total.Storage.Add(cost.StorageCost{AddedBytes: uint64(len(raw))})

	l.State = LinkLoaded
	if prune {
		l.Node = nil
		l.State = LinkReference
	}
	return total, nil
}
