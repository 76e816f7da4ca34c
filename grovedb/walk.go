package grovedb

import (
	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/grove"
)

// Walk performs a read-only, sorted-key traversal over the committed
// keys of the Merk subtree named by path, left-to-right unless reverse
// is set. visit returning an error stops the walk early and returns
// that error. It is a thin wrapper over avl.Tree.WalkRange with both
// ends unbounded; query.Evaluate does its own range iteration through
// avl and does not use it. It does not see uncommitted writes from an
// open Transaction on the same GroveDB.
func (db *GroveDB) Walk(path grove.Path, reverse bool, visit func(key []byte, e element.Element) error) (cost.OperationCost, error) {
	var oc cost.OperationCost
	feature, sub, err := db.g.FeatureForPath(path)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	t, sub, err := avl.Open(db.g.CtxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return oc, err
	}
	sub, err = t.WalkRange(nil, nil, reverse, avl.VisitFunc(visit))
	oc.Add(sub)
	return oc, err
}
