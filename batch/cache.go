package batch

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/grove"
)

// TreeCache holds at most one opened *avl.Tree per subtree for the
// lifetime of a single Batch.Apply call, so a subtree touched by
// several ops in the same batch is opened once and accumulates every
// op's mutation before a single Commit (spec §4.7 phase 2 step 2).
// Grounded on cache/memory/memory.go's golang-lru wrapping, swapping
// cached index terms for opened Merk handles.
//
// The cache is sized to the number of distinct subtrees the batch
// actually touches (see Batch.Apply), so within one batch it never
// evicts a dirty, not-yet-committed tree — an eviction there would
// silently drop uncommitted writes.
type TreeCache struct {
	g   *grove.Grove
	lru *lru.Cache[string, *avl.Tree]
	mu  sync.Mutex
}

// NewTreeCache returns a TreeCache backed by g, sized for size distinct
// subtrees.
func NewTreeCache(g *grove.Grove, size int) (*TreeCache, error) {
	if size < 1 {
		size = 1
	}
	l, err := lru.New[string, *avl.Tree](size)
	if err != nil {
		return nil, err
	}
	return &TreeCache{g: g, lru: l}, nil
}

// Open returns the cached tree for path, opening and caching it on
// first use within this batch.
func (c *TreeCache) Open(path grove.Path) (*avl.Tree, cost.OperationCost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var oc cost.OperationCost
	k := grove.PathKey(path)
	if t, ok := c.lru.Get(k); ok {
		return t, oc, nil
	}
	feature, sub, err := c.g.FeatureForPath(path)
	oc.Add(sub)
	if err != nil {
		return nil, oc, err
	}
	t, sub, err := avl.Open(c.g.CtxFor(path), feature)
	oc.Add(sub)
	if err != nil {
		return nil, oc, err
	}
	c.lru.Add(k, t)
	return t, oc, nil
}
