package storage

// opKind distinguishes a put from a delete inside a Batch.
type opKind uint8

const (
	opPut opKind = iota
	opDelete
)

type batchOp struct {
	kind  opKind
	ns    Namespace
	p     Prefix
	key   []byte
	value []byte
}

// Batch accumulates heterogeneous put/delete operations across
// namespaces and subtree prefixes, to be flushed atomically against a
// single Txn (spec §4.3: "a StorageBatch accumulates heterogeneous
// put/delete ops across namespaces and subtrees, then is flushed
// atomically").
type Batch struct {
	ops []batchOp
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages a write of key/value in namespace ns scoped to prefix p.
func (b *Batch) Put(ns Namespace, p Prefix, key, value []byte) {
	cp := append([]byte(nil), value...)
	b.ops = append(b.ops, batchOp{kind: opPut, ns: ns, p: p, key: append([]byte(nil), key...), value: cp})
}

// Delete stages a removal of key in namespace ns scoped to prefix p.
func (b *Batch) Delete(ns Namespace, p Prefix, key []byte) {
	b.ops = append(b.ops, batchOp{kind: opDelete, ns: ns, p: p, key: append([]byte(nil), key...)})
}

// Len returns the number of staged operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Merge appends every op of other onto b, preserving order.
func (b *Batch) Merge(other *Batch) {
	b.ops = append(b.ops, other.ops...)
}
