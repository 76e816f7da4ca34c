package storage

// Context scopes storage access to one subtree's Prefix, exposing the
// four namespaces without requiring every caller to thread Prefix
// through by hand (spec §4.3: "A StorageContext scoped to a subtree
// path automatically prefixes every key with the subtree's 32-byte
// prefix"). Context is backed by either a bare Engine (immediate,
// auto-committing reads/writes) or a Txn (isolated, explicit commit).
type Context struct {
	prefix Prefix
	engine Engine
	txn    Txn // nil when this Context is non-transactional
}

// NewContext returns an immediate (non-transactional) Context over
// engine, scoped to prefix. Every Put/Delete call commits by itself.
func NewContext(engine Engine, prefix Prefix) *Context {
	return &Context{prefix: prefix, engine: engine}
}

// NewTransactionalContext returns a Context whose writes are staged
// against txn until the caller commits txn directly.
func NewTransactionalContext(txn Txn, prefix Prefix) *Context {
	return &Context{prefix: prefix, txn: txn}
}

// Prefix returns the subtree prefix this context is scoped to.
func (c *Context) Prefix() Prefix {
	return c.prefix
}

// Get reads one key from namespace ns.
func (c *Context) Get(ns Namespace, key []byte) ([]byte, error) {
	if c.txn != nil {
		return c.txn.Get(ns, c.prefix, key)
	}
	return c.engine.Get(ns, c.prefix, key)
}

// Iterate walks every key in namespace ns within this context's prefix.
func (c *Context) Iterate(ns Namespace, reverse bool, fn func(localKey, value []byte) (bool, error)) error {
	if c.txn != nil {
		return c.txn.Iterate(ns, c.prefix, reverse, fn)
	}
	return c.engine.Iterate(ns, c.prefix, reverse, fn)
}

// Put writes key/value into namespace ns. For an immediate Context this
// commits a single-op transaction; for a transactional Context it
// stages the write.
func (c *Context) Put(ns Namespace, key, value []byte) error {
	if c.txn != nil {
		return c.txn.Put(ns, c.prefix, key, value)
	}
	return c.withAutoCommit(func(t Txn) error { return t.Put(ns, c.prefix, key, value) })
}

// Delete removes key from namespace ns.
func (c *Context) Delete(ns Namespace, key []byte) error {
	if c.txn != nil {
		return c.txn.Delete(ns, c.prefix, key)
	}
	return c.withAutoCommit(func(t Txn) error { return t.Delete(ns, c.prefix, key) })
}

// CommitBatch flushes b atomically: against this context's existing
// transaction if it has one, otherwise against a fresh auto-committed
// transaction on the underlying engine.
func (c *Context) CommitBatch(b *Batch) error {
	if c.txn != nil {
		return c.txn.ApplyBatch(b)
	}
	return c.withAutoCommit(func(t Txn) error { return t.ApplyBatch(b) })
}

// Purge deletes every key this context can see across Main, Aux, and
// Roots (every namespace a subtree's own data can occupy; Meta is
// global and never prefixed by a subtree, so Purge never touches it).
// Used by the batch engine's cascading DeleteTree (spec §9): wiping a
// non-Merk tree's data namespace, or a Merk subtree's own node storage
// once its children have already been purged.
func (c *Context) Purge() error {
	for _, ns := range [...]Namespace{Main, Aux, Roots} {
		var keys [][]byte
		err := c.Iterate(ns, false, func(localKey, _ []byte) (bool, error) {
			keys = append(keys, append([]byte(nil), localKey...))
			return true, nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := c.Delete(ns, k); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) withAutoCommit(fn func(Txn) error) error {
	t, err := c.engine.Begin(true)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		t.Discard()
		return err
	}
	return t.Commit()
}
