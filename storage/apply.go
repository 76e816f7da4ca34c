package storage

// ApplyBatch stages every operation of b against txn, in order. Shared
// by every Txn implementation so the batch-op semantics (later ops for
// the same key win) are defined once.
func ApplyBatch(txn Txn, b *Batch) error {
	for _, op := range b.ops {
		switch op.kind {
		case opPut:
			if err := txn.Put(op.ns, op.p, op.key, op.value); err != nil {
				return err
			}
		case opDelete:
			if err := txn.Delete(op.ns, op.p, op.key); err != nil {
				return err
			}
		}
	}
	return nil
}
