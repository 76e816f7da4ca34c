package grovedb

import (
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/grove"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/multihash"
)

// MmrTreeAppend appends v to the MmrTree element at (path,key),
// returning its new root and the leaf index v was assigned (batch op
// MmrTreeAppend, spec §4.7, §4.8.1).
func (db *GroveDB) MmrTreeAppend(path grove.Path, key []byte, v []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	return db.g.AppendMMR(path, key, v)
}

// MmrTreeGet reads the leaf at leafIndex from the MmrTree element at
// (path,key).
func (db *GroveDB) MmrTreeGet(path grove.Path, key []byte, leafIndex uint64) ([]byte, cost.OperationCost, error) {
	return db.g.GetMMRValue(path, key, leafIndex)
}

// BulkAppend appends v to the BulkAppendTree element at (path,key)
// (batch op BulkAppend, spec §4.7, §4.8.2).
func (db *GroveDB) BulkAppend(path grove.Path, key []byte, v []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	return db.g.AppendBulk(path, key, v)
}

// BulkGet reads the entry at index from the BulkAppendTree element at
// (path,key).
func (db *GroveDB) BulkGet(path grove.Path, key []byte, index uint64) ([]byte, cost.OperationCost, error) {
	return db.g.GetBulkValue(path, key, index)
}

// DenseTreeInsert inserts v into the DenseFixedSizeTree element at
// (path,key), returning its fixed-capacity position (batch op
// DenseTreeInsert, spec §4.7, §4.8.3).
func (db *GroveDB) DenseTreeInsert(path grove.Path, key []byte, v []byte) (hash.Digest, uint16, cost.OperationCost, error) {
	return db.g.InsertDense(path, key, v)
}

// DenseTreeGet reads the entry at pos from the DenseFixedSizeTree
// element at (path,key).
func (db *GroveDB) DenseTreeGet(path grove.Path, key []byte, pos uint16) ([]byte, cost.OperationCost, error) {
	return db.g.GetDenseValue(path, key, pos)
}

// CommitmentTreeInsert inserts (cmx, rho, ciphertext) into the
// CommitmentTree element at (path,key), enforcing
// Options.CommitmentMemoSize against ciphertext's length (batch op
// CommitmentTreeInsert, spec §4.7, §4.8.4).
func (db *GroveDB) CommitmentTreeInsert(path grove.Path, key []byte, cmx, rho hash.Digest, ciphertext []byte) (hash.Digest, uint64, cost.OperationCost, error) {
	return db.g.InsertCommitment(path, key, cmx, rho, ciphertext)
}

// CommitmentTreeGet reads the record at position from the
// CommitmentTree element at (path,key).
func (db *GroveDB) CommitmentTreeGet(path grove.Path, key []byte, position uint64) (cmx, rho hash.Digest, ciphertext []byte, oc cost.OperationCost, err error) {
	return db.g.GetCommitmentValue(path, key, position)
}

// CommitmentTreeAnchor returns the CommitmentTree element's current
// Sinsemilla anchor, wrapped as a self-describing multihash so an
// external verifier can identify the anchor's hash function without
// out-of-band knowledge (spec §4.8.4; Domain Stack's go-multihash
// wiring).
func (db *GroveDB) CommitmentTreeAnchor(path grove.Path, key []byte) (multihash.CommitmentAnchor, cost.OperationCost, error) {
	anchor, oc, err := db.g.CommitmentAnchor(path, key)
	if err != nil {
		return nil, oc, err
	}
	ca, err := multihash.NewCommitmentAnchor(anchor)
	return ca, oc, err
}
