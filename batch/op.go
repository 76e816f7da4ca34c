package batch

import (
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/grove"
	"github.com/grovedb/grovedb/hash"
)

// Kind discriminates a GroveOp variant (spec §4.7's op surface).
type Kind uint8

const (
	InsertOnly Kind = iota
	InsertOrReplace
	Replace
	Patch
	RefreshReference
	Delete
	DeleteTree
	MmrTreeAppend
	BulkAppend
	DenseTreeInsert
	CommitmentTreeInsert

	// Internal ops, synthesized only by Batch.Apply itself. from_ops-
	// style constructors (every exported constructor below) never
	// produce one; NewBatch rejects any that arrive from a caller.
	replaceNonMerkTreeRoot
)

func (k Kind) isInternal() bool {
	return k == replaceNonMerkTreeRoot
}

// Op is GroveOp: the mutation a QualifiedGroveDbOp asks for. Only the
// fields relevant to Kind are populated, the same discriminated-struct
// shape element.Element already uses for its own tagged union.
type Op struct {
	Kind Kind

	// InsertOnly, InsertOrReplace, Replace, and the internal
	// replaceNonMerkTreeRoot all carry the element to write.
	Element element.Element

	// Patch
	Delta int64

	// DeleteTree
	TreeType element.Tag
	Cascade  bool

	// MmrTreeAppend, BulkAppend, DenseTreeInsert
	Value []byte

	// CommitmentTreeInsert
	Cmx, Rho   hash.Digest
	Ciphertext []byte
}

// QualifiedGroveDbOp names the (path, key) an Op targets (spec §4.7).
type QualifiedGroveDbOp struct {
	Path grove.Path
	Key  []byte
	Op   Op
}

func qualify(path grove.Path, key []byte, op Op) QualifiedGroveDbOp {
	return QualifiedGroveDbOp{Path: path, Key: key, Op: op}
}

// InsertOnlyOp fails if key already exists at path.
func InsertOnlyOp(path grove.Path, key []byte, e element.Element) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: InsertOnly, Element: e})
}

// InsertOrReplaceOp writes e at (path, key) whether or not it exists.
func InsertOrReplaceOp(path grove.Path, key []byte, e element.Element) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: InsertOrReplace, Element: e})
}

// ReplaceOp fails if key does not already exist at path.
func ReplaceOp(path grove.Path, key []byte, e element.Element) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: Replace, Element: e})
}

// PatchOp adds delta to the SumValue of the existing SumItem/
// ItemWithSumItem element at (path, key).
func PatchOp(path grove.Path, key []byte, delta int64) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: Patch, Delta: delta})
}

// RefreshReferenceOp re-resolves the existing Reference element at
// (path, key) against its target's current value and rewrites its
// value_hash, without changing the reference's own stored path.
func RefreshReferenceOp(path grove.Path, key []byte) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: RefreshReference})
}

// DeleteOp removes key from path.
func DeleteOp(path grove.Path, key []byte) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: Delete})
}

// DeleteTreeOp removes a Tree-like element of treeType at (path, key).
// If its child subtree is non-empty, the op fails unless cascade is
// set, in which case the child's entire data footprint is purged first
// (spec §9).
func DeleteTreeOp(path grove.Path, key []byte, treeType element.Tag, cascade bool) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: DeleteTree, TreeType: treeType, Cascade: cascade})
}

// MmrAppendOp appends v to the MmrTree element at (path, key).
func MmrAppendOp(path grove.Path, key []byte, v []byte) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: MmrTreeAppend, Value: v})
}

// BulkAppendOp appends v to the BulkAppendTree element at (path, key).
func BulkAppendOp(path grove.Path, key []byte, v []byte) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: BulkAppend, Value: v})
}

// DenseInsertOp inserts v into the DenseFixedSizeTree element at
// (path, key).
func DenseInsertOp(path grove.Path, key []byte, v []byte) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: DenseTreeInsert, Value: v})
}

// CommitmentInsertOp inserts a note commitment into the CommitmentTree
// element at (path, key).
func CommitmentInsertOp(path grove.Path, key []byte, cmx, rho hash.Digest, ciphertext []byte) QualifiedGroveDbOp {
	return qualify(path, key, Op{Kind: CommitmentTreeInsert, Cmx: cmx, Rho: rho, Ciphertext: ciphertext})
}

// isNonMerkAppend reports whether op is one of the four ops the
// non-Merk pre-processing phase groups and applies before the Merk
// batch phase runs (spec §4.7 phase 2 step 1).
func (k Kind) isNonMerkAppend() bool {
	switch k {
	case MmrTreeAppend, BulkAppend, DenseTreeInsert, CommitmentTreeInsert:
		return true
	default:
		return false
	}
}
