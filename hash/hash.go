// Package hash implements GroveDB's Blake3-based hash primitives:
// value hashes, kv hashes, node hashes and the two-input hash combinator
// used to chain child roots into a parent Merk.
package hash

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"lukechampine.com/blake3"
)

// Size is the width in bytes of every digest in GroveDB.
const Size = 32

// Digest is a 32-byte Blake3 output. The zero Digest represents a
// missing child link and is never produced by a real hash computation.
type Digest [Size]byte

// Zero is the sentinel digest for a missing child.
var Zero Digest

// IsZero reports whether d is the all-zero sentinel.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte {
	return d[:]
}

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// FromBytes copies b (which must be exactly Size bytes) into a Digest.
func FromBytes(b []byte) (Digest, bool) {
	var d Digest
	if len(b) != Size {
		return d, false
	}
	copy(d[:], b)
	return d, true
}

// ChainHash reinterprets d as a chainhash.Hash, the 32-byte digest type
// transaction- and block-level types in go-sdk are built on. This lets a
// state root or commitment anchor be handed to code that expects a
// chainhash.Hash (e.g. embedding a GroveDB root in a transaction's
// OP_RETURN payload) without copying.
func (d Digest) ChainHash() chainhash.Hash {
	return chainhash.Hash(d)
}

// FromChainHash converts a chainhash.Hash into a Digest.
func FromChainHash(h chainhash.Hash) Digest {
	return Digest(h)
}

// Blocks returns the number of Blake3 compression-block calls a hash of
// n input bytes costs, per spec §4.1: 1 + floor((n-1)/64), n >= 1. This
// is what callers add to OperationCost.HashNodeCalls after hashing.
func Blocks(n int) int {
	if n <= 0 {
		return 1
	}
	return 1 + (n-1)/64
}

// putUvarint appends an unsigned LEB128 varint to buf, as used for the
// length prefixes in ValueHash/KVHash (prevents concatenation ambiguity:
// H("AB"||"C") != H("A"||"BC")).
func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// ValueHash computes Blake3(varint(len(v)) || v), the hash stored at a
// Merk node for a plain (non-subtree, non-reference) element payload.
func ValueHash(v []byte) Digest {
	buf := putUvarint(make([]byte, 0, binary.MaxVarintLen64+len(v)), uint64(len(v)))
	buf = append(buf, v...)
	return blake3.Sum256(buf)
}

// CombineHash computes Blake3(a || b) over exactly two digests, used to
// fold a subtree/reference's own element hash with its resolved child
// or referenced value hash (spec §3, §4.5).
func CombineHash(a, b Digest) Digest {
	var buf [2 * Size]byte
	copy(buf[:Size], a[:])
	copy(buf[Size:], b[:])
	return blake3.Sum256(buf[:])
}

// KVHash computes Blake3(varint(len(k)) || k || valueHash).
func KVHash(key []byte, valueHash Digest) Digest {
	buf := putUvarint(make([]byte, 0, binary.MaxVarintLen64+len(key)+Size), uint64(len(key)))
	buf = append(buf, key...)
	buf = append(buf, valueHash[:]...)
	return blake3.Sum256(buf)
}

// childHash returns h, or Zero if the child link is absent.
func childHash(h *Digest) Digest {
	if h == nil {
		return Zero
	}
	return *h
}

// NodeHash computes Blake3(kvHash || left || right) for an ordinary
// Merk node, where a nil child pointer denotes a missing child (spec §3).
func NodeHash(kvHash Digest, left, right *Digest) Digest {
	var buf [3 * Size]byte
	copy(buf[:Size], kvHash[:])
	l := childHash(left)
	r := childHash(right)
	copy(buf[Size:2*Size], l[:])
	copy(buf[2*Size:], r[:])
	return blake3.Sum256(buf[:])
}

// NodeHashWithCount computes Blake3(kvHash || left || right || count_be_u64)
// for a provable-count-feature node (spec §3).
func NodeHashWithCount(kvHash Digest, left, right *Digest, count uint64) Digest {
	var buf [3*Size + 8]byte
	copy(buf[:Size], kvHash[:])
	l := childHash(left)
	r := childHash(right)
	copy(buf[Size:2*Size], l[:])
	copy(buf[2*Size:3*Size], r[:])
	binary.BigEndian.PutUint64(buf[3*Size:], count)
	return blake3.Sum256(buf[:])
}

// Blake3 exposes the raw hash for callers (e.g. trees) that need a
// domain-separated digest of an arbitrary byte string not covered by
// the KV/node forms above (e.g. MMR node hashing, state-root combinators).
func Blake3(b []byte) Digest {
	return blake3.Sum256(b)
}
