// Package multihash wraps GroveDB's 32-byte digests as self-describing
// multihashes, so an external verifier can identify the hash function a
// state root or CommitmentTree anchor was produced with, without
// out-of-band knowledge. Adapted from multihash/hash.go's
// IndexHash/MerkleHash wrappers, generalized from Bitcoin-specific
// BLAKE3/dbl-SHA256 txid hashes to GroveDB's hash.Digest.
package multihash

import (
	"encoding/hex"
	"fmt"

	mh "github.com/multiformats/go-multihash"
	_ "github.com/multiformats/go-multihash/register/blake3"

	"github.com/grovedb/grovedb/hash"
)

// StateRoot wraps a grove's root_hash as a BLAKE3 multihash
// (<0x1e><0x20><32 bytes>, 34 bytes total).
type StateRoot []byte

// NewStateRoot wraps an already-computed grove root hash.
func NewStateRoot(root hash.Digest) (StateRoot, error) {
	h, err := mh.Encode(root.Bytes(), mh.BLAKE3)
	if err != nil {
		return nil, fmt.Errorf("multihash: encode state root: %w", err)
	}
	return StateRoot(h), nil
}

// Digest extracts the underlying hash.Digest.
func (s StateRoot) Digest() (hash.Digest, error) {
	decoded, err := mh.Decode(mh.Multihash(s))
	if err != nil {
		return hash.Digest{}, fmt.Errorf("multihash: invalid state root: %w", err)
	}
	d, ok := hash.FromBytes(decoded.Digest)
	if !ok {
		return hash.Digest{}, fmt.Errorf("multihash: expected %d-byte digest, got %d", hash.Size, len(decoded.Digest))
	}
	return d, nil
}

// Verify checks that s decodes to exactly want.
func (s StateRoot) Verify(want hash.Digest) error {
	got, err := s.Digest()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("multihash: state root mismatch")
	}
	return nil
}

// Bytes returns the raw multihash bytes.
func (s StateRoot) Bytes() []byte { return []byte(s) }

// Hex returns the hex-encoded multihash.
func (s StateRoot) Hex() string { return hex.EncodeToString(s) }

// sinsemillaCode reuses the BLAKE3 multicodec slot to self-describe a
// CommitmentTree anchor: the multiformats table has no Sinsemilla-over-
// Pallas entry (spec §4.8.4 notes the ZK circuit itself is out of
// scope), so GroveDB wraps the already-computed anchor the same way
// multihash/hash.go's WrapMerkleHash wraps an already-computed Bitcoin
// hash, rather than asking go-multihash to hash anything itself.
const sinsemillaCode = mh.BLAKE3

// CommitmentAnchor wraps a CommitmentTree anchor() output.
type CommitmentAnchor []byte

// NewCommitmentAnchor wraps an already-computed Sinsemilla anchor.
func NewCommitmentAnchor(anchor hash.Digest) (CommitmentAnchor, error) {
	h, err := mh.Encode(anchor.Bytes(), sinsemillaCode)
	if err != nil {
		return nil, fmt.Errorf("multihash: encode commitment anchor: %w", err)
	}
	return CommitmentAnchor(h), nil
}

// Digest extracts the underlying hash.Digest.
func (a CommitmentAnchor) Digest() (hash.Digest, error) {
	decoded, err := mh.Decode(mh.Multihash(a))
	if err != nil {
		return hash.Digest{}, fmt.Errorf("multihash: invalid commitment anchor: %w", err)
	}
	d, ok := hash.FromBytes(decoded.Digest)
	if !ok {
		return hash.Digest{}, fmt.Errorf("multihash: expected %d-byte digest, got %d", hash.Size, len(decoded.Digest))
	}
	return d, nil
}

func (a CommitmentAnchor) Bytes() []byte { return []byte(a) }
func (a CommitmentAnchor) Hex() string   { return hex.EncodeToString(a) }
