package proof

import (
	"fmt"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/trees"
)

// Kind discriminates a ProofBytes payload (spec §4.9.2's ProofBytes
// tagged union: Merk/Mmr/BulkAppendTree/DenseTree/CommitmentTree).
type Kind uint8

const (
	KindMerk Kind = iota
	KindMMR
	KindBulkAppendTree
	KindDenseTree
	KindCommitmentTree
)

// MaxLayerBytes caps a single layer's decoded size (spec §4.9.2) to
// defend against an oversized-length attack before any allocation.
const MaxLayerBytes = 100 << 20

// ProofBytes is one layer's opaque wire payload, tagged by which tree
// kind produced it.
type ProofBytes struct {
	Kind  Kind
	Bytes []byte
}

// MerkProofBytes wraps one or more independent Merk proof chunks. A
// query with several items (e.g. two disjoint key ranges) proves each
// with its own self-contained Tree.Prove call, so a single layer can
// carry a list of chunks that must all reconstruct the same root
// rather than one flattened op sequence.
func MerkProofBytes(chunks [][]avl.ProofOp) ProofBytes {
	return ProofBytes{Kind: KindMerk, Bytes: encodeMerkProofChunks(chunks)}
}
func MMRProofBytes(p trees.MMRProof) ProofBytes {
	return ProofBytes{Kind: KindMMR, Bytes: encodeMMRProof(p)}
}
func BulkAppendTreeProofBytes(p trees.BulkAppendTreeProof) ProofBytes {
	return ProofBytes{Kind: KindBulkAppendTree, Bytes: encodeBulkProof(p)}
}
func DenseProofBytes(p trees.DenseProof) ProofBytes {
	return ProofBytes{Kind: KindDenseTree, Bytes: encodeDenseProof(p)}
}
func CommitmentTreeProofBytes(p trees.CommitmentTreeProof) ProofBytes {
	return ProofBytes{Kind: KindCommitmentTree, Bytes: encodeCommitmentProof(p)}
}

// MerkProof returns the layer's independent proof chunks, each to be
// Execute-d and checked against the same expected root.
func (pb ProofBytes) MerkProof() ([][]avl.ProofOp, error) {
	if pb.Kind != KindMerk {
		return nil, fmt.Errorf("proof: layer is not a Merk proof")
	}
	return decodeMerkProofChunks(pb.Bytes)
}
func (pb ProofBytes) MMRProof() (trees.MMRProof, error) {
	if pb.Kind != KindMMR {
		return trees.MMRProof{}, fmt.Errorf("proof: layer is not an MMR proof")
	}
	return decodeMMRProof(pb.Bytes)
}
func (pb ProofBytes) BulkAppendTreeProof() (trees.BulkAppendTreeProof, error) {
	if pb.Kind != KindBulkAppendTree {
		return trees.BulkAppendTreeProof{}, fmt.Errorf("proof: layer is not a BulkAppendTree proof")
	}
	return decodeBulkProof(pb.Bytes)
}
func (pb ProofBytes) DenseProof() (trees.DenseProof, error) {
	if pb.Kind != KindDenseTree {
		return trees.DenseProof{}, fmt.Errorf("proof: layer is not a Dense proof")
	}
	return decodeDenseProof(pb.Bytes)
}
func (pb ProofBytes) CommitmentTreeProof() (trees.CommitmentTreeProof, error) {
	if pb.Kind != KindCommitmentTree {
		return trees.CommitmentTreeProof{}, fmt.Errorf("proof: layer is not a CommitmentTree proof")
	}
	return decodeCommitmentProof(pb.Bytes)
}

// --- Merk (V0 stack machine) ---

func encodeMerkProofChunks(chunks [][]avl.ProofOp) []byte {
	buf := make([]byte, 0, 64)
	buf = writeUint32(buf, uint32(len(chunks)))
	for _, ops := range chunks {
		buf = append(buf, encodeMerkProof(ops)...)
	}
	return buf
}

func decodeMerkProofChunks(buf []byte) ([][]avl.ProofOp, error) {
	if len(buf) > MaxLayerBytes {
		return nil, fmt.Errorf("proof: Merk layer exceeds %d bytes", MaxLayerBytes)
	}
	count, off, err := readUint32(buf, 0)
	if err != nil {
		return nil, err
	}
	chunks := make([][]avl.ProofOp, count)
	for i := range chunks {
		var ops []avl.ProofOp
		ops, off, err = decodeMerkProofAt(buf, off)
		if err != nil {
			return nil, err
		}
		chunks[i] = ops
	}
	return chunks, nil
}

func encodeMerkProof(ops []avl.ProofOp) []byte {
	buf := make([]byte, 0, 64)
	buf = writeUint32(buf, uint32(len(ops)))
	for _, op := range ops {
		buf = writeUint8(buf, uint8(op.Kind))
		if op.Kind != avl.OpPush && op.Kind != avl.OpPushInverted {
			continue
		}
		n := op.Node
		buf = writeUint8(buf, uint8(n.Kind))
		switch n.Kind {
		case avl.ProofHash, avl.ProofKVHash:
			buf = writeDigest(buf, n.Hash)
		case avl.ProofKV:
			buf = writeBytes(buf, n.Key)
			buf = writeBytes(buf, n.Value)
		case avl.ProofKVValueHash:
			buf = writeBytes(buf, n.Key)
			buf = writeBytes(buf, n.Value)
			buf = writeDigest(buf, n.ValueHash)
		case avl.ProofKVDigest:
			buf = writeBytes(buf, n.Key)
			buf = writeDigest(buf, n.ValueHash)
		}
	}
	return buf
}

// decodeMerkProofAt decodes one op sequence starting at off and
// returns the offset just past it, the same "decode in place" pattern
// decodeMMRProofAt/decodeBulkProofAt use for their own inline structs.
func decodeMerkProofAt(buf []byte, off int) ([]avl.ProofOp, int, error) {
	count, off, err := readUint32(buf, off)
	if err != nil {
		return nil, off, err
	}
	ops := make([]avl.ProofOp, 0, count)
	for i := uint32(0); i < count; i++ {
		var kindByte uint8
		kindByte, off, err = readUint8(buf, off)
		if err != nil {
			return nil, off, err
		}
		op := avl.ProofOp{Kind: avl.ProofOpKind(kindByte)}
		if op.Kind == avl.OpPush || op.Kind == avl.OpPushInverted {
			var nodeKindByte uint8
			nodeKindByte, off, err = readUint8(buf, off)
			if err != nil {
				return nil, off, err
			}
			n := avl.ProofNode{Kind: avl.ProofNodeKind(nodeKindByte)}
			switch n.Kind {
			case avl.ProofHash, avl.ProofKVHash:
				n.Hash, off, err = readDigest(buf, off)
			case avl.ProofKV:
				n.Key, off, err = readBytes(buf, off)
				if err == nil {
					n.Value, off, err = readBytes(buf, off)
				}
			case avl.ProofKVValueHash:
				n.Key, off, err = readBytes(buf, off)
				if err == nil {
					n.Value, off, err = readBytes(buf, off)
				}
				if err == nil {
					n.ValueHash, off, err = readDigest(buf, off)
				}
			case avl.ProofKVDigest:
				n.Key, off, err = readBytes(buf, off)
				if err == nil {
					n.ValueHash, off, err = readDigest(buf, off)
				}
			default:
				return nil, off, fmt.Errorf("proof: unknown Merk proof node kind %d", nodeKindByte)
			}
			if err != nil {
				return nil, off, err
			}
			op.Node = n
		}
		ops = append(ops, op)
	}
	return ops, off, nil
}

// --- MMR ---

func encodeMMRProof(p trees.MMRProof) []byte {
	buf := make([]byte, 0, 64)
	buf = writeUint64(buf, p.MmrSize)
	buf = writeUint64(buf, p.LeafCount)
	buf = writeUint32(buf, uint32(len(p.ProofItems)))
	for _, h := range p.ProofItems {
		buf = writeDigest(buf, h)
	}
	buf = writeUint32(buf, uint32(len(p.Leaves)))
	for _, l := range p.Leaves {
		buf = writeUint64(buf, l.LeafIndex)
		buf = writeBytes(buf, l.Value)
	}
	return buf
}

func decodeMMRProof(buf []byte) (trees.MMRProof, error) {
	if len(buf) > MaxLayerBytes {
		return trees.MMRProof{}, fmt.Errorf("proof: MMR layer exceeds %d bytes", MaxLayerBytes)
	}
	var p trees.MMRProof
	var off int
	var err error
	p.MmrSize, off, err = readUint64(buf, off)
	if err != nil {
		return p, err
	}
	p.LeafCount, off, err = readUint64(buf, off)
	if err != nil {
		return p, err
	}
	var n uint32
	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, err
	}
	p.ProofItems = make([]hash.Digest, n)
	for i := range p.ProofItems {
		p.ProofItems[i], off, err = readDigest(buf, off)
		if err != nil {
			return p, err
		}
	}
	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, err
	}
	p.Leaves = make([]trees.MMRLeafEntry, n)
	for i := range p.Leaves {
		p.Leaves[i].LeafIndex, off, err = readUint64(buf, off)
		if err != nil {
			return p, err
		}
		p.Leaves[i].Value, off, err = readBytes(buf, off)
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// --- Dense ---

func encodeDenseProof(p trees.DenseProof) []byte {
	buf := make([]byte, 0, 64)
	buf = writeUint32(buf, uint32(len(p.Entries)))
	for _, e := range p.Entries {
		buf = writeUint16(buf, e.Pos)
		buf = writeBytes(buf, e.Value)
	}
	buf = writeUint32(buf, uint32(len(p.NodeValueHashes)))
	for _, e := range p.NodeValueHashes {
		buf = writeUint16(buf, e.Pos)
		buf = writeDigest(buf, e.Hash)
	}
	buf = writeUint32(buf, uint32(len(p.NodeHashes)))
	for _, e := range p.NodeHashes {
		buf = writeUint16(buf, e.Pos)
		buf = writeDigest(buf, e.Hash)
	}
	return buf
}

func decodeDenseProof(buf []byte) (trees.DenseProof, error) {
	if len(buf) > MaxLayerBytes {
		return trees.DenseProof{}, fmt.Errorf("proof: Dense layer exceeds %d bytes", MaxLayerBytes)
	}
	var p trees.DenseProof
	var off int
	var err error
	var n uint32

	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, err
	}
	p.Entries = make([]trees.DensePosValue, n)
	for i := range p.Entries {
		p.Entries[i].Pos, off, err = readUint16(buf, off)
		if err != nil {
			return p, err
		}
		p.Entries[i].Value, off, err = readBytes(buf, off)
		if err != nil {
			return p, err
		}
	}

	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, err
	}
	p.NodeValueHashes = make([]trees.DensePosHash, n)
	for i := range p.NodeValueHashes {
		p.NodeValueHashes[i].Pos, off, err = readUint16(buf, off)
		if err != nil {
			return p, err
		}
		p.NodeValueHashes[i].Hash, off, err = readDigest(buf, off)
		if err != nil {
			return p, err
		}
	}

	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, err
	}
	p.NodeHashes = make([]trees.DensePosHash, n)
	for i := range p.NodeHashes {
		p.NodeHashes[i].Pos, off, err = readUint16(buf, off)
		if err != nil {
			return p, err
		}
		p.NodeHashes[i].Hash, off, err = readDigest(buf, off)
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// --- BulkAppendTree ---

func encodeBulkEntryValues(buf []byte, vs []trees.BulkEntryValue) []byte {
	buf = writeUint32(buf, uint32(len(vs)))
	for _, v := range vs {
		buf = writeUint64(buf, v.Index)
		buf = writeBytes(buf, v.Value)
	}
	return buf
}
func decodeBulkEntryValues(buf []byte, off int) ([]trees.BulkEntryValue, int, error) {
	n, off, err := readUint32(buf, off)
	if err != nil {
		return nil, off, err
	}
	out := make([]trees.BulkEntryValue, n)
	for i := range out {
		out[i].Index, off, err = readUint64(buf, off)
		if err != nil {
			return nil, off, err
		}
		out[i].Value, off, err = readBytes(buf, off)
		if err != nil {
			return nil, off, err
		}
	}
	return out, off, nil
}
func encodeBulkEntryHashes(buf []byte, hs []trees.BulkEntryHash) []byte {
	buf = writeUint32(buf, uint32(len(hs)))
	for _, h := range hs {
		buf = writeUint64(buf, h.Index)
		buf = writeDigest(buf, h.Hash)
	}
	return buf
}
func decodeBulkEntryHashes(buf []byte, off int) ([]trees.BulkEntryHash, int, error) {
	n, off, err := readUint32(buf, off)
	if err != nil {
		return nil, off, err
	}
	out := make([]trees.BulkEntryHash, n)
	for i := range out {
		out[i].Index, off, err = readUint64(buf, off)
		if err != nil {
			return nil, off, err
		}
		out[i].Hash, off, err = readDigest(buf, off)
		if err != nil {
			return nil, off, err
		}
	}
	return out, off, nil
}

func encodeBulkProof(p trees.BulkAppendTreeProof) []byte {
	buf := make([]byte, 0, 128)
	buf = writeUint64(buf, p.TotalCount)
	buf = writeUint8(buf, p.ChunkPower)
	buf = append(buf, encodeMMRProof(p.MMRProof)...)
	buf = encodeBulkEntryValues(buf, p.ChunkEntryValues)
	buf = encodeBulkEntryHashes(buf, p.ChunkEntryHashes)
	buf = encodeBulkEntryValues(buf, p.BufferEntryValues)
	buf = encodeBulkEntryHashes(buf, p.BufferEntryHashes)
	return buf
}

func decodeBulkProof(buf []byte) (trees.BulkAppendTreeProof, error) {
	if len(buf) > MaxLayerBytes {
		return trees.BulkAppendTreeProof{}, fmt.Errorf("proof: BulkAppendTree layer exceeds %d bytes", MaxLayerBytes)
	}
	var p trees.BulkAppendTreeProof
	var off int
	var err error
	p.TotalCount, off, err = readUint64(buf, off)
	if err != nil {
		return p, err
	}
	p.ChunkPower, off, err = readUint8(buf, off)
	if err != nil {
		return p, err
	}
	// mmrProof has no embedded length prefix of its own, so decode it
	// via the shared decoder by first finding where it ends: reuse the
	// same field-by-field layout inline rather than re-delimiting.
	mmrProof, mmrLen, err := decodeMMRProofAt(buf, off)
	if err != nil {
		return p, err
	}
	p.MMRProof = mmrProof
	off = mmrLen

	p.ChunkEntryValues, off, err = decodeBulkEntryValues(buf, off)
	if err != nil {
		return p, err
	}
	p.ChunkEntryHashes, off, err = decodeBulkEntryHashes(buf, off)
	if err != nil {
		return p, err
	}
	p.BufferEntryValues, off, err = decodeBulkEntryValues(buf, off)
	if err != nil {
		return p, err
	}
	p.BufferEntryHashes, off, err = decodeBulkEntryHashes(buf, off)
	if err != nil {
		return p, err
	}
	return p, nil
}

// decodeMMRProofAt decodes one MMRProof starting at off within a
// larger buffer (BulkAppendTreeProof embeds one inline rather than as
// its own length-prefixed blob) and returns the offset just past it.
func decodeMMRProofAt(buf []byte, off int) (trees.MMRProof, int, error) {
	var p trees.MMRProof
	var err error
	p.MmrSize, off, err = readUint64(buf, off)
	if err != nil {
		return p, off, err
	}
	p.LeafCount, off, err = readUint64(buf, off)
	if err != nil {
		return p, off, err
	}
	var n uint32
	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, off, err
	}
	p.ProofItems = make([]hash.Digest, n)
	for i := range p.ProofItems {
		p.ProofItems[i], off, err = readDigest(buf, off)
		if err != nil {
			return p, off, err
		}
	}
	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, off, err
	}
	p.Leaves = make([]trees.MMRLeafEntry, n)
	for i := range p.Leaves {
		p.Leaves[i].LeafIndex, off, err = readUint64(buf, off)
		if err != nil {
			return p, off, err
		}
		p.Leaves[i].Value, off, err = readBytes(buf, off)
		if err != nil {
			return p, off, err
		}
	}
	return p, off, nil
}

// --- CommitmentTree ---

func encodeCommitmentProof(p trees.CommitmentTreeProof) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, encodeBulkProof(p.BulkProof)...)
	buf = writeUint32(buf, uint32(len(p.Peaks)))
	for _, pk := range p.Peaks {
		buf = writeUint8(buf, pk.Height)
		buf = writeDigest(buf, pk.Hash)
	}
	buf = writeUint32(buf, uint32(len(p.SiblingPaths)))
	for pos, siblings := range p.SiblingPaths {
		buf = writeUint64(buf, pos)
		buf = writeUint32(buf, uint32(len(siblings)))
		for _, s := range siblings {
			buf = writeDigest(buf, s)
		}
	}
	return buf
}

func decodeCommitmentProof(buf []byte) (trees.CommitmentTreeProof, error) {
	if len(buf) > MaxLayerBytes {
		return trees.CommitmentTreeProof{}, fmt.Errorf("proof: CommitmentTree layer exceeds %d bytes", MaxLayerBytes)
	}
	bulkProof, bulkLen, err := decodeBulkProofAt(buf, 0)
	if err != nil {
		return trees.CommitmentTreeProof{}, err
	}
	p := trees.CommitmentTreeProof{BulkProof: bulkProof, SiblingPaths: map[uint64][]hash.Digest{}}
	off := bulkLen

	var n uint32
	n, off, err = readUint32(buf, off)
	if err != nil {
		return p, err
	}
	p.Peaks = make([]trees.CommitmentTreeProofPeak, n)
	for i := range p.Peaks {
		p.Peaks[i].Height, off, err = readUint8(buf, off)
		if err != nil {
			return p, err
		}
		p.Peaks[i].Hash, off, err = readDigest(buf, off)
		if err != nil {
			return p, err
		}
	}

	var numPaths uint32
	numPaths, off, err = readUint32(buf, off)
	if err != nil {
		return p, err
	}
	for i := uint32(0); i < numPaths; i++ {
		var pos uint64
		pos, off, err = readUint64(buf, off)
		if err != nil {
			return p, err
		}
		var count uint32
		count, off, err = readUint32(buf, off)
		if err != nil {
			return p, err
		}
		siblings := make([]hash.Digest, count)
		for j := range siblings {
			siblings[j], off, err = readDigest(buf, off)
			if err != nil {
				return p, err
			}
		}
		p.SiblingPaths[pos] = siblings
	}
	return p, nil
}

// decodeBulkProofAt mirrors decodeMMRProofAt: BulkAppendTreeProof is
// embedded inline within a CommitmentTreeProof, so it's decoded
// in-place rather than as its own length-prefixed blob.
func decodeBulkProofAt(buf []byte, off int) (trees.BulkAppendTreeProof, int, error) {
	var p trees.BulkAppendTreeProof
	var err error
	p.TotalCount, off, err = readUint64(buf, off)
	if err != nil {
		return p, off, err
	}
	p.ChunkPower, off, err = readUint8(buf, off)
	if err != nil {
		return p, off, err
	}
	p.MMRProof, off, err = decodeMMRProofAt(buf, off)
	if err != nil {
		return p, off, err
	}
	p.ChunkEntryValues, off, err = decodeBulkEntryValues(buf, off)
	if err != nil {
		return p, off, err
	}
	p.ChunkEntryHashes, off, err = decodeBulkEntryHashes(buf, off)
	if err != nil {
		return p, off, err
	}
	p.BufferEntryValues, off, err = decodeBulkEntryValues(buf, off)
	if err != nil {
		return p, off, err
	}
	p.BufferEntryHashes, off, err = decodeBulkEntryHashes(buf, off)
	if err != nil {
		return p, off, err
	}
	return p, off, nil
}
