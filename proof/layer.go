package proof

import "fmt"

// MaxStackDepth caps how many LayerProof levels decode will descend
// (spec §4.9.2: a Merk's height is ~1.44·log2(n+2), so 64 comfortably
// covers practical sizes while still rejecting a maliciously deep
// proof before it can exhaust the stack).
const MaxStackDepth = 64

// LayerProof is one subtree's proof plus, for every key whose query
// descended into a nested subtree, that subtree's own LayerProof
// (spec §4.9.2). Keyed by the raw key bytes converted to a string so
// it can serve as a map key.
type LayerProof struct {
	MerkProof   ProofBytes
	LowerLayers map[string]LayerProof
}

// Version discriminates the two wire forms a GroveDBProof can take.
type Version uint8

const (
	V0 Version = iota
	V1
)

// GroveDBProof is the top-level proof returned by ProveQuery: V0 when
// the whole query stayed within plain Merk subtrees (for backward
// compatibility with a verifier that only knows the V0 shape), V1 once
// any layer descended into a non-Merk tree (spec §4.9.2's rule).
type GroveDBProof struct {
	Version Version
	V0      ProofBytes
	V1      LayerProof
}

func isAllMerk(lp LayerProof) bool {
	if lp.MerkProof.Kind != KindMerk {
		return false
	}
	for _, child := range lp.LowerLayers {
		if !isAllMerk(child) {
			return false
		}
	}
	return true
}

// newGroveDBProof picks V0 vs V1 per spec §4.9.2's rule.
func newGroveDBProof(root LayerProof) GroveDBProof {
	if len(root.LowerLayers) == 0 && root.MerkProof.Kind == KindMerk {
		return GroveDBProof{Version: V0, V0: root.MerkProof}
	}
	if isAllMerk(root) {
		return GroveDBProof{Version: V0, V0: root.MerkProof}
	}
	return GroveDBProof{Version: V1, V1: root}
}

// Marshal encodes p as version byte || payload.
func (p GroveDBProof) Marshal() []byte {
	buf := make([]byte, 0, 256)
	buf = writeUint8(buf, uint8(p.Version))
	if p.Version == V0 {
		return encodeProofBytes(buf, p.V0)
	}
	return encodeLayerProof(buf, p.V1, 0)
}

// UnmarshalGroveDBProof decodes a proof produced by Marshal.
func UnmarshalGroveDBProof(buf []byte) (GroveDBProof, error) {
	if len(buf) > MaxLayerBytes {
		return GroveDBProof{}, fmt.Errorf("proof: proof exceeds %d bytes", MaxLayerBytes)
	}
	versionByte, off, err := readUint8(buf, 0)
	if err != nil {
		return GroveDBProof{}, err
	}
	switch Version(versionByte) {
	case V0:
		pb, _, err := decodeProofBytes(buf, off)
		if err != nil {
			return GroveDBProof{}, err
		}
		return GroveDBProof{Version: V0, V0: pb}, nil
	case V1:
		lp, _, err := decodeLayerProof(buf, off, 0)
		if err != nil {
			return GroveDBProof{}, err
		}
		return GroveDBProof{Version: V1, V1: lp}, nil
	default:
		return GroveDBProof{}, fmt.Errorf("proof: unknown GroveDBProof version %d", versionByte)
	}
}

func encodeProofBytes(buf []byte, pb ProofBytes) []byte {
	buf = writeUint8(buf, uint8(pb.Kind))
	buf = writeBytes(buf, pb.Bytes)
	return buf
}

func decodeProofBytes(buf []byte, off int) (ProofBytes, int, error) {
	kindByte, off, err := readUint8(buf, off)
	if err != nil {
		return ProofBytes{}, off, err
	}
	raw, off, err := readBytes(buf, off)
	if err != nil {
		return ProofBytes{}, off, err
	}
	if len(raw) > MaxLayerBytes {
		return ProofBytes{}, off, fmt.Errorf("proof: layer exceeds %d bytes", MaxLayerBytes)
	}
	return ProofBytes{Kind: Kind(kindByte), Bytes: raw}, off, nil
}

func encodeLayerProof(buf []byte, lp LayerProof, depth int) []byte {
	buf = encodeProofBytes(buf, lp.MerkProof)
	buf = writeUint32(buf, uint32(len(lp.LowerLayers)))
	for key, child := range lp.LowerLayers {
		buf = writeBytes(buf, []byte(key))
		buf = encodeLayerProof(buf, child, depth+1)
	}
	return buf
}

func decodeLayerProof(buf []byte, off, depth int) (LayerProof, int, error) {
	if depth > MaxStackDepth {
		return LayerProof{}, off, fmt.Errorf("proof: layer depth exceeds %d", MaxStackDepth)
	}
	merkProof, off, err := decodeProofBytes(buf, off)
	if err != nil {
		return LayerProof{}, off, err
	}
	count, off, err := readUint32(buf, off)
	if err != nil {
		return LayerProof{}, off, err
	}
	lp := LayerProof{MerkProof: merkProof}
	if count > 0 {
		lp.LowerLayers = make(map[string]LayerProof, count)
	}
	for i := uint32(0); i < count; i++ {
		var keyBytes []byte
		keyBytes, off, err = readBytes(buf, off)
		if err != nil {
			return LayerProof{}, off, err
		}
		var child LayerProof
		child, off, err = decodeLayerProof(buf, off, depth+1)
		if err != nil {
			return LayerProof{}, off, err
		}
		lp.LowerLayers[string(keyBytes)] = child
	}
	return lp, off, nil
}
