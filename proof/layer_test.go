package proof

import (
	"testing"

	"github.com/grovedb/grovedb/trees"
)

func TestNewGroveDBProofPicksV0ForAllMerk(t *testing.T) {
	lp := LayerProof{
		MerkProof: MerkProofBytes(nil),
		LowerLayers: map[string]LayerProof{
			"child": {MerkProof: MerkProofBytes(nil)},
		},
	}
	p := newGroveDBProof(lp)
	if p.Version != V0 {
		t.Fatalf("Version = %v, want V0", p.Version)
	}
}

func TestNewGroveDBProofPicksV1WhenNonMerkDescended(t *testing.T) {
	lp := LayerProof{
		MerkProof: MerkProofBytes(nil),
		LowerLayers: map[string]LayerProof{
			"child": {MerkProof: MMRProofBytes(mmrProofFixture())},
		},
	}
	p := newGroveDBProof(lp)
	if p.Version != V1 {
		t.Fatalf("Version = %v, want V1", p.Version)
	}
}

func TestGroveDBProofMarshalRoundTripV0(t *testing.T) {
	lp := LayerProof{MerkProof: MerkProofBytes(nil)}
	p := newGroveDBProof(lp)

	buf := p.Marshal()
	got, err := UnmarshalGroveDBProof(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != V0 || got.V0.Kind != KindMerk {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGroveDBProofMarshalRoundTripV1(t *testing.T) {
	lp := LayerProof{
		MerkProof: MerkProofBytes(nil),
		LowerLayers: map[string]LayerProof{
			"child": {MerkProof: MMRProofBytes(mmrProofFixture())},
		},
	}
	p := newGroveDBProof(lp)

	buf := p.Marshal()
	got, err := UnmarshalGroveDBProof(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != V1 {
		t.Fatalf("Version = %v, want V1", got.Version)
	}
	child, ok := got.V1.LowerLayers["child"]
	if !ok || child.MerkProof.Kind != KindMMR {
		t.Fatalf("child layer mismatch: %+v", got.V1.LowerLayers)
	}
}

func TestDecodeLayerProofRejectsExcessiveDepth(t *testing.T) {
	lp := LayerProof{MerkProof: MerkProofBytes(nil)}
	for i := 0; i < MaxStackDepth+2; i++ {
		lp = LayerProof{
			MerkProof:   MerkProofBytes(nil),
			LowerLayers: map[string]LayerProof{"x": lp},
		}
	}
	buf := encodeLayerProof(nil, lp, 0)
	if _, _, err := decodeLayerProof(buf, 0, 0); err == nil {
		t.Fatal("expected rejection of an over-deep layer proof")
	}
}

func mmrProofFixture() trees.MMRProof {
	return trees.MMRProof{MmrSize: 1, LeafCount: 1, Leaves: []trees.MMRLeafEntry{{LeafIndex: 0, Value: []byte("v")}}}
}
