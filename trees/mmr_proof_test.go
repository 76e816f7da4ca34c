package trees

import (
	"errors"
	"fmt"
	"testing"
)

func buildProofTestMMR(t *testing.T, n int) *MMR {
	t.Helper()
	m, err := OpenMMR(newTestCtx())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if _, _, _, err := m.Append([]byte(fmt.Sprintf("leaf-%d", i))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return m
}

func TestMMRProveVerifySingleLeaf(t *testing.T) {
	m := buildProofTestMMR(t, 7)
	root := m.RootHash()

	for _, idx := range []uint64{0, 1, 3, 6} {
		proof, _, err := m.Prove([]uint64{idx})
		if err != nil {
			t.Fatalf("Prove(%d): %v", idx, err)
		}
		leaves, ok := VerifyMMRProof(proof, root)
		if !ok {
			t.Fatalf("VerifyMMRProof(%d) failed", idx)
		}
		if len(leaves) != 1 || leaves[0].LeafIndex != idx {
			t.Errorf("leaves = %+v, want just index %d", leaves, idx)
		}
		if string(leaves[0].Value) != fmt.Sprintf("leaf-%d", idx) {
			t.Errorf("value = %q, want leaf-%d", leaves[0].Value, idx)
		}
	}
}

func TestMMRProveVerifyMultipleLeaves(t *testing.T) {
	m := buildProofTestMMR(t, 11)
	root := m.RootHash()

	proof, _, err := m.Prove([]uint64{0, 4, 10})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	leaves, ok := VerifyMMRProof(proof, root)
	if !ok {
		t.Fatal("VerifyMMRProof failed")
	}
	if len(leaves) != 3 {
		t.Errorf("leaves = %+v, want 3 entries", leaves)
	}
}

func TestMMRProveVerifyRejectsWrongRoot(t *testing.T) {
	m := buildProofTestMMR(t, 9)
	proof, _, err := m.Prove([]uint64{2})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	var wrongRoot [32]byte
	wrongRoot[0] = 0xff
	if _, ok := VerifyMMRProof(proof, wrongRoot); ok {
		t.Error("VerifyMMRProof accepted a mismatched root")
	}
}

func TestMMRProveRejectsTooManyLeaves(t *testing.T) {
	m := buildProofTestMMR(t, 1)
	indices := make([]uint64, mmrMaxSelectedIndices+1)
	if _, _, err := m.Prove(indices); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("err = %v, want ErrCapacityExceeded", err)
	}
}
