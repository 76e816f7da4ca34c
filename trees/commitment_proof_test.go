package trees

import (
	"fmt"
	"testing"
)

func buildProofTestCommitment(t *testing.T, n int) *CommitmentTree {
	t.Helper()
	ct, err := OpenCommitmentTree(newTestCtx(), 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		cmx := cmxFor(fmt.Sprintf("note-%d", i))
		rho := cmxFor(fmt.Sprintf("rho-%d", i))
		if _, _, _, err := ct.Insert(cmx, rho, []byte("12345678")); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	return ct
}

func TestCommitmentProveVerifySinglePosition(t *testing.T) {
	ct := buildProofTestCommitment(t, 7)
	root, _ := ct.CombinedRoot()

	for _, pos := range []uint64{0, 3, 6} {
		proof, _, err := ct.Prove([]uint64{pos})
		if err != nil {
			t.Fatalf("Prove(%d): %v", pos, err)
		}
		if !VerifyCommitmentTreeProof(proof, root) {
			t.Fatalf("VerifyCommitmentTreeProof(%d) failed", pos)
		}
	}
}

func TestCommitmentProveVerifyMultiplePositions(t *testing.T) {
	ct := buildProofTestCommitment(t, 11)
	root, _ := ct.CombinedRoot()

	proof, _, err := ct.Prove([]uint64{0, 4, 10})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !VerifyCommitmentTreeProof(proof, root) {
		t.Fatal("VerifyCommitmentTreeProof failed")
	}
	if len(proof.SiblingPaths) != 3 {
		t.Errorf("SiblingPaths = %+v, want 3 entries", proof.SiblingPaths)
	}
}

func TestCommitmentProveVerifyRejectsWrongRoot(t *testing.T) {
	ct := buildProofTestCommitment(t, 9)
	proof, _, err := ct.Prove([]uint64{2})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	var wrongRoot [32]byte
	wrongRoot[0] = 0xee
	if VerifyCommitmentTreeProof(proof, wrongRoot) {
		t.Error("VerifyCommitmentTreeProof accepted a mismatched root")
	}
}

func TestCommitmentProveVerifyRejectsTamperedSibling(t *testing.T) {
	ct := buildProofTestCommitment(t, 9)
	root, _ := ct.CombinedRoot()
	proof, _, err := ct.Prove([]uint64{5})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	siblings := proof.SiblingPaths[5]
	if len(siblings) == 0 {
		t.Fatal("expected a non-empty sibling path for position 5 in a 9-leaf frontier")
	}
	siblings[0][0] ^= 0xff
	if VerifyCommitmentTreeProof(proof, root) {
		t.Error("VerifyCommitmentTreeProof accepted a tampered sibling")
	}
}
