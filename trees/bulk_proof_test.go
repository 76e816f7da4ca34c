package trees

import (
	"fmt"
	"testing"
)

func buildProofTestBulk(t *testing.T, chunkPower uint8, n int) *BulkAppend {
	t.Helper()
	b, err := OpenBulkAppend(newTestCtx(), chunkPower)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if _, _, _, err := b.Append([]byte(fmt.Sprintf("entry-%d", i))); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	return b
}

func TestBulkProveVerifyBufferOnly(t *testing.T) {
	b := buildProofTestBulk(t, 2, 3) // chunk_size = 4, nothing sealed yet
	root := b.StateRoot()

	proof, _, err := b.Prove([]uint64{1})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !VerifyBulkAppendTreeProof(proof, root) {
		t.Fatal("VerifyBulkAppendTreeProof failed")
	}
	if len(proof.BufferEntryValues) != 1 || string(proof.BufferEntryValues[0].Value) != "entry-1" {
		t.Errorf("BufferEntryValues = %+v, want entry-1 disclosed", proof.BufferEntryValues)
	}
	if len(proof.ChunkEntryValues) != 0 || len(proof.MMRProof.Leaves) != 0 {
		t.Errorf("expected no chunk disclosure, got %+v / %+v", proof.ChunkEntryValues, proof.MMRProof.Leaves)
	}
}

func TestBulkProveVerifyChunkOnly(t *testing.T) {
	b := buildProofTestBulk(t, 2, 4) // exactly one sealed chunk, empty buffer
	root := b.StateRoot()

	proof, _, err := b.Prove([]uint64{2})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !VerifyBulkAppendTreeProof(proof, root) {
		t.Fatal("VerifyBulkAppendTreeProof failed")
	}
	if len(proof.ChunkEntryValues) != 1 || string(proof.ChunkEntryValues[0].Value) != "entry-2" {
		t.Errorf("ChunkEntryValues = %+v, want entry-2 disclosed", proof.ChunkEntryValues)
	}
	if len(proof.MMRProof.Leaves) != 1 {
		t.Errorf("MMRProof.Leaves = %+v, want 1 leaf", proof.MMRProof.Leaves)
	}
}

func TestBulkProveVerifyMixed(t *testing.T) {
	b := buildProofTestBulk(t, 2, 10) // two sealed chunks (0..3, 4..7) plus a 2-entry buffer
	root := b.StateRoot()

	proof, _, err := b.Prove([]uint64{0, 5, 9})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !VerifyBulkAppendTreeProof(proof, root) {
		t.Fatal("VerifyBulkAppendTreeProof failed")
	}
	if len(proof.MMRProof.Leaves) != 2 {
		t.Errorf("MMRProof.Leaves = %+v, want 2 touched chunks", proof.MMRProof.Leaves)
	}
	if len(proof.BufferEntryValues) != 1 || string(proof.BufferEntryValues[0].Value) != "entry-9" {
		t.Errorf("BufferEntryValues = %+v, want entry-9 disclosed", proof.BufferEntryValues)
	}
}

func TestBulkProveVerifyRejectsWrongRoot(t *testing.T) {
	b := buildProofTestBulk(t, 2, 10)
	proof, _, err := b.Prove([]uint64{5})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	var wrongRoot [32]byte
	wrongRoot[0] = 0xcc
	if VerifyBulkAppendTreeProof(proof, wrongRoot) {
		t.Error("VerifyBulkAppendTreeProof accepted a mismatched root")
	}
}
