package avl

import (
	"fmt"
	"testing"

	"github.com/grovedb/grovedb/hash"
)

func buildProofTestTree(t *testing.T, n int) *Tree {
	t.Helper()
	tr, _ := newTestTree(t, FeatureBasic)
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		b, vh := itemBytes(fmt.Sprintf("value-%d", i))
		if _, err := tr.Put(key, b, vh, false); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	if _, err := tr.Commit(false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return tr
}

func TestProveExecuteFullRange(t *testing.T) {
	tr := buildProofTestTree(t, 20)
	root := tr.RootHash()

	ops, _, err := tr.Prove(nil, nil, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	got, revealed, err := Execute(ops, FeatureBasic)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != root {
		t.Errorf("reconstructed root = %s, want %s", got, root)
	}
	if len(revealed) != 20 {
		t.Errorf("revealed %d keys, want 20", len(revealed))
	}
}

func TestProveExecuteSingleKey(t *testing.T) {
	tr := buildProofTestTree(t, 20)
	root := tr.RootHash()

	target := []byte("key-010")
	ops, _, err := tr.Prove(&RangeBound{Key: target, Inclusive: true}, &RangeBound{Key: target, Inclusive: true}, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	got, revealed, err := Execute(ops, FeatureBasic)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != root {
		t.Errorf("reconstructed root = %s, want %s", got, root)
	}
	if len(revealed) != 1 || string(revealed[0].Key) != "key-010" {
		t.Errorf("revealed = %+v, want just key-010", revealed)
	}
	if string(revealed[0].Element.Value) != "value-10" {
		t.Errorf("revealed value = %q, want value-10", revealed[0].Element.Value)
	}
}

func TestProveExecuteAbsentKey(t *testing.T) {
	tr := buildProofTestTree(t, 20)
	root := tr.RootHash()

	// key-010a sorts strictly between key-010 and key-011 and was never
	// inserted: the [k,k] range still proves its absence, since every
	// visited node with a different key is disclosed via its KVHash.
	target := []byte("key-010a")
	ops, _, err := tr.Prove(&RangeBound{Key: target, Inclusive: true}, &RangeBound{Key: target, Inclusive: true}, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	got, revealed, err := Execute(ops, FeatureBasic)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != root {
		t.Errorf("reconstructed root = %s, want %s", got, root)
	}
	if len(revealed) != 0 {
		t.Errorf("revealed = %+v, want no keys for an absent target", revealed)
	}
}

func TestProveExecuteSubrange(t *testing.T) {
	tr := buildProofTestTree(t, 20)
	root := tr.RootHash()

	low := &RangeBound{Key: []byte("key-005"), Inclusive: true}
	high := &RangeBound{Key: []byte("key-009"), Inclusive: false}
	ops, _, err := tr.Prove(low, high, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	got, revealed, err := Execute(ops, FeatureBasic)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != root {
		t.Errorf("reconstructed root = %s, want %s", got, root)
	}
	if len(revealed) != 4 {
		t.Errorf("revealed %d keys, want 4 (005..008)", len(revealed))
	}
	for _, r := range revealed {
		if string(r.Key) < "key-005" || string(r.Key) >= "key-009" {
			t.Errorf("revealed key %q out of requested range", r.Key)
		}
	}
}

func TestProveExecuteReverse(t *testing.T) {
	tr := buildProofTestTree(t, 10)
	root := tr.RootHash()

	ops, _, err := tr.Prove(nil, nil, true)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	got, revealed, err := Execute(ops, FeatureBasic)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != root {
		t.Errorf("reconstructed root = %s, want %s", got, root)
	}
	if len(revealed) != 10 {
		t.Errorf("revealed %d keys, want 10", len(revealed))
	}
}

func TestExecuteRejectsMalformedProof(t *testing.T) {
	ops := []ProofOp{{Kind: OpParent}} // pop on an empty stack
	if _, _, err := Execute(ops, FeatureBasic); err != ErrProofStackUnderflow {
		t.Errorf("err = %v, want ErrProofStackUnderflow", err)
	}
}

func TestExecuteRejectsCountBakedFeature(t *testing.T) {
	if _, _, err := Execute(nil, FeatureProvableCount); err != ErrProofFeatureUnsupported {
		t.Errorf("err = %v, want ErrProofFeatureUnsupported", err)
	}
}

func TestProveExecuteTamperedHashFailsToMatchRoot(t *testing.T) {
	tr := buildProofTestTree(t, 5)
	root := tr.RootHash()

	ops, _, err := tr.Prove(nil, nil, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	for i, op := range ops {
		if op.Kind == OpPush && op.Node.Kind == ProofKVHash {
			ops[i].Node.Hash = hash.Digest{0xff}
			break
		}
	}
	got, _, err := Execute(ops, FeatureBasic)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got == root {
		t.Errorf("tampered proof still reconstructed the true root")
	}
}
