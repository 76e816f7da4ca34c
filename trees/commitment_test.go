package trees

import (
	"fmt"
	"testing"

	"github.com/grovedb/grovedb/hash"
)

func cmxFor(s string) hash.Digest { return hash.Blake3([]byte(s)) }

func TestCommitmentTreeEmptyAnchorIsEmptyRoot(t *testing.T) {
	ct, err := OpenCommitmentTree(newTestCtx(), 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	root, _ := ct.Anchor()
	if root != EmptySinsemillaRoot() {
		t.Errorf("empty anchor = %s, want %s", root, EmptySinsemillaRoot())
	}
}

func TestCommitmentTreeInsertAndGetValue(t *testing.T) {
	ct, err := OpenCommitmentTree(newTestCtx(), 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	cmx := cmxFor("note-0")
	rho := cmxFor("rho-0")
	ciphertext := []byte("12345678")

	root, pos, _, err := ct.Insert(cmx, rho, ciphertext)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if pos != 0 {
		t.Errorf("position = %d, want 0", pos)
	}
	if root == EmptySinsemillaRoot() {
		t.Errorf("anchor should change after insert")
	}

	gotCmx, gotRho, gotCt, _, err := ct.GetValue(0)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if gotCmx != cmx || gotRho != rho || string(gotCt) != string(ciphertext) {
		t.Errorf("GetValue mismatch: cmx=%s rho=%s ct=%q", gotCmx, gotRho, gotCt)
	}
}

func TestCommitmentTreeRejectsWrongCiphertextLength(t *testing.T) {
	ct, err := OpenCommitmentTree(newTestCtx(), 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := ct.Insert(cmxFor("a"), cmxFor("b"), []byte("short")); err == nil {
		t.Error("expected error for wrong ciphertext length")
	}
}

func TestCommitmentTreeAnchorDeterminism(t *testing.T) {
	cmxs := make([]hash.Digest, 10)
	for i := range cmxs {
		cmxs[i] = cmxFor(fmt.Sprintf("note-%d", i))
	}

	ctA, err := OpenCommitmentTree(newTestCtx(), 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	var rootA hash.Digest
	for i, cmx := range cmxs {
		r, _, _, err := ctA.Insert(cmx, cmxFor(fmt.Sprintf("rho-%d", i)), []byte("12345678"))
		if err != nil {
			t.Fatal(err)
		}
		rootA = r
	}

	ctB, err := OpenCommitmentTree(newTestCtx(), 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	var rootB hash.Digest
	for i, cmx := range cmxs {
		r, _, _, err := ctB.Insert(cmx, cmxFor(fmt.Sprintf("rho-%d", i)), []byte("12345678"))
		if err != nil {
			t.Fatal(err)
		}
		rootB = r
	}

	if rootA != rootB {
		t.Errorf("same cmx sequence produced different anchors: %s vs %s", rootA, rootB)
	}
}

func TestCommitmentTreeCount(t *testing.T) {
	ct, err := OpenCommitmentTree(newTestCtx(), 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, _, _, err := ct.Insert(cmxFor(fmt.Sprintf("c%d", i)), cmxFor("r"), []byte("abcd")); err != nil {
			t.Fatal(err)
		}
	}
	if ct.Count() != 5 {
		t.Errorf("Count = %d, want 5", ct.Count())
	}
}

func TestCommitmentTreePersistsAcrossReopen(t *testing.T) {
	ctx := newTestCtx()
	ct, err := OpenCommitmentTree(ctx, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 6; i++ {
		if _, _, _, err := ct.Insert(cmxFor(fmt.Sprintf("c%d", i)), cmxFor("r"), []byte("abcd")); err != nil {
			t.Fatal(err)
		}
	}
	wantAnchor, _ := ct.Anchor()

	reopened, err := OpenCommitmentTree(ctx, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	gotAnchor, _ := reopened.Anchor()
	if gotAnchor != wantAnchor {
		t.Errorf("reopened anchor = %s, want %s", gotAnchor, wantAnchor)
	}
	if reopened.Count() != 6 {
		t.Errorf("reopened count = %d, want 6", reopened.Count())
	}
	cmx, _, ciphertext, _, err := reopened.GetValue(3)
	if err != nil {
		t.Fatal(err)
	}
	if cmx != cmxFor("c3") || string(ciphertext) != "abcd" {
		t.Errorf("unexpected record at position 3: cmx=%s ct=%q", cmx, ciphertext)
	}
}
