package batch

import (
	"testing"

	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/grove"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage/mem"
)

func newTestGrove() *grove.Grove {
	return grove.Open(mem.New(), 8)
}

func mustApply(t *testing.T, g *grove.Grove, ops ...QualifiedGroveDbOp) {
	t.Helper()
	b, err := NewBatch(ops)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	if _, err := b.Apply(g); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestInsertOnlyRejectsExisting(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("a"), element.Item([]byte("v1"), nil)))

	b, err := NewBatch([]QualifiedGroveDbOp{InsertOnlyOp(nil, []byte("a"), element.Item([]byte("v2"), nil))})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	if _, err := b.Apply(g); err == nil {
		t.Error("InsertOnly over an existing key did not fail")
	}

	e, _, err := g.GetElement(nil, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(e.Value) != "v1" {
		t.Errorf("value = %q, want v1 (failed batch must not have written)", e.Value)
	}
}

func TestReplaceRequiresExisting(t *testing.T) {
	g := newTestGrove()
	b, err := NewBatch([]QualifiedGroveDbOp{ReplaceOp(nil, []byte("a"), element.Item([]byte("v"), nil))})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Apply(g); err == nil {
		t.Error("Replace against a missing key did not fail")
	}
}

func TestInsertOrReplaceOverwrites(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOrReplaceOp(nil, []byte("a"), element.Item([]byte("v1"), nil)))
	mustApply(t, g, InsertOrReplaceOp(nil, []byte("a"), element.Item([]byte("v2"), nil)))

	e, _, err := g.GetElement(nil, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(e.Value) != "v2" {
		t.Errorf("value = %q, want v2", e.Value)
	}
}

func TestPatchAddsToSumItem(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("s"), element.SumItem(10, nil)))
	mustApply(t, g, PatchOp(nil, []byte("s"), 5))
	mustApply(t, g, PatchOp(nil, []byte("s"), -3))

	e, _, err := g.GetElement(nil, []byte("s"))
	if err != nil {
		t.Fatal(err)
	}
	if e.SumValue != 12 {
		t.Errorf("SumValue = %d, want 12", e.SumValue)
	}
}

func TestPatchRejectsNonSumElement(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("a"), element.Item([]byte("v"), nil)))

	b, err := NewBatch([]QualifiedGroveDbOp{PatchOp(nil, []byte("a"), 1)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Apply(g); err == nil {
		t.Error("Patch against a plain Item did not fail")
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("a"), element.Item([]byte("v"), nil)))
	mustApply(t, g, DeleteOp(nil, []byte("a")))

	if _, _, err := g.GetElement(nil, []byte("a")); err == nil {
		t.Error("key survived Delete")
	}
}

func TestDeleteTreeRefusesNonEmptySubtree(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("child"), element.Tree(nil, nil)))
	mustApply(t, g, InsertOnlyOp(grove.Path{[]byte("child")}, []byte("leaf"), element.Item([]byte("v"), nil)))

	b, err := NewBatch([]QualifiedGroveDbOp{DeleteTreeOp(nil, []byte("child"), element.TagTree, false)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Apply(g); err != ErrNonEmptySubtree {
		t.Errorf("err = %v, want ErrNonEmptySubtree", err)
	}
}

func TestDeleteTreeCascadePurgesChild(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("child"), element.Tree(nil, nil)))
	mustApply(t, g, InsertOnlyOp(grove.Path{[]byte("child")}, []byte("leaf"), element.Item([]byte("v"), nil)))

	mustApply(t, g, DeleteTreeOp(nil, []byte("child"), element.TagTree, true))

	if _, _, err := g.GetElement(nil, []byte("child")); err == nil {
		t.Error("child key survived cascading DeleteTree")
	}
}

func TestMultiOpBatchRefreshesEachTouchedSubtree(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g,
		InsertOnlyOp(nil, []byte("a"), element.Tree(nil, nil)),
		InsertOnlyOp(nil, []byte("b"), element.Tree(nil, nil)),
	)

	aPath := grove.Path{[]byte("a")}
	bPath := grove.Path{[]byte("b")}

	b, err := NewBatch([]QualifiedGroveDbOp{
		InsertOnlyOp(aPath, []byte("x"), element.Item([]byte("1"), nil)),
		InsertOnlyOp(bPath, []byte("y"), element.Item([]byte("2"), nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Apply(g); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	aElem, _, err := g.GetElement(nil, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if aElem.RootKey == nil {
		t.Error("a's RootKey not refreshed")
	}
	bElem, _, err := g.GetElement(nil, []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if bElem.RootKey == nil {
		t.Error("b's RootKey not refreshed")
	}
}

func TestMmrAppendBatchGroupsRuns(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("m"), element.MmrTreeElem(0, nil)))

	mustApply(t, g,
		MmrAppendOp(nil, []byte("m"), []byte("one")),
		MmrAppendOp(nil, []byte("m"), []byte("two")),
		MmrAppendOp(nil, []byte("m"), []byte("three")),
	)

	e, _, err := g.GetElement(nil, []byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	if e.MmrSize == 0 {
		t.Error("MmrSize not refreshed after batched appends")
	}
}

func TestDenseInsertBatch(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("d"), element.DenseFixedSizeTreeElem(0, 3, nil)))
	mustApply(t, g,
		DenseInsertOp(nil, []byte("d"), []byte("a")),
		DenseInsertOp(nil, []byte("d"), []byte("b")),
	)

	e, _, err := g.GetElement(nil, []byte("d"))
	if err != nil {
		t.Fatal(err)
	}
	if e.DenseCount != 2 {
		t.Errorf("DenseCount = %d, want 2", e.DenseCount)
	}
}

func TestCommitmentInsertBatch(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("c"), element.CommitmentTreeElem(0, 2, nil)))

	memo := make([]byte, 8)
	var cmx, rho hash.Digest
	cmx[0] = 1
	rho[0] = 2
	mustApply(t, g, CommitmentInsertOp(nil, []byte("c"), cmx, rho, memo))

	e, _, err := g.GetElement(nil, []byte("c"))
	if err != nil {
		t.Fatal(err)
	}
	if e.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", e.TotalCount)
	}
}

func TestRefreshReferenceRecomputesValueHash(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("target"), element.Item([]byte("v1"), nil)))
	mustApply(t, g, InsertOnlyOp(nil, []byte("ref"), element.ReferenceElem(
		element.ReferencePath{Mode: element.RefAbsolutePath, Segments: grove.Path{[]byte("target")}}, nil, nil)))

	rootBefore, _, _ := g.RootHash()
	mustApply(t, g, InsertOrReplaceOp(nil, []byte("target"), element.Item([]byte("v2"), nil)))
	mustApply(t, g, RefreshReferenceOp(nil, []byte("ref")))
	rootAfter, _, _ := g.RootHash()

	if rootBefore == rootAfter {
		t.Error("root hash unchanged after target update + RefreshReference")
	}
}

func TestApplyIsAtomicOnFailure(t *testing.T) {
	g := newTestGrove()
	mustApply(t, g, InsertOnlyOp(nil, []byte("a"), element.Item([]byte("v"), nil)))
	rootBefore, _, _ := g.RootHash()

	b, err := NewBatch([]QualifiedGroveDbOp{
		InsertOnlyOp(nil, []byte("b"), element.Item([]byte("v"), nil)),
		ReplaceOp(nil, []byte("missing"), element.Item([]byte("v"), nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Apply(g); err == nil {
		t.Fatal("batch with a failing op did not return an error")
	}

	rootAfter, _, _ := g.RootHash()
	if rootBefore != rootAfter {
		t.Error("root hash changed despite a failed batch")
	}
	if _, _, err := g.GetElement(nil, []byte("b")); err == nil {
		t.Error("earlier op in the failed batch was observably applied")
	}
}

func TestNewBatchRejectsDuplicateNonAppendTargets(t *testing.T) {
	_, err := NewBatch([]QualifiedGroveDbOp{
		InsertOnlyOp(nil, []byte("a"), element.Item([]byte("1"), nil)),
		InsertOrReplaceOp(nil, []byte("a"), element.Item([]byte("2"), nil)),
	})
	if err != ErrUnsortedOrDuplicate {
		t.Errorf("err = %v, want ErrUnsortedOrDuplicate", err)
	}
}

func TestNewBatchRejectsInternalKind(t *testing.T) {
	_, err := NewBatch([]QualifiedGroveDbOp{
		{Path: nil, Key: []byte("a"), Op: Op{Kind: replaceNonMerkTreeRoot}},
	})
	if err != ErrInternalOpKind {
		t.Errorf("err = %v, want ErrInternalOpKind", err)
	}
}
