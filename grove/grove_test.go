package grove

import (
	"testing"

	"github.com/grovedb/grovedb/avl"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage/mem"
)

func newTestGrove() *Grove {
	return Open(mem.New(), 8)
}

func openSubtreeForTest(g *Grove, path Path) (*avl.Tree, cost.OperationCost, error) {
	feature, oc, err := g.featureForPath(path)
	if err != nil {
		return nil, oc, err
	}
	t, sub, err := avl.Open(g.ctxFor(path), feature)
	oc.Add(sub)
	return t, oc, err
}

func TestInsertAndGetLeaf(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("a"), element.Item([]byte("value-a"), nil), false); err != nil {
		t.Fatalf("InsertElement: %v", err)
	}
	e, _, err := g.GetElement(nil, []byte("a"))
	if err != nil {
		t.Fatalf("GetElement: %v", err)
	}
	if string(e.Value) != "value-a" {
		t.Errorf("Value = %q, want value-a", e.Value)
	}
}

func TestRootHashChangesOnInsert(t *testing.T) {
	g := newTestGrove()
	before, _, err := g.RootHash()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.InsertElement(nil, []byte("a"), element.Item([]byte("v"), nil), false); err != nil {
		t.Fatal(err)
	}
	after, _, err := g.RootHash()
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Error("root hash did not change after insert")
	}
}

func TestNestedSubtreePropagation(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("child"), element.Tree(nil, nil), false); err != nil {
		t.Fatalf("insert Tree: %v", err)
	}
	rootBefore, _, _ := g.RootHash()

	childPath := Path{[]byte("child")}
	if _, err := g.InsertElement(childPath, []byte("leaf"), element.Item([]byte("v"), nil), false); err != nil {
		t.Fatalf("insert leaf in child: %v", err)
	}

	rootAfter, _, _ := g.RootHash()
	if rootBefore == rootAfter {
		t.Error("grove root did not change after nested leaf insert")
	}

	e, _, err := g.GetElement(nil, []byte("child"))
	if err != nil {
		t.Fatal(err)
	}
	if e.RootKey == nil {
		t.Error("parent's Tree element root_key should be set after child insert")
	}
}

func TestDeepNestingPropagatesToRoot(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("a"), element.Tree(nil, nil), false); err != nil {
		t.Fatal(err)
	}
	pathA := Path{[]byte("a")}
	if _, err := g.InsertElement(pathA, []byte("b"), element.Tree(nil, nil), false); err != nil {
		t.Fatal(err)
	}
	pathAB := Path{[]byte("a"), []byte("b")}
	rootBefore, _, _ := g.RootHash()

	if _, err := g.InsertElement(pathAB, []byte("leaf"), element.Item([]byte("deep"), nil), false); err != nil {
		t.Fatal(err)
	}

	rootAfter, _, _ := g.RootHash()
	if rootBefore == rootAfter {
		t.Error("root hash should change after a deeply nested insert")
	}

	got, _, err := g.GetElement(pathAB, []byte("leaf"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Value) != "deep" {
		t.Errorf("Value = %q, want deep", got.Value)
	}
}

func TestDeleteElementPropagates(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("a"), element.Item([]byte("v"), nil), false); err != nil {
		t.Fatal(err)
	}
	rootWithA, _, _ := g.RootHash()

	if _, err := g.DeleteElement(nil, []byte("a")); err != nil {
		t.Fatal(err)
	}
	rootAfterDelete, _, _ := g.RootHash()
	if rootWithA == rootAfterDelete {
		t.Error("root hash should change after delete")
	}
	if _, _, err := g.GetElement(nil, []byte("a")); err == nil {
		t.Error("expected error getting deleted key")
	}
}

func TestSumTreeAggregatePropagation(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("sums"), element.SumTree(nil, 0, nil), false); err != nil {
		t.Fatal(err)
	}
	sumsPath := Path{[]byte("sums")}
	if _, err := g.InsertElement(sumsPath, []byte("x"), element.SumItem(5, nil), false); err != nil {
		t.Fatal(err)
	}
	if _, err := g.InsertElement(sumsPath, []byte("y"), element.SumItem(7, nil), false); err != nil {
		t.Fatal(err)
	}
	t2, _, err := openSubtreeForTest(g, sumsPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := t2.Aggregate().Sum; got != 12 {
		t.Errorf("aggregate sum = %d, want 12", got)
	}
}

func TestReferenceResolvesAbsolutePath(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("a"), element.Item([]byte("target-value"), nil), false); err != nil {
		t.Fatal(err)
	}
	ref := element.ReferenceElem(element.ReferencePath{
		Mode:     element.RefAbsolutePath,
		Segments: [][]byte{[]byte("a")},
	}, nil, nil)
	if _, err := g.InsertElement(nil, []byte("r"), ref, false); err != nil {
		t.Fatalf("insert reference: %v", err)
	}
	got, _, err := g.GetElement(nil, []byte("r"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Tag != element.TagReference {
		t.Errorf("got tag %s, want Reference", got.Tag)
	}
}

func TestReferenceCycleIsRejected(t *testing.T) {
	g := newTestGrove()
	refToB := element.ReferenceElem(element.ReferencePath{Mode: element.RefAbsolutePath, Segments: [][]byte{[]byte("b")}}, nil, nil)
	if _, err := g.InsertElement(nil, []byte("a"), refToB, false); err != nil {
		t.Fatal(err)
	}
	refToA := element.ReferenceElem(element.ReferencePath{Mode: element.RefAbsolutePath, Segments: [][]byte{[]byte("a")}}, nil, nil)
	if _, err := g.InsertElement(nil, []byte("b"), refToA, false); err == nil {
		t.Error("expected cyclic reference error")
	}
}

func TestMmrTreeElementAppendPropagates(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("log"), element.MmrTreeElem(0, nil), false); err != nil {
		t.Fatal(err)
	}
	rootBefore, _, _ := g.RootHash()

	root, idx, _, err := g.AppendMMR(nil, []byte("log"), []byte("entry-0"))
	if err != nil {
		t.Fatalf("AppendMMR: %v", err)
	}
	if idx != 0 {
		t.Errorf("leaf index = %d, want 0", idx)
	}
	if root == hash.Zero {
		t.Error("mmr root should not be zero after append")
	}

	rootAfter, _, _ := g.RootHash()
	if rootBefore == rootAfter {
		t.Error("grove root should change after MMR append")
	}

	e, _, err := g.GetElement(nil, []byte("log"))
	if err != nil {
		t.Fatal(err)
	}
	if e.MmrSize != 1 {
		t.Errorf("MmrSize = %d, want 1", e.MmrSize)
	}
}

func TestCommitmentTreeElementInsertPropagates(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("notes"), element.CommitmentTreeElem(0, 2, nil), false); err != nil {
		t.Fatal(err)
	}
	cmx := hash.Blake3([]byte("cmx-0"))
	rho := hash.Blake3([]byte("rho-0"))
	root, pos, _, err := g.InsertCommitment(nil, []byte("notes"), cmx, rho, []byte("12345678"))
	if err != nil {
		t.Fatalf("InsertCommitment: %v", err)
	}
	if pos != 0 {
		t.Errorf("position = %d, want 0", pos)
	}
	if root == hash.Zero {
		t.Error("commitment combined root should not be zero")
	}
	e, _, err := g.GetElement(nil, []byte("notes"))
	if err != nil {
		t.Fatal(err)
	}
	if e.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", e.TotalCount)
	}
}

func TestAppendWrongElementKindRejected(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("item"), element.Item([]byte("v"), nil), false); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := g.AppendMMR(nil, []byte("item"), []byte("x")); err == nil {
		t.Error("expected error appending MMR entry to a plain Item")
	}
}

func TestInsertOnlyIfAbsentRejectsExisting(t *testing.T) {
	g := newTestGrove()
	if _, err := g.InsertElement(nil, []byte("a"), element.Item([]byte("v1"), nil), false); err != nil {
		t.Fatal(err)
	}
	if _, err := g.InsertElement(nil, []byte("a"), element.Item([]byte("v2"), nil), true); err == nil {
		t.Error("expected error inserting over an existing key with onlyIfAbsent")
	}
}
