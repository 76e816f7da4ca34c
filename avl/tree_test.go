package avl

import (
	"fmt"
	"testing"

	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/storage"
	"github.com/grovedb/grovedb/storage/mem"
)

func newTestTree(t *testing.T, feature FeatureType) (*Tree, *storage.Context) {
	t.Helper()
	engine := mem.New()
	ctx := storage.NewContext(engine, storage.Prefix{1, 2, 3})
	tr, _, err := Open(ctx, feature)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tr, ctx
}

func itemBytes(v string) ([]byte, hash.Digest) {
	e := element.Item([]byte(v), nil)
	b := e.Marshal()
	return b, e.SelfValueHash()
}

func TestInsertAndGet(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		b, vh := itemBytes(fmt.Sprintf("value-%d", i))
		if _, err := tr.Put(key, b, vh, false); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		e, _, err := tr.Get(key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		want := fmt.Sprintf("value-%d", i)
		if string(e.Value) != want {
			t.Errorf("Get %s = %s, want %s", key, e.Value, want)
		}
	}
}

func TestGetMissingKey(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	b, vh := itemBytes("x")
	if _, err := tr.Put([]byte("a"), b, vh, false); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tr.Get([]byte("nope")); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestInsertOnlyIfAbsentRejectsDuplicate(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	b, vh := itemBytes("x")
	if _, err := tr.Put([]byte("a"), b, vh, true); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Put([]byte("a"), b, vh, true); err != ErrKeyAlreadyExists {
		t.Errorf("expected ErrKeyAlreadyExists, got %v", err)
	}
}

func TestBalanceInvariantHoldsAfterManyInserts(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("k%05d", i))
		b, vh := itemBytes("v")
		if _, err := tr.Put(key, b, vh, false); err != nil {
			t.Fatalf("Put: %v", err)
		}
		assertBalanced(t, tr.root)
	}
}

func TestBalanceInvariantHoldsAfterReverseInserts(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	for i := 500; i > 0; i-- {
		key := []byte(fmt.Sprintf("k%05d", i))
		b, vh := itemBytes("v")
		if _, err := tr.Put(key, b, vh, false); err != nil {
			t.Fatalf("Put: %v", err)
		}
		assertBalanced(t, tr.root)
	}
}

func TestDeleteLeaf(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	for _, k := range []string{"a", "b", "c"} {
		b, vh := itemBytes(k)
		if _, err := tr.Put([]byte(k), b, vh, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tr.Delete([]byte("b")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := tr.Get([]byte("b")); err != ErrKeyNotFound {
		t.Errorf("expected b to be gone, got err=%v", err)
	}
	if _, _, err := tr.Get([]byte("a")); err != nil {
		t.Errorf("a should survive: %v", err)
	}
}

func TestDeleteManyKeepsBalanceAndSurvivors(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("k%05d", i))
		b, vh := itemBytes("v")
		if _, err := tr.Put(key, b, vh, false); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 100; i += 3 {
		key := []byte(fmt.Sprintf("k%05d", i))
		if _, err := tr.Delete(key); err != nil {
			t.Fatalf("Delete %s: %v", key, err)
		}
		assertBalanced(t, tr.root)
	}
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("k%05d", i))
		_, _, err := tr.Get(key)
		if i%3 == 0 {
			if err != ErrKeyNotFound {
				t.Errorf("key %s should be deleted", key)
			}
		} else if err != nil {
			t.Errorf("key %s should survive: %v", key, err)
		}
	}
}

func TestDeleteMissingKey(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	if _, err := tr.Delete([]byte("nope")); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestCommitAndReloadPreservesRootHash(t *testing.T) {
	tr, ctx := newTestTree(t, FeatureBasic)
	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		b, vh := itemBytes("v")
		if _, err := tr.Put(key, b, vh, false); err != nil {
			t.Fatal(err)
		}
	}
	wantRoot := tr.RootHash()

	if _, err := tr.Commit(true); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reloaded, _, err := Open(ctx, FeatureBasic)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reloaded.RootHash() != wantRoot {
		t.Errorf("reloaded root hash = %s, want %s", reloaded.RootHash(), wantRoot)
	}

	e, _, err := reloaded.Get([]byte("k015"))
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if string(e.Value) != "v" {
		t.Errorf("unexpected value after reload: %q", e.Value)
	}
}

func TestDeterminismIndependentOfInsertOrder(t *testing.T) {
	keys := []string{"m", "a", "z", "b", "y", "c", "x", "d"}
	reversed := make([]string, len(keys))
	for i, k := range keys {
		reversed[len(keys)-1-i] = k
	}

	trA, _ := newTestTree(t, FeatureBasic)
	for _, k := range keys {
		b, vh := itemBytes(k)
		if _, err := trA.Put([]byte(k), b, vh, false); err != nil {
			t.Fatal(err)
		}
	}

	trB, _ := newTestTree(t, FeatureBasic)
	for _, k := range reversed {
		b, vh := itemBytes(k)
		if _, err := trB.Put([]byte(k), b, vh, false); err != nil {
			t.Fatal(err)
		}
	}

	if trA.RootHash() != trB.RootHash() {
		t.Errorf("root hash depends on insert order: %s vs %s", trA.RootHash(), trB.RootHash())
	}
}

func TestApplyBuildsBalancedTreeFromSortedBatch(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	ops := make([]Op, 0, 64)
	for i := 0; i < 64; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		b, vh := itemBytes("v")
		ops = append(ops, Op{Key: key, ElementBytes: b, ValueHash: vh, Kind: OpPut})
	}
	if _, err := tr.Apply(ops); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertBalanced(t, tr.root)

	for i := 0; i < 64; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		if _, _, err := tr.Get(key); err != nil {
			t.Errorf("Get %s: %v", key, err)
		}
	}
}

func TestApplyRejectsUnsortedBatch(t *testing.T) {
	tr, _ := newTestTree(t, FeatureBasic)
	b, vh := itemBytes("v")
	ops := []Op{
		{Key: []byte("b"), ElementBytes: b, ValueHash: vh, Kind: OpPut},
		{Key: []byte("a"), ElementBytes: b, ValueHash: vh, Kind: OpPut},
	}
	if _, err := tr.Apply(ops); err != ErrUnsortedBatch {
		t.Errorf("expected ErrUnsortedBatch, got %v", err)
	}
}

func TestSumFeatureAggregates(t *testing.T) {
	tr, _ := newTestTree(t, FeatureSum)
	for i, v := range []int64{10, -3, 7, 2} {
		e := element.SumItem(v, nil)
		key := []byte(fmt.Sprintf("k%d", i))
		if _, err := tr.Put(key, e.Marshal(), e.SelfValueHash(), false); err != nil {
			t.Fatal(err)
		}
	}
	if got := tr.Aggregate().Sum; got != 16 {
		t.Errorf("aggregate sum = %d, want 16", got)
	}
}

func TestCountFeatureAggregates(t *testing.T) {
	tr, _ := newTestTree(t, FeatureCount)
	for i := 0; i < 7; i++ {
		e := element.Item([]byte("x"), nil)
		key := []byte(fmt.Sprintf("k%d", i))
		if _, err := tr.Put(key, e.Marshal(), e.SelfValueHash(), false); err != nil {
			t.Fatal(err)
		}
	}
	if got := tr.Aggregate().Count; got != 7 {
		t.Errorf("aggregate count = %d, want 7", got)
	}
}

func assertBalanced(t *testing.T, l *Link) {
	t.Helper()
	if l == nil || l.Node == nil {
		return
	}
	n := l.Node
	bf := n.balanceFactor()
	if bf < -1 || bf > 1 {
		t.Fatalf("balance factor %d out of range at key %q", bf, n.Key)
	}
	assertBalanced(t, n.Left)
	assertBalanced(t, n.Right)
}
