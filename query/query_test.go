package query

import (
	"testing"

	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/grove"
	"github.com/grovedb/grovedb/storage/mem"
)

func newTestGrove(t *testing.T) *grove.Grove {
	t.Helper()
	return grove.Open(mem.New(), 8)
}

func mustInsert(t *testing.T, g *grove.Grove, path grove.Path, key []byte, e element.Element) {
	t.Helper()
	if _, err := g.InsertElement(path, key, e, false); err != nil {
		t.Fatalf("InsertElement(%v, %q): %v", path, key, err)
	}
}

func keys(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = string(r.Key)
	}
	return out
}

func TestEvaluateKeyItem(t *testing.T) {
	g := newTestGrove(t)
	mustInsert(t, g, nil, []byte("a"), element.Item([]byte("1"), nil))
	mustInsert(t, g, nil, []byte("b"), element.Item([]byte("2"), nil))

	results, _, err := Evaluate(g, PathQuery{Query: Query{Items: []QueryItem{KeyItem([]byte("b"))}}})
	if err != nil {
		t.Fatal(err)
	}
	if got := keys(results); len(got) != 1 || got[0] != "b" {
		t.Errorf("keys = %v, want [b]", got)
	}
}

func TestEvaluateKeyItemMissing(t *testing.T) {
	g := newTestGrove(t)
	mustInsert(t, g, nil, []byte("a"), element.Item([]byte("1"), nil))

	results, _, err := Evaluate(g, PathQuery{Query: Query{Items: []QueryItem{KeyItem([]byte("nope"))}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no match, got %v", results)
	}
}

func TestEvaluateRangeFullOrdersAscending(t *testing.T) {
	g := newTestGrove(t)
	for _, k := range []string{"c", "a", "b"} {
		mustInsert(t, g, nil, []byte(k), element.Item([]byte(k), nil))
	}

	results, _, err := Evaluate(g, PathQuery{Query: Query{Items: []QueryItem{RangeFullItem()}, LeftToRight: true}})
	if err != nil {
		t.Fatal(err)
	}
	got := keys(results)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys = %v, want %v", got, want)
			break
		}
	}
}

func TestEvaluateRangeFullRightToLeft(t *testing.T) {
	g := newTestGrove(t)
	for _, k := range []string{"a", "b", "c"} {
		mustInsert(t, g, nil, []byte(k), element.Item([]byte(k), nil))
	}

	results, _, err := Evaluate(g, PathQuery{Query: Query{Items: []QueryItem{RangeFullItem()}, LeftToRight: false}})
	if err != nil {
		t.Fatal(err)
	}
	got := keys(results)
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
}

func TestEvaluateRangeInclusive(t *testing.T) {
	g := newTestGrove(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		mustInsert(t, g, nil, []byte(k), element.Item([]byte(k), nil))
	}

	results, _, err := Evaluate(g, PathQuery{Query: Query{
		Items:       []QueryItem{RangeInclusiveItem([]byte("b"), []byte("c"))},
		LeftToRight: true,
	}})
	if err != nil {
		t.Fatal(err)
	}
	got := keys(results)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("keys = %v, want [b c]", got)
	}
}

func TestEvaluateLimitAndOffset(t *testing.T) {
	g := newTestGrove(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		mustInsert(t, g, nil, []byte(k), element.Item([]byte(k), nil))
	}

	limit := uint16(2)
	offset := uint16(1)
	results, _, err := Evaluate(g, PathQuery{Query: Query{
		Items:       []QueryItem{RangeFullItem()},
		LeftToRight: true,
		Limit:       &limit,
		Offset:      &offset,
	}})
	if err != nil {
		t.Fatal(err)
	}
	got := keys(results)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("keys = %v, want [b c]", got)
	}
}

func TestEvaluateDescendsIntoDefaultSubquery(t *testing.T) {
	g := newTestGrove(t)
	mustInsert(t, g, nil, []byte("child"), element.Tree(nil, nil))
	childPath := grove.Path{[]byte("child")}
	mustInsert(t, g, childPath, []byte("x"), element.Item([]byte("1"), nil))
	mustInsert(t, g, childPath, []byte("y"), element.Item([]byte("2"), nil))

	results, _, err := Evaluate(g, PathQuery{Query: Query{
		Items:       []QueryItem{KeyItem([]byte("child"))},
		LeftToRight: true,
		DefaultSubquery: &Query{
			Items:       []QueryItem{RangeFullItem()},
			LeftToRight: true,
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	got := keys(results)
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("keys = %v, want [x y]", got)
	}
	for _, r := range results {
		if grove.PathKey(r.Path) != grove.PathKey(childPath) {
			t.Errorf("result path = %v, want %v", r.Path, childPath)
		}
	}
}

func TestEvaluateAddParentTreeOnSubquery(t *testing.T) {
	g := newTestGrove(t)
	mustInsert(t, g, nil, []byte("child"), element.Tree(nil, nil))
	childPath := grove.Path{[]byte("child")}
	mustInsert(t, g, childPath, []byte("x"), element.Item([]byte("1"), nil))

	results, _, err := Evaluate(g, PathQuery{Query: Query{
		Items:                   []QueryItem{KeyItem([]byte("child"))},
		LeftToRight:             true,
		AddParentTreeOnSubquery: true,
		DefaultSubquery: &Query{
			Items:       []QueryItem{RangeFullItem()},
			LeftToRight: true,
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if string(results[0].Key) != "child" || !results[0].Element.IsSubtree() {
		t.Errorf("first result = %+v, want the parent tree element", results[0])
	}
	if string(results[1].Key) != "x" {
		t.Errorf("second result key = %q, want x", results[1].Key)
	}
}

func TestEvaluateConditionalSubqueryOverridesDefault(t *testing.T) {
	g := newTestGrove(t)
	mustInsert(t, g, nil, []byte("a"), element.Tree(nil, nil))
	mustInsert(t, g, nil, []byte("b"), element.Tree(nil, nil))
	aPath, bPath := grove.Path{[]byte("a")}, grove.Path{[]byte("b")}
	mustInsert(t, g, aPath, []byte("only-in-a"), element.Item([]byte("1"), nil))
	mustInsert(t, g, bPath, []byte("only-in-b"), element.Item([]byte("2"), nil))

	results, _, err := Evaluate(g, PathQuery{Query: Query{
		Items:       []QueryItem{RangeFullItem()},
		LeftToRight: true,
		DefaultSubquery: &Query{
			Items:       []QueryItem{KeyItem([]byte("only-in-a"))},
			LeftToRight: true,
		},
		ConditionalSubqueries: map[string]*Query{
			"b": {Items: []QueryItem{KeyItem([]byte("only-in-b"))}, LeftToRight: true},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	got := keys(results)
	want := []string{"only-in-a", "only-in-b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("keys = %v, want %v (a uses default subquery, b uses its conditional override)", got, want)
	}
}
