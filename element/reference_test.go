package element

import "testing"

func seg(s ...string) [][]byte {
	out := make([][]byte, len(s))
	for i, v := range s {
		out[i] = []byte(v)
	}
	return out
}

func TestResolveAbsolutePath(t *testing.T) {
	r := ReferencePath{Mode: RefAbsolutePath, Segments: seg("a", "b", "c")}
	got, err := r.Resolve(seg("x", "y"))
	if err != nil {
		t.Fatal(err)
	}
	if !PathEqual(got, seg("a", "b", "c")) {
		t.Errorf("got %v", got)
	}
}

func TestResolveUpstreamRootHeight(t *testing.T) {
	r := ReferencePath{Mode: RefUpstreamRootHeight, Height: 1, Suffix: seg("k")}
	got, err := r.Resolve(seg("root", "mid", "leaf"))
	if err != nil {
		t.Fatal(err)
	}
	if !PathEqual(got, seg("root", "k")) {
		t.Errorf("got %v", got)
	}
}

func TestResolveUpstreamRootHeightOutOfRange(t *testing.T) {
	r := ReferencePath{Mode: RefUpstreamRootHeight, Height: 5}
	if _, err := r.Resolve(seg("root")); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveUpstreamRootHeightWithParentPathAddition(t *testing.T) {
	r := ReferencePath{Mode: RefUpstreamRootHeightWithParentPathAddition, Height: 1, Suffix: seg("k")}
	got, err := r.Resolve(seg("root", "mid", "leaf"))
	if err != nil {
		t.Fatal(err)
	}
	if !PathEqual(got, seg("root", "mid", "k")) {
		t.Errorf("got %v", got)
	}
}

func TestResolveUpstreamFromElementHeight(t *testing.T) {
	r := ReferencePath{Mode: RefUpstreamFromElementHeight, Height: 1, Suffix: seg("k")}
	got, err := r.Resolve(seg("root", "mid", "leaf"))
	if err != nil {
		t.Fatal(err)
	}
	if !PathEqual(got, seg("root", "mid", "k")) {
		t.Errorf("got %v", got)
	}
}

func TestResolveSibling(t *testing.T) {
	r := ReferencePath{Mode: RefSibling, Key: []byte("twin")}
	got, err := r.Resolve(seg("root", "mid", "leaf"))
	if err != nil {
		t.Fatal(err)
	}
	if !PathEqual(got, seg("root", "mid", "twin")) {
		t.Errorf("got %v", got)
	}
}

func TestResolveSiblingNoParent(t *testing.T) {
	r := ReferencePath{Mode: RefSibling, Key: []byte("twin")}
	if _, err := r.Resolve(nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveCousin(t *testing.T) {
	r := ReferencePath{Mode: RefCousin, Key: []byte("uncle")}
	got, err := r.Resolve(seg("root", "parent", "leaf"))
	if err != nil {
		t.Fatal(err)
	}
	if !PathEqual(got, seg("root", "uncle", "leaf")) {
		t.Errorf("got %v", got)
	}
}

func TestResolveRemovedCousin(t *testing.T) {
	r := ReferencePath{Mode: RefRemovedCousin, Segments: seg("elsewhere")}
	got, err := r.Resolve(seg("root", "parent", "leaf"))
	if err != nil {
		t.Fatal(err)
	}
	if !PathEqual(got, seg("elsewhere", "leaf")) {
		t.Errorf("got %v", got)
	}
}

func TestReferencePathMarshalRoundTrip(t *testing.T) {
	cases := []ReferencePath{
		{Mode: RefAbsolutePath, Segments: seg("a", "b")},
		{Mode: RefUpstreamRootHeight, Height: 2, Suffix: seg("x")},
		{Mode: RefUpstreamRootHeightWithParentPathAddition, Height: 1, Suffix: seg("y", "z")},
		{Mode: RefUpstreamFromElementHeight, Height: 3, Suffix: nil},
		{Mode: RefCousin, Key: []byte("u")},
		{Mode: RefRemovedCousin, Segments: seg("far", "away")},
		{Mode: RefSibling, Key: []byte("s")},
	}
	for _, rp := range cases {
		buf := rp.marshal(nil)
		got, off, err := unmarshalReferencePath(buf, 0)
		if err != nil {
			t.Fatalf("mode %d: %v", rp.Mode, err)
		}
		if off != len(buf) {
			t.Errorf("mode %d: leftover bytes", rp.Mode)
		}
		if got.Mode != rp.Mode {
			t.Errorf("mode mismatch: got %d want %d", got.Mode, rp.Mode)
		}
	}
}

func TestPathEqual(t *testing.T) {
	if !PathEqual(seg("a", "b"), seg("a", "b")) {
		t.Error("expected equal")
	}
	if PathEqual(seg("a", "b"), seg("a", "c")) {
		t.Error("expected not equal")
	}
	if PathEqual(seg("a"), seg("a", "b")) {
		t.Error("expected not equal (length)")
	}
}
