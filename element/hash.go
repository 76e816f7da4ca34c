package element

import "github.com/grovedb/grovedb/hash"

// ValueHash computes the Merk-node value_hash for e (spec §3, §4.5).
//
// Plain elements (Item, SumItem, ItemWithSumItem) hash their own
// serialized bytes. Reference elements fold their own serialized bytes
// with the already-resolved target value hash, supplied by the caller
// after walking the reference (resolving references is grove's job, not
// element's). Subtree elements (Tree and its variants, plus the four
// non-Merk trees) fold their own serialized bytes with the child root
// hash, likewise supplied by the caller.
func (e Element) ValueHash(linked hash.Digest) hash.Digest {
	switch e.Tag.Kind() {
	case KindPlain:
		return hash.ValueHash(e.Marshal())
	case KindReference, KindSubtree:
		return hash.CombineHash(hash.ValueHash(e.Marshal()), linked)
	default:
		return hash.ValueHash(e.Marshal())
	}
}

// SelfValueHash computes value_hash for a plain element with no linked
// child or reference target. Calling it on a Reference or subtree
// element is a programming error: those kinds require ValueHash with
// the resolved/child digest.
func (e Element) SelfValueHash() hash.Digest {
	if e.Tag.Kind() != KindPlain {
		panic("element: SelfValueHash called on a " + e.Tag.String() + " element")
	}
	return hash.ValueHash(e.Marshal())
}
