// Package element implements GroveDB's typed Element union (spec §3,
// §4.5): the 15 leaf variants a Merk node can hold, their discriminant-
// first binary encoding, and the 7 reference path modes.
//
// The binary layout follows indexnode/indexnode.go's discipline of a
// fixed discriminant/flag byte up front so type detection is O(1),
// generalized from that file's single fixed-record format to a tagged
// union of variant-shaped records.
package element

// Tag is the first byte of every Element's serialization (spec §3).
type Tag uint8

const (
	TagItem                  Tag = 0
	TagReference             Tag = 1
	TagTree                  Tag = 2
	TagSumItem               Tag = 3
	TagSumTree               Tag = 4
	TagBigSumTree            Tag = 5
	TagCountTree             Tag = 6
	TagCountSumTree          Tag = 7
	TagProvableCountTree     Tag = 8
	TagItemWithSumItem       Tag = 9
	TagProvableCountSumTree  Tag = 10
	TagCommitmentTree        Tag = 11
	TagMmrTree               Tag = 12
	TagBulkAppendTree        Tag = 13
	TagDenseFixedSizeTree    Tag = 14
)

// Kind classifies how an Element's value hash is computed (spec §4.5).
type Kind uint8

const (
	// KindPlain elements hash their own serialized bytes only.
	KindPlain Kind = iota
	// KindReference elements combine their own hash with the resolved
	// target's value hash.
	KindReference
	// KindSubtree elements combine their own hash with a child root
	// hash, whether that child is a Merk subtree or a non-Merk tree.
	KindSubtree
)

// Kind reports the hashing class of tag.
func (t Tag) Kind() Kind {
	switch t {
	case TagReference:
		return KindReference
	case TagItem, TagSumItem, TagItemWithSumItem:
		return KindPlain
	default:
		return KindSubtree
	}
}

// IsNonMerk reports whether tag denotes one of the four non-Merk
// specialized trees (spec §4.8), whose child root is type-specific
// rather than a Merk root_hash.
func (t Tag) IsNonMerk() bool {
	switch t {
	case TagCommitmentTree, TagMmrTree, TagBulkAppendTree, TagDenseFixedSizeTree:
		return true
	default:
		return false
	}
}

func (t Tag) String() string {
	switch t {
	case TagItem:
		return "Item"
	case TagReference:
		return "Reference"
	case TagTree:
		return "Tree"
	case TagSumItem:
		return "SumItem"
	case TagSumTree:
		return "SumTree"
	case TagBigSumTree:
		return "BigSumTree"
	case TagCountTree:
		return "CountTree"
	case TagCountSumTree:
		return "CountSumTree"
	case TagProvableCountTree:
		return "ProvableCountTree"
	case TagItemWithSumItem:
		return "ItemWithSumItem"
	case TagProvableCountSumTree:
		return "ProvableCountSumTree"
	case TagCommitmentTree:
		return "CommitmentTree"
	case TagMmrTree:
		return "MmrTree"
	case TagBulkAppendTree:
		return "BulkAppendTree"
	case TagDenseFixedSizeTree:
		return "DenseFixedSizeTree"
	default:
		return "Unknown"
	}
}
