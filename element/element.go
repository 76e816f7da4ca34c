package element

import "fmt"

// Flags are optional user-attached metadata carried by most variants
// (spec §3's `flags?` field), opaque to GroveDB itself.
type Flags = []byte

// Element is the tagged union stored at every grove key: a leaf value,
// a reference, or a subtree (Merk or non-Merk) descriptor. Only the
// fields relevant to Tag are populated; non-Merk variants carry their
// own compact metadata rather than a byte blob, matching the wire
// layout in spec §3 (the actual type-specific root hash these
// variants feed upward is computed by the trees package and passed
// into ValueHash, not stored in the element itself).
type Element struct {
	Tag Tag

	// Item, SumItem, ItemWithSumItem
	Value []byte

	// SumItem, ItemWithSumItem, SumTree, CountSumTree, ProvableCountSumTree
	SumValue int64

	// BigSumTree
	BigSumValue Int128

	// CountTree, CountSumTree, ProvableCountTree, ProvableCountSumTree
	CountValue uint64

	// Reference
	Ref ReferencePath
	// MaxHop overrides the global reference hop cap for this reference
	// only, when non-nil (spec §3: `ReferencePathType, max_hop?, flags?`).
	MaxHop *uint8

	// Tree, SumTree, BigSumTree, CountTree, CountSumTree,
	// ProvableCountTree, ProvableCountSumTree: the child Merk subtree's
	// root key, nil until the subtree has been written at least once.
	RootKey []byte

	// MmrTree
	MmrSize uint64

	// CommitmentTree, BulkAppendTree
	TotalCount uint64
	ChunkPower uint8

	// DenseFixedSizeTree
	DenseCount  uint16
	DenseHeight uint8

	Flags Flags
}

func Item(value []byte, flags Flags) Element {
	return Element{Tag: TagItem, Value: value, Flags: flags}
}

func SumItem(sum int64, flags Flags) Element {
	return Element{Tag: TagSumItem, SumValue: sum, Flags: flags}
}

func ItemWithSumItem(value []byte, sum int64, flags Flags) Element {
	return Element{Tag: TagItemWithSumItem, Value: value, SumValue: sum, Flags: flags}
}

// ReferenceElem builds a Reference element. maxHop is nil to use the
// global hop cap, or a pointer to a per-reference override.
func ReferenceElem(ref ReferencePath, maxHop *uint8, flags Flags) Element {
	return Element{Tag: TagReference, Ref: ref, MaxHop: maxHop, Flags: flags}
}

func Tree(rootKey []byte, flags Flags) Element {
	return Element{Tag: TagTree, RootKey: rootKey, Flags: flags}
}

func SumTree(rootKey []byte, sum int64, flags Flags) Element {
	return Element{Tag: TagSumTree, RootKey: rootKey, SumValue: sum, Flags: flags}
}

func BigSumTree(rootKey []byte, sum Int128, flags Flags) Element {
	return Element{Tag: TagBigSumTree, RootKey: rootKey, BigSumValue: sum, Flags: flags}
}

func CountTree(rootKey []byte, count uint64, flags Flags) Element {
	return Element{Tag: TagCountTree, RootKey: rootKey, CountValue: count, Flags: flags}
}

func CountSumTree(rootKey []byte, count uint64, sum int64, flags Flags) Element {
	return Element{Tag: TagCountSumTree, RootKey: rootKey, CountValue: count, SumValue: sum, Flags: flags}
}

func ProvableCountTree(rootKey []byte, count uint64, flags Flags) Element {
	return Element{Tag: TagProvableCountTree, RootKey: rootKey, CountValue: count, Flags: flags}
}

func ProvableCountSumTree(rootKey []byte, count uint64, sum int64, flags Flags) Element {
	return Element{Tag: TagProvableCountSumTree, RootKey: rootKey, CountValue: count, SumValue: sum, Flags: flags}
}

// CommitmentTreeElem builds a CommitmentTree element, whose payload per
// spec §3 is just `total_count, chunk_power`; the Sinsemilla anchor and
// BulkAppendTree storage live in the trees package.
func CommitmentTreeElem(totalCount uint64, chunkPower uint8, flags Flags) Element {
	return Element{Tag: TagCommitmentTree, TotalCount: totalCount, ChunkPower: chunkPower, Flags: flags}
}

func MmrTreeElem(mmrSize uint64, flags Flags) Element {
	return Element{Tag: TagMmrTree, MmrSize: mmrSize, Flags: flags}
}

func BulkAppendTreeElem(totalCount uint64, chunkPower uint8, flags Flags) Element {
	return Element{Tag: TagBulkAppendTree, TotalCount: totalCount, ChunkPower: chunkPower, Flags: flags}
}

func DenseFixedSizeTreeElem(count uint16, height uint8, flags Flags) Element {
	return Element{Tag: TagDenseFixedSizeTree, DenseCount: count, DenseHeight: height, Flags: flags}
}

// IsSubtree reports whether e holds a child root rather than a plain or
// reference value.
func (e Element) IsSubtree() bool {
	return e.Tag.Kind() == KindSubtree
}

// Marshal encodes e as Tag || variant-specific fields || flags?.
func (e Element) Marshal() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(e.Tag))

	switch e.Tag {
	case TagItem:
		buf = writeBytes(buf, e.Value)
	case TagSumItem:
		buf = writeInt64(buf, e.SumValue)
	case TagItemWithSumItem:
		buf = writeBytes(buf, e.Value)
		buf = writeInt64(buf, e.SumValue)
	case TagReference:
		buf = e.Ref.marshal(buf)
		buf = writeOptionalUint8(buf, e.MaxHop)
	case TagTree:
		buf = writeOptionalBytes(buf, e.RootKey != nil, e.RootKey)
	case TagSumTree:
		buf = writeOptionalBytes(buf, e.RootKey != nil, e.RootKey)
		buf = writeInt64(buf, e.SumValue)
	case TagBigSumTree:
		buf = writeOptionalBytes(buf, e.RootKey != nil, e.RootKey)
		b, err := e.BigSumValue.Bytes()
		if err != nil {
			// caller-visible elements are always constructed in range;
			// a failure here means a bug upstream, not bad input.
			panic(fmt.Sprintf("element: marshal BigSumTree: %v", err))
		}
		buf = append(buf, b[:]...)
	case TagCountTree:
		buf = writeOptionalBytes(buf, e.RootKey != nil, e.RootKey)
		buf = writeUint64(buf, e.CountValue)
	case TagCountSumTree:
		buf = writeOptionalBytes(buf, e.RootKey != nil, e.RootKey)
		buf = writeUint64(buf, e.CountValue)
		buf = writeInt64(buf, e.SumValue)
	case TagProvableCountTree:
		buf = writeOptionalBytes(buf, e.RootKey != nil, e.RootKey)
		buf = writeUint64(buf, e.CountValue)
	case TagProvableCountSumTree:
		buf = writeOptionalBytes(buf, e.RootKey != nil, e.RootKey)
		buf = writeUint64(buf, e.CountValue)
		buf = writeInt64(buf, e.SumValue)
	case TagCommitmentTree:
		buf = writeUint64(buf, e.TotalCount)
		buf = append(buf, e.ChunkPower)
	case TagMmrTree:
		buf = writeUint64(buf, e.MmrSize)
	case TagBulkAppendTree:
		buf = writeUint64(buf, e.TotalCount)
		buf = append(buf, e.ChunkPower)
	case TagDenseFixedSizeTree:
		buf = writeUint16(buf, e.DenseCount)
		buf = append(buf, e.DenseHeight)
	}

	buf = writeOptionalBytes(buf, e.Flags != nil, e.Flags)
	return buf
}

// Unmarshal decodes an Element previously produced by Marshal.
func Unmarshal(buf []byte) (Element, error) {
	if len(buf) == 0 {
		return Element{}, ErrTruncated
	}
	tag := Tag(buf[0])
	off := 1
	var e Element
	e.Tag = tag

	var err error
	switch tag {
	case TagItem:
		e.Value, off, err = readBytes(buf, off)
	case TagSumItem:
		e.SumValue, off, err = readInt64(buf, off)
	case TagItemWithSumItem:
		e.Value, off, err = readBytes(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.SumValue, off, err = readInt64(buf, off)
	case TagReference:
		e.Ref, off, err = unmarshalReferencePath(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.MaxHop, off, err = readOptionalUint8(buf, off)
	case TagTree:
		e.RootKey, _, off, err = readOptionalBytes(buf, off)
	case TagSumTree:
		e.RootKey, _, off, err = readOptionalBytes(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.SumValue, off, err = readInt64(buf, off)
	case TagBigSumTree:
		e.RootKey, _, off, err = readOptionalBytes(buf, off)
		if err != nil {
			return Element{}, err
		}
		if off+int128Bytes > len(buf) {
			return Element{}, ErrTruncated
		}
		e.BigSumValue, err = Int128FromBytes(buf[off : off+int128Bytes])
		off += int128Bytes
	case TagCountTree:
		e.RootKey, _, off, err = readOptionalBytes(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.CountValue, off, err = readUint64(buf, off)
	case TagCountSumTree:
		e.RootKey, _, off, err = readOptionalBytes(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.CountValue, off, err = readUint64(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.SumValue, off, err = readInt64(buf, off)
	case TagProvableCountTree:
		e.RootKey, _, off, err = readOptionalBytes(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.CountValue, off, err = readUint64(buf, off)
	case TagProvableCountSumTree:
		e.RootKey, _, off, err = readOptionalBytes(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.CountValue, off, err = readUint64(buf, off)
		if err != nil {
			return Element{}, err
		}
		e.SumValue, off, err = readInt64(buf, off)
	case TagCommitmentTree:
		e.TotalCount, off, err = readUint64(buf, off)
		if err != nil {
			return Element{}, err
		}
		if off >= len(buf) {
			return Element{}, ErrTruncated
		}
		e.ChunkPower = buf[off]
		off++
	case TagMmrTree:
		e.MmrSize, off, err = readUint64(buf, off)
	case TagBulkAppendTree:
		e.TotalCount, off, err = readUint64(buf, off)
		if err != nil {
			return Element{}, err
		}
		if off >= len(buf) {
			return Element{}, ErrTruncated
		}
		e.ChunkPower = buf[off]
		off++
	case TagDenseFixedSizeTree:
		e.DenseCount, off, err = readUint16(buf, off)
		if err != nil {
			return Element{}, err
		}
		if off >= len(buf) {
			return Element{}, ErrTruncated
		}
		e.DenseHeight = buf[off]
		off++
	default:
		return Element{}, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	if err != nil {
		return Element{}, err
	}

	e.Flags, _, off, err = readOptionalBytes(buf, off)
	if err != nil {
		return Element{}, err
	}
	_ = off
	return e, nil
}
