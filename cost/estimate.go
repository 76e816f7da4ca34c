package cost

import "math"

// Size constants used by the pure estimators (spec §6).
const (
	MerkBiggestValueSize = 65535
	MerkBiggestKeySize   = 256
)

// EstimatedTreeHeight bounds a Merk of n elements per spec §8 property 2:
// height <= 1.4405*log2(n+2) - 0.3277.
func EstimatedTreeHeight(n uint64) int {
	if n == 0 {
		return 0
	}
	h := 1.4405*math.Log2(float64(n)+2) - 0.3277
	if h < 1 {
		h = 1
	}
	return int(math.Ceil(h))
}

// EstimateGet returns a worst-case OperationCost for a get against a
// Merk of n elements, without touching storage: one seek per level of
// the estimated height, each loading at most the biggest possible
// key+value+hashes. No hash-block cost is counted.
func EstimateGet(n uint64) OperationCost {
	height := EstimatedTreeHeight(n)
	var c OperationCost
	nodeSize := MerkBiggestKeySize + MerkBiggestValueSize + 3*32
	for i := 0; i < height; i++ {
		c.AddSeek(nodeSize)
	}
	return c
}

// EstimateInsert returns a worst-case OperationCost for inserting one
// element into a Merk of n elements: the get-equivalent walk to find
// the insertion point, the bytes of one biggest-possible node written,
// and a hash recomputation of one such node per level of the
// post-insert height. No separate cost is added for rotations.
func EstimateInsert(n uint64) OperationCost {
	c := EstimateGet(n)
	height := EstimatedTreeHeight(n + 1)

	nodeSize := MerkBiggestKeySize + MerkBiggestValueSize + 3*32
	c.Storage.AddedBytes += uint64(nodeSize)
	for i := 0; i < height; i++ {
		c.AddHashBlocks(hashBlocksFor(nodeSize))
	}
	return c
}

// EstimateAverageGet is the average-case counterpart to EstimateGet: a
// balanced AVL of n elements has average search depth close to its
// worst-case height minus a small constant; GroveDB uses height-1 as a
// documented, pure approximation (no storage access).
func EstimateAverageGet(n uint64) OperationCost {
	height := EstimatedTreeHeight(n)
	if height > 1 {
		height--
	}
	var c OperationCost
	nodeSize := MerkBiggestKeySize + MerkBiggestValueSize + 3*32
	for i := 0; i < height; i++ {
		c.AddSeek(nodeSize)
	}
	return c
}

func hashBlocksFor(n int) int {
	if n <= 0 {
		return 1
	}
	return 1 + (n-1)/64
}
