// Package cost implements the accounting monad that shadows every
// GroveDB operation: every fallible entry point returns both its
// result and an OperationCost, and costs compose additively (spec §2.2).
package cost

// StorageCost splits the byte delta of a write into the three buckets
// the storage engine can report after a commit.
type StorageCost struct {
	AddedBytes    uint64
	ReplacedBytes uint64
	RemovedBytes  uint64
}

// Add accumulates rhs into sc.
func (sc *StorageCost) Add(rhs StorageCost) {
	sc.AddedBytes += rhs.AddedBytes
	sc.ReplacedBytes += rhs.ReplacedBytes
	sc.RemovedBytes += rhs.RemovedBytes
}

// OperationCost is the accounting record threaded through every
// operation in the core (spec §2.2, §9).
type OperationCost struct {
	SeekCount          uint64
	Storage            StorageCost
	StorageLoadedBytes uint64
	HashNodeCalls      uint64
	SinsemillaCalls    uint64
}

// Add accumulates rhs into c, the composition rule every operation
// relies on: cost of a sequence of sub-operations is the sum of their
// individual costs.
func (c *OperationCost) Add(rhs OperationCost) {
	c.SeekCount += rhs.SeekCount
	c.Storage.Add(rhs.Storage)
	c.StorageLoadedBytes += rhs.StorageLoadedBytes
	c.HashNodeCalls += rhs.HashNodeCalls
	c.SinsemillaCalls += rhs.SinsemillaCalls
}

// AddSeek records a single storage seek/get that loaded n bytes.
func (c *OperationCost) AddSeek(n int) {
	c.SeekCount++
	if n > 0 {
		c.StorageLoadedBytes += uint64(n)
	}
}

// AddHashBlocks records k Blake3 compression-block calls.
func (c *OperationCost) AddHashBlocks(k int) {
	c.HashNodeCalls += uint64(k)
}

// AddSinsemilla records a single Sinsemilla hash invocation.
func (c *OperationCost) AddSinsemilla() {
	c.SinsemillaCalls++
}

// Result pairs a fallible operation's value with the cost it accrued,
// including the cost accumulated up to a failure (spec §2.2, §7: every
// failure carries the accumulated cost up to the point of failure).
type Result[T any] struct {
	Value T
	Cost  OperationCost
	Err   error
}

// Ok wraps a successful value with the cost accrued producing it.
func Ok[T any](v T, c OperationCost) Result[T] {
	return Result[T]{Value: v, Cost: c}
}

// Fail wraps a failure with the cost accrued up to the failure point.
func Fail[T any](err error, c OperationCost) Result[T] {
	return Result[T]{Cost: c, Err: err}
}

// Unwrap returns (value, error) for callers that don't need the cost.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}
