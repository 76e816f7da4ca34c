package cost

import (
	"errors"
	"testing"
)

func TestOperationCostAdd(t *testing.T) {
	var c OperationCost
	c.AddSeek(100)
	c.AddHashBlocks(2)
	c.AddSinsemilla()

	var rhs OperationCost
	rhs.AddSeek(50)
	rhs.Storage.AddedBytes = 10

	c.Add(rhs)

	if c.SeekCount != 2 {
		t.Errorf("SeekCount = %d, want 2", c.SeekCount)
	}
	if c.StorageLoadedBytes != 150 {
		t.Errorf("StorageLoadedBytes = %d, want 150", c.StorageLoadedBytes)
	}
	if c.Storage.AddedBytes != 10 {
		t.Errorf("Storage.AddedBytes = %d, want 10", c.Storage.AddedBytes)
	}
	if c.HashNodeCalls != 2 {
		t.Errorf("HashNodeCalls = %d, want 2", c.HashNodeCalls)
	}
	if c.SinsemillaCalls != 1 {
		t.Errorf("SinsemillaCalls = %d, want 1", c.SinsemillaCalls)
	}
}

func TestResultUnwrap(t *testing.T) {
	ok := Ok(42, OperationCost{SeekCount: 1})
	v, err := ok.Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("Ok.Unwrap() = (%v, %v), want (42, nil)", v, err)
	}

	sentinel := errors.New("boom")
	failed := Fail[int](sentinel, OperationCost{SeekCount: 3})
	v, err = failed.Unwrap()
	if err != sentinel || v != 0 {
		t.Fatalf("Fail.Unwrap() = (%v, %v), want (0, boom)", v, err)
	}
	if failed.Cost.SeekCount != 3 {
		t.Errorf("Fail cost not preserved: SeekCount = %d, want 3", failed.Cost.SeekCount)
	}
}

func TestEstimatedTreeHeightMonotonic(t *testing.T) {
	if EstimatedTreeHeight(0) != 0 {
		t.Errorf("EstimatedTreeHeight(0) = %d, want 0", EstimatedTreeHeight(0))
	}
	prev := EstimatedTreeHeight(1)
	for _, n := range []uint64{10, 100, 1000, 100000} {
		h := EstimatedTreeHeight(n)
		if h < prev {
			t.Errorf("EstimatedTreeHeight(%d) = %d, not monotonic (prev %d)", n, h, prev)
		}
		prev = h
	}
}

func TestEstimateGetScalesWithHeight(t *testing.T) {
	small := EstimateGet(10)
	large := EstimateGet(1_000_000)
	if large.SeekCount <= small.SeekCount {
		t.Errorf("EstimateGet(1e6).SeekCount = %d, want > EstimateGet(10).SeekCount = %d", large.SeekCount, small.SeekCount)
	}
}

func TestEstimateInsertIncludesStorageWrite(t *testing.T) {
	c := EstimateInsert(100)
	if c.Storage.AddedBytes == 0 {
		t.Errorf("EstimateInsert should record added storage bytes")
	}
	if c.HashNodeCalls == 0 {
		t.Errorf("EstimateInsert should record hash-block calls up the spine")
	}
}

func TestEstimateAverageGetNotGreaterThanWorstCase(t *testing.T) {
	avg := EstimateAverageGet(1000)
	worst := EstimateGet(1000)
	if avg.SeekCount > worst.SeekCount {
		t.Errorf("EstimateAverageGet.SeekCount = %d, want <= EstimateGet.SeekCount = %d", avg.SeekCount, worst.SeekCount)
	}
}
