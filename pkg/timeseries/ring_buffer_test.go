package timeseries

import "testing"

func TestRingBufferEvictsOldestOnOverflow(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Push(NewSample(epoch(i), float64(i)))
	}
	if rb.Len() != 3 {
		t.Fatalf("len = %d, want 3", rb.Len())
	}
	got := rb.Slice(0, rb.Len())
	want := []float64{3, 4, 5}
	for i, s := range got {
		v, _ := s.BaseValue()
		if v != want[i] {
			t.Fatalf("slice[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestRingBufferBisectByTimestamp(t *testing.T) {
	rb := NewRingBuffer(10)
	for i := 1; i <= 6; i++ {
		rb.Push(NewSample(epoch(i), float64(i)))
	}

	if got := rb.BisectByTimestamp(epoch(3)); got != 3 {
		t.Fatalf("bisect(3) = %d, want 3", got)
	}
	if got := rb.BisectByTimestamp(epoch(0)); got != 0 {
		t.Fatalf("bisect(0) = %d, want 0", got)
	}
	if got := rb.BisectByTimestamp(epoch(6)); got != 6 {
		t.Fatalf("bisect(6) = %d, want 6", got)
	}
}

func TestRingBufferRebuildPreservesNewest(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := 1; i <= 5; i++ {
		rb.Push(NewSample(epoch(i), float64(i)))
	}

	rb.Rebuild(3)
	if rb.Capacity() != 3 || rb.Len() != 3 {
		t.Fatalf("after rebuild: capacity=%d len=%d, want 3/3", rb.Capacity(), rb.Len())
	}
	got := rb.Slice(0, rb.Len())
	want := []float64{3, 4, 5}
	for i, s := range got {
		v, _ := s.BaseValue()
		if v != want[i] {
			t.Fatalf("slice[%d] = %v, want %v", i, v, want[i])
		}
	}

	rb.Rebuild(10)
	if rb.Capacity() != 10 || rb.Len() != 3 {
		t.Fatalf("after growing rebuild: capacity=%d len=%d, want 10/3", rb.Capacity(), rb.Len())
	}
}
