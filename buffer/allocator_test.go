package buffer

import "testing"

func TestPooledAllocatorGetPut(t *testing.T) {
	sizes := []int{32, 512, 4096, 16384, 65536, 262144, 1048576, 4194304}
	a := NewPooledAllocator()

	for _, size := range sizes {
		buf := a.Allocate(size)
		if len(buf) != size {
			t.Errorf("expected size %d, got %d", size, len(buf))
		}
		for i := range buf {
			buf[i] = byte(i % 256)
		}
		a.Free(buf)

		buf2 := a.Allocate(size)
		if len(buf2) != size {
			t.Errorf("expected size %d, got %d", size, len(buf2))
		}
		for _, c := range buf2 {
			if c != 0 {
				t.Fatalf("expected reused buffer to be cleared, got %d", c)
			}
		}
		a.Free(buf2)
	}
}

func TestPooledAllocatorOversized(t *testing.T) {
	a := NewPooledAllocator()
	size := tier8M + 1024

	buf := a.Allocate(size)
	if len(buf) != size {
		t.Errorf("expected size %d, got %d", size, len(buf))
	}
	a.Free(buf) // must not panic even though it is not pool-tier sized
}

func TestCalculateNewCapacityRespectsBounds(t *testing.T) {
	a := NewPooledAllocator()

	cases := []struct {
		minRequired, maxCapacity int
	}{
		{minRequired: 5, maxCapacity: 8},
		{minRequired: 100, maxCapacity: 100},
		{minRequired: 1 << 20, maxCapacity: 1 << 24},
		{minRequired: (1 << 24) + 1, maxCapacity: 1 << 25},
	}

	for _, c := range cases {
		got := a.CalculateNewCapacity(c.minRequired, c.maxCapacity)
		if got < c.minRequired {
			t.Errorf("CalculateNewCapacity(%d,%d) = %d, want >= minRequired", c.minRequired, c.maxCapacity, got)
		}
		if got > c.maxCapacity {
			t.Errorf("CalculateNewCapacity(%d,%d) = %d, want <= maxCapacity", c.minRequired, c.maxCapacity, got)
		}
	}
}

type fakePoolMetrics struct {
	hits, misses, allocs int
	liveBytes            float64
}

func (f *fakePoolMetrics) AllocationHit(tier string)  { f.hits++ }
func (f *fakePoolMetrics) AllocationMiss(tier string) { f.misses++ }
func (f *fakePoolMetrics) AllocationTotal()           { f.allocs++ }
func (f *fakePoolMetrics) LiveBytesAdd(n float64)     { f.liveBytes += n }

func TestPooledAllocatorReportsHitsAndMisses(t *testing.T) {
	a := NewPooledAllocator()
	m := &fakePoolMetrics{}
	a.SetMetrics(m)

	buf := a.Allocate(512)
	if m.misses != 1 || m.hits != 0 {
		t.Fatalf("first allocation should be a miss: hits=%d misses=%d", m.hits, m.misses)
	}
	a.Free(buf)
	if m.liveBytes != 0 {
		t.Fatalf("expected live bytes back to 0 after Free, got %v", m.liveBytes)
	}

	a.Free(a.Allocate(512))
	if m.hits != 1 {
		t.Fatalf("second allocation should reuse the freed buffer: hits=%d", m.hits)
	}
	if m.allocs != 2 {
		t.Fatalf("expected 2 total allocations recorded, got %d", m.allocs)
	}
}

func TestCalculateNewCapacityDeterministic(t *testing.T) {
	a := NewPooledAllocator()
	a2 := NewPooledAllocator()

	got1 := a.CalculateNewCapacity(1000, 1<<20)
	got2 := a2.CalculateNewCapacity(1000, 1<<20)
	if got1 != got2 {
		t.Errorf("CalculateNewCapacity not deterministic: %d != %d", got1, got2)
	}
}
