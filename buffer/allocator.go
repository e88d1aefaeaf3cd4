package buffer

import (
	"strconv"
	"sync"
)

// poolMetrics is the narrow slice of metrics.Metrics that PooledAllocator
// needs. Declared here instead of importing metrics.Metrics directly so
// buffer keeps no dependency on the concrete Prometheus types; SetMetrics
// takes anything satisfying it, which *metrics.Metrics does.
type poolMetrics interface {
	AllocationHit(tier string)
	AllocationMiss(tier string)
	AllocationTotal()
	LiveBytesAdd(n float64)
}

// Allocator is the external collaborator that owns backing-array
// acquisition and the capacity-growth policy. Buffer never allocates raw
// memory itself, only through an Allocator.
type Allocator interface {
	// CalculateNewCapacity returns a capacity r such that
	// minRequired <= r <= maxCapacity, deterministic for given inputs.
	// Callers only invoke this when minRequired <= maxCapacity.
	CalculateNewCapacity(minRequired, maxCapacity int) int

	// Allocate returns a zeroed byte slice of exactly size bytes.
	Allocate(size int) []byte

	// Free returns a backing array to the allocator. Buffers must not
	// touch data after passing it to Free.
	Free(data []byte)

	// NewBuffer creates a fresh root Buffer with the given initial and
	// max capacity.
	NewBuffer(initial, max int) (*Buffer, error)
}

// Predefined size classes for the pooled allocator, matching the tiers a
// media/network framework actually sees in practice: small protocol
// control frames up through multi-megabyte payloads.
const (
	tier32   = 1 << 5
	tier512  = 1 << 9
	tier4K   = 1 << 12
	tier16K  = 1 << 14
	tier64K  = 1 << 16
	tier256K = 1 << 18
	tier1M   = 1 << 20
	tier4M   = 1 << 22
	tier8M   = 1 << 23

	growthKnee = tier4M // below this, capacity doubles; above, it grows by fixed steps
)

// PooledAllocator is the default Allocator. It pools backing arrays by
// power-of-two size class to cut down on GC pressure for the
// allocate/release churn a busy pipeline generates, and falls through to a
// direct make() for anything larger than the largest pool tier.
//
// The pools intentionally carry no sync.Pool.New: Get returning nil is how
// Allocate tells a pool hit from a pool miss for metrics purposes.
type PooledAllocator struct {
	pool32   sync.Pool
	pool512  sync.Pool
	pool4K   sync.Pool
	pool16K  sync.Pool
	pool64K  sync.Pool
	pool256K sync.Pool
	pool1M   sync.Pool
	pool4M   sync.Pool
	pool8M   sync.Pool

	metrics poolMetrics
}

// NewPooledAllocator creates a ready-to-use PooledAllocator.
func NewPooledAllocator() *PooledAllocator {
	return &PooledAllocator{}
}

// SetMetrics attaches a collector that Allocate/Free report pool hit,
// miss, and live-byte activity to. Optional; a nil or never-called
// SetMetrics leaves the allocator fully functional without recording
// anything.
func (a *PooledAllocator) SetMetrics(m poolMetrics) { a.metrics = m }

// DefaultAllocator is the process-wide default, used whenever a caller
// does not supply one explicitly.
var DefaultAllocator = NewPooledAllocator()

// poolFor returns the pool backing size's tier and its tier size; ok is
// false for anything larger than the largest pool tier.
func (a *PooledAllocator) poolFor(size int) (pool *sync.Pool, tierSize int, ok bool) {
	switch {
	case size <= tier32:
		return &a.pool32, tier32, true
	case size <= tier512:
		return &a.pool512, tier512, true
	case size <= tier4K:
		return &a.pool4K, tier4K, true
	case size <= tier16K:
		return &a.pool16K, tier16K, true
	case size <= tier64K:
		return &a.pool64K, tier64K, true
	case size <= tier256K:
		return &a.pool256K, tier256K, true
	case size <= tier1M:
		return &a.pool1M, tier1M, true
	case size <= tier4M:
		return &a.pool4M, tier4M, true
	case size <= tier8M:
		return &a.pool8M, tier8M, true
	default:
		return nil, 0, false
	}
}

// Allocate implements Allocator.
func (a *PooledAllocator) Allocate(size int) []byte {
	pool, tierSize, ok := a.poolFor(size)
	if !ok {
		a.recordAlloc("oversized", false, size)
		return make([]byte, size)
	}
	if v := pool.Get(); v != nil {
		buf := v.([]byte)[:tierSize]
		clear(buf)
		a.recordAlloc(strconv.Itoa(tierSize), true, size)
		return buf[:size]
	}
	a.recordAlloc(strconv.Itoa(tierSize), false, size)
	return make([]byte, tierSize)[:size]
}

func (a *PooledAllocator) recordAlloc(tier string, hit bool, size int) {
	if a.metrics == nil {
		return
	}
	if hit {
		a.metrics.AllocationHit(tier)
	} else {
		a.metrics.AllocationMiss(tier)
	}
	a.metrics.AllocationTotal()
	a.metrics.LiveBytesAdd(float64(size))
}

// Free implements Allocator.
func (a *PooledAllocator) Free(data []byte) {
	if data == nil {
		return
	}
	if a.metrics != nil {
		a.metrics.LiveBytesAdd(-float64(len(data)))
	}
	switch cap(data) {
	case tier32:
		a.pool32.Put(data[:tier32])
	case tier512:
		a.pool512.Put(data[:tier512])
	case tier4K:
		a.pool4K.Put(data[:tier4K])
	case tier16K:
		a.pool16K.Put(data[:tier16K])
	case tier64K:
		a.pool64K.Put(data[:tier64K])
	case tier256K:
		a.pool256K.Put(data[:tier256K])
	case tier1M:
		a.pool1M.Put(data[:tier1M])
	case tier4M:
		a.pool4M.Put(data[:tier4M])
	case tier8M:
		a.pool8M.Put(data[:tier8M])
	default:
		// not a pool tier size (e.g. oversized or grown ad hoc); GC handles it
	}
}

// CalculateNewCapacity implements a capacity growth policy: double
// until growthKnee, then step by fixed growthKnee-sized chunks,
// choosing the smallest conforming result and never exceeding maxCapacity.
func (a *PooledAllocator) CalculateNewCapacity(minRequired, maxCapacity int) int {
	if minRequired == maxCapacity {
		return maxCapacity
	}

	if minRequired > growthKnee {
		newCap := (minRequired / growthKnee) * growthKnee
		if newCap < minRequired {
			newCap += growthKnee
		}
		if newCap > maxCapacity {
			return maxCapacity
		}
		return newCap
	}

	newCap := tier64K
	if minRequired < tier64K {
		// start small: smallest power of two >= minRequired, floor 64 bytes
		newCap = 64
		for newCap < minRequired {
			newCap <<= 1
		}
	} else {
		for newCap < minRequired {
			newCap <<= 1
		}
	}
	if newCap > maxCapacity {
		return maxCapacity
	}
	return newCap
}

// NewBuffer implements Allocator.
func (a *PooledAllocator) NewBuffer(initial, max int) (*Buffer, error) {
	return newBuffer(initial, max, a)
}
