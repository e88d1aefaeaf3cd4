// Package buffer implements the dual-cursor, reference-counted,
// dynamically resizable byte container described by the framework's
// buffer core: a reader index, a writer index, endian-polymorphic typed
// accessors, and zero-copy Slice/Duplicate views over shared backing
// storage.
package buffer

import (
	"sync/atomic"
)

type byteOrder int

const (
	bigEndian byteOrder = iota
	littleEndian
)

// storage is the shared backing array plus its ref-counted lifecycle. It
// is never copied; every Buffer view holds a pointer to one.
type storage struct {
	data        []byte
	capacity    int
	maxCapacity int
	refCount    atomic.Int32
	alloc       Allocator
}

// cursor holds the mutable reader/writer state for one Buffer view. A
// root Buffer and its Duplicates each own a distinct cursor; an
// endian-swapped view shares its parent's cursor by pointer, since it is
// the same logical stream of bytes read a different way.
type cursor struct {
	r, w         int
	markR, markW int
}

// Buffer is a view over a storage: either the root view (fixedCap == 0,
// tracking storage.capacity as it grows), or a fixed-window Slice
// (fixedCap == length of the slice, immune to the parent's growth).
type Buffer struct {
	root     *storage
	offset   int
	fixedCap int
	cur      *cursor
	order    byteOrder
	swap     *Buffer
}

// New allocates a fresh root Buffer with the given initial and maximum
// capacity, using the DefaultAllocator.
func New(initialCapacity, maxCapacity int) (*Buffer, error) {
	return newBuffer(initialCapacity, maxCapacity, DefaultAllocator)
}

func newBuffer(initialCapacity, maxCapacity int, alloc Allocator) (*Buffer, error) {
	if initialCapacity < 0 || maxCapacity < initialCapacity {
		return nil, &CapacityError{Op: "New", Requested: initialCapacity, MaxCapacity: maxCapacity}
	}
	st := &storage{
		data:        alloc.Allocate(initialCapacity),
		capacity:    initialCapacity,
		maxCapacity: maxCapacity,
		alloc:       alloc,
	}
	st.refCount.Store(1)
	return &Buffer{root: st, cur: &cursor{}}, nil
}

// Capacity returns the current backing length visible to this view.
func (b *Buffer) Capacity() int {
	if b.fixedCap > 0 {
		return b.fixedCap
	}
	return b.root.capacity
}

// MaxCapacity returns the upper bound this view may grow to.
func (b *Buffer) MaxCapacity() int {
	if b.fixedCap > 0 {
		return b.fixedCap
	}
	return b.root.maxCapacity
}

// ReaderIndex returns R.
func (b *Buffer) ReaderIndex() int { return b.cur.r }

// WriterIndex returns W.
func (b *Buffer) WriterIndex() int { return b.cur.w }

// ReadableBytes returns W - R.
func (b *Buffer) ReadableBytes() int { return b.cur.w - b.cur.r }

// WritableBytes returns C - W.
func (b *Buffer) WritableBytes() int { return b.Capacity() - b.cur.w }

// MaxWritableBytes returns M - W.
func (b *Buffer) MaxWritableBytes() int { return b.MaxCapacity() - b.cur.w }

// IsReadable reports whether at least one byte can be read.
func (b *Buffer) IsReadable() bool { return b.ReadableBytes() > 0 }

// Readable reports whether at least n bytes can be read.
func (b *Buffer) Readable(n int) bool { return b.ReadableBytes() >= n }

// IsWritable reports whether at least one byte can be written.
func (b *Buffer) IsWritable() bool { return b.WritableBytes() > 0 }

// Writable reports whether at least n bytes can be written without growing.
func (b *Buffer) Writable(n int) bool { return b.WritableBytes() >= n }

// RefCount returns the current reference count. Safe to call after release.
func (b *Buffer) RefCount() int32 { return b.root.refCount.Load() }

func (b *Buffer) checkAlive(op string) error {
	if b.root.refCount.Load() <= 0 {
		return &ReleasedError{Op: op, RefCount: 0}
	}
	return nil
}

// SetReaderIndex sets R directly.
func (b *Buffer) SetReaderIndex(i int) error {
	if i < 0 || i > b.cur.w {
		return &IndexError{Op: "SetReaderIndex", Index: i, Capacity: b.Capacity()}
	}
	b.cur.r = i
	return nil
}

// SetWriterIndex sets W directly.
func (b *Buffer) SetWriterIndex(i int) error {
	if i < b.cur.r || i > b.Capacity() {
		return &IndexError{Op: "SetWriterIndex", Index: i, Capacity: b.Capacity()}
	}
	b.cur.w = i
	return nil
}

// Skip advances R by n without returning the bytes.
func (b *Buffer) Skip(n int) error {
	if err := b.checkAlive("Skip"); err != nil {
		return err
	}
	if n < 0 || b.ReadableBytes() < n {
		return &IndexError{Op: "Skip", Index: b.cur.r, Length: n, Capacity: b.Capacity()}
	}
	b.cur.r += n
	return nil
}

// MarkReaderIndex snapshots R.
func (b *Buffer) MarkReaderIndex() { b.cur.markR = b.cur.r }

// MarkWriterIndex snapshots W.
func (b *Buffer) MarkWriterIndex() { b.cur.markW = b.cur.w }

// ResetReaderIndex restores R from the last mark.
func (b *Buffer) ResetReaderIndex() error {
	if b.cur.markR > b.cur.w {
		return &IndexError{Op: "ResetReaderIndex", Index: b.cur.markR, Capacity: b.Capacity()}
	}
	b.cur.r = b.cur.markR
	return nil
}

// ResetWriterIndex restores W from the last mark.
func (b *Buffer) ResetWriterIndex() error {
	if b.cur.markW < b.cur.r {
		return &IndexError{Op: "ResetWriterIndex", Index: b.cur.markW, Capacity: b.Capacity()}
	}
	b.cur.w = b.cur.markW
	return nil
}

// Clear resets R and W to zero without touching capacity.
func (b *Buffer) Clear() {
	b.cur.r = 0
	b.cur.w = 0
	b.cur.markR = 0
	b.cur.markW = 0
}

// adjustMarker shifts a mark by d on compaction, clamping to zero and
// to the new writer index.
func adjustMarker(m, d, newW int) int {
	m -= d
	if m < 0 {
		m = 0
	}
	if m > newW {
		m = newW
	}
	return m
}

// DiscardReadBytes compacts [R, W) down to [0, W-R) and resets R to 0,
// adjusting both markers via adjustMarker.
func (b *Buffer) DiscardReadBytes() error {
	if err := b.checkAlive("DiscardReadBytes"); err != nil {
		return err
	}
	d := b.cur.r
	if d == 0 {
		return nil
	}
	newW := b.cur.w - d
	abs := b.offset
	copy(b.root.data[abs:abs+newW], b.root.data[abs+d:abs+d+newW])
	b.cur.markR = adjustMarker(b.cur.markR, d, newW)
	b.cur.markW = adjustMarker(b.cur.markW, d, newW)
	b.cur.w = newW
	b.cur.r = 0
	return nil
}

// DiscardSomeReadBytes compacts only when R >= C/2, amortizing the cost
// of a stage that reads small chunks and writes larger ones.
func (b *Buffer) DiscardSomeReadBytes() error {
	if err := b.checkAlive("DiscardSomeReadBytes"); err != nil {
		return err
	}
	if b.cur.r >= b.Capacity()/2 {
		return b.DiscardReadBytes()
	}
	return nil
}

// EnsureWritableStatus values describe the outcome of an
// EnsureWritable/EnsureWritableForce call.
const (
	EnsureWritableUnchanged         = 0
	EnsureWritableInsufficientAtMax = 1
	EnsureWritableGrew              = 2
	EnsureWritableForcedToMax       = 3
)

// EnsureWritable grows the buffer if needed so at least n more bytes can
// be written, failing if that would exceed max_capacity.
func (b *Buffer) EnsureWritable(n int) error {
	status, err := b.ensureWritable(n, false)
	if err != nil {
		return err
	}
	if status == EnsureWritableInsufficientAtMax {
		return &CapacityError{Op: "EnsureWritable", Requested: b.cur.w + n, MaxCapacity: b.MaxCapacity()}
	}
	return nil
}

// EnsureWritableForce implements the four-way status contract: it may
// grow up to MaxCapacity even when the caller asked for more, returning
// which of the four outcomes occurred instead of failing outright.
func (b *Buffer) EnsureWritableForce(n int) (int, error) {
	return b.ensureWritable(n, true)
}

func (b *Buffer) ensureWritable(n int, force bool) (int, error) {
	if err := b.checkAlive("EnsureWritable"); err != nil {
		return 0, err
	}
	if n <= b.WritableBytes() {
		return EnsureWritableUnchanged, nil
	}
	if b.fixedCap > 0 {
		// A fixed-window view's capacity is pinned to its length; it never
		// grows, force or not, since growing would mean reallocating
		// storage it doesn't own.
		return EnsureWritableInsufficientAtMax, nil
	}

	minRequired := b.cur.w + n
	maxCap := b.MaxCapacity()

	if minRequired > maxCap {
		if !force {
			return EnsureWritableInsufficientAtMax, nil
		}
		if b.Capacity() == maxCap {
			return EnsureWritableInsufficientAtMax, nil
		}
		if err := b.grow(maxCap); err != nil {
			return 0, err
		}
		if b.Capacity() >= minRequired {
			return EnsureWritableGrew, nil
		}
		return EnsureWritableForcedToMax, nil
	}

	if err := b.grow(minRequired); err != nil {
		return 0, err
	}
	return EnsureWritableGrew, nil
}

// grow reallocates the backing storage to satisfy minRequired, delegating
// the new size decision to the Allocator. ensureWritable rejects growth
// on a fixed-window view before calling this, so grow only ever runs
// against a root buffer that owns its own storage.
func (b *Buffer) grow(minRequired int) error {
	newCap := b.root.alloc.CalculateNewCapacity(minRequired, b.root.maxCapacity)
	if newCap < minRequired && newCap < b.root.maxCapacity {
		newCap = minRequired
	}
	newData := b.root.alloc.Allocate(newCap)
	copy(newData, b.root.data[:b.root.capacity])
	old := b.root.data
	b.root.data = newData
	b.root.capacity = newCap
	b.root.alloc.Free(old)
	return nil
}

// Retain increments ref_count. Legal only while Live.
func (b *Buffer) Retain() error {
	if err := b.checkAlive("Retain"); err != nil {
		return err
	}
	b.root.refCount.Add(1)
	return nil
}

// Release decrements ref_count, returning the backing storage to the
// allocator on the 1->0 transition.
func (b *Buffer) Release() error {
	for {
		cur := b.root.refCount.Load()
		if cur <= 0 {
			return ErrRefCountUnderflow
		}
		if b.root.refCount.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				b.root.alloc.Free(b.root.data)
				b.root.data = nil
			}
			return nil
		}
	}
}

// Duplicate returns a Buffer sharing this view's backing storage and
// window, but with an independent cursor initialized to this view's
// current R/W. It does not bump ref_count on its own; call Retain if
// the duplicate needs its own claim on the storage.
func (b *Buffer) Duplicate() *Buffer {
	return &Buffer{
		root:     b.root,
		offset:   b.offset,
		fixedCap: b.fixedCap,
		cur:      &cursor{r: b.cur.r, w: b.cur.w},
		order:    b.order,
	}
}

// Slice returns a fixed-window view over [i, i+length) of this buffer's
// own index space, sharing backing storage. Its capacity and
// max_capacity are both length: it never grows. Slicing retains the
// backing storage, incrementing ref_count.
func (b *Buffer) Slice(i, length int) (*Buffer, error) {
	if err := b.checkAlive("Slice"); err != nil {
		return nil, err
	}
	if i < 0 || length < 0 || i+length > b.Capacity() {
		return nil, &IndexError{Op: "Slice", Index: i, Length: length, Capacity: b.Capacity()}
	}
	if err := b.Retain(); err != nil {
		return nil, err
	}
	return &Buffer{
		root:     b.root,
		offset:   b.offset + i,
		fixedCap: length,
		cur:      &cursor{r: 0, w: length},
		order:    b.order,
	}, nil
}

// Copy returns a brand-new, independent Buffer containing a copy of the
// n bytes starting at i.
func (b *Buffer) Copy(i, n int) (*Buffer, error) {
	if err := b.checkAlive("Copy"); err != nil {
		return nil, err
	}
	if i < 0 || n < 0 || i+n > b.Capacity() {
		return nil, &IndexError{Op: "Copy", Index: i, Length: n, Capacity: b.Capacity()}
	}
	out, err := newBuffer(n, n, b.root.alloc)
	if err != nil {
		return nil, err
	}
	abs := b.offset + i
	copy(out.root.data, b.root.data[abs:abs+n])
	out.cur.w = n
	return out, nil
}

// endianView returns the cached opposite-endian adapter, sharing this
// view's cursor by pointer.
func (b *Buffer) endianView(want byteOrder) *Buffer {
	if b.order == want {
		return b
	}
	if b.swap == nil {
		b.swap = &Buffer{
			root:     b.root,
			offset:   b.offset,
			fixedCap: b.fixedCap,
			cur:      b.cur,
			order:    want,
		}
		b.swap.swap = b
	}
	return b.swap
}

// BigEndian returns the (possibly identical) big-endian view of this buffer.
func (b *Buffer) BigEndian() *Buffer { return b.endianView(bigEndian) }

// LittleEndian returns the cached little-endian view of this buffer,
// sharing cursors and storage — writes and reads through it byte-swap
// multi-byte values with no copy and no separate cursor.
func (b *Buffer) LittleEndian() *Buffer { return b.endianView(littleEndian) }

// GetBytes copies Capacity-bounded len(dst) bytes starting at i into dst
// without moving any cursor.
func (b *Buffer) GetBytes(i int, dst []byte) error {
	src, err := b.sliceAt("GetBytes", i, len(dst))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// SetBytes writes src at i without moving W.
func (b *Buffer) SetBytes(i int, src []byte) error {
	dst, err := b.sliceAt("SetBytes", i, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// ReadBytes consumes len(dst) bytes from R into dst.
func (b *Buffer) ReadBytes(dst []byte) error {
	n := len(dst)
	if err := b.checkAlive("ReadBytes"); err != nil {
		return err
	}
	if b.ReadableBytes() < n {
		return &IndexError{Op: "ReadBytes", Index: b.cur.r, Length: n, Capacity: b.Capacity()}
	}
	src, _ := b.sliceAt("ReadBytes", b.cur.r, n)
	copy(dst, src)
	b.cur.r += n
	return nil
}

// WriteBytes appends src at W, growing as needed.
func (b *Buffer) WriteBytes(src []byte) error {
	n := len(src)
	if err := b.EnsureWritable(n); err != nil {
		return err
	}
	dst, _ := b.sliceAt("WriteBytes", b.cur.w, n)
	copy(dst, src)
	b.cur.w += n
	return nil
}

// sliceAt returns the live backing sub-slice [i, i+n) for this view,
// after alive and index checks. The slice aliases storage; callers must
// not retain it past the next mutation of this Buffer's storage.
func (b *Buffer) sliceAt(op string, i, n int) ([]byte, error) {
	if err := b.checkAlive(op); err != nil {
		return nil, err
	}
	if i < 0 || n < 0 || i+n > b.Capacity() {
		return nil, &IndexError{Op: op, Index: i, Length: n, Capacity: b.Capacity()}
	}
	abs := b.offset + i
	return b.root.data[abs : abs+n], nil
}

// SetZero fills n bytes starting at i with zero without moving W.
func (b *Buffer) SetZero(i, n int) error {
	dst, err := b.sliceAt("SetZero", i, n)
	if err != nil {
		return err
	}
	clear(dst)
	return nil
}

// WriteZero appends n zero bytes at W, growing as needed.
func (b *Buffer) WriteZero(n int) error {
	if err := b.EnsureWritable(n); err != nil {
		return err
	}
	dst, _ := b.sliceAt("WriteZero", b.cur.w, n)
	clear(dst)
	b.cur.w += n
	return nil
}

// IndexOf returns the first index in [from, to) holding byte v, or -1.
func (b *Buffer) IndexOf(from, to int, v byte) (int, error) {
	if err := b.checkAlive("IndexOf"); err != nil {
		return -1, err
	}
	if from < 0 || to > b.Capacity() || from > to {
		return -1, &IndexError{Op: "IndexOf", Index: from, Length: to - from, Capacity: b.Capacity()}
	}
	abs := b.offset
	for idx := from; idx < to; idx++ {
		if b.root.data[abs+idx] == v {
			return idx, nil
		}
	}
	return -1, nil
}

// ForEachByte iterates bytes in [R, W), invoking proc(index, value) for
// each, stopping at the first false return or error. It returns the
// index it stopped at, or -1 if it completed the whole range.
func (b *Buffer) ForEachByte(proc func(index int, value byte) (bool, error)) (int, error) {
	if err := b.checkAlive("ForEachByte"); err != nil {
		return -1, err
	}
	abs := b.offset
	for idx := b.cur.r; idx < b.cur.w; idx++ {
		cont, err := proc(idx, b.root.data[abs+idx])
		if err != nil {
			return idx, err
		}
		if !cont {
			return idx, nil
		}
	}
	return -1, nil
}
