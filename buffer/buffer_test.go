package buffer

import (
	"errors"
	"testing"
)

func TestNewBufferInvariants(t *testing.T) {
	b, err := New(4, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.ReaderIndex() != 0 || b.WriterIndex() != 0 || b.Capacity() != 4 || b.MaxCapacity() != 16 {
		t.Fatalf("unexpected initial state: R=%d W=%d C=%d M=%d", b.ReaderIndex(), b.WriterIndex(), b.Capacity(), b.MaxCapacity())
	}
}

// Writable(n) reports capacity remaining before a grow, not headroom
// up to maxCapacity. A buffer sitting at a capacity smaller than its max
// can still be un-Writable(n) for n it would only satisfy by growing.
func TestWritableTracksCapacityNotMaxCapacity(t *testing.T) {
	b, err := New(4, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !b.Writable(4) {
		t.Fatal("expected Writable(4) at fresh capacity 4")
	}
	if b.Writable(5) {
		t.Fatal("Writable(5) should be false: only 4 bytes fit before a grow, even though maxCapacity allows it")
	}
	if !b.IsWritable() {
		t.Fatal("expected IsWritable at fresh capacity 4")
	}

	if err := b.WriteBytes(make([]byte, 4)); err != nil {
		t.Fatal(err)
	}
	if b.IsWritable() {
		t.Fatal("expected IsWritable false once capacity is exhausted")
	}
}

// S1 — endian round trip.
func TestEndianRoundTrip(t *testing.T) {
	b, _ := New(16, 16)
	if err := b.WriteUint32(0x11223344); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}

	if err := b.SetReaderIndex(0); err != nil {
		t.Fatal(err)
	}
	got, err := b.ReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x11223344 {
		t.Fatalf("got %#x, want %#x", got, 0x11223344)
	}

	if err := b.SetReaderIndex(0); err != nil {
		t.Fatal(err)
	}
	le := b.LittleEndian()
	got, err = le.ReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x44332211 {
		t.Fatalf("got %#x, want %#x", got, 0x44332211)
	}
}

// S2 — grow to max then fail.
func TestGrowToMaxThenFail(t *testing.T) {
	b, _ := New(4, 8)

	if err := b.WriteBytes([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if b.Capacity() != 8 {
		t.Fatalf("expected capacity to grow to 8, got %d", b.Capacity())
	}

	if err := b.WriteBytes([]byte{6, 7, 8}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if b.WriterIndex() != 8 {
		t.Fatalf("expected W=8, got %d", b.WriterIndex())
	}

	if err := b.WriteByte(9); err == nil {
		t.Fatal("expected CapacityError, got nil")
	} else if !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if b.WriterIndex() != 8 {
		t.Fatalf("state must be unchanged after failed write, W=%d", b.WriterIndex())
	}
}

// S3 — slice lifetime.
func TestSliceLifetime(t *testing.T) {
	b, _ := New(16, 16)
	data := make([]byte, 8)
	for i := range data {
		data[i] = byte(i)
	}
	if err := b.WriteBytes(data); err != nil {
		t.Fatal(err)
	}

	s, err := b.Slice(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetByte(0, 0xFF); err != nil {
		t.Fatal(err)
	}

	got, err := b.GetByte(2)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xFF {
		t.Fatalf("mutation through slice not visible in parent: got %#x", got)
	}

	if err := s.Release(); err != nil {
		t.Fatal(err)
	}
	if b.RefCount() <= 0 {
		t.Fatalf("parent should still be live after slice release, ref_count=%d", b.RefCount())
	}
}

// A Slice's capacity is pinned to its window length; forcing growth past
// it must never reallocate the parent's shared backing storage.
func TestSliceEnsureWritableNeverGrowsParent(t *testing.T) {
	b, _ := New(16, 16)
	data := make([]byte, 8)
	if err := b.WriteBytes(data); err != nil {
		t.Fatal(err)
	}

	s, err := b.Slice(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetWriterIndex(4); err != nil {
		t.Fatal(err)
	}

	parentCapBefore := b.Capacity()
	status, err := s.EnsureWritableForce(1)
	if err != nil {
		t.Fatalf("EnsureWritableForce: %v", err)
	}
	if status != EnsureWritableInsufficientAtMax {
		t.Fatalf("expected EnsureWritableInsufficientAtMax, got %d", status)
	}
	if s.Capacity() != 4 {
		t.Fatalf("slice capacity changed: got %d, want 4", s.Capacity())
	}
	if b.Capacity() != parentCapBefore {
		t.Fatalf("parent capacity changed as a side effect of slice growth: got %d, want %d", b.Capacity(), parentCapBefore)
	}
}

// S4 — discard compaction and markers.
func TestDiscardCompactionAndMarkers(t *testing.T) {
	b, _ := New(16, 16)
	if err := b.SetWriterIndex(8); err != nil {
		t.Fatal(err)
	}
	if err := b.SetReaderIndex(4); err != nil {
		t.Fatal(err)
	}
	b.cur.markR = 6 // mark_reader taken at 6, per the S4 scenario, while R sits at 4

	if err := b.DiscardReadBytes(); err != nil {
		t.Fatal(err)
	}
	if b.ReaderIndex() != 0 || b.WriterIndex() != 4 {
		t.Fatalf("expected R=0 W=4 after discard, got R=%d W=%d", b.ReaderIndex(), b.WriterIndex())
	}
	if b.cur.markR != 2 {
		t.Fatalf("expected marked_reader_index=2 after discard, got %d", b.cur.markR)
	}
	if err := b.ResetReaderIndex(); err != nil {
		t.Fatal(err)
	}
	if b.ReaderIndex() != 2 {
		t.Fatalf("expected reset to R=2, got %d", b.ReaderIndex())
	}
}

func TestDiscardSomeReadBytesHeuristic(t *testing.T) {
	b, _ := New(16, 16)
	if err := b.SetWriterIndex(10); err != nil {
		t.Fatal(err)
	}
	if err := b.SetReaderIndex(4); err != nil { // R < C/2 == 8
		t.Fatal(err)
	}
	if err := b.DiscardSomeReadBytes(); err != nil {
		t.Fatal(err)
	}
	if b.ReaderIndex() != 4 {
		t.Fatalf("expected no-op below C/2, got R=%d", b.ReaderIndex())
	}

	if err := b.SetReaderIndex(9); err != nil { // R >= C/2
		t.Fatal(err)
	}
	if err := b.DiscardSomeReadBytes(); err != nil {
		t.Fatal(err)
	}
	if b.ReaderIndex() != 0 {
		t.Fatalf("expected compaction at/above C/2, got R=%d", b.ReaderIndex())
	}
}

// Ref-count: retain then release is a no-op; release from 1 transitions to Released.
func TestRefCountRetainRelease(t *testing.T) {
	b, _ := New(4, 4)
	if err := b.Retain(); err != nil {
		t.Fatal(err)
	}
	if err := b.Release(); err != nil {
		t.Fatal(err)
	}
	if b.RefCount() != 1 {
		t.Fatalf("expected ref_count=1 after retain+release, got %d", b.RefCount())
	}

	if err := b.Release(); err != nil {
		t.Fatal(err)
	}
	if b.RefCount() != 0 {
		t.Fatalf("expected ref_count=0, got %d", b.RefCount())
	}

	if _, err := b.GetByte(0); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ReleasedError after release, got %v", err)
	}

	if err := b.Release(); !errors.Is(err, ErrRefCountUnderflow) {
		t.Fatalf("expected underflow error on double release, got %v", err)
	}
}

func TestIndexOfAndForEachByte(t *testing.T) {
	b, _ := New(8, 8)
	if err := b.WriteBytes([]byte("abcXefg")); err != nil {
		t.Fatal(err)
	}

	idx, err := b.IndexOf(0, b.WriterIndex(), 'X')
	if err != nil {
		t.Fatal(err)
	}
	if idx != 3 {
		t.Fatalf("expected index 3, got %d", idx)
	}

	idx, err = b.IndexOf(0, b.WriterIndex(), 'z')
	if err != nil {
		t.Fatal(err)
	}
	if idx != -1 {
		t.Fatalf("expected -1 for missing byte, got %d", idx)
	}

	var visited []byte
	stopAt, err := b.ForEachByte(func(_ int, v byte) (bool, error) {
		visited = append(visited, v)
		return v != 'X', nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if stopAt != 3 {
		t.Fatalf("expected to stop at index 3, got %d", stopAt)
	}
	if string(visited) != "abcX" {
		t.Fatalf("unexpected visited bytes: %q", visited)
	}
}

func TestGetSetRoundTripAllWidths(t *testing.T) {
	b, _ := New(64, 64)
	if err := b.SetWriterIndex(64); err != nil {
		t.Fatal(err)
	}

	if err := b.SetByte(0, 0xAB); err != nil {
		t.Fatal(err)
	}
	gb, _ := b.GetByte(0)
	if gb != 0xAB {
		t.Fatalf("byte round trip failed: %#x", gb)
	}

	if err := b.SetUint16(2, 0x1234); err != nil {
		t.Fatal(err)
	}
	g16, _ := b.GetUint16(2)
	if g16 != 0x1234 {
		t.Fatalf("uint16 round trip failed: %#x", g16)
	}

	if err := b.SetInt24(4, -1); err != nil {
		t.Fatal(err)
	}
	g24, _ := b.GetInt24(4)
	if g24 != -1 {
		t.Fatalf("int24 round trip failed: %d", g24)
	}

	if err := b.SetUint32(8, 0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	g32, _ := b.GetUint32(8)
	if g32 != 0xDEADBEEF {
		t.Fatalf("uint32 round trip failed: %#x", g32)
	}

	if err := b.SetInt64(16, -42); err != nil {
		t.Fatal(err)
	}
	g64, _ := b.GetInt64(16)
	if g64 != -42 {
		t.Fatalf("int64 round trip failed: %d", g64)
	}

	if err := b.SetFloat64(24, 3.5); err != nil {
		t.Fatal(err)
	}
	gf, _ := b.GetFloat64(24)
	if gf != 3.5 {
		t.Fatalf("float64 round trip failed: %v", gf)
	}
}

func TestReadWriteSequenceRoundTrip(t *testing.T) {
	b, _ := New(32, 32)

	if err := b.WriteByte(1); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteUint16(2); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteUint32(3); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteUint64(4); err != nil {
		t.Fatal(err)
	}

	v1, err := b.ReadByte()
	if err != nil || v1 != 1 {
		t.Fatalf("ReadByte: %v %d", err, v1)
	}
	v2, err := b.ReadUint16()
	if err != nil || v2 != 2 {
		t.Fatalf("ReadUint16: %v %d", err, v2)
	}
	v3, err := b.ReadUint32()
	if err != nil || v3 != 3 {
		t.Fatalf("ReadUint32: %v %d", err, v3)
	}
	v4, err := b.ReadUint64()
	if err != nil || v4 != 4 {
		t.Fatalf("ReadUint64: %v %d", err, v4)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	b, _ := New(8, 8)
	if err := b.WriteBytes([]byte("original")); err != nil {
		t.Fatal(err)
	}

	c, err := b.Copy(0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetByte(0, 'X'); err != nil {
		t.Fatal(err)
	}

	orig, _ := b.GetByte(0)
	if orig != 'o' {
		t.Fatalf("Copy must be independent of parent, got %c", orig)
	}
}

func TestReleasedBufferRejectsAccess(t *testing.T) {
	b, _ := New(4, 4)
	if err := b.Release(); err != nil {
		t.Fatal(err)
	}

	if err := b.WriteByte(1); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ReleasedError, got %v", err)
	}
	if err := b.Retain(); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ReleasedError from Retain on released buffer, got %v", err)
	}
}
