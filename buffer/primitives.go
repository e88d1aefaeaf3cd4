package buffer

import "math"

// Typed accessors for every primitive width the framework promises:
// byte, 16/24/32/64-bit integers (signed and unsigned), and IEEE-754
// float32/float64. Byte composition is done by hand rather than through
// encoding/binary, so the LittleEndian/BigEndian views (buffer.go's endianView) are a pure
// interpretation switch with no copy and no second code path.

func put16(dst []byte, ord byteOrder, v uint16) {
	if ord == bigEndian {
		dst[0] = byte(v >> 8)
		dst[1] = byte(v)
		return
	}
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

func get16(src []byte, ord byteOrder) uint16 {
	if ord == bigEndian {
		return uint16(src[0])<<8 | uint16(src[1])
	}
	return uint16(src[0]) | uint16(src[1])<<8
}

func put24(dst []byte, ord byteOrder, v uint32) {
	if ord == bigEndian {
		dst[0] = byte(v >> 16)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v)
		return
	}
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

func get24(src []byte, ord byteOrder) uint32 {
	if ord == bigEndian {
		return uint32(src[0])<<16 | uint32(src[1])<<8 | uint32(src[2])
	}
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
}

func put32(dst []byte, ord byteOrder, v uint32) {
	if ord == bigEndian {
		dst[0] = byte(v >> 24)
		dst[1] = byte(v >> 16)
		dst[2] = byte(v >> 8)
		dst[3] = byte(v)
		return
	}
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func get32(src []byte, ord byteOrder) uint32 {
	if ord == bigEndian {
		return uint32(src[0])<<24 | uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
	}
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}

func put64(dst []byte, ord byteOrder, v uint64) {
	if ord == bigEndian {
		for i := 0; i < 8; i++ {
			dst[i] = byte(v >> uint(56-8*i))
		}
		return
	}
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> uint(8*i))
	}
}

func get64(src []byte, ord byteOrder) uint64 {
	var v uint64
	if ord == bigEndian {
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(src[i])
		}
		return v
	}
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(src[i])
	}
	return v
}

// --- byte ---

// GetByte reads the byte at i without moving R.
func (b *Buffer) GetByte(i int) (byte, error) {
	s, err := b.sliceAt("GetByte", i, 1)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

// SetByte writes v at i without moving W.
func (b *Buffer) SetByte(i int, v byte) error {
	s, err := b.sliceAt("SetByte", i, 1)
	if err != nil {
		return err
	}
	s[0] = v
	return nil
}

// ReadByte consumes one byte from R. Satisfies io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if err := b.checkAlive("ReadByte"); err != nil {
		return 0, err
	}
	if b.ReadableBytes() < 1 {
		return 0, &IndexError{Op: "ReadByte", Index: b.cur.r, Length: 1, Capacity: b.Capacity()}
	}
	s, _ := b.sliceAt("ReadByte", b.cur.r, 1)
	v := s[0]
	b.cur.r++
	return v, nil
}

// WriteByte appends v at W, growing as needed. Satisfies io.ByteWriter.
func (b *Buffer) WriteByte(v byte) error {
	if err := b.EnsureWritable(1); err != nil {
		return err
	}
	s, _ := b.sliceAt("WriteByte", b.cur.w, 1)
	s[0] = v
	b.cur.w++
	return nil
}

// --- uint16 / int16 ---

func (b *Buffer) GetUint16(i int) (uint16, error) {
	s, err := b.sliceAt("GetUint16", i, 2)
	if err != nil {
		return 0, err
	}
	return get16(s, b.order), nil
}

func (b *Buffer) SetUint16(i int, v uint16) error {
	s, err := b.sliceAt("SetUint16", i, 2)
	if err != nil {
		return err
	}
	put16(s, b.order, v)
	return nil
}

func (b *Buffer) ReadUint16() (uint16, error) {
	if err := b.checkReadable("ReadUint16", 2); err != nil {
		return 0, err
	}
	s, _ := b.sliceAt("ReadUint16", b.cur.r, 2)
	v := get16(s, b.order)
	b.cur.r += 2
	return v, nil
}

func (b *Buffer) WriteUint16(v uint16) error {
	if err := b.EnsureWritable(2); err != nil {
		return err
	}
	s, _ := b.sliceAt("WriteUint16", b.cur.w, 2)
	put16(s, b.order, v)
	b.cur.w += 2
	return nil
}

func (b *Buffer) GetInt16(i int) (int16, error) {
	v, err := b.GetUint16(i)
	return int16(v), err
}

func (b *Buffer) SetInt16(i int, v int16) error { return b.SetUint16(i, uint16(v)) }

func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *Buffer) WriteInt16(v int16) error { return b.WriteUint16(uint16(v)) }

// --- uint24 / int24 (represented as int32/uint32, valid range 24 bits) ---

func (b *Buffer) GetUint24(i int) (uint32, error) {
	s, err := b.sliceAt("GetUint24", i, 3)
	if err != nil {
		return 0, err
	}
	return get24(s, b.order), nil
}

func (b *Buffer) SetUint24(i int, v uint32) error {
	s, err := b.sliceAt("SetUint24", i, 3)
	if err != nil {
		return err
	}
	put24(s, b.order, v&0xFFFFFF)
	return nil
}

func (b *Buffer) ReadUint24() (uint32, error) {
	if err := b.checkReadable("ReadUint24", 3); err != nil {
		return 0, err
	}
	s, _ := b.sliceAt("ReadUint24", b.cur.r, 3)
	v := get24(s, b.order)
	b.cur.r += 3
	return v, nil
}

func (b *Buffer) WriteUint24(v uint32) error {
	if err := b.EnsureWritable(3); err != nil {
		return err
	}
	s, _ := b.sliceAt("WriteUint24", b.cur.w, 3)
	put24(s, b.order, v&0xFFFFFF)
	b.cur.w += 3
	return nil
}

// GetInt24 sign-extends from bit 23.
func (b *Buffer) GetInt24(i int) (int32, error) {
	v, err := b.GetUint24(i)
	return signExtend24(v), err
}

func (b *Buffer) SetInt24(i int, v int32) error { return b.SetUint24(i, uint32(v)&0xFFFFFF) }

func (b *Buffer) ReadInt24() (int32, error) {
	v, err := b.ReadUint24()
	return signExtend24(v), err
}

func (b *Buffer) WriteInt24(v int32) error { return b.WriteUint24(uint32(v) & 0xFFFFFF) }

func signExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		return int32(v | 0xFF000000)
	}
	return int32(v)
}

// --- uint32 / int32 ---

func (b *Buffer) GetUint32(i int) (uint32, error) {
	s, err := b.sliceAt("GetUint32", i, 4)
	if err != nil {
		return 0, err
	}
	return get32(s, b.order), nil
}

func (b *Buffer) SetUint32(i int, v uint32) error {
	s, err := b.sliceAt("SetUint32", i, 4)
	if err != nil {
		return err
	}
	put32(s, b.order, v)
	return nil
}

func (b *Buffer) ReadUint32() (uint32, error) {
	if err := b.checkReadable("ReadUint32", 4); err != nil {
		return 0, err
	}
	s, _ := b.sliceAt("ReadUint32", b.cur.r, 4)
	v := get32(s, b.order)
	b.cur.r += 4
	return v, nil
}

func (b *Buffer) WriteUint32(v uint32) error {
	if err := b.EnsureWritable(4); err != nil {
		return err
	}
	s, _ := b.sliceAt("WriteUint32", b.cur.w, 4)
	put32(s, b.order, v)
	b.cur.w += 4
	return nil
}

func (b *Buffer) GetInt32(i int) (int32, error) {
	v, err := b.GetUint32(i)
	return int32(v), err
}

func (b *Buffer) SetInt32(i int, v int32) error { return b.SetUint32(i, uint32(v)) }

func (b *Buffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

func (b *Buffer) WriteInt32(v int32) error { return b.WriteUint32(uint32(v)) }

// --- uint64 / int64 ---

func (b *Buffer) GetUint64(i int) (uint64, error) {
	s, err := b.sliceAt("GetUint64", i, 8)
	if err != nil {
		return 0, err
	}
	return get64(s, b.order), nil
}

func (b *Buffer) SetUint64(i int, v uint64) error {
	s, err := b.sliceAt("SetUint64", i, 8)
	if err != nil {
		return err
	}
	put64(s, b.order, v)
	return nil
}

func (b *Buffer) ReadUint64() (uint64, error) {
	if err := b.checkReadable("ReadUint64", 8); err != nil {
		return 0, err
	}
	s, _ := b.sliceAt("ReadUint64", b.cur.r, 8)
	v := get64(s, b.order)
	b.cur.r += 8
	return v, nil
}

func (b *Buffer) WriteUint64(v uint64) error {
	if err := b.EnsureWritable(8); err != nil {
		return err
	}
	s, _ := b.sliceAt("WriteUint64", b.cur.w, 8)
	put64(s, b.order, v)
	b.cur.w += 8
	return nil
}

func (b *Buffer) GetInt64(i int) (int64, error) {
	v, err := b.GetUint64(i)
	return int64(v), err
}

func (b *Buffer) SetInt64(i int, v int64) error { return b.SetUint64(i, uint64(v)) }

func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *Buffer) WriteInt64(v int64) error { return b.WriteUint64(uint64(v)) }

// --- float32 / float64 ---

func (b *Buffer) GetFloat32(i int) (float32, error) {
	v, err := b.GetUint32(i)
	return math.Float32frombits(v), err
}

func (b *Buffer) SetFloat32(i int, v float32) error {
	return b.SetUint32(i, math.Float32bits(v))
}

func (b *Buffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

func (b *Buffer) WriteFloat32(v float32) error { return b.WriteUint32(math.Float32bits(v)) }

func (b *Buffer) GetFloat64(i int) (float64, error) {
	v, err := b.GetUint64(i)
	return math.Float64frombits(v), err
}

func (b *Buffer) SetFloat64(i int, v float64) error {
	return b.SetUint64(i, math.Float64bits(v))
}

func (b *Buffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

func (b *Buffer) WriteFloat64(v float64) error { return b.WriteUint64(math.Float64bits(v)) }

func (b *Buffer) checkReadable(op string, n int) error {
	if err := b.checkAlive(op); err != nil {
		return err
	}
	if b.ReadableBytes() < n {
		return &IndexError{Op: op, Index: b.cur.r, Length: n, Capacity: b.Capacity()}
	}
	return nil
}
