package buffer_test

import (
	"fmt"

	"github.com/ssungk/netpipe/buffer"
)

// Example of writing and reading a length-prefixed frame.
func ExampleBuffer_WriteBytes() {
	b, _ := buffer.New(16, 64)
	defer b.Release()

	payload := []byte("hello")
	_ = b.WriteUint16(uint16(len(payload)))
	_ = b.WriteBytes(payload)

	length, _ := b.ReadUint16()
	frame := make([]byte, length)
	_ = b.ReadBytes(frame)

	fmt.Printf("length=%d payload=%s\n", length, frame)
	// Output: length=5 payload=hello
}

// Example of a zero-copy slice view sharing storage with its parent.
func ExampleBuffer_Slice() {
	b, _ := buffer.New(8, 8)
	defer b.Release()

	_ = b.WriteBytes([]byte("abcdefgh"))

	s, _ := b.Slice(2, 3)
	defer s.Release()
	_ = s.SetByte(0, 'X')

	got, _ := b.GetByte(2)
	fmt.Printf("parent byte at 2: %c\n", got)
	// Output: parent byte at 2: X
}

// Example of reference counting with Retain and Release.
func ExampleBuffer_Retain() {
	b, _ := buffer.New(4, 4)

	b.Retain() // ref_count = 2
	b.Release() // ref_count = 1

	_ = b.WriteByte('a')
	fmt.Printf("still live, W=%d\n", b.WriterIndex())

	b.Release() // ref_count = 0, backing storage returned to the allocator

	// Output: still live, W=1
}
