package executor

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentGoroutineID parses the calling goroutine's id out of a runtime
// stack trace. It exists for exactly one purpose: Loop.InEventLoop needs
// to answer "is the calling goroutine the same one driving this loop",
// and Go has no cheaper supported way to compare goroutine identity.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if idx := bytes.IndexByte(b, ' '); idx >= 0 {
		b = b[:idx]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
