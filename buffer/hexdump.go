package buffer

import "fmt"

// HexDump renders length bytes starting at from as a compact hex string,
// for use in diagnostic logging (e.g. the pipeline's default
// unhandled-read logger). It is intentionally narrow, not a
// general-purpose formatting utility.
func HexDump(b *Buffer, from, length int) string {
	s, err := b.sliceAt("HexDump", from, length)
	if err != nil {
		return fmt.Sprintf("<hexdump error: %v>", err)
	}
	out := make([]byte, 0, len(s)*2)
	const hex = "0123456789abcdef"
	for _, c := range s {
		out = append(out, hex[c>>4], hex[c&0x0F])
	}
	return string(out)
}
