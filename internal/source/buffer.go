// Package source holds the whole VSOP source file as an immutable ASCII byte
// buffer and derives (line, column) for any offset into it. Every diagnostic
// in the pipeline is ultimately located against one of these.
package source

import (
	"fmt"
	"os"
)

// Buffer is the whole source file, loaded once and held immutably for the
// duration of the run (spec.md §3 Lifecycles).
type Buffer struct {
	Path string
	Data []byte

	// lineStarts[i] is the byte offset of the first character of line i+1
	// (lines are 1-indexed, as in every diagnostic this compiler emits).
	lineStarts []int
}

// Load reads path into memory. It does not check that the bytes are plain
// ASCII; callers use ValidateASCII for that.
func Load(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(path, data), nil
}

// FromBytes builds a Buffer directly from in-memory bytes; used by Load and
// by tests working against strings.
func FromBytes(path string, data []byte) *Buffer {
	b := &Buffer{Path: path, Data: data}
	b.lineStarts = []int{0}
	for i, c := range data {
		if c == '\n' {
			b.lineStarts = append(b.lineStarts, i+1)
		}
	}
	return b
}

// Len is the number of bytes in the buffer.
func (b *Buffer) Len() int { return len(b.Data) }

// At returns the byte at offset, or 0 past the end, so lexer lookahead at
// the last byte needn't special-case the end of the buffer.
func (b *Buffer) At(offset int) byte {
	if offset < 0 || offset >= len(b.Data) {
		return 0
	}
	return b.Data[offset]
}

// Position returns the 1-indexed (line, column) of a byte offset.
func (b *Buffer) Position(offset int) (line, col int) {
	// Binary search for the last lineStart <= offset.
	lo, hi := 0, len(b.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line = lo + 1
	col = offset - b.lineStarts[lo] + 1
	return
}

// ValidateASCII reports the offset of the first byte (if any) whose high bit
// is set; VSOP source is ASCII-only per spec.md §4.1.
func (b *Buffer) ValidateASCII() (offset int, ok bool) {
	for i, c := range b.Data {
		if c >= 0x80 {
			return i, false
		}
	}
	return 0, true
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer{%s, %d bytes}", b.Path, len(b.Data))
}
