// Package codec converts fixed-width field-element buffers between the
// little-endian off-host serialization and the big-endian host wire
// convention. Conversion always operates on whole 32-byte elements, never
// across element boundaries, so extension-field sub-elements keep their
// relative order.
package codec

import (
	"errors"
	"fmt"

	"github.com/zkforge/proofhost/types"
)

// ErrFormat is returned when a buffer length is not a multiple of the field
// element width.
var ErrFormat = errors.New("buffer length is not a multiple of the field element width")

// SwapEndianness returns a new buffer with the byte order of every 32-byte
// field element reversed. The operation is an involution:
// SwapEndianness(SwapEndianness(x)) == x.
func SwapEndianness(buf []byte) ([]byte, error) {
	if len(buf)%types.FieldElementSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFormat, len(buf))
	}
	out := make([]byte, len(buf))
	for off := 0; off < len(buf); off += types.FieldElementSize {
		element := buf[off : off+types.FieldElementSize]
		for i, b := range element {
			out[off+types.FieldElementSize-1-i] = b
		}
	}
	return out, nil
}

// SwapEndiannessElement reverses a single 32-byte field element.
func SwapEndiannessElement(element []byte) ([]byte, error) {
	if len(element) != types.FieldElementSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFormat, len(element))
	}
	return SwapEndianness(element)
}
