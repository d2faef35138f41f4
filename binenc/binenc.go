// Package binenc encodes the fixed-width payload records exchanged with child
// processes. Fields are little-endian with no padding.
package binenc

import (
	"encoding/binary"
	"fmt"

	"github.com/kbukum/execkit/errors"
)

// PayloadSize is the encoded size of a Payload in bytes.
const PayloadSize = 3

// Payload is a one-byte kind tag followed by a 16-bit value.
type Payload struct {
	Kind  uint8
	Value uint16
}

// Encode returns the little-endian encoding of p.
func Encode(p Payload) []byte {
	return AppendPayload(make([]byte, 0, PayloadSize), p)
}

// AppendPayload appends the encoding of p to b.
func AppendPayload(b []byte, p Payload) []byte {
	b = append(b, p.Kind)
	return binary.LittleEndian.AppendUint16(b, p.Value)
}

// Decode reads one Payload from the start of b. Bytes past PayloadSize are ignored.
func Decode(b []byte) (Payload, error) {
	if len(b) < PayloadSize {
		return Payload{}, errors.DecodeFailed("payload",
			fmt.Errorf("need %d bytes, got %d", PayloadSize, len(b)))
	}
	return Payload{
		Kind:  b[0],
		Value: binary.LittleEndian.Uint16(b[1:PayloadSize]),
	}, nil
}

// DecodeAll decodes a concatenation of payloads. Trailing bytes that do not
// form a whole record are an error.
func DecodeAll(b []byte) ([]Payload, error) {
	if len(b)%PayloadSize != 0 {
		return nil, errors.DecodeFailed("payload",
			fmt.Errorf("%d trailing bytes", len(b)%PayloadSize))
	}
	out := make([]Payload, 0, len(b)/PayloadSize)
	for off := 0; off < len(b); off += PayloadSize {
		p, err := Decode(b[off:])
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
