package binenc

import (
	"bytes"
	"testing"

	"github.com/kbukum/execkit/errors"
)

func TestEncodeLayout(t *testing.T) {
	got := Encode(Payload{Kind: 0x01, Value: 0x0302})
	want := []byte{0x01, 0x02, 0x03}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestRoundTripAllValues(t *testing.T) {
	kinds := []uint8{0, 1, 127, 255}
	for _, k := range kinds {
		for v := 0; v <= 0xFFFF; v++ {
			p := Payload{Kind: k, Value: uint16(v)}
			got, err := Decode(Encode(p))
			if err != nil {
				t.Fatalf("decode %+v: %v", p, err)
			}
			if got != p {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
			}
		}
	}
}

func TestDecodeDefault(t *testing.T) {
	got, err := Decode(Encode(Payload{}))
	if err != nil {
		t.Fatal(err)
	}
	if got != (Payload{}) {
		t.Errorf("expected zero payload, got %+v", got)
	}
}

func TestDecodeShort(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	if !errors.IsCode(err, errors.ErrCodeDecodeFailed) {
		t.Fatalf("expected DECODE_FAILED, got %v", err)
	}
}

func TestDecodeAll(t *testing.T) {
	var buf []byte
	buf = AppendPayload(buf, Payload{Kind: 1, Value: 10})
	buf = AppendPayload(buf, Payload{Kind: 2, Value: 20})
	got, err := DecodeAll(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != (Payload{Kind: 2, Value: 20}) {
		t.Errorf("unexpected payloads %+v", got)
	}

	if _, err := DecodeAll(append(buf, 0xff)); !errors.IsCode(err, errors.ErrCodeDecodeFailed) {
		t.Errorf("expected DECODE_FAILED for trailing byte, got %v", err)
	}
}
