package process

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/kbukum/execkit/errors"
)

// DefaultEncoding is the charset output is decoded with unless configured otherwise.
const DefaultEncoding = "utf-8"

var utf8Decoder = &Decoder{name: DefaultEncoding}

// Decoder turns captured bytes into text. UTF-8 is validated strictly; other
// charsets are converted with golang.org/x/text, and input the charset cannot
// represent is a decode failure rather than a replacement character.
type Decoder struct {
	name string
	enc  encoding.Encoding // nil for strict UTF-8
	// wide is set when '\n' is not the single byte 0x0A in this charset.
	wide bool
}

// NewDecoder resolves an IANA charset name such as "utf-8", "latin1" or
// "utf-16le". An empty name means UTF-8.
func NewDecoder(name string) (*Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return utf8Decoder, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err == nil && enc == nil {
		err = fmt.Errorf("charset %q is not supported", name)
	}
	if err != nil {
		return nil, errors.InvalidInput("encoding", err.Error()).WithCause(err)
	}
	nl, err := enc.NewEncoder().Bytes([]byte{'\n'})
	return &Decoder{name: name, enc: enc, wide: err != nil || !bytes.Equal(nl, []byte{'\n'})}, nil
}

// Name returns the charset name.
func (d *Decoder) Name() string { return d.name }

// Decode returns b as a string, or a DECODE_FAILED error if b is not valid
// in the decoder's charset.
func (d *Decoder) Decode(b []byte) (string, error) {
	if d.enc == nil {
		if !utf8.Valid(b) {
			return "", errors.DecodeFailed(d.name, fmt.Errorf("invalid byte at offset %d", invalidOffset(b)))
		}
		return string(b), nil
	}
	out, err := d.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.DecodeFailed(d.name, err)
	}
	if err := d.checkConverted(out); err != nil {
		return "", err
	}
	return string(out), nil
}

// checkConverted rejects x/text output carrying U+FFFD, which its decoders
// write in place of bytes that are invalid in the charset.
func (d *Decoder) checkConverted(out []byte) error {
	if i := bytes.IndexRune(out, utf8.RuneError); i >= 0 {
		return errors.DecodeFailed(d.name, fmt.Errorf("invalid input before decoded offset %d", i))
	}
	return nil
}

// reader wraps r so a line splitter sees UTF-8 when the charset is wide.
func (d *Decoder) reader(r io.Reader) io.Reader {
	if !d.wide {
		return r
	}
	return transform.NewReader(r, d.enc.NewDecoder())
}

// decodeLine decodes one line read through reader.
func (d *Decoder) decodeLine(raw []byte) (string, error) {
	if !d.wide {
		return d.Decode(raw)
	}
	if err := d.checkConverted(raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
