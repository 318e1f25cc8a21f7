package chatclient

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a byte stream into text one chunk at a time. Trailing bytes of an
// incomplete rune are held until the next chunk completes them; invalid sequences
// decode to U+FFFD.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text that chunk completes.
func (d *Decoder) Decode(chunk []byte) (string, error) {
	return d.decode(chunk, false)
}

// Flush ends the stream; a dangling partial rune becomes U+FFFD.
func (d *Decoder) Flush() (string, error) {
	s, err := d.decode(nil, true)
	d.Reset()
	return s, err
}

func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
	d.t.Reset()
}

func (d *Decoder) decode(chunk []byte, atEOF bool) (string, error) {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(append(src, d.pending...), chunk...)
	d.pending = d.pending[:0]
	if len(src) == 0 {
		return "", nil
	}

	// worst case every byte is invalid and expands to a 3-byte replacement rune
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			return string(out), nil
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append(d.pending, src...)
			return string(out), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		default:
			return string(out), err
		}
	}
}
