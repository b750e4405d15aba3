package process

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is used to decode lines that are not valid UTF-8.
const DefaultEncoding = "windows-1252"

// lineDecoder converts non-UTF-8 lines using a fallback charset.
// Valid UTF-8 passes through unchanged.
type lineDecoder struct {
	dec *encoding.Decoder
}

func newLineDecoder(name string) (*lineDecoder, error) {
	if name == "" || strings.EqualFold(name, "none") {
		return &lineDecoder{}, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("output encoding %q: %w", name, err)
	}
	return &lineDecoder{dec: enc.NewDecoder()}, nil
}

func (d *lineDecoder) decode(line string) string {
	if utf8.ValidString(line) {
		return line
	}
	if d.dec != nil {
		if s, err := d.dec.String(line); err == nil {
			return s
		}
	}
	return strings.ToValidUTF8(line, "�")
}
