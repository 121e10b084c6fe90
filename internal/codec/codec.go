// Package codec converts page bytes from a legacy text encoding to UTF-8.
//
// Decoding happens in two strict stages: the source encoding is decoded into
// a Go string, then that string is re-encoded as UTF-8. Either stage fails
// with domain.ErrEncoding instead of substituting replacement characters.
package codec

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/harvester/internal/domain"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is the source encoding used when none is configured.
const DefaultEncoding = "gbk"

// Transcoder implements domain.Transcoder for a single source encoding.
type Transcoder struct {
	name   string
	source encoding.Encoding
	utf8   bool // source is already UTF-8; validate only
}

// New resolves name (IANA or WHATWG label, e.g. "gbk", "gb18030", "big5")
// and returns a strict transcoder for it.
func New(name string) (*Transcoder, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultEncoding
	}

	enc, err := lookup(name)
	if err != nil {
		return nil, err
	}

	return &Transcoder{
		name:   strings.ToLower(name),
		source: enc,
		utf8:   enc == unicode.UTF8 || isUTF8Label(name),
	}, nil
}

func lookup(name string) (encoding.Encoding, error) {
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		return enc, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

func isUTF8Label(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// Name returns the configured source encoding label.
func (t *Transcoder) Name() string {
	return t.name
}

// Transcode decodes raw from the source encoding and returns UTF-8 text.
func (t *Transcoder) Transcode(raw []byte) (string, error) {
	text, err := t.decode(raw)
	if err != nil {
		return "", err
	}
	return t.encodeUTF8(text)
}

// decode is the first stage: source bytes to an intermediate string.
func (t *Transcoder) decode(raw []byte) (string, error) {
	if t.utf8 {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: not valid utf-8", domain.ErrEncoding)
		}
		return string(raw), nil
	}

	out, err := t.source.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", domain.ErrEncoding, t.name, err)
	}

	// x/text substitutes U+FFFD for undecodable input. GB18030 can also encode
	// U+FFFD itself, so a replacement rune is only an error when the decoded
	// text does not encode back to the original bytes.
	if i := bytes.IndexRune(out, utf8.RuneError); i >= 0 {
		back, err := t.source.NewEncoder().Bytes(out)
		if err != nil || !bytes.Equal(back, raw) {
			return "", fmt.Errorf("%w: invalid %s sequence near decoded offset %d", domain.ErrEncoding, t.name, i)
		}
	}
	return string(out), nil
}

// encodeUTF8 is the second stage: intermediate string to UTF-8 bytes.
func (t *Transcoder) encodeUTF8(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%w: intermediate text is not valid unicode", domain.ErrEncoding)
	}
	out, err := unicode.UTF8.NewEncoder().String(text)
	if err != nil {
		return "", fmt.Errorf("%w: encode utf-8: %v", domain.ErrEncoding, err)
	}
	return out, nil
}
