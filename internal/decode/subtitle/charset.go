package subtitle

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// legacyCharmaps maps the subset of legacy code pages commonly seen in
// SRT/SSA tracks produced outside a UTF-8 locale to their x/text encoding.
var legacyCharmaps = map[string]encoding.Encoding{
	"windows-1252": charmap.Windows1252,
	"windows-1251": charmap.Windows1251,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"iso-8859-7":   charmap.ISO8859_7,
	"koi8-r":       charmap.KOI8R,
}

// normalizeToUTF8 transcodes text from charset to UTF-8 if text is not
// already valid UTF-8 (spec.md §4.8). Unrecognized charset names or
// already-valid-UTF-8 input pass through unchanged.
func normalizeToUTF8(text, charset string) string {
	if utf8.ValidString(text) {
		return text
	}
	enc, ok := legacyCharmaps[charset]
	if !ok {
		return text
	}
	out, _, err := transform.String(enc.NewDecoder(), text)
	if err != nil {
		return text
	}
	return out
}
