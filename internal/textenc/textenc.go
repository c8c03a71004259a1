// Package textenc decodes legacy-encoded text from spreadsheets and DBF files.
package textenc

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

// codePageAliases maps ESRI .cpg contents to WHATWG encoding labels.
var codePageAliases = map[string]string{
	"1252":      "windows-1252",
	"ansi 1252": "windows-1252",
	"1250":      "windows-1250",
	"1251":      "windows-1251",
	"88591":     "iso-8859-1",
	"8859_1":    "iso-8859-1",
	"utf8":      "utf-8",
	"65001":     "utf-8",
}

// ForCodePage resolves a .cpg code page declaration to an encoding.
// Returns false when the declaration is unknown.
func ForCodePage(cpg string) (encoding.Encoding, bool) {
	label := strings.ToLower(strings.TrimSpace(cpg))
	if label == "" {
		return nil, false
	}
	if alias, ok := codePageAliases[label]; ok {
		label = alias
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, false
	}
	return enc, true
}

// Decode converts s from enc to UTF-8. A nil enc keeps valid UTF-8 as is and
// falls back to Windows-1252 for invalid byte sequences.
func Decode(s string, enc encoding.Encoding) string {
	if enc == nil {
		if utf8.ValidString(s) {
			return s
		}
		enc = charmap.Windows1252
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "")
	}
	return out
}

// DecodeBytes is Decode for byte slices.
func DecodeBytes(b []byte, enc encoding.Encoding) []byte {
	if enc == nil && utf8.Valid(b) {
		return b
	}
	return []byte(Decode(string(b), enc))
}

// Normalize trims s and converts it to Unicode NFC so that precomposed and
// decomposed accents compare equal.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
