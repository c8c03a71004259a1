package export

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxSheetNameLen is the spreadsheet limit on sheet name length, in runes.
const MaxSheetNameLen = 31

// DefaultSheetName replaces titles that sanitize to nothing.
const DefaultSheetName = "Rapport"

const forbiddenSheetChars = `\/*?:[]`

// SanitizeSheetName maps a section title to a valid sheet name: each of
// \ / * ? : [ ] becomes '_', the result is cut to 31 runes and a leading or
// trailing apostrophe is replaced too. Blank titles become DefaultSheetName.
// The function is idempotent.
func SanitizeSheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenSheetChars, r) {
			return '_'
		}
		return r
	}, title)

	name = truncateRunes(name, MaxSheetNameLen)

	if strings.HasPrefix(name, "'") {
		name = "_" + name[1:]
	}
	if strings.HasSuffix(name, "'") {
		name = name[:len(name)-1] + "_"
	}

	if strings.TrimSpace(name) == "" {
		return DefaultSheetName
	}
	return name
}

// sheetNamer hands out unique sheet names. Names compare case-insensitively,
// as spreadsheet applications do.
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]bool)}
}

// next returns the sanitized title, suffixed with " (n)" when taken.
func (s *sheetNamer) next(title string) string {
	name := SanitizeSheetName(title)
	for n := 2; s.used[strings.ToLower(name)]; n++ {
		suffix := " (" + strconv.Itoa(n) + ")"
		name = truncateRunes(SanitizeSheetName(title), MaxSheetNameLen-utf8.RuneCountInString(suffix)) + suffix
	}
	s.used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
