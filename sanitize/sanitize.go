package sanitize

import (
	"strings"
	"unicode"
)

// Clean strips control characters and zero-width/invisible unicode from s so
// stored text cannot corrupt whatever renders it later. Newlines, tabs and
// carriage returns collapse to single spaces. Clean is pure and idempotent.
func Clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t', '\r':
			return ' '
		}
		if invisible(r) {
			return -1
		}
		return r
	}, s)
}

// invisible reports control characters (category Cc) and the zero-width and
// directional formatting runes that render as nothing but break display width
// calculations downstream.
func invisible(r rune) bool {
	if unicode.IsControl(r) {
		return true
	}
	switch {
	case r >= '​' && r <= '‏': // ZWSP, ZWNJ, ZWJ, LRM, RLM
		return true
	case r >= '‪' && r <= '‮': // directional embedding/override
		return true
	case r >= '⁠' && r <= '⁤': // word joiner, invisible operators
		return true
	case r >= '⁦' && r <= '⁩': // directional isolates
		return true
	case r == '\uFEFF': // byte order mark
		return true
	}
	return false
}
