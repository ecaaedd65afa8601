package matching

import (
	"strings"
)

// foldTable maps the accented characters found in French civil-status names
// to their base letters.
var foldTable = map[rune]rune{
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A',
	'à': 'A', 'á': 'A', 'â': 'A', 'ã': 'A', 'ä': 'A', 'å': 'A',
	'Ç': 'C', 'ç': 'C',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E',
	'è': 'E', 'é': 'E', 'ê': 'E', 'ë': 'E',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I',
	'ì': 'I', 'í': 'I', 'î': 'I', 'ï': 'I',
	'Ñ': 'N', 'ñ': 'N',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O',
	'ò': 'O', 'ó': 'O', 'ô': 'O', 'õ': 'O', 'ö': 'O',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U',
	'ù': 'U', 'ú': 'U', 'û': 'U', 'ü': 'U',
	'Ý': 'Y', 'ý': 'Y', 'ÿ': 'Y',
	'Œ': 'E', 'œ': 'E', 'Æ': 'E', 'æ': 'E',
}

// Normalize canonicalizes a name for comparison: trims, folds diacritics and
// upper-cases. Total function, never fails.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := foldTable[r]; ok {
			r = folded
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
