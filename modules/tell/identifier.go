package tell

import (
	"strings"
	"unicode"

	"otogi-tell/modules/tell/reminder"
)

// foldIdentifier applies RFC 1459 casemapping, where []\~ are the
// uppercase forms of {}|^.
func foldIdentifier(nickname string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '[':
			return '{'
		case ']':
			return '}'
		case '\\':
			return '|'
		case '~':
			return '^'
		default:
			return unicode.ToLower(r)
		}
	}, nickname)
}

func sameIdentifier(left, right string) bool {
	return foldIdentifier(left) == foldIdentifier(right)
}

// matchesKey reports whether speaker is addressed by a stored recipient key.
func matchesKey(key, speaker string) bool {
	if !reminder.IsWildcardKey(key) {
		return sameIdentifier(key, speaker)
	}

	return strings.HasPrefix(foldIdentifier(speaker), foldIdentifier(reminder.WildcardPrefix(key)))
}
