package mitigation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun      = regexp.MustCompile(`\s+`)
	spaceBeforePunct   = regexp.MustCompile(`\s+([,.;:!?])`)
	repeatedSeparator  = regexp.MustCompile(`([,;:])(?:\s*[,;:])+`)
	separatorBeforeEnd = regexp.MustCompile(`[,;:]+\s*([.!?])`)
	repeatedStop       = regexp.MustCompile(`([!?])\.+`)
	danglingConjunct   = regexp.MustCompile(`(?i)\s+(?:and|or)\s*([,;:.!?])`)
	emptyBrackets      = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	leadingSeparators  = regexp.MustCompile(`^[\s,;:.\-–]+`)
	trailingSeparators = regexp.MustCompile(`[\s,;:\-–]+$`)
)

// Normalize tidies text after a substitution: NFC, single spaces, no space
// before punctuation, no doubled or dangling separators, and a capitalized
// first letter. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = norm.NFC.String(text)
	for {
		// Every pass that changes text either shortens it or capitalizes
		// the first letter, so this reaches a fixed point.
		next := normalizePass(text)
		if next == text {
			return text
		}
		text = next
	}
}

func normalizePass(text string) string {
	text = emptyBrackets.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = danglingConjunct.ReplaceAllString(text, "$1")
	text = repeatedSeparator.ReplaceAllString(text, "$1")
	text = separatorBeforeEnd.ReplaceAllString(text, "$1")
	text = repeatedStop.ReplaceAllString(text, "$1")
	text = leadingSeparators.ReplaceAllString(text, "")
	text = trailingSeparators.ReplaceAllString(text, "")
	return capitalizeFirst(strings.TrimSpace(text))
}

func capitalizeFirst(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 || !unicode.IsLower(r) {
		return text
	}
	return cases.Upper(language.Und).String(text[:size]) + text[size:]
}

// withArticle prefixes phrase with "a" or "an".
func withArticle(phrase string) string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return ""
	}
	lower := strings.ToLower(phrase)
	if strings.HasPrefix(lower, "a ") || strings.HasPrefix(lower, "an ") || strings.HasPrefix(lower, "the ") {
		return phrase
	}
	if vowelSound(lower) {
		return "an " + phrase
	}
	return "a " + phrase
}

// Spelling exceptions to the first-letter rule for "a"/"an".
var (
	consonantSoundPrefixes = []string{"eu", "ewe", "one", "once", "uni", "uru", "uro", "use", "usu", "uti"}
	vowelSoundPrefixes     = []string{"heir", "honest", "honor", "honour", "hour"}
)

func vowelSound(lower string) bool {
	for _, p := range consonantSoundPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	for _, p := range vowelSoundPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return strings.ContainsRune("aeiou", rune(lower[0]))
}
