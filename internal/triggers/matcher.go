package triggers

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Position is a byte range [Start, End) in NFC-normalized text.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Matcher finds whole-word, case- and accent-insensitive occurrences of a set
// of terms. RE2 word boundaries are ASCII-only, so boundaries are checked
// against Unicode letters and digits after each regexp hit.
type Matcher struct {
	re *regexp.Regexp
}

// NewMatcher compiles a matcher for terms. When prefixes are given, each
// match may optionally begin with one of them followed by whitespace.
func NewMatcher(prefixes []string, terms ...string) (*Matcher, error) {
	alts := alternatives(terms)
	if len(alts) == 0 {
		return nil, errors.New("matcher requires at least one term")
	}
	var pattern strings.Builder
	pattern.WriteString(`(?i)`)
	if prefixAlts := alternatives(prefixes); len(prefixAlts) > 0 {
		pattern.WriteString(`(?:(?:`)
		pattern.WriteString(strings.Join(prefixAlts, "|"))
		pattern.WriteString(`)\s+)?`)
	}
	pattern.WriteString(`(?:`)
	pattern.WriteString(strings.Join(alts, "|"))
	pattern.WriteString(`)`)
	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, err
	}
	return &Matcher{re: re}, nil
}

// FindAll returns every boundary-respecting match in text.
func (m *Matcher) FindAll(text string) []Position {
	if m == nil || text == "" {
		return nil
	}
	var out []Position
	offset := 0
	for offset <= len(text) {
		loc := m.re.FindStringIndex(text[offset:])
		if loc == nil {
			break
		}
		start, end := offset+loc[0], offset+loc[1]
		if end > start && atBoundary(text, start, end) {
			out = append(out, Position{Start: start, End: end})
			offset = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			break
		}
		offset = start + size
	}
	return out
}

// Contains reports whether text holds at least one match.
func (m *Matcher) Contains(text string) bool {
	return len(m.FindAll(text)) > 0
}

// ReplaceAll substitutes every match with repl(matchedText).
func (m *Matcher) ReplaceAll(text string, repl func(string) string) string {
	positions := m.FindAll(text)
	if len(positions) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, pos := range positions {
		b.WriteString(text[last:pos.Start])
		b.WriteString(repl(text[pos.Start:pos.End]))
		last = pos.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// NormalizeText returns text in Unicode NFC form.
func NormalizeText(text string) string {
	return norm.NFC.String(text)
}

// FoldAccents strips combining marks ("Mbappé" becomes "Mbappe").
func FoldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

func alternatives(terms []string) []string {
	seen := make(map[string]struct{}, len(terms)*2)
	var raw []string
	for _, term := range terms {
		term = strings.TrimSpace(NormalizeText(term))
		if term == "" {
			continue
		}
		for _, variant := range []string{term, FoldAccents(term)} {
			key := strings.ToLower(variant)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			raw = append(raw, variant)
		}
	}
	// Longest first so leftmost-first alternation prefers "Inter Miami" over "Inter".
	sort.SliceStable(raw, func(i, j int) bool { return len(raw[i]) > len(raw[j]) })
	out := make([]string, 0, len(raw))
	for _, variant := range raw {
		words := strings.Fields(variant)
		for i, word := range words {
			words[i] = regexp.QuoteMeta(word)
		}
		out = append(out, strings.Join(words, `\s+`))
	}
	return out
}

func atBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}
