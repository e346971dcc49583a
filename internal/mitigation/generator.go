package mitigation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"genguard/internal/classify"
	"genguard/internal/triggers"
)

const genericPerson = "someone"

// capitalizedRun matches two or more consecutive capitalized words.
var capitalizedRun = regexp.MustCompile(`\p{Lu}[\p{L}'’-]*(?:\s+\p{Lu}[\p{L}'’-]*)+`)

// determiners introduce descriptive phrases ("a South American derby"),
// not bare names.
var determiners = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true,
	"these": true, "those": true, "each": true, "every": true, "another": true,
}

// Generator produces ranked strategies for a failed input.
type Generator struct {
	registry *triggers.Registry
	// vocabulary holds folded words from roles, locales, descriptors and
	// aliases. Genericization never replaces a run made only of them.
	vocabulary map[string]bool
}

// NewGenerator builds a generator that resolves trigger entities in registry.
func NewGenerator(registry *triggers.Registry) *Generator {
	return &Generator{registry: registry, vocabulary: descriptiveVocabulary(registry)}
}

func descriptiveVocabulary(registry *triggers.Registry) map[string]bool {
	vocab := make(map[string]bool)
	if registry == nil {
		return vocab
	}
	add := func(phrases ...string) {
		for _, phrase := range phrases {
			for _, word := range strings.Fields(phrase) {
				vocab[foldWord(word)] = true
			}
		}
	}
	for i := range registry.Entities {
		entity := &registry.Entities[i]
		add(entity.Role, entity.Locale, entity.Descriptor)
		add(entity.Aliases...)
		for j := range entity.Qualifiers {
			add(entity.Qualifiers[j].Descriptor)
		}
	}
	for i := range registry.Brands {
		add(registry.Brands[i].Descriptor)
	}
	return vocab
}

func foldWord(word string) string {
	return strings.ToLower(triggers.FoldAccents(strings.Trim(word, "'’-.,;:")))
}

// Generate returns candidate strategies ordered by descending confidence.
// Timeouts produce none. Policy and validation rejections always end with
// full genericization; it is the only strategy when no triggers are given.
func (g *Generator) Generate(text string, found []triggers.Trigger, category classify.Category) []Strategy {
	if category == classify.CategoryTimeout {
		return nil
	}
	text = triggers.NormalizeText(text)
	current := Normalize(text)

	var out []Strategy
	seen := make(map[string]struct{})
	add := func(s Strategy, always bool) {
		if _, dup := seen[s.ID]; dup {
			return
		}
		s.Example = s.Apply(text)
		if s.Example == current && !always {
			return
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}

	for _, trigger := range found {
		if trigger.EntityKey == "" {
			continue
		}
		entity, ok := g.registry.Entity(trigger.EntityKey)
		if !ok {
			continue
		}
		for _, s := range g.entityStrategies(entity, trigger) {
			add(s, false)
		}
	}
	if category.IsPolicy() || category == classify.CategoryValidation {
		add(g.genericization(), true)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func (g *Generator) entityStrategies(entity *triggers.Entity, trigger triggers.Trigger) []Strategy {
	exact := trigger.EntityType == triggers.EntityExactName
	hasQualifiers := len(trigger.Qualifiers) > 0
	var out []Strategy

	if hasQualifiers || (exact && entity.Partial != "") {
		out = append(out, Strategy{
			ID:          strategyID(FamilyStripQualifier, entity.Key),
			Family:      FamilyStripQualifier,
			Description: stripDescription(entity, trigger),
			Confidence:  FamilyStripQualifier.Prior(),
			Transform: func(text string) string {
				return stripQualifiers(entity, shortenExact(entity, text))
			},
		})
	}
	if hasQualifiers {
		out = append(out, Strategy{
			ID:          strategyID(FamilyNeutralDescriptor, entity.Key),
			Family:      FamilyNeutralDescriptor,
			Description: fmt.Sprintf("Replace %s with a neutral descriptor", strings.Join(trigger.Qualifiers, ", ")),
			Confidence:  FamilyNeutralDescriptor.Prior(),
			Transform: func(text string) string {
				return describeQualifiers(entity, shortenExact(entity, text))
			},
		})
	}

	roleLocale := withArticle(strings.TrimSpace(entity.Locale + " " + entity.Role))
	out = append(out, Strategy{
		ID:          strategyID(FamilyRoleLocale, entity.Key),
		Family:      FamilyRoleLocale,
		Description: fmt.Sprintf("Replace %s with %q", trigger.EntityValue, roleLocale),
		Confidence:  FamilyRoleLocale.Prior(),
		Transform: func(text string) string {
			return stripQualifiers(entity, replaceIdentifier(entity, text, roleLocale))
		},
	})

	if alias := firstAlias(entity); alias != "" {
		out = append(out, Strategy{
			ID:          strategyID(FamilySafeAlias, entity.Key),
			Family:      FamilySafeAlias,
			Description: fmt.Sprintf("Replace %s with the alias %q", trigger.EntityValue, alias),
			Confidence:  FamilySafeAlias.Prior(),
			Transform: func(text string) string {
				return stripQualifiers(entity, replaceIdentifier(entity, text, alias))
			},
		})
	}
	return out
}

func (g *Generator) genericization() Strategy {
	return Strategy{
		ID:          string(FamilyGenericization),
		Family:      FamilyGenericization,
		Description: "Strip all specific identifiers and keep only non-identifying facts",
		Confidence:  FamilyGenericization.Prior(),
		Transform:   g.genericize,
	}
}

func (g *Generator) genericize(text string) string {
	if g.registry != nil {
		for i := range g.registry.Entities {
			entity := &g.registry.Entities[i]
			text = stripQualifiers(entity, replaceIdentifier(entity, text, withArticle(entity.Role)))
		}
		for i := range g.registry.Brands {
			brand := &g.registry.Brands[i]
			text = brand.Matcher().ReplaceAll(text, func(string) string { return brand.Descriptor })
		}
	}
	return g.replaceCapitalizedRuns(Normalize(text))
}

func strategyID(family Family, key string) string {
	return string(family) + ":" + key
}

func shortenExact(entity *triggers.Entity, text string) string {
	if entity.Partial == "" {
		return text
	}
	return entity.ExactMatcher().ReplaceAll(text, func(string) string { return entity.Partial })
}

// qualifierGap marks where a qualifier was removed until coordinated gaps
// are merged.
const qualifierGap = "\uE000"

var (
	coordinatedGaps = regexp.MustCompile(`(?i)\x{E000}(?:\s*(?:,|&|\band\b|\bor\b)?\s*\x{E000})+`)
	clauseStartGap  = regexp.MustCompile(`(?i)(^|[,;:.!?(]\s*)\x{E000}\s*(?:and|or)\b`)
)

// stripQualifiers removes every qualifier phrase of entity. A list of
// qualifiers collapses into one gap, and a conjunction left at the start of
// a clause goes with it.
func stripQualifiers(entity *triggers.Entity, text string) string {
	for i := range entity.Qualifiers {
		text = entity.Qualifiers[i].PhraseMatcher().ReplaceAll(text, func(string) string { return qualifierGap })
	}
	if !strings.Contains(text, qualifierGap) {
		return text
	}
	text = coordinatedGaps.ReplaceAllString(text, qualifierGap)
	text = clauseStartGap.ReplaceAllString(text, "$1")
	return strings.ReplaceAll(text, qualifierGap, "")
}

func describeQualifiers(entity *triggers.Entity, text string) string {
	for i := range entity.Qualifiers {
		q := &entity.Qualifiers[i]
		text = q.Matcher().ReplaceAll(text, func(string) string { return q.Descriptor })
	}
	return text
}

func replaceIdentifier(entity *triggers.Entity, text, replacement string) string {
	return entity.IdentifierMatcher().ReplaceAll(text, func(string) string { return replacement })
}

func firstAlias(entity *triggers.Entity) string {
	for _, alias := range entity.Aliases {
		if alias = strings.TrimSpace(alias); alias != "" {
			return alias
		}
	}
	return ""
}

func stripDescription(entity *triggers.Entity, trigger triggers.Trigger) string {
	keep := entity.Partial
	if keep == "" {
		keep = trigger.EntityValue
	}
	if len(trigger.Qualifiers) == 0 {
		return fmt.Sprintf("Shorten %s to %s", trigger.EntityValue, keep)
	}
	return fmt.Sprintf("Remove %s and keep %s", strings.Join(trigger.Qualifiers, ", "), keep)
}

// replaceCapitalizedRuns swaps leftover proper-noun runs for a generic
// person. The first word of a sentence is never treated as a proper noun,
// and runs after a determiner or made only of descriptive vocabulary are
// facts, not names.
func (g *Generator) replaceCapitalizedRuns(text string) string {
	locs := capitalizedRun.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		lead := previousWord(text, start)
		if sentenceStart(text, start) {
			idx := strings.IndexFunc(text[start:end], unicode.IsSpace)
			lead = text[start : start+idx]
			rest := strings.TrimLeftFunc(text[start+idx:end], unicode.IsSpace)
			if len(strings.Fields(rest)) < 2 {
				continue
			}
			start = end - len(rest)
		}
		if !wordEdge(text, start, end) || determiners[strings.ToLower(lead)] || g.descriptive(text[start:end]) {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(genericPerson)
		last = end
	}
	b.WriteString(text[last:])
	return Normalize(b.String())
}

func (g *Generator) descriptive(run string) bool {
	for _, word := range strings.Fields(run) {
		if !g.vocabulary[foldWord(word)] {
			return false
		}
	}
	return true
}

// previousWord returns the whitespace-delimited word before pos.
func previousWord(text string, pos int) string {
	fields := strings.Fields(text[:pos])
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func sentenceStart(text string, pos int) bool {
	prefix := strings.TrimRightFunc(text[:pos], unicode.IsSpace)
	if prefix == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(prefix)
	return r == '.' || r == '!' || r == '?'
}

func wordEdge(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
