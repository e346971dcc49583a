package mitigation_test

import (
	"testing"

	"genguard/internal/classify"
	"genguard/internal/mitigation"
	"genguard/internal/triggers"
)

const placeholderTable = `
entities:
  - key: fullname
    exact: [Full Name]
    partial: Surname
    qualifiers: [Team]
    role: athlete
    locale: European
    aliases: [the veteran]
`

func placeholderSetup(t *testing.T) (*triggers.Detector, *mitigation.Generator) {
	t.Helper()
	registry, err := triggers.ParseRegistry([]byte(placeholderTable))
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	return triggers.NewDetector(registry), mitigation.NewGenerator(registry)
}

func defaultSetup(t *testing.T) (*triggers.Detector, *mitigation.Generator) {
	t.Helper()
	registry, err := triggers.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	return triggers.NewDetector(registry), mitigation.NewGenerator(registry)
}

func ids(strategies []mitigation.Strategy) []string {
	out := make([]string, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, s.ID)
	}
	return out
}

func TestGenerateStripsQualifierFirstForExactName(t *testing.T) {
	detector, generator := placeholderSetup(t)
	input := "Full Name plays for Team"
	strategies := generator.Generate(input, triggers.Actionable(detector.Detect(input)), classify.CategoryRestrictedEntity)
	if len(strategies) == 0 {
		t.Fatal("expected strategies")
	}
	first := strategies[0]
	if first.ID != "strip-qualifier:fullname" || first.Confidence != 0.95 {
		t.Fatalf("unexpected first strategy %+v", first)
	}
	if got := first.Apply(input); got != "Surname" {
		t.Fatalf("strip-qualifier produced %q, want %q", got, "Surname")
	}
	if first.Example != "Surname" {
		t.Fatalf("example = %q", first.Example)
	}
	for i := 1; i < len(strategies); i++ {
		if strategies[i].Confidence > strategies[i-1].Confidence {
			t.Fatalf("strategies not sorted by confidence: %v", ids(strategies))
		}
	}
	if last := strategies[len(strategies)-1]; last.ID != "full-genericization" {
		t.Fatalf("expected genericization last, got %v", ids(strategies))
	}
}

func TestGenerateEntityFamilies(t *testing.T) {
	detector, generator := defaultSetup(t)
	input := "Messi scores for Inter Miami"
	strategies := generator.Generate(input, triggers.Actionable(detector.Detect(input)), classify.CategoryRestrictedEntity)
	want := map[string]string{
		"strip-qualifier:messi":    "Messi scores",
		"neutral-descriptor:messi": "Messi scores for an American club",
		"role-locale:messi":        "A South American footballer scores",
		"safe-alias:messi":         "The veteran playmaker scores",
	}
	got := make(map[string]string)
	for _, s := range strategies {
		got[s.ID] = s.Example
	}
	for id, example := range want {
		if got[id] != example {
			t.Errorf("%s example = %q, want %q", id, got[id], example)
		}
	}
	if len(strategies) != len(want)+1 {
		t.Fatalf("unexpected strategy set %v", ids(strategies))
	}
}

func TestGenerateWithoutTriggersOffersOnlyGenericization(t *testing.T) {
	_, generator := defaultSetup(t)
	for _, category := range []classify.Category{
		classify.CategoryRestrictedEntity,
		classify.CategoryRestrictedContent,
		classify.CategoryGenericPolicy,
		classify.CategoryValidation,
	} {
		strategies := generator.Generate("a quiet beach at dawn", nil, category)
		if len(strategies) != 1 || strategies[0].ID != "full-genericization" {
			t.Fatalf("%s: expected only genericization, got %v", category, ids(strategies))
		}
		if strategies[0].Confidence != 0.60 {
			t.Fatalf("genericization confidence = %v", strategies[0].Confidence)
		}
	}
}

func TestGenerateTimeoutOffersNothing(t *testing.T) {
	detector, generator := defaultSetup(t)
	input := "Lionel Messi lifts the trophy"
	if got := generator.Generate(input, detector.Detect(input), classify.CategoryTimeout); got != nil {
		t.Fatalf("expected no strategies for timeout, got %v", ids(got))
	}
}

func TestGenerateUnknownSkipsGenericization(t *testing.T) {
	detector, generator := defaultSetup(t)
	input := "Lionel Messi lifts the trophy"
	strategies := generator.Generate(input, triggers.Actionable(detector.Detect(input)), classify.CategoryUnknown)
	if len(strategies) == 0 {
		t.Fatal("expected entity strategies")
	}
	for _, s := range strategies {
		if s.Family == mitigation.FamilyGenericization {
			t.Fatalf("unknown category must not offer genericization: %v", ids(strategies))
		}
	}
	if got := generator.Generate("plain text", nil, classify.CategoryUnknown); len(got) != 0 {
		t.Fatalf("expected nothing for unknown without triggers, got %v", ids(got))
	}
}

func TestGenerateHasUniqueIDs(t *testing.T) {
	detector, generator := defaultSetup(t)
	input := "Cristiano Ronaldo and Mbappé of Real Madrid with Messi at Barcelona"
	strategies := generator.Generate(input, triggers.Actionable(detector.Detect(input)), classify.CategoryGenericPolicy)
	seen := make(map[string]bool)
	for _, s := range strategies {
		if seen[s.ID] {
			t.Fatalf("duplicate strategy id %s in %v", s.ID, ids(strategies))
		}
		seen[s.ID] = true
	}
}

func TestGenericizationRemovesIdentifiers(t *testing.T) {
	_, generator := defaultSetup(t)
	strategies := generator.Generate(
		"Cristiano Ronaldo drinks Coca-Cola with Jordan Henderson at the stadium",
		nil, classify.CategoryGenericPolicy)
	if len(strategies) != 1 {
		t.Fatalf("expected genericization only, got %v", ids(strategies))
	}
	want := "A footballer drinks a soft drink with someone at the stadium"
	if strategies[0].Example != want {
		t.Fatalf("genericization = %q, want %q", strategies[0].Example, want)
	}
}

func TestStripQualifierIsIdempotent(t *testing.T) {
	detector, generator := defaultSetup(t)
	input := "Messi, playing for Inter Miami , celebrates with Argentina fans."
	strategies := generator.Generate(input, triggers.Actionable(detector.Detect(input)), classify.CategoryRestrictedEntity)
	var strip *mitigation.Strategy
	for i := range strategies {
		if strategies[i].Family == mitigation.FamilyStripQualifier {
			strip = &strategies[i]
		}
	}
	if strip == nil {
		t.Fatalf("expected strip-qualifier, got %v", ids(strategies))
	}
	once := strip.Apply(input)
	if twice := strip.Apply(once); twice != once {
		t.Fatalf("strip not idempotent: %q then %q", once, twice)
	}
	if once != "Messi, celebrates fans." {
		t.Fatalf("strip produced %q", once)
	}
}

func TestChainedStrategiesStayClean(t *testing.T) {
	detector, generator := placeholderSetup(t)
	input := "Full Name plays for Team"
	first := generator.Generate(input, triggers.Actionable(detector.Detect(input)), classify.CategoryRestrictedEntity)[0]
	step := first.Apply(input)
	second := generator.Generate(step, triggers.Actionable(detector.Detect(step)), classify.CategoryRestrictedEntity)
	if len(second) != 1 || second[0].ID != "full-genericization" {
		t.Fatalf("expected genericization after strip, got %v", ids(second))
	}
	if got := second[0].Apply(step); got != "An athlete" {
		t.Fatalf("genericized %q into %q", step, got)
	}
}

func TestApplyWithoutTransformNormalizes(t *testing.T) {
	s := mitigation.Strategy{ID: "noop"}
	if got := s.Apply("  hello  world "); got != "Hello world" {
		t.Fatalf("Apply = %q", got)
	}
}

func genericizationOf(t *testing.T, generator *mitigation.Generator, text string) string {
	t.Helper()
	strategies := generator.Generate(text, nil, classify.CategoryGenericPolicy)
	if len(strategies) != 1 || strategies[0].Family != mitigation.FamilyGenericization {
		t.Fatalf("expected genericization only for %q, got %v", text, ids(strategies))
	}
	return strategies[0].Example
}

func TestGenericizationKeepsDescriptivePhrases(t *testing.T) {
	_, generator := defaultSetup(t)
	tests := []struct {
		in   string
		want string
	}{
		{in: "Messi in a South American derby.", want: "A footballer in a South American derby."},
		{in: "A South American footballer.", want: "A South American footballer."},
		{in: "Fans of South American football cheered Jordan Henderson.", want: "Fans of South American football cheered someone."},
		{in: "The Champions League final pitted him against Jordan Henderson.", want: "The Champions League final pitted him against someone."},
	}
	for _, tt := range tests {
		if got := genericizationOf(t, generator, tt.in); got != tt.want {
			t.Errorf("genericize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoleLocaleThenGenericizationKeepsLocale(t *testing.T) {
	detector, generator := defaultSetup(t)
	input := "Lionel Messi plays for Inter Miami."
	var roleLocale *mitigation.Strategy
	strategies := generator.Generate(input, triggers.Actionable(detector.Detect(input)), classify.CategoryRestrictedEntity)
	for i := range strategies {
		if strategies[i].Family == mitigation.FamilyRoleLocale {
			roleLocale = &strategies[i]
		}
	}
	if roleLocale == nil {
		t.Fatalf("expected role-locale, got %v", ids(strategies))
	}
	step := roleLocale.Apply(input)
	if step != "A South American footballer." {
		t.Fatalf("role-locale produced %q", step)
	}
	if got := genericizationOf(t, generator, step); got != step {
		t.Fatalf("genericization rewrote %q into %q", step, got)
	}
}

func TestStripQualifierDropsCoordinatedQualifiers(t *testing.T) {
	detector, generator := defaultSetup(t)
	tests := []struct {
		in   string
		want string
	}{
		{in: "Messi, who plays for Inter Miami and Argentina, scored twice.", want: "Messi, scored twice."},
		{in: "Messi beat Barcelona and PSG yesterday.", want: "Messi beat yesterday."},
		{in: "Barcelona and Messi celebrated.", want: "Messi celebrated."},
	}
	for _, tt := range tests {
		strategies := generator.Generate(tt.in, triggers.Actionable(detector.Detect(tt.in)), classify.CategoryRestrictedEntity)
		if len(strategies) == 0 || strategies[0].Family != mitigation.FamilyStripQualifier {
			t.Fatalf("expected strip-qualifier first for %q, got %v", tt.in, ids(strategies))
		}
		if got := strategies[0].Apply(tt.in); got != tt.want {
			t.Errorf("strip(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
