package triggers

import (
	"sort"
)

// EntityType describes what kind of reference produced a trigger.
type EntityType string

const (
	EntityExactName             EntityType = "exact-name"
	EntityContextualCombination EntityType = "contextual-combination"
	EntityBrand                 EntityType = "brand"
)

const (
	rationaleExact       = "full identifier always triggers policy"
	rationaleCombination = "combined partial identifier + qualifier reconstructs identity"
	rationalePartial     = "isolated partial identifier, low risk"
	rationaleBrand       = "commercial brand mention, low risk"
)

// Trigger is one detected sensitive reference.
type Trigger struct {
	EntityKey   string     `json:"entity_key,omitempty"`
	EntityValue string     `json:"entity_value"`
	EntityType  EntityType `json:"entity_type"`
	Severity    Severity   `json:"severity"`
	Rationale   string     `json:"rationale"`
	Positions   []Position `json:"positions"`
	Qualifiers  []string   `json:"qualifiers,omitempty"`
}

// Detector scans text against a Registry. It holds no mutable state.
type Detector struct {
	registry *Registry
}

// NewDetector builds a detector over registry.
func NewDetector(registry *Registry) *Detector {
	return &Detector{registry: registry}
}

// Registry returns the table the detector was built with.
func (d *Detector) Registry() *Registry {
	if d == nil {
		return nil
	}
	return d.registry
}

// Detect returns every trigger in text ordered by severity (critical first)
// and then by first position.
func (d *Detector) Detect(text string) []Trigger {
	if d == nil || d.registry == nil {
		return nil
	}
	text = NormalizeText(text)
	if text == "" {
		return nil
	}
	var found []Trigger
	for i := range d.registry.Entities {
		if trigger, ok := detectEntity(&d.registry.Entities[i], text); ok {
			found = append(found, trigger)
		}
	}
	for i := range d.registry.Brands {
		brand := &d.registry.Brands[i]
		positions := brand.matcher.FindAll(text)
		if len(positions) == 0 {
			continue
		}
		found = append(found, Trigger{
			EntityValue: text[positions[0].Start:positions[0].End],
			EntityType:  EntityBrand,
			Severity:    brand.Severity,
			Rationale:   rationaleBrand,
			Positions:   positions,
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Severity != found[j].Severity {
			return found[i].Severity > found[j].Severity
		}
		return firstStart(found[i]) < firstStart(found[j])
	})
	return found
}

func detectEntity(entity *Entity, text string) (Trigger, bool) {
	qualifierTerms, qualifierPositions, qualifierSeverity := matchQualifiers(entity, text)

	if exact := entity.exact.FindAll(text); len(exact) > 0 {
		return Trigger{
			EntityKey:   entity.Key,
			EntityValue: text[exact[0].Start:exact[0].End],
			EntityType:  EntityExactName,
			Severity:    entity.ExactSeverity,
			Rationale:   rationaleExact,
			Positions:   exact,
			Qualifiers:  qualifierTerms,
		}, true
	}

	partial := entity.partial.FindAll(text)
	if len(partial) == 0 {
		return Trigger{}, false
	}
	trigger := Trigger{
		EntityKey:   entity.Key,
		EntityValue: text[partial[0].Start:partial[0].End],
		EntityType:  EntityContextualCombination,
		Severity:    SeverityLow,
		Rationale:   rationalePartial,
		Positions:   partial,
	}
	if len(qualifierTerms) > 0 {
		trigger.Severity = qualifierSeverity
		trigger.Rationale = rationaleCombination
		trigger.Qualifiers = qualifierTerms
		trigger.Positions = mergePositions(partial, qualifierPositions)
	}
	return trigger, true
}

func matchQualifiers(entity *Entity, text string) ([]string, []Position, Severity) {
	var (
		terms     []string
		positions []Position
		severity  Severity
	)
	for i := range entity.Qualifiers {
		q := &entity.Qualifiers[i]
		hits := q.bare.FindAll(text)
		if len(hits) == 0 {
			continue
		}
		terms = append(terms, q.Term)
		positions = append(positions, hits...)
		if q.Severity > severity {
			severity = q.Severity
		}
	}
	return terms, positions, severity
}

func mergePositions(groups ...[]Position) []Position {
	var out []Position
	for _, group := range groups {
		out = append(out, group...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func firstStart(t Trigger) int {
	if len(t.Positions) == 0 {
		return 0
	}
	return t.Positions[0].Start
}

// Actionable keeps triggers of medium severity or above.
func Actionable(triggers []Trigger) []Trigger {
	var out []Trigger
	for _, t := range triggers {
		if t.Severity.Actionable() {
			out = append(out, t)
		}
	}
	return out
}

// Informational keeps the low-severity triggers retained for telemetry.
func Informational(triggers []Trigger) []Trigger {
	var out []Trigger
	for _, t := range triggers {
		if !t.Severity.Actionable() {
			out = append(out, t)
		}
	}
	return out
}

func (t EntityType) String() string { return string(t) }
