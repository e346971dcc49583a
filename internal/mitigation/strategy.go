package mitigation

// Family is one of the fixed mitigation strategy families.
type Family string

const (
	FamilyStripQualifier    Family = "strip-qualifier"
	FamilyNeutralDescriptor Family = "neutral-descriptor"
	FamilyRoleLocale        Family = "role-locale"
	FamilySafeAlias         Family = "safe-alias"
	FamilyGenericization    Family = "full-genericization"
)

// Prior returns the fixed empirical confidence assigned to the family.
func (f Family) Prior() float64 {
	switch f {
	case FamilyStripQualifier:
		return 0.95
	case FamilyNeutralDescriptor:
		return 0.90
	case FamilyRoleLocale:
		return 0.85
	case FamilySafeAlias:
		return 0.75
	case FamilyGenericization:
		return 0.60
	default:
		return 0
	}
}

// Strategy is a candidate text transformation. It is a pure value; attempt
// records reference it by ID.
type Strategy struct {
	ID          string  `json:"id"`
	Family      Family  `json:"family"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	// Example is the transform applied to the text the strategy was generated for.
	Example   string              `json:"example,omitempty"`
	Transform func(string) string `json:"-"`
}

// Apply runs the transform and normalizes the result.
func (s Strategy) Apply(text string) string {
	if s.Transform == nil {
		return Normalize(text)
	}
	return Normalize(s.Transform(text))
}
