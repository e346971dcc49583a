package classify

import (
	"strings"

	"genguard/internal/generation"
)

// Category is the taxonomy bucket assigned to a provider failure.
type Category string

const (
	CategoryValidation        Category = "provider_validation"
	CategoryRestrictedEntity  Category = "content_policy.restricted_entity"
	CategoryRestrictedContent Category = "content_policy.restricted_content"
	CategoryGenericPolicy     Category = "content_policy.generic"
	CategoryTimeout           Category = "provider_timeout"
	CategoryUnknown           Category = "unknown"
)

// IsPolicy reports whether the category is a content-policy rejection.
func (c Category) IsPolicy() bool {
	return strings.HasPrefix(string(c), "content_policy.")
}

// Resolved reports whether a concrete rule matched.
func (c Category) Resolved() bool {
	return c != "" && c != CategoryUnknown
}

// Classification is the outcome of classifying one raw response.
type Classification struct {
	Category Category `json:"category"`
	// Signal refines restricted content ("violent", "sexual").
	Signal string `json:"signal,omitempty"`
	// Rule names the rule that matched.
	Rule string `json:"rule"`
}

// Rule inspects a raw failure and reports a classification when it applies.
type Rule struct {
	Name  string
	Match func(raw generation.FailureResponse) (Classification, bool)
}

// Classifier applies ordered rules; the first match wins.
type Classifier struct {
	rules []Rule
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithRules inserts rules ahead of the built-in ones, in the given order.
func WithRules(rules ...Rule) Option {
	return func(c *Classifier) {
		c.rules = append(append([]Rule(nil), rules...), c.rules...)
	}
}

// New returns a classifier with the default rule set.
func New(opts ...Option) *Classifier {
	c := &Classifier{rules: DefaultRules()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify maps a raw response to a category. Unmatched responses are unknown.
func (c *Classifier) Classify(raw generation.FailureResponse) Classification {
	if c == nil {
		return unknown()
	}
	for _, rule := range c.rules {
		if rule.Match == nil {
			continue
		}
		if result, ok := rule.Match(raw); ok {
			if result.Rule == "" {
				result.Rule = rule.Name
			}
			return result
		}
	}
	return unknown()
}

// FromError classifies any error returned by the generation collaborator.
func (c *Classifier) FromError(err error) Classification {
	return c.Classify(generation.AsFailure(err))
}

func unknown() Classification {
	return Classification{Category: CategoryUnknown, Rule: "fallback"}
}
