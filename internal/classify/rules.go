package classify

import (
	"strings"

	"genguard/internal/generation"
)

var (
	policyCodes = []string{
		"content_policy_violation", "content_policy", "policy_violation",
		"moderation_blocked", "safety_violation", "content_filtered",
	}
	policyKeywords = []string{
		"content policy", "policy violation", "violates", "restricted",
		"moderation", "flagged", "not allowed", "prohibited", "safety system",
	}
	entityKeywords = []string{
		"restricted person", "restricted persons", "public figure", "celebrity",
		"real person", "real people", "likeness", "named individual",
	}
	violentKeywords = []string{
		"violence", "violent", "gore", "graphic", "weapon", "self-harm",
	}
	sexualKeywords = []string{
		"sexual", "nudity", "explicit", "adult content", "nsfw",
	}
	validationCodes = []string{
		"invalid_request", "invalid_request_error", "bad_request", "validation_error",
		"invalid_parameter", "400", "422",
	}
	validationKeywords = []string{
		"malformed", "invalid parameter", "missing required", "must be", "unsupported value",
	}
	timeoutCodes = []string{
		"timeout", "timed_out", "deadline_exceeded", "504", "408",
	}
	timeoutKeywords = []string{
		"timeout", "timed out", "deadline exceeded", "took too long",
	}
)

// DefaultRules returns the built-in ordered rule set: content policy,
// validation, timeout.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "content_policy", Match: matchPolicy},
		{Name: "validation", Match: matchValidation},
		{Name: "timeout", Match: matchTimeout},
	}
}

func matchPolicy(raw generation.FailureResponse) (Classification, bool) {
	code := normalizedCode(raw.Code)
	msg := strings.ToLower(raw.Message)
	if !hasAny(code, policyCodes, true) && !hasAny(msg, policyKeywords, false) {
		return Classification{}, false
	}
	switch {
	case hasAny(msg, entityKeywords, false):
		return Classification{Category: CategoryRestrictedEntity, Rule: "content_policy.entity"}, true
	case hasAny(msg, violentKeywords, false):
		return Classification{Category: CategoryRestrictedContent, Signal: "violent", Rule: "content_policy.violent"}, true
	case hasAny(msg, sexualKeywords, false):
		return Classification{Category: CategoryRestrictedContent, Signal: "sexual", Rule: "content_policy.sexual"}, true
	default:
		return Classification{Category: CategoryGenericPolicy, Rule: "content_policy.generic"}, true
	}
}

func matchValidation(raw generation.FailureResponse) (Classification, bool) {
	if hasAny(normalizedCode(raw.Code), validationCodes, true) || hasAny(strings.ToLower(raw.Message), validationKeywords, false) {
		return Classification{Category: CategoryValidation}, true
	}
	return Classification{}, false
}

func matchTimeout(raw generation.FailureResponse) (Classification, bool) {
	if hasAny(normalizedCode(raw.Code), timeoutCodes, true) || hasAny(strings.ToLower(raw.Message), timeoutKeywords, false) {
		return Classification{Category: CategoryTimeout}, true
	}
	return Classification{}, false
}

func normalizedCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(code)
}

func hasAny(value string, needles []string, exact bool) bool {
	if value == "" {
		return false
	}
	for _, needle := range needles {
		if exact && value == needle {
			return true
		}
		if !exact && strings.Contains(value, needle) {
			return true
		}
	}
	return false
}
