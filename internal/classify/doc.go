// Package classify maps raw generation failures onto the provider error
// taxonomy with a deterministic, ordered rule list.
//
// Content-policy rejections are checked first and sub-classified by keyword
// (restricted entity, violent or sexual content, generic policy), then
// validation errors, then timeouts. Anything else is unknown. Callers extend
// the list with WithRules; added rules run before the built-in ones.
package classify
