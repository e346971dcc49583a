// Package textutil compares inputs before and after mitigation.
//
// Text is reduced to a term-frequency fingerprint: lowercased, accent folded,
// split on anything that is not a letter or digit, with tokens shorter than
// three runes dropped. Retention is the cosine similarity between the
// fingerprints of an original input and its rewrite.
package textutil
