// Package mitigation turns detected triggers into ranked text rewrites.
//
// Five fixed families exist, each with a prior confidence: strip-qualifier,
// neutral-descriptor, role-locale, safe-alias, and full genericization.
// Entity families are keyed per entity ("strip-qualifier:messi") so a retry
// loop can skip strategies it already applied. Every transform passes through
// Normalize, which is idempotent, so strategies can be chained across
// attempts without accumulating whitespace or punctuation debris.
package mitigation
