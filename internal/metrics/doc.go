// Package metrics exposes Prometheus collectors for the retry loop: attempts
// by outcome, retries by strategy, classified provider errors, backoff
// delays, and attempts per finished request. Collectors live on a private
// registry so tests and multiple orchestrators do not collide.
package metrics
