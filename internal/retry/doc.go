// Package retry implements the adaptive generation retry loop.
//
// Each request moves through IDLE, ATTEMPTING, and then SUCCESS,
// FAILED_RETRYABLE, or FAILED_TERMINAL. A failed attempt is diagnosed,
// appended to the audit sink, and mapped to the highest-confidence strategy
// the request has not used yet; when none remains the working input is
// resubmitted unchanged and the attempt is marked degraded. Backoff is
// min(base * multiplier^(attempt-1), cap) or constant, and waits honor
// context cancellation.
//
// Only *TerminalError escapes for provider failures. Batches run jobs one at
// a time so a systemic rejection shows up early.
package retry
