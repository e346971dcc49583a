// Package stats tracks generation outcomes for the current process and
// across restarts.
//
// Tracker correlates lifecycle events by attempt id. Retry events only
// accumulate on the in-flight entry; the terminal success or failure applies
// them to the session and historical aggregates in a single update and then
// flushes history through the Store. Abandoned requests are dropped without
// touching either view. Store failures are logged and never surface to the
// caller.
//
// Historical rollups are keyed by UTC day, ISO week, and month.
package stats
