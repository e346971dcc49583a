// Package historystore is the SQLite-backed durable store for historical
// generation stats and the append-only error analysis audit log.
//
// The database lives at <data_dir>/history.db in WAL mode. Stats are kept as
// a single JSON snapshot row; every save takes an exclusive file lock on
// history.db.lock so concurrent processes never interleave a write, though
// the load-modify-save cycle across processes remains last-writer-wins.
// Busy errors are retried with a short capped backoff.
package historystore
