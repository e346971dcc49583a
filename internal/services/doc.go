// Package services defines shared utilities consumed by the orchestrator and
// its collaborators.
//
// It currently holds the context helpers that stamp request correlation ids
// and caller segment indexes so every log line emitted during an orchestrated
// generation can be traced back to the caller's job.
package services
