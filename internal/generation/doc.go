// Package generation defines the generative media service collaborator.
//
// Client is the port (submit a job, wait for it to finish); Generator folds
// both calls into the single blocking unit the retry orchestrator drives.
// Provider rejections surface as *FailureResponse so the error classifier can
// read the raw code and message; AsFailure turns any other error into the same
// shape using only its message.
//
// HTTPClient is the production adapter for a JSON job API. It polls job
// status at a fixed interval and converts a job that outlives JobTimeout into
// a {code: "timeout"} failure. The sleeper and clock are injectable for tests.
package generation
