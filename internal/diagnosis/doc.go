// Package diagnosis builds an ErrorAnalysis for each failed generation
// attempt from the classifier, the trigger detector, and the strategy
// generator. Analyses carry ULID ids so the audit log sorts by time.
package diagnosis
