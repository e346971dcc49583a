package retry

import (
	"errors"
	"fmt"

	"genguard/internal/diagnosis"
)

var (
	// ErrNoGenerator is returned when an orchestrator is built without a generation collaborator.
	ErrNoGenerator = errors.New("generation collaborator required")
	// ErrNoAnalyzer is returned when an orchestrator is built without an analyzer.
	ErrNoAnalyzer = errors.New("error analyzer required")
	// ErrEmptyInput is returned for a request without input text.
	ErrEmptyInput = errors.New("input text required")
	// ErrBatchAborted marks a batch stopped after its first failed job.
	ErrBatchAborted = errors.New("batch aborted after failure")
)

// TerminalError is the only provider failure surfaced to callers. It is
// raised once the attempt budget is exhausted and carries the full history.
type TerminalError struct {
	Message        string
	AttemptHistory []AttemptRecord
	LastAnalysis   *diagnosis.ErrorAnalysis
	// Err is the last collaborator failure.
	Err error
}

func (e *TerminalError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TerminalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
