package retry

import (
	"genguard/internal/diagnosis"
	"genguard/internal/mitigation"
)

// State is a position in the attempt state machine.
type State string

const (
	StateIdle            State = "IDLE"
	StateAttempting      State = "ATTEMPTING"
	StateSuccess         State = "SUCCESS"
	StateFailedRetryable State = "FAILED_RETRYABLE"
	StateFailedTerminal  State = "FAILED_TERMINAL"
)

// Terminal reports whether no further attempts follow.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailedTerminal
}

func nextAfterStart(s State) State {
	if s == StateIdle || s == StateFailedRetryable {
		return StateAttempting
	}
	return s
}

func nextAfterSuccess() State {
	return StateSuccess
}

func nextAfterFailure(attempt, maxAttempts int) State {
	if attempt >= maxAttempts {
		return StateFailedTerminal
	}
	return StateFailedRetryable
}

// selectStrategy picks the highest-confidence suggestion whose id has not
// been used yet. Ties keep rank order.
func selectStrategy(analysis diagnosis.ErrorAnalysis, used map[string]struct{}) (mitigation.Strategy, bool) {
	var (
		best  mitigation.Strategy
		found bool
	)
	for _, candidate := range analysis.SuggestedStrategies {
		if _, seen := used[candidate.ID]; seen {
			continue
		}
		if !found || candidate.Confidence > best.Confidence {
			best = candidate
			found = true
		}
	}
	return best, found
}
