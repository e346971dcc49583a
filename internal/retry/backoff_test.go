package retry

import (
	"testing"
	"time"

	"genguard/internal/config"
	"genguard/internal/diagnosis"
	"genguard/internal/mitigation"
)

func TestPolicyDelay(t *testing.T) {
	exp := Policy{MaxAttempts: 5, BaseDelay: 2 * time.Minute, Multiplier: 2, MaxDelay: 10 * time.Minute, Exponential: true}
	constant := exp
	constant.Exponential = false

	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{name: "first retry waits base", policy: exp, attempt: 1, want: 2 * time.Minute},
		{name: "second doubles", policy: exp, attempt: 2, want: 4 * time.Minute},
		{name: "third doubles again", policy: exp, attempt: 3, want: 8 * time.Minute},
		{name: "capped", policy: exp, attempt: 4, want: 10 * time.Minute},
		{name: "huge attempt stays capped", policy: exp, attempt: 5000, want: 10 * time.Minute},
		{name: "constant", policy: constant, attempt: 4, want: 2 * time.Minute},
		{name: "attempt zero", policy: exp, attempt: 0, want: 0},
		{name: "no base delay", policy: Policy{Exponential: true, Multiplier: 2}, attempt: 3, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.attempt); got != tt.want {
				t.Fatalf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicyMatchesConfigDefaults(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxAttempts != 3 || p.BaseDelay != 120*time.Second || p.Multiplier != 2 || !p.Exponential || p.AbortBatchOnFailure {
		t.Fatalf("unexpected default policy %+v", p)
	}
	cfg := config.Default()
	cfg.Retry.MaxAttempts = 0
	cfg.Retry.BackoffMultiplier = 0.5
	normalized := PolicyFromConfig(&cfg)
	if normalized.MaxAttempts != 1 || normalized.Multiplier != 1 {
		t.Fatalf("policy not normalized: %+v", normalized)
	}
}

func TestTransitions(t *testing.T) {
	if nextAfterStart(StateIdle) != StateAttempting || nextAfterStart(StateFailedRetryable) != StateAttempting {
		t.Fatal("start transitions must enter ATTEMPTING")
	}
	if nextAfterStart(StateSuccess) != StateSuccess {
		t.Fatal("terminal states must not restart")
	}
	if nextAfterSuccess() != StateSuccess || !StateSuccess.Terminal() {
		t.Fatal("success transition mismatch")
	}
	if got := nextAfterFailure(1, 3); got != StateFailedRetryable || got.Terminal() {
		t.Fatalf("nextAfterFailure(1,3) = %s", got)
	}
	if got := nextAfterFailure(3, 3); got != StateFailedTerminal || !got.Terminal() {
		t.Fatalf("nextAfterFailure(3,3) = %s", got)
	}
	if got := nextAfterFailure(1, 1); got != StateFailedTerminal {
		t.Fatalf("nextAfterFailure(1,1) = %s", got)
	}
}

func TestSelectStrategySkipsUsedIDs(t *testing.T) {
	analysis := diagnosis.ErrorAnalysis{SuggestedStrategies: []mitigation.Strategy{
		{ID: "role-locale:x", Confidence: 0.85},
		{ID: "strip-qualifier:x", Confidence: 0.95},
		{ID: "full-genericization", Confidence: 0.60},
	}}
	used := map[string]struct{}{}
	var order []string
	for {
		s, ok := selectStrategy(analysis, used)
		if !ok {
			break
		}
		used[s.ID] = struct{}{}
		order = append(order, s.ID)
	}
	want := []string{"strip-qualifier:x", "role-locale:x", "full-genericization"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
