package retry

import (
	"context"
	"math"
	"time"

	"genguard/internal/config"
)

// Policy bounds the attempt loop.
type Policy struct {
	MaxAttempts         int
	BaseDelay           time.Duration
	Multiplier          float64
	MaxDelay            time.Duration
	Exponential         bool
	AbortBatchOnFailure bool
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	cfg := config.Default()
	return PolicyFromConfig(&cfg)
}

// PolicyFromConfig derives a policy from the [retry] section.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return Policy{
		MaxAttempts:         cfg.Retry.MaxAttempts,
		BaseDelay:           cfg.BaseDelay(),
		Multiplier:          cfg.Retry.BackoffMultiplier,
		MaxDelay:            cfg.MaxDelay(),
		Exponential:         cfg.Retry.UseExponentialBackoff,
		AbortBatchOnFailure: cfg.Retry.AbortBatchOnFailure,
	}.normalized()
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based):
// min(base * multiplier^(attempt-1), max), or base when exponential growth
// is disabled.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	if !p.Exponential {
		return min(p.BaseDelay, p.cap())
	}
	scaled := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if math.IsInf(scaled, 0) || scaled >= float64(p.cap()) {
		return p.cap()
	}
	return time.Duration(scaled)
}

func (p Policy) cap() time.Duration {
	if p.MaxDelay <= 0 {
		return p.BaseDelay
	}
	return p.MaxDelay
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
