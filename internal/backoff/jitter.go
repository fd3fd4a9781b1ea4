package backoff

import (
	"math/rand"
	"time"
)

// JitterType selects how NewJitterFunc spreads an interval.
type JitterType int

const (
	// NoJitter returns the interval unchanged.
	NoJitter JitterType = iota
	// FullJitter returns a random duration in [0, interval].
	FullJitter
	// Jitter returns a random duration in [interval/2, interval*1.5].
	Jitter
)

// JitterFunc spreads a base interval to avoid thundering-herd retries.
type JitterFunc func(interval time.Duration) time.Duration

// NewJitterFunc returns the JitterFunc for jt. The returned func is safe
// for concurrent use.
func NewJitterFunc(jt JitterType) JitterFunc {
	switch jt {
	case FullJitter:
		return func(interval time.Duration) time.Duration {
			if interval <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(interval) + 1))
		}
	case Jitter:
		return func(interval time.Duration) time.Duration {
			if interval <= 0 {
				return 0
			}
			half := int64(interval) / 2
			return time.Duration(half + rand.Int63n(int64(interval)))
		}
	default:
		return func(interval time.Duration) time.Duration {
			if interval <= 0 {
				return 0
			}
			return interval
		}
	}
}

// jitteredPolicy wraps a RetryPolicy, applying a JitterFunc to every
// interval it computes.
type jitteredPolicy struct {
	base   RetryPolicy
	jitter JitterFunc
}

// WithJitter wraps base so every computed interval is spread by jt.
func WithJitter(base RetryPolicy, jt JitterType) RetryPolicy {
	return &jitteredPolicy{base: base, jitter: NewJitterFunc(jt)}
}

func (p *jitteredPolicy) ComputeNextInterval(retryCount int, elapsedTime time.Duration, err error) (time.Duration, error) {
	interval, computeErr := p.base.ComputeNextInterval(retryCount, elapsedTime, err)
	if computeErr != nil {
		return 0, computeErr
	}
	return p.jitter(interval), nil
}
