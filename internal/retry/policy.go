package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// PolicyConfig contains configuration for a bounded retry policy
type PolicyConfig struct {
	InitialDelay time.Duration `json:"initial_delay" validate:"min=10ms,max=10s"`
	MaxDelay     time.Duration `json:"max_delay" validate:"min=100ms,max=5m"`
	Multiplier   float64       `json:"multiplier" validate:"min=1.0,max=10.0"`
	MaxAttempts  int           `json:"max_attempts" validate:"min=1,max=20"`
	Jitter       bool          `json:"jitter"`
}

// DefaultPolicyConfig returns the configuration used for engine operations:
// a small fixed attempt budget with a one second pause between attempts.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   1.0,
		MaxAttempts:  3,
		Jitter:       false,
	}
}

// Policy executes operations under a bounded attempt budget with backoff.
// Authorization checks, file resolution, and history fetches all share
// this shape: try, pause, try again, give up after MaxAttempts.
type Policy struct {
	config PolicyConfig
}

// NewPolicy creates a retry policy from the given configuration
func NewPolicy(config PolicyConfig) *Policy {
	return &Policy{
		config: config,
	}
}

// MaxAttempts returns the attempt budget
func (p *Policy) MaxAttempts() int {
	return p.config.MaxAttempts
}

// Do executes the operation until it succeeds or the attempt budget is
// exhausted. The last error is returned on exhaustion.
func (p *Policy) Do(ctx context.Context, operation func() error) error {
	return p.DoWithPredicate(ctx, operation, func(error) bool { return true })
}

// DoWithPredicate executes the operation with bounded retries, using the
// predicate to decide whether an error is worth another attempt.
// Non-retryable errors fail immediately.
func (p *Policy) DoWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if attempt == p.config.MaxAttempts {
			break
		}

		delay := p.delayFor(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// delayFor computes the pause before the attempt after `attempt`
func (p *Policy) delayFor(attempt int) time.Duration {
	delay := float64(p.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.config.Multiplier
	}

	if delay > float64(p.config.MaxDelay) {
		delay = float64(p.config.MaxDelay)
	}

	if p.config.Jitter {
		jitter := delay * 0.25
		randomValue := secureFloat64()
		delay += (randomValue - 0.5) * 2 * jitter

		if delay < 0 {
			delay = float64(p.config.InitialDelay)
		}
		if delay > float64(p.config.MaxDelay) {
			delay = float64(p.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}

// NextDelay returns the delay that would follow the given attempt
func (p *Policy) NextDelay(attempt int) time.Duration {
	return p.delayFor(attempt)
}

// secureFloat64 generates a cryptographically secure float64 between 0 and 1
func secureFloat64() float64 {
	max := big.NewInt(0).SetUint64(math.MaxUint64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return float64(time.Now().UnixNano()%1000000) / 1000000.0
	}
	return float64(n.Uint64()) / float64(math.MaxUint64)
}
