package s8e

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

type (
	// configFile is the top-level JSON structure.
	configFile struct {
		Policies map[string]PolicyConfig `json:"policies"`
	}

	// PolicyConfig holds the decoded configuration for one policy stack.
	// Export it to embed in your own app config structs for JSON or YAML
	// unmarshaling, then call [BuildPolicy] to obtain a runnable
	// [Policy].
	PolicyConfig struct {
		// Timeout is the maximum duration for a single call.
		// Optional. Parsed via time.ParseDuration. Example: "2s".
		Timeout *string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
		// CircuitBreaker configures the circuit breaker policy.
		// Optional. Example: {"failure_threshold": 5}.
		CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
		// RateLimit is the maximum calls per second.
		// Optional. Example: 100.
		RateLimit *float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
		// Bulkhead configures the concurrency bound.
		// Optional. Example: {"max_in_flight": 10, "max_queued": 5}.
		Bulkhead *BulkheadConfig `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
		// Retry configures the retry policy.
		// Optional. Example: {"max_attempts": 3, "backoff": "exponential"}.
		Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	}

	// BulkheadConfig holds bulkhead configuration values.
	BulkheadConfig struct {
		// MaxInFlight is the number of permits.
		// Required. Example: 10.
		MaxInFlight *int `json:"max_in_flight,omitempty" yaml:"max_in_flight,omitempty"`
		// MaxQueued is the FIFO wait-queue size.
		// Optional, default 0 (reject at capacity). Example: 5.
		MaxQueued *int `json:"max_queued,omitempty" yaml:"max_queued,omitempty"`
	}

	// CircuitBreakerConfig holds circuit breaker configuration values.
	CircuitBreakerConfig struct {
		// RecoveryTimeout is the duration the breaker stays open.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		RecoveryTimeout *string `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty"`
		// FailureThreshold is the number of failures before opening.
		// Optional. Example: 5.
		FailureThreshold *int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
		// HalfOpenMaxAttempts is the max probes in half-open state.
		// Optional. Example: 2.
		HalfOpenMaxAttempts *int `json:"half_open_max_attempts,omitempty" yaml:"half_open_max_attempts,omitempty"`
	}

	// RetryConfig holds retry configuration values.
	RetryConfig struct {
		// Backoff is the backoff strategy name.
		// Required. One of: "constant", "exponential", "linear",
		// "exponential_jitter".
		Backoff *string `json:"backoff,omitempty" yaml:"backoff,omitempty"`
		// BaseDelay is the base delay for backoff calculation.
		// Required. Parsed via time.ParseDuration. Example: "100ms".
		BaseDelay *string `json:"base_delay,omitempty" yaml:"base_delay,omitempty"`
		// MaxDelay caps the backoff delay.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		MaxDelay *string `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
		// MaxAttempts bounds the number of executions.
		// One of MaxAttempts or MaxElapsed is required. Example: 3.
		MaxAttempts *int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
		// MaxElapsed bounds the total retry duration measured from the
		// first attempt. Parsed via time.ParseDuration. Example: "10s".
		MaxElapsed *string `json:"max_elapsed,omitempty" yaml:"max_elapsed,omitempty"`
	}
)

// LoadConfig reads a JSON configuration file and stores the policy
// configurations in a [Registry]. Actual [Policy] instances are not created
// until [BuildPolicy] is called with a configuration from
// [Registry.Config], allowing the caller to provide the type parameter.
//
// Duration values (timeout, recovery_timeout, base_delay, max_delay,
// max_elapsed) are parsed using [time.ParseDuration].
func LoadConfig(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("s8e: read config: %w", err)
	}

	var cfg configFile
	if err = json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("s8e: parse config: %w", err)
	}

	// Validate all policies eagerly so errors surface at load time.
	for name, pc := range cfg.Policies {
		if buildErr := validateConfig(&pc); buildErr != nil {
			return nil, fmt.Errorf("s8e: policy %q: %w", name, buildErr)
		}
	}

	reg := NewRegistry()
	reg.mu.Lock()
	reg.configs = cfg.Policies
	reg.mu.Unlock()

	return reg, nil
}

// Config returns the named policy configuration loaded via [LoadConfig].
func (r *Registry) Config(name string) (PolicyConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.configs[name]

	return pc, ok
}

// validateConfig builds the configuration for the throwaway `any` type to
// surface construction errors without committing to a type parameter.
func validateConfig(pc *PolicyConfig) error {
	_, err := BuildPolicy[any](pc)
	return err
}

// BuildPolicy converts a [PolicyConfig] into a runnable [Policy]: the
// configured sections layered in a fixed outer-to-inner order — timeout,
// circuit breaker, rate limit, bulkhead, retry — so admission control runs
// before re-invocation, and the retry loop draws fresh permits per attempt.
//
//nolint:ireturn // the composite's whole surface is the Policy contract
func BuildPolicy[T any](pc *PolicyConfig, opts ...BuildOption) (Policy[T], error) {
	var bc buildConfig
	for _, o := range opts {
		o(&bc)
	}

	if bc.hooks == nil {
		bc.hooks = &Hooks{}
	}

	var stack []Policy[T]

	if pc.Timeout != nil {
		d, err := time.ParseDuration(*pc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}

		stack = append(stack, NewTimeout[T](d, bc.hooks))
	}

	if pc.CircuitBreaker != nil {
		cbOpts := []CircuitBreakerOption{BreakerHooks(bc.hooks)}

		if bc.clock != nil {
			cbOpts = append(cbOpts, BreakerClock(bc.clock))
		}

		if pc.CircuitBreaker.FailureThreshold != nil {
			cbOpts = append(cbOpts, FailureThreshold(*pc.CircuitBreaker.FailureThreshold))
		}

		if pc.CircuitBreaker.RecoveryTimeout != nil {
			recoveryDur, err := time.ParseDuration(*pc.CircuitBreaker.RecoveryTimeout)
			if err != nil {
				return nil, fmt.Errorf("circuit_breaker.recovery_timeout: %w", err)
			}

			cbOpts = append(cbOpts, RecoveryTimeout(recoveryDur))
		}

		if pc.CircuitBreaker.HalfOpenMaxAttempts != nil {
			cbOpts = append(cbOpts, HalfOpenMaxAttempts(*pc.CircuitBreaker.HalfOpenMaxAttempts))
		}

		stack = append(stack, NewCircuitBreaker[T](cbOpts...))
	}

	if pc.RateLimit != nil {
		rlOpts := []RateLimitOption{LimiterHooks(bc.hooks)}

		if bc.clock != nil {
			rlOpts = append(rlOpts, LimiterClock(bc.clock))
		}

		stack = append(stack, NewRateLimiter[T](*pc.RateLimit, rlOpts...))
	}

	if pc.Bulkhead != nil {
		if pc.Bulkhead.MaxInFlight == nil {
			return nil, fmt.Errorf("bulkhead: max_in_flight is required")
		}

		bhOpts := []BulkheadOption{BulkheadHooks(bc.hooks)}

		if pc.Bulkhead.MaxQueued != nil {
			bhOpts = append(bhOpts, WithQueue(*pc.Bulkhead.MaxQueued))
		}

		bh, err := NewBulkhead[T](*pc.Bulkhead.MaxInFlight, bhOpts...)
		if err != nil {
			return nil, fmt.Errorf("bulkhead: %w", err)
		}

		stack = append(stack, bh)
	}

	if pc.Retry != nil {
		schedule, err := parseSchedule(pc.Retry)
		if err != nil {
			return nil, fmt.Errorf("retry: %w", err)
		}

		retryOpts := []RetryOption{RetryHooks(bc.hooks)}

		if bc.clock != nil {
			retryOpts = append(retryOpts, RetryClock(bc.clock))
		}

		rt, err := NewRetry[T](schedule, retryOpts...)
		if err != nil {
			return nil, fmt.Errorf("retry: %w", err)
		}

		stack = append(stack, rt)
	}

	return Layer(stack...), nil
}

// buildConfig holds optional dependencies injected into built policies.
type buildConfig struct {
	hooks *Hooks
	clock Clock
}

// BuildOption configures [BuildPolicy].
type BuildOption func(*buildConfig)

// BuildHooks sets the lifecycle hooks shared by all policies in the built
// stack.
func BuildHooks(h *Hooks) BuildOption {
	return func(bc *buildConfig) {
		bc.hooks = h
	}
}

// BuildClock sets the clock shared by all policies in the built stack.
func BuildClock(c Clock) BuildOption {
	return func(bc *buildConfig) {
		bc.clock = c
	}
}

// parseSchedule maps a retry section to a [Schedule]: backoff name + base
// delay, bounded by max_attempts and/or max_elapsed (at least one is
// required so a config-driven retry always terminates).
//
//nolint:ireturn // returns interface by design for strategy pattern
func parseSchedule(rc *RetryConfig) (Schedule, error) {
	strategy, err := parseBackoffStrategy(rc.Backoff, rc.BaseDelay)
	if err != nil {
		return nil, err
	}

	if rc.MaxDelay != nil {
		maxDel, maxDelErr := time.ParseDuration(*rc.MaxDelay)
		if maxDelErr != nil {
			return nil, fmt.Errorf("max_delay: %w", maxDelErr)
		}

		strategy = CappedBackoff(strategy, maxDel)
	}

	switch {
	case rc.MaxAttempts != nil && rc.MaxElapsed != nil:
		elapsed, elErr := time.ParseDuration(*rc.MaxElapsed)
		if elErr != nil {
			return nil, fmt.Errorf("max_elapsed: %w", elErr)
		}

		attempts := MaxAttempts(*rc.MaxAttempts, strategy)
		budget := MaxElapsed(elapsed, strategy)

		// Stop as soon as either bound trips.
		return ScheduleFunc(func(attempt int, el time.Duration) (time.Duration, bool) {
			d, ok := attempts.Next(attempt, el)
			if !ok {
				return 0, false
			}

			if _, budgetOK := budget.Next(attempt, el); !budgetOK {
				return 0, false
			}

			return d, true
		}), nil

	case rc.MaxAttempts != nil:
		return MaxAttempts(*rc.MaxAttempts, strategy), nil

	case rc.MaxElapsed != nil:
		elapsed, elErr := time.ParseDuration(*rc.MaxElapsed)
		if elErr != nil {
			return nil, fmt.Errorf("max_elapsed: %w", elErr)
		}

		return MaxElapsed(elapsed, strategy), nil

	default:
		return nil, fmt.Errorf("one of max_attempts or max_elapsed is required")
	}
}

// parseBackoffStrategy maps a backoff name + base delay to a
// [BackoffStrategy]. Both fields are required pointers; nil values produce
// an error.
//
//nolint:ireturn // returns interface by design for strategy pattern
func parseBackoffStrategy(name, baseDelayStr *string) (BackoffStrategy, error) {
	const errCtx = "parsing backoff strategy"

	if name == nil {
		return nil, fmt.Errorf("%s: backoff is required", errCtx)
	}

	if baseDelayStr == nil {
		return nil, fmt.Errorf("%s: base_delay is required", errCtx)
	}

	base, err := time.ParseDuration(*baseDelayStr)
	if err != nil {
		return nil, fmt.Errorf("base_delay: %w", err)
	}

	switch *name {
	case "constant":
		return ConstantBackoff(base), nil
	case "exponential":
		return ExponentialBackoff(base), nil
	case "linear":
		return LinearBackoff(base), nil
	case "exponential_jitter":
		return ExponentialJitterBackoff(base), nil
	default:
		return nil, fmt.Errorf("%s: unknown backoff %q", errCtx, *name)
	}
}
