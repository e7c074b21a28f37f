// Package retry implements the model invoker: the single place in agentway
// where a call to the text-generation capability is wrapped with a
// retry/backoff policy. No other component retries network calls.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/agentway/agentway/logging"
	"github.com/agentway/agentway/model"
)

// Policy is pure retry configuration with no mutable state. The delay before
// retrying failed attempt k (1-based) is BaseDelay * ExponentialBase^(k-1).
// No jitter is applied: the schedule is fully deterministic.
type Policy struct {
	MaxAttempts          int
	BaseDelay            time.Duration
	ExponentialBase      float64
	RetryableStatusCodes []int
}

// DefaultPolicy returns the default policy: 5 attempts, 1s base delay,
// exponent 2, retrying on 429, 500, 503 and 504.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:          5,
		BaseDelay:            time.Second,
		ExponentialBase:      2,
		RetryableStatusCodes: []int{429, 500, 503, 504},
	}
}

// Retryable reports whether the status code is in the policy's retryable set.
func (p Policy) Retryable(code int) bool {
	for _, c := range p.RetryableStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Delay returns the backoff before retrying failed attempt k (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-1)))
}

// ErrorKind classifies terminal invocation failures.
type ErrorKind int

const (
	// KindNonRetryable marks a failure whose status code is outside the
	// retryable set (or carries no status code at all).
	KindNonRetryable ErrorKind = iota

	// KindRetriesExhausted marks a retryable failure that persisted through
	// MaxAttempts attempts.
	KindRetriesExhausted
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNonRetryable:
		return "non_retryable"
	case KindRetriesExhausted:
		return "retries_exhausted"
	default:
		return "unknown"
	}
}

// InvocationError is the terminal failure of a model invocation after the
// retry policy has been applied.
type InvocationError struct {
	Kind       ErrorKind
	Attempts   int // Attempts actually made
	StatusCode int // Last observed status code, 0 if none
	Err        error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("model invocation failed (%s, %d attempts): %v", e.Kind, e.Attempts, e.Err)
}

// Unwrap exposes the underlying provider error for errors.Is / errors.As.
func (e *InvocationError) Unwrap() error { return e.Err }

// SleepFunc waits for the given duration, returning early with the context's
// error on cancellation. Injected in tests to observe the backoff schedule.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InvokerOptions holds overrides passed to NewInvoker.
type InvokerOptions struct {
	// Sleep replaces the context-aware timer wait. Tests inject a recorder.
	Sleep SleepFunc
	// Logger receives per-attempt diagnostics.
	Logger logging.Logger
}

// Invoker wraps a model.Model with a retry policy. It is stateless across
// invocations and safe for concurrent use.
type Invoker struct {
	model  model.Model
	policy Policy
	sleep  SleepFunc
	logger logging.Logger
}

// NewInvoker constructs an Invoker with optional overrides.
func NewInvoker(m model.Model, policy Policy, optFns ...func(o *InvokerOptions)) *Invoker {
	opts := InvokerOptions{
		Sleep:  defaultSleep,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{model: m, policy: policy, sleep: opts.Sleep, logger: opts.Logger}
}

// Model returns the wrapped model.
func (iv *Invoker) Model() model.Model { return iv.model }

// Policy returns the retry policy in effect.
func (iv *Invoker) Policy() Policy { return iv.policy }

// Invoke performs the generation call under the retry policy. On a failure
// carrying a retryable status code it waits the policy delay and retries,
// up to MaxAttempts total attempts. Non-retryable failures (including errors
// with no status code) fail on first occurrence. Cancellation of ctx aborts
// pending backoff waits promptly.
func (iv *Invoker) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	maxAttempts := iv.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	lastCode := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := iv.model.Generate(ctx, req)
		if err == nil {
			if attempt > 1 {
				iv.logger.Info("invoker.recovered", "attempts", attempt)
			}
			return resp, nil
		}

		lastErr = err
		code, ok := model.StatusCode(err)
		if !ok || !iv.policy.Retryable(code) {
			iv.logger.Warn("invoker.non_retryable", "attempt", attempt, "status", code, "error", err.Error())
			return nil, &InvocationError{
				Kind:       KindNonRetryable,
				Attempts:   attempt,
				StatusCode: code,
				Err:        err,
			}
		}
		lastCode = code

		if attempt == maxAttempts {
			break
		}

		delay := iv.policy.Delay(attempt)
		iv.logger.Warn("invoker.retrying",
			"attempt", attempt,
			"status", code,
			"delay", delay.String(),
		)
		if err := iv.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &InvocationError{
		Kind:       KindRetriesExhausted,
		Attempts:   maxAttempts,
		StatusCode: lastCode,
		Err:        lastErr,
	}
}
