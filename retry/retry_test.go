package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentway/agentway/model"
)

func recordingSleep(delays *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestInvoke_SucceedsFirstAttempt(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueText("hello")

	var delays []time.Duration
	iv := NewInvoker(stub, DefaultPolicy(), func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&delays)
	})

	resp, err := iv.Invoke(context.Background(), model.Request{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content.Text())
	assert.Equal(t, 1, stub.CallCount())
	assert.Empty(t, delays)
}

func TestInvoke_ExponentialBackoffSchedule(t *testing.T) {
	stub := model.NewStubModel()
	for i := 0; i < 4; i++ {
		stub.QueueStatusError(429, "rate limited")
	}
	stub.QueueText("finally")

	policy := Policy{
		MaxAttempts:          5,
		BaseDelay:            time.Second,
		ExponentialBase:      7,
		RetryableStatusCodes: []int{429, 500, 503, 504},
	}

	var delays []time.Duration
	iv := NewInvoker(stub, policy, func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&delays)
	})

	resp, err := iv.Invoke(context.Background(), model.Request{})
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Content.Text())

	assert.Equal(t, 5, stub.CallCount(), "must succeed on the 5th attempt, no 6th call")
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		7 * time.Second,
		49 * time.Second,
		343 * time.Second,
	}, delays)
}

func TestInvoke_RetriesExhausted(t *testing.T) {
	stub := model.NewStubModel()
	for i := 0; i < 3; i++ {
		stub.QueueStatusError(503, "unavailable")
	}

	policy := DefaultPolicy()
	policy.MaxAttempts = 3

	var delays []time.Duration
	iv := NewInvoker(stub, policy, func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&delays)
	})

	_, err := iv.Invoke(context.Background(), model.Request{})
	require.Error(t, err)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, KindRetriesExhausted, invErr.Kind)
	assert.Equal(t, 3, invErr.Attempts)
	assert.Equal(t, 503, invErr.StatusCode)
	assert.Equal(t, 3, stub.CallCount())
	assert.Len(t, delays, 2, "no sleep after the final attempt")
}

func TestInvoke_NonRetryableStatusFailsFast(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueStatusError(401, "bad key")
	stub.QueueText("should never be reached")

	var delays []time.Duration
	iv := NewInvoker(stub, DefaultPolicy(), func(o *InvokerOptions) {
		o.Sleep = recordingSleep(&delays)
	})

	_, err := iv.Invoke(context.Background(), model.Request{})
	require.Error(t, err)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, KindNonRetryable, invErr.Kind)
	assert.Equal(t, 1, invErr.Attempts)
	assert.Equal(t, 401, invErr.StatusCode)
	assert.Equal(t, 1, stub.CallCount())
	assert.Empty(t, delays)
}

func TestInvoke_PlainErrorIsNonRetryable(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueError(errors.New("connection reset"))

	iv := NewInvoker(stub, DefaultPolicy(), func(o *InvokerOptions) {
		o.Sleep = recordingSleep(new([]time.Duration))
	})

	_, err := iv.Invoke(context.Background(), model.Request{})
	require.Error(t, err)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, KindNonRetryable, invErr.Kind)
	assert.Equal(t, 0, invErr.StatusCode)
}

func TestInvoke_CancelledContextAbortsBackoff(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueStatusError(429, "rate limited")
	stub.QueueText("never reached")

	ctx, cancel := context.WithCancel(context.Background())
	iv := NewInvoker(stub, DefaultPolicy(), func(o *InvokerOptions) {
		o.Sleep = func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}
	})

	_, err := iv.Invoke(ctx, model.Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.CallCount())
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second, ExponentialBase: 3}
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 6*time.Second, p.Delay(2))
	assert.Equal(t, 18*time.Second, p.Delay(3))
}
