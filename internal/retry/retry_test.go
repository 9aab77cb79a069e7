package retry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/internal/retry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPolicy_Delay(t *testing.T) {
	p := retry.DefaultPolicy
	zero := func() float64 { return 0 }
	almostOne := func() float64 { return 0.999 }

	assert.Equal(t, 2*time.Second, p.Delay(1, zero))
	assert.Equal(t, 4*time.Second, p.Delay(2, zero))
	assert.Equal(t, 8*time.Second, p.Delay(3, zero))
	assert.Equal(t, 10*time.Second, p.Delay(4, zero), "capped at MaxDelay")

	d := p.Delay(1, almostOne)
	assert.Greater(t, d, 2*time.Second)
	assert.Less(t, d, 3*time.Second)

	assert.Equal(t, 10*time.Second, p.Delay(4, almostOne), "jitter never exceeds the cap")
}

func TestDo_SucceedsOnThirdAttempt(t *testing.T) {
	var waits []time.Duration
	r := retry.New(retry.DefaultPolicy, quietLogger(),
		retry.WithRand(func() float64 { return 0 }),
		retry.WithSleeper(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
	)

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	r := retry.New(retry.DefaultPolicy, quietLogger(),
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)

	boom := errors.New("boom")
	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "never exceeds MaxAttempts")
	assert.ErrorIs(t, err, boom)

	var ae *retry.AttemptsError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 3, ae.Attempts)
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := retry.New(retry.DefaultPolicy, quietLogger())

	calls := 0
	err := r.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNew_ClampsAttempts(t *testing.T) {
	r := retry.New(retry.Policy{}, nil)
	assert.Equal(t, 1, r.Policy().MaxAttempts)
}
