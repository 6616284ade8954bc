package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitBeforeStart(t *testing.T) {
	pool, _ := newCountingPool(2, 10)

	err := pool.Submit(decodeJob{seq: 1})
	require.ErrorIs(t, err, ErrPoolNotStarted)

	// The exact sentinel, not a wrapped copy.
	assert.Equal(t, ErrPoolNotStarted, err)
}

func TestDoubleStart(t *testing.T) {
	pool, _ := newCountingPool(2, 10)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
}

func TestSubmitAfterStop(t *testing.T) {
	pool, _ := newCountingPool(2, 10)

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(5*time.Second))

	assert.ErrorIs(t, pool.Submit(decodeJob{seq: 1}), ErrPoolStopped)
}

func TestSubmitFullQueue(t *testing.T) {
	pool := NewPool(1, 2, func(_ context.Context, _ decodeJob) error {
		time.Sleep(time.Second)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	var full error
	for i := range 10 {
		if err := pool.Submit(decodeJob{seq: i}); err != nil {
			full = err
			break
		}
	}
	assert.ErrorIs(t, full, ErrQueueFull)
}

func TestStopTimeout(t *testing.T) {
	pool := NewPool(1, 10, func(ctx context.Context, _ decodeJob) error {
		select {
		case <-time.After(10 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(decodeJob{seq: 1}))

	// Let the worker pick the job up, then stop with a deadline far below
	// its processing time.
	time.Sleep(10 * time.Millisecond)
	assert.ErrorIs(t, pool.Stop(50*time.Millisecond), ErrStopTimeout)
}
