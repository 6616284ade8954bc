package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/neuroacq/sigstreams/metric"
)

// decodeJob is the work item used across pool tests. It mimics a queued
// packet decode: an ordering number, an artificial processing time and a
// flag marking jobs whose decode should fail.
type decodeJob struct {
	seq  int
	hold time.Duration
	bad  bool
}

// newCountingPool builds a pool whose processor counts completed jobs,
// honouring hold and bad on each job.
func newCountingPool(workers, queueSize int) (*Pool[decodeJob], *atomic.Int64) {
	var done atomic.Int64
	pool := NewPool(workers, queueSize, func(_ context.Context, job decodeJob) error {
		if job.hold > 0 {
			time.Sleep(job.hold)
		}
		if job.bad {
			return errors.New("decode failed")
		}
		done.Add(1)
		return nil
	})
	return pool, &done
}

func TestPoolSizing(t *testing.T) {
	pool, _ := newCountingPool(5, 100)
	assert.Equal(t, 5, pool.Stats().Workers)
	assert.Equal(t, 100, pool.Stats().QueueSize)

	pool, _ = newCountingPool(0, 100)
	assert.Equal(t, 10, pool.Stats().Workers, "worker count falls back to the default")

	pool, _ = newCountingPool(5, -1)
	assert.Equal(t, 1000, pool.Stats().QueueSize, "queue size falls back to the default")
}

func TestPoolNilProcessorPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[decodeJob](5, 100, nil)
	})
}

func TestPoolLifecycle(t *testing.T) {
	pool, done := newCountingPool(2, 10)

	require.NoError(t, pool.Start(context.Background()))

	for i := range 5 {
		require.NoError(t, pool.Submit(decodeJob{seq: i}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.EqualValues(t, 5, done.Load(), "queued jobs finish before Stop returns")

	assert.Error(t, pool.Submit(decodeJob{seq: 99}), "submit after stop is rejected")
}

func TestPoolStopDrainsQueue(t *testing.T) {
	pool, done := newCountingPool(1, 20)
	require.NoError(t, pool.Start(context.Background()))

	// More work than the single worker can finish immediately.
	for i := range 10 {
		require.NoError(t, pool.Submit(decodeJob{seq: i, hold: 5 * time.Millisecond}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.EqualValues(t, 10, done.Load())
}

func TestPoolFullQueueDrops(t *testing.T) {
	pool, _ := newCountingPool(1, 2)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	accepted, rejected := 0, 0
	for i := range 5 {
		if err := pool.Submit(decodeJob{seq: i, hold: 200 * time.Millisecond}); err != nil {
			rejected++
		} else {
			accepted++
		}
	}

	assert.Positive(t, accepted)
	assert.Positive(t, rejected, "slow worker and a 2-slot queue must reject some of 5 jobs")
	assert.EqualValues(t, rejected, pool.Stats().Dropped)
}

func TestPoolCountsFailures(t *testing.T) {
	pool, done := newCountingPool(2, 10)
	require.NoError(t, pool.Start(context.Background()))

	for i := range 10 {
		require.NoError(t, pool.Submit(decodeJob{seq: i, bad: i%2 == 0}))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.EqualValues(t, 10, stats.Processed)
	assert.EqualValues(t, 5, stats.Failed)
	assert.EqualValues(t, 5, done.Load())
}

func TestPoolContextCancelStopsWorkers(t *testing.T) {
	pool, done := newCountingPool(2, 10)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	for i := range 5 {
		require.NoError(t, pool.Submit(decodeJob{seq: i, hold: 50 * time.Millisecond}))
	}

	// Cancel while work is still queued. Workers exit without draining, so
	// Stop must still return promptly.
	time.Sleep(10 * time.Millisecond)
	cancel()

	require.NoError(t, pool.Stop(5*time.Second))
	t.Logf("finished %d of 5 jobs before cancellation", done.Load())
}

func TestPoolConcurrentSubmitters(t *testing.T) {
	pool, done := newCountingPool(5, 200)
	require.NoError(t, pool.Start(context.Background()))

	var g errgroup.Group
	for s := range 10 {
		g.Go(func() error {
			for j := range 10 {
				if err := pool.Submit(decodeJob{seq: s*10 + j}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, pool.Stop(5*time.Second))
	assert.EqualValues(t, 100, done.Load())
}

func TestPoolStatsSnapshot(t *testing.T) {
	pool, _ := newCountingPool(3, 50)

	stats := pool.Stats()
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 50, stats.QueueSize)
	assert.Zero(t, stats.Submitted)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	for i := range 10 {
		require.NoError(t, pool.Submit(decodeJob{seq: i, hold: time.Millisecond}))
	}

	assert.Eventually(t, func() bool {
		return pool.Stats().Processed == 10
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 10, pool.Stats().Submitted)
}

func TestPoolPublishesMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	var done atomic.Int64
	pool := NewPool(2, 10, func(_ context.Context, _ decodeJob) error {
		done.Add(1)
		return nil
	}, WithMetricsRegistry[decodeJob](registry, "tap_decode"))

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(decodeJob{seq: 1}))
	require.NoError(t, pool.Stop(5*time.Second))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	series := map[string]float64{}
	for _, fam := range families {
		if len(fam.GetMetric()) == 1 && fam.GetMetric()[0].GetCounter() != nil {
			series[fam.GetName()] = fam.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, series["tap_decode_submitted_total"])
	assert.Equal(t, 1.0, series["tap_decode_processed_total"])
	assert.Equal(t, 0.0, series["tap_decode_failed_total"])
}
