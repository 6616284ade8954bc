package buffer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metric"
)

// packet mirrors the shape the transport queues: an addressed byte payload.
type packet struct {
	subject string
	data    []byte
}

func testPacket(n int) packet {
	return packet{
		subject: fmt.Sprintf("acq.events.7.%d", n),
		data:    []byte{byte(n), 0x01, 0x00, 0x07},
	}
}

func newTestRing(t *testing.T, capacity int, options ...Option[packet]) Buffer[packet] {
	t.Helper()
	b, err := NewCircularBuffer[packet](capacity, options...)
	require.NoError(t, err)
	return b
}

func TestFIFOOrder(t *testing.T) {
	b := newTestRing(t, 8)

	for i := 1; i <= 5; i++ {
		require.NoError(t, b.Write(testPacket(i)))
	}
	assert.Equal(t, 5, b.Size())

	for i := 1; i <= 5; i++ {
		got, ok := b.Read()
		require.True(t, ok)
		assert.Equal(t, testPacket(i), got)
	}

	_, ok := b.Read()
	assert.False(t, ok, "read from drained buffer should miss")
	assert.True(t, b.IsEmpty())
}

func TestWraparoundKeepsOrder(t *testing.T) {
	b := newTestRing(t, 4)

	// Fill, drain half, fill again so the write position wraps.
	for i := 1; i <= 4; i++ {
		require.NoError(t, b.Write(testPacket(i)))
	}
	b.Read()
	b.Read()
	require.NoError(t, b.Write(testPacket(5)))
	require.NoError(t, b.Write(testPacket(6)))
	require.True(t, b.IsFull())

	for i := 3; i <= 6; i++ {
		got, ok := b.Read()
		require.True(t, ok)
		assert.Equal(t, testPacket(i).subject, got.subject)
	}
}

func TestReadBatch(t *testing.T) {
	b := newTestRing(t, 16)

	for i := 1; i <= 6; i++ {
		require.NoError(t, b.Write(testPacket(i)))
	}

	batch := b.ReadBatch(4)
	require.Len(t, batch, 4)
	assert.Equal(t, testPacket(1), batch[0])
	assert.Equal(t, testPacket(4), batch[3])

	// Asking for more than remains returns what is there.
	batch = b.ReadBatch(100)
	require.Len(t, batch, 2)
	assert.Equal(t, testPacket(6), batch[1])

	assert.Nil(t, b.ReadBatch(10), "batch from empty buffer")
	assert.Nil(t, b.ReadBatch(0), "non-positive max")
	assert.Nil(t, b.ReadBatch(-3), "non-positive max")
}

func TestPeekDoesNotConsume(t *testing.T) {
	b := newTestRing(t, 4)

	_, ok := b.Peek()
	assert.False(t, ok)

	require.NoError(t, b.Write(testPacket(1)))

	first, ok := b.Peek()
	require.True(t, ok)
	second, ok := b.Peek()
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, b.Size())

	assert.EqualValues(t, 2, b.Stats().Peeks())
}

func TestDropOldestEvicts(t *testing.T) {
	var mu sync.Mutex
	var evicted []packet

	b := newTestRing(t, 3,
		WithOverflowPolicy[packet](DropOldest),
		WithDropCallback[packet](func(p packet) {
			mu.Lock()
			evicted = append(evicted, p)
			mu.Unlock()
		}),
	)

	for i := 1; i <= 5; i++ {
		require.NoError(t, b.Write(testPacket(i)))
	}

	// The two oldest made room for packets 4 and 5.
	mu.Lock()
	require.Len(t, evicted, 2)
	assert.Equal(t, testPacket(1), evicted[0])
	assert.Equal(t, testPacket(2), evicted[1])
	mu.Unlock()

	got, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, testPacket(3), got)

	assert.EqualValues(t, 2, b.Stats().Drops())
	assert.EqualValues(t, 2, b.Stats().Overflows())
}

func TestDropNewestRejects(t *testing.T) {
	var mu sync.Mutex
	var rejected []packet

	b := newTestRing(t, 2,
		WithOverflowPolicy[packet](DropNewest),
		WithDropCallback[packet](func(p packet) {
			mu.Lock()
			rejected = append(rejected, p)
			mu.Unlock()
		}),
	)

	require.NoError(t, b.Write(testPacket(1)))
	require.NoError(t, b.Write(testPacket(2)))
	require.NoError(t, b.Write(testPacket(3)), "overflow write still returns nil")

	mu.Lock()
	require.Len(t, rejected, 1)
	assert.Equal(t, testPacket(3), rejected[0])
	mu.Unlock()

	// The resident packets were untouched.
	got, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, testPacket(1), got)
}

func TestBlockPolicyWaitsForReader(t *testing.T) {
	b := newTestRing(t, 1, WithOverflowPolicy[packet](Block))
	require.NoError(t, b.Write(testPacket(1)))

	written := make(chan error, 1)
	go func() {
		written <- b.Write(testPacket(2))
	}()

	// The writer must still be parked while the buffer is full.
	select {
	case err := <-written:
		t.Fatalf("write completed against a full buffer: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	_, ok := b.Read()
	require.True(t, ok)

	select {
	case err := <-written:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked writer never woke after a read freed a slot")
	}

	got, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, testPacket(2), got)
}

func TestWriteWithTimeoutExpires(t *testing.T) {
	b := newTestRing(t, 1, WithOverflowPolicy[packet](Block))
	require.NoError(t, b.Write(testPacket(1)))

	start := time.Now()
	err := b.WriteWithTimeout(testPacket(2), 30*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWriteWithContextCancel(t *testing.T) {
	b := newTestRing(t, 1, WithOverflowPolicy[packet](Block))
	require.NoError(t, b.Write(testPacket(1)))

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- b.WriteWithContext(ctx, testPacket(2))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled writer never returned")
	}
}

func TestWriteWithTimeoutNonBlockingPolicies(t *testing.T) {
	// Outside the Block policy the timeout variants are plain writes.
	b := newTestRing(t, 1, WithOverflowPolicy[packet](DropOldest))
	require.NoError(t, b.Write(testPacket(1)))

	err := b.WriteWithTimeout(testPacket(2), time.Nanosecond)
	require.NoError(t, err)

	got, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, testPacket(2), got)
}

func TestCloseWakesBlockedWriter(t *testing.T) {
	b := newTestRing(t, 1, WithOverflowPolicy[packet](Block))
	require.NoError(t, b.Write(testPacket(1)))

	result := make(chan error, 1)
	go func() {
		result <- b.Write(testPacket(2))
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-result:
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrShuttingDown)
	case <-time.After(2 * time.Second):
		t.Fatal("closed buffer left the writer parked")
	}
}

func TestWriteAfterClose(t *testing.T) {
	b := newTestRing(t, 4)
	require.NoError(t, b.Write(testPacket(1)))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")

	err := b.Write(testPacket(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrShuttingDown)

	// Reads still drain what was queued before the close.
	got, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, testPacket(1), got)
}

func TestClearFeedsDropCallback(t *testing.T) {
	var mu sync.Mutex
	var cleared []packet

	b := newTestRing(t, 8, WithDropCallback[packet](func(p packet) {
		mu.Lock()
		cleared = append(cleared, p)
		mu.Unlock()
	}))

	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Write(testPacket(i)))
	}
	b.Clear()

	assert.True(t, b.IsEmpty())
	mu.Lock()
	require.Len(t, cleared, 3)
	assert.Equal(t, testPacket(1), cleared[0])
	assert.Equal(t, testPacket(3), cleared[2])
	mu.Unlock()

	// The buffer is fully usable after a clear.
	require.NoError(t, b.Write(testPacket(9)))
	got, ok := b.Read()
	require.True(t, ok)
	assert.Equal(t, testPacket(9), got)
}

func TestStatisticsTracking(t *testing.T) {
	b := newTestRing(t, 4)

	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Write(testPacket(i)))
	}
	b.Read()
	b.Peek()

	stats := b.Stats()
	assert.EqualValues(t, 3, stats.Writes())
	assert.EqualValues(t, 1, stats.Reads())
	assert.EqualValues(t, 1, stats.Peeks())
	assert.EqualValues(t, 2, stats.CurrentSize())
	assert.EqualValues(t, 3, stats.MaxSize(), "high-water mark outlives the drain")
	assert.Zero(t, stats.Drops())

	summary := stats.Summary()
	assert.EqualValues(t, 3, summary.Writes)
	assert.EqualValues(t, 3, summary.MaxSize)
	assert.Greater(t, summary.Uptime, time.Duration(0))

	stats.Reset()
	assert.Zero(t, stats.Writes())
	assert.Zero(t, stats.MaxSize())
}

func TestUtilization(t *testing.T) {
	b := newTestRing(t, 4)
	require.NoError(t, b.Write(testPacket(1)))
	require.NoError(t, b.Write(testPacket(2)))

	assert.InDelta(t, 0.5, b.Stats().Utilization(int64(b.Capacity())), 1e-9)
	assert.Zero(t, b.Stats().Utilization(0), "zero capacity guards the division")
}

func TestZeroCapacityClampedToOne(t *testing.T) {
	b := newTestRing(t, 0)
	assert.Equal(t, 1, b.Capacity())

	require.NoError(t, b.Write(testPacket(1)))
	assert.True(t, b.IsFull())
}

func TestConcurrentProducersAndConsumer(t *testing.T) {
	const producers = 4
	const perProducer = 200

	b := newTestRing(t, 64, WithOverflowPolicy[packet](Block))

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := b.Write(testPacket(p*perProducer + i)); err != nil {
					t.Errorf("producer %d: %v", p, err)
					return
				}
			}
		}(p)
	}

	received := make(map[string]struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.After(5 * time.Second)
		for len(received) < producers*perProducer {
			select {
			case <-deadline:
				return
			default:
			}
			for _, p := range b.ReadBatch(32) {
				received[p.subject+string(p.data)] = struct{}{}
			}
		}
	}()

	wg.Wait()
	<-done

	assert.Len(t, received, producers*perProducer, "every queued packet must surface exactly once")
}

func TestMetricsMirror(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	b, err := NewCircularBuffer[packet](2,
		WithOverflowPolicy[packet](DropOldest),
		WithMetrics[packet](registry, "publisher"),
	)
	require.NoError(t, err)

	require.NoError(t, b.Write(testPacket(1)))
	require.NoError(t, b.Write(testPacket(2)))
	require.NoError(t, b.Write(testPacket(3))) // evicts one
	b.Read()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[fam.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[fam.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 3.0, values["sigstreams_buffer_writes_total"])
	assert.Equal(t, 1.0, values["sigstreams_buffer_reads_total"])
	assert.Equal(t, 1.0, values["sigstreams_buffer_drops_total"])
	assert.Equal(t, 1.0, values["sigstreams_buffer_size"])
	assert.InDelta(t, 0.5, values["sigstreams_buffer_utilization"], 1e-9)
}

func TestMetricsRegistrationCollision(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	_, err := NewCircularBuffer[packet](2, WithMetrics[packet](registry, "tap"))
	require.NoError(t, err)

	// A second buffer under the same component name collides in the
	// registry and construction surfaces that instead of double counting.
	_, err = NewCircularBuffer[packet](2, WithMetrics[packet](registry, "tap"))
	require.Error(t, err)
}
