package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorStampsUpdates(t *testing.T) {
	monitor := NewMonitor()
	assert.Zero(t, monitor.Count())

	// The key wins over whatever name the status carries, and a missing
	// timestamp is filled in.
	monitor.Update("transport", Status{Component: "wrong-name", Status: "healthy"})

	got, ok := monitor.Get("transport")
	require.True(t, ok)
	assert.Equal(t, "transport", got.Component)
	assert.False(t, got.Timestamp.IsZero())
}

func TestMonitorConvenienceUpdates(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("transport", "connected")
	monitor.UpdateUnhealthy("publisher", "circuit open")
	monitor.UpdateDegraded("tap", "queue filling")

	tests := []struct {
		component string
		message   string
		check     func(Status) bool
	}{
		{"transport", "connected", Status.IsHealthy},
		{"publisher", "circuit open", Status.IsUnhealthy},
		{"tap", "queue filling", Status.IsDegraded},
	}
	for _, tt := range tests {
		got, ok := monitor.Get(tt.component)
		require.True(t, ok, tt.component)
		assert.True(t, tt.check(got), tt.component)
		assert.Equal(t, tt.message, got.Message)
	}
}

func TestMonitorGetMissing(t *testing.T) {
	_, ok := NewMonitor().Get("nothing")
	assert.False(t, ok)
}

func TestMonitorGetAllReturnsCopy(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("transport", "ok")
	monitor.UpdateHealthy("tap", "ok")

	all := monitor.GetAll()
	require.Len(t, all, 2)

	all["transport"] = Status{Component: "mutated"}
	got, _ := monitor.Get("transport")
	assert.Equal(t, "transport", got.Component, "internal map must stay untouched")
}

func TestMonitorRemoveAndClear(t *testing.T) {
	monitor := NewMonitor()
	monitor.Remove("nothing")

	monitor.UpdateHealthy("transport", "ok")
	monitor.UpdateHealthy("tap", "ok")
	require.Equal(t, 2, monitor.Count())

	monitor.Remove("transport")
	assert.Equal(t, 1, monitor.Count())
	_, ok := monitor.Get("transport")
	assert.False(t, ok)

	monitor.Clear()
	assert.Zero(t, monitor.Count())
	assert.Empty(t, monitor.GetAll())
}

func TestMonitorAggregateHealth(t *testing.T) {
	monitor := NewMonitor()

	agg := monitor.AggregateHealth("sigtap")
	assert.True(t, agg.IsHealthy(), "empty monitor aggregates healthy")
	assert.Equal(t, "sigtap", agg.Component)

	monitor.UpdateHealthy("transport", "connected")
	monitor.UpdateHealthy("tap", "decoding")
	assert.True(t, monitor.AggregateHealth("sigtap").IsHealthy())

	monitor.UpdateUnhealthy("publisher", "down")
	assert.True(t, monitor.AggregateHealth("sigtap").IsUnhealthy())

	monitor.Remove("publisher")
	monitor.UpdateDegraded("tap", "slow")
	assert.True(t, monitor.AggregateHealth("sigtap").IsDegraded())
}

func TestMonitorConcurrentUse(t *testing.T) {
	monitor := NewMonitor()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				switch j % 5 {
				case 0:
					monitor.UpdateHealthy("transport", "ok")
				case 1:
					monitor.UpdateUnhealthy("transport", "down")
				case 2:
					monitor.Remove("transport")
				case 3:
					_ = monitor.GetAll()
				case 4:
					_ = monitor.AggregateHealth("sigtap")
				}
				time.Sleep(time.Microsecond)
			}
		}()
	}
	wg.Wait()

	monitor.UpdateHealthy("transport", "settled")
	got, ok := monitor.Get("transport")
	require.True(t, ok)
	assert.Equal(t, "settled", got.Message)
}
