package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks buffer activity. Operation counters are atomic; the fill
// level and the start time sit behind a mutex because they change together.
type Statistics struct {
	nWrites    atomic.Int64
	nReads     atomic.Int64
	nPeeks     atomic.Int64
	nOverflows atomic.Int64
	nDrops     atomic.Int64

	mu       sync.RWMutex
	began    time.Time
	fill     int64
	peakFill int64
}

// NewStatistics creates a tracker with the clock started now.
func NewStatistics() *Statistics {
	return &Statistics{began: time.Now()}
}

// Recording side, called by the buffer under its own lock.

// Write records one write operation.
func (s *Statistics) Write() { s.nWrites.Add(1) }

// Read records one read operation.
func (s *Statistics) Read() { s.nReads.Add(1) }

// Peek records one peek operation.
func (s *Statistics) Peek() { s.nPeeks.Add(1) }

// Overflow records one full-buffer write.
func (s *Statistics) Overflow() { s.nOverflows.Add(1) }

// Drop records one item discarded by the overflow policy.
func (s *Statistics) Drop() { s.nDrops.Add(1) }

// UpdateSize records the current fill level and advances the high-water
// mark when exceeded.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.fill = size
	if size > s.peakFill {
		s.peakFill = size
	}
	s.mu.Unlock()
}

// Reading side.

// Writes returns the total number of write operations.
func (s *Statistics) Writes() int64 { return s.nWrites.Load() }

// Reads returns the total number of read operations.
func (s *Statistics) Reads() int64 { return s.nReads.Load() }

// Peeks returns the total number of peek operations.
func (s *Statistics) Peeks() int64 { return s.nPeeks.Load() }

// Overflows returns the total number of full-buffer writes.
func (s *Statistics) Overflows() int64 { return s.nOverflows.Load() }

// Drops returns the total number of discarded items.
func (s *Statistics) Drops() int64 { return s.nDrops.Load() }

// CurrentSize returns the fill level as of the last update.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fill
}

// MaxSize returns the largest fill level seen since the clock started.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakFill
}

// Uptime returns how long the tracker has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.began)
}

// perSecond averages a counter over the tracker's lifetime.
func (s *Statistics) perSecond(n int64) float64 {
	elapsed := s.Uptime()
	if elapsed == 0 {
		return 0.0
	}
	return float64(n) / elapsed.Seconds()
}

// perWrite expresses a counter as a fraction of all writes.
func (s *Statistics) perWrite(n int64) float64 {
	writes := s.Writes()
	if writes == 0 {
		return 0.0
	}
	return float64(n) / float64(writes)
}

// Throughput returns the average writes per second since the clock started.
func (s *Statistics) Throughput() float64 { return s.perSecond(s.Writes()) }

// ReadThroughput returns the average reads per second since the clock started.
func (s *Statistics) ReadThroughput() float64 { return s.perSecond(s.Reads()) }

// DropRate returns the fraction of writes that dropped an item, 0.0 to 1.0.
func (s *Statistics) DropRate() float64 { return s.perWrite(s.Drops()) }

// OverflowRate returns the fraction of writes that hit a full buffer, 0.0 to 1.0.
func (s *Statistics) OverflowRate() float64 { return s.perWrite(s.Overflows()) }

// Utilization returns the current fill level against the given capacity,
// 0.0 to 1.0.
func (s *Statistics) Utilization(capacity int64) float64 {
	if capacity == 0 {
		return 0.0
	}
	return float64(s.CurrentSize()) / float64(capacity)
}

// Reset zeroes every counter and restarts the clock.
func (s *Statistics) Reset() {
	s.nWrites.Store(0)
	s.nReads.Store(0)
	s.nPeeks.Store(0)
	s.nOverflows.Store(0)
	s.nDrops.Store(0)

	s.mu.Lock()
	s.began = time.Now()
	s.fill = 0
	s.peakFill = 0
	s.mu.Unlock()
}

// StatsSummary is a point-in-time snapshot of every statistic.
type StatsSummary struct {
	Writes         int64         `json:"writes"`
	Reads          int64         `json:"reads"`
	Peeks          int64         `json:"peeks"`
	Overflows      int64         `json:"overflows"`
	Drops          int64         `json:"drops"`
	CurrentSize    int64         `json:"current_size"`
	MaxSize        int64         `json:"max_size"`
	Throughput     float64       `json:"throughput"`
	ReadThroughput float64       `json:"read_throughput"`
	DropRate       float64       `json:"drop_rate"`
	OverflowRate   float64       `json:"overflow_rate"`
	Uptime         time.Duration `json:"uptime"`
}

// Summary snapshots all statistics at once.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:         s.Writes(),
		Reads:          s.Reads(),
		Peeks:          s.Peeks(),
		Overflows:      s.Overflows(),
		Drops:          s.Drops(),
		CurrentSize:    s.CurrentSize(),
		MaxSize:        s.MaxSize(),
		Throughput:     s.Throughput(),
		ReadThroughput: s.ReadThroughput(),
		DropRate:       s.DropRate(),
		OverflowRate:   s.OverflowRate(),
		Uptime:         s.Uptime(),
	}
}
