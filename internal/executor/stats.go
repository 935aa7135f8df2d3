package executor

import (
	"sync"
	"time"

	"mediaflow/internal/processor"
	"mediaflow/internal/protocol"
)

// Stats accumulates invocation timings for one processor instance.
type Stats struct {
	mu     sync.Mutex
	count  int64
	errors int64
	min    time.Duration
	max    time.Duration
	total  time.Duration
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Count  int64
	Errors int64
	Min    time.Duration
	Avg    time.Duration
	Max    time.Duration
}

func (s *Stats) Observe(d time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.total += d
	if failed {
		s.errors++
	}
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Snapshot{Count: s.count, Errors: s.errors, Min: s.min, Max: s.max}
	if s.count > 0 {
		out.Avg = s.total / time.Duration(s.count)
	}
	return out
}

// Payload renders the snapshot as a stats event for ref.
func (s Snapshot) Payload(ref processor.Ref) protocol.StatsPayload {
	return protocol.StatsPayload{
		Processor: ref.ClassName,
		Image:     ref.Image,
		Count:     s.Count,
		Errors:    s.Errors,
		MinMS:     ms(s.Min),
		AvgMS:     ms(s.Avg),
		MaxMS:     ms(s.Max),
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
