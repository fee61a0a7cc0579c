package ws

import (
	"sync"
	"time"

	"github.com/hearthside/gametable/internal/domain"
)

const (
	defaultSamplerCapacity = 256
	defaultPingInterval    = 2 * time.Second
)

// Sampler keeps a fixed-capacity, time-ordered ring of diagnostic events for
// one campaign. Recording never blocks the intent path; when the ring is
// full the oldest sample is evicted silently. High-frequency cursor pings
// are down-sampled to one per actor per interval.
type Sampler struct {
	mu       sync.Mutex
	buf      []domain.SampledEvent
	head     int // next write position
	size     int
	lastPing map[string]time.Time
	interval time.Duration

	now func() time.Time // test seam
}

func NewSampler(capacity int, pingInterval time.Duration) *Sampler {
	if capacity <= 0 {
		capacity = defaultSamplerCapacity
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &Sampler{
		buf:      make([]domain.SampledEvent, capacity),
		lastPing: make(map[string]time.Time),
		interval: pingInterval,
		now:      time.Now,
	}
}

// Record appends an event, stamping it if the caller left Timestamp zero.
func (s *Sampler) Record(ev domain.SampledEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now().UTC()
	}
	s.buf[s.head] = ev
	s.head = (s.head + 1) % len(s.buf)
	if s.size < len(s.buf) {
		s.size++
	}
}

// RecordThrottled records at most one event per actor per interval and
// reports whether the event was kept. Used for cursor-ping class traffic.
func (s *Sampler) RecordThrottled(ev domain.SampledEvent) bool {
	s.mu.Lock()
	now := s.now()
	last, ok := s.lastPing[ev.ActorUserID]
	if ok && now.Sub(last) < s.interval {
		s.mu.Unlock()
		return false
	}
	s.lastPing[ev.ActorUserID] = now
	s.mu.Unlock()

	s.Record(ev)
	return true
}

// Query returns retained events in chronological order, filtered by an
// optional lower timestamp bound (exclusive of nothing — events at exactly
// since are included) and an optional event type.
func (s *Sampler) Query(since time.Time, eventType string) []domain.SampledEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.SampledEvent, 0, s.size)
	start := s.head - s.size
	for i := 0; i < s.size; i++ {
		idx := (start + i + len(s.buf)) % len(s.buf)
		ev := s.buf[idx]
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		if eventType != "" && ev.EventType != eventType {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// CountSince counts retained events at or after the cutoff.
func (s *Sampler) CountSince(since time.Time) int {
	return len(s.Query(since, ""))
}

// ErrorsSince counts failed events strictly newer than now-window; an event
// exactly window old is excluded.
func (s *Sampler) ErrorsSince(window time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-window)
	s.mu.Unlock()

	count := 0
	for _, ev := range s.Query(time.Time{}, "") {
		if ev.Success {
			continue
		}
		if ev.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}
