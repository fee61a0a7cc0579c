package ws

import (
	"fmt"
	"testing"
	"time"

	"github.com/hearthside/gametable/internal/domain"
)

func sampleAt(ts time.Time, eventType string, success bool) domain.SampledEvent {
	return domain.SampledEvent{
		Timestamp:  ts,
		CampaignID: "camp-1",
		EventType:  eventType,
		Success:    success,
	}
}

func TestSamplerEvictsOldestAtCapacity(t *testing.T) {
	s := NewSampler(4, time.Second)
	base := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		s.Record(sampleAt(base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("ev-%d", i), true))
	}

	got := s.Query(time.Time{}, "")
	if len(got) != 4 {
		t.Fatalf("retained = %d, want capacity 4", len(got))
	}
	if got[0].EventType != "ev-2" || got[3].EventType != "ev-5" {
		t.Fatalf("wrong window retained: first=%s last=%s", got[0].EventType, got[3].EventType)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatal("query result not chronological")
		}
	}
}

func TestSamplerQueryFilters(t *testing.T) {
	s := NewSampler(16, time.Second)
	base := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	s.Record(sampleAt(base, IntentDiceRoll, true))
	s.Record(sampleAt(base.Add(time.Minute), IntentChatSend, true))
	s.Record(sampleAt(base.Add(2*time.Minute), IntentDiceRoll, false))

	if got := s.Query(time.Time{}, IntentDiceRoll); len(got) != 2 {
		t.Errorf("type filter returned %d, want 2", len(got))
	}
	// an event exactly at since is included
	if got := s.Query(base.Add(time.Minute), ""); len(got) != 2 {
		t.Errorf("since filter returned %d, want 2", len(got))
	}
	if got := s.Query(base.Add(time.Minute), IntentDiceRoll); len(got) != 1 {
		t.Errorf("combined filter returned %d, want 1", len(got))
	}
}

func TestSamplerErrorWindowBoundary(t *testing.T) {
	s := NewSampler(16, time.Second)
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	// exactly 15:00 old: outside; 14:59 old: inside
	s.Record(sampleAt(now.Add(-15*time.Minute), IntentDiceRoll, false))
	s.Record(sampleAt(now.Add(-14*time.Minute-59*time.Second), IntentDiceRoll, false))
	s.Record(sampleAt(now.Add(-time.Minute), IntentDiceRoll, true))

	if got := s.ErrorsSince(15 * time.Minute); got != 1 {
		t.Errorf("errors in 15m = %d, want 1", got)
	}
	if got := s.ErrorsSince(60 * time.Minute); got != 2 {
		t.Errorf("errors in 60m = %d, want 2", got)
	}
}

func TestSamplerThrottlesPerActor(t *testing.T) {
	s := NewSampler(16, 2*time.Second)
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ping := func(actor string) bool {
		return s.RecordThrottled(domain.SampledEvent{
			CampaignID:  "camp-1",
			EventType:   IntentCursorPing,
			ActorUserID: actor,
			Success:     true,
		})
	}

	if !ping("alice") {
		t.Fatal("first ping should be kept")
	}
	if ping("alice") {
		t.Fatal("second ping inside the interval should be dropped")
	}
	if !ping("bob") {
		t.Fatal("throttle is per actor; bob's first ping should be kept")
	}

	now = now.Add(2 * time.Second)
	if !ping("alice") {
		t.Fatal("ping after the interval should be kept")
	}

	if got := s.Query(time.Time{}, IntentCursorPing); len(got) != 3 {
		t.Fatalf("sampled pings = %d, want 3", len(got))
	}
}
