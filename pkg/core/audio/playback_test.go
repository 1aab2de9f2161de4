package audio

import (
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	writes [][]byte
	wrote  chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{wrote: make(chan struct{}, 16)}
}

func (r *recordingSink) Write(pcm []byte) error {
	r.mu.Lock()
	r.writes = append(r.writes, pcm)
	r.mu.Unlock()
	r.wrote <- struct{}{}
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// newFrozenScheduler pins the scheduler clock far in the future so queued
// chunks never reach the sink during cursor-math tests.
func newFrozenScheduler(t *testing.T, sink Sink) (*Scheduler, time.Time) {
	t.Helper()
	base := time.Now().Add(time.Hour)
	s := NewScheduler(PlaybackConfig(), sink)
	s.now = func() time.Time { return base }
	t.Cleanup(s.Close)
	return s, base
}

func TestScheduleCursorAdvances(t *testing.T) {
	s, base := newFrozenScheduler(t, newRecordingSink())
	cfg := PlaybackConfig()

	// 100ms of audio at the playback rate.
	chunk := make([]byte, cfg.BytesPerSecond()/10)

	start1, err := s.Schedule(chunk)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !start1.Equal(base) {
		t.Errorf("first start = %v, want %v", start1, base)
	}

	start2, err := s.Schedule(chunk)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	wantStart2 := base.Add(100 * time.Millisecond)
	if !start2.Equal(wantStart2) {
		t.Errorf("second start = %v, want %v", start2, wantStart2)
	}
	if got := s.Cursor(); !got.Equal(wantStart2.Add(100 * time.Millisecond)) {
		t.Errorf("cursor = %v, want %v", got, wantStart2.Add(100*time.Millisecond))
	}
}

func TestScheduleStartsAtNowAfterGap(t *testing.T) {
	sink := newRecordingSink()
	s, base := newFrozenScheduler(t, sink)
	cfg := PlaybackConfig()
	chunk := make([]byte, cfg.BytesPerSecond()/10)

	if _, err := s.Schedule(chunk); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Arrival well after the previous chunk finished: start at now, not at
	// the stale cursor.
	late := base.Add(5 * time.Second)
	s.now = func() time.Time { return late }
	start, err := s.Schedule(chunk)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !start.Equal(late) {
		t.Errorf("start = %v, want %v", start, late)
	}
}

func TestScheduleNoOverlap(t *testing.T) {
	s, _ := newFrozenScheduler(t, newRecordingSink())
	cfg := PlaybackConfig()

	sizes := []int{cfg.BytesPerSecond() / 10, cfg.BytesPerSecond() / 4, cfg.BytesPerSecond() / 20}
	var prevEnd time.Time
	for i, size := range sizes {
		start, err := s.Schedule(make([]byte, size))
		if err != nil {
			t.Fatalf("Schedule %d: %v", i, err)
		}
		if i > 0 && start.Before(prevEnd) {
			t.Errorf("chunk %d starts %v before previous end %v", i, start, prevEnd)
		}
		prevEnd = start.Add(cfg.Duration(size))
	}
}

func TestScheduleRejectsUndecodable(t *testing.T) {
	s, _ := newFrozenScheduler(t, newRecordingSink())

	before := s.Cursor()
	for _, pcm := range [][]byte{nil, {}, {0x01}, {0x01, 0x02, 0x03}} {
		if _, err := s.Schedule(pcm); err == nil {
			t.Errorf("Schedule(%d bytes) = nil error, want playback error", len(pcm))
		}
	}
	if got := s.Cursor(); !got.Equal(before) {
		t.Errorf("cursor moved to %v on rejected chunk, want %v", got, before)
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending = %d, want 0", got)
	}
}

func TestCancelPendingDiscardsQueue(t *testing.T) {
	sink := newRecordingSink()
	s, base := newFrozenScheduler(t, sink)
	cfg := PlaybackConfig()
	chunk := make([]byte, cfg.BytesPerSecond()/10)

	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(chunk); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	if got := s.Pending(); got != 3 {
		t.Fatalf("Pending = %d, want 3", got)
	}

	s.CancelPending()
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending after cancel = %d, want 0", got)
	}
	if got := s.Cursor(); !got.Equal(base) {
		t.Errorf("cursor after cancel = %v, want now", got)
	}

	// Cancelling an already-cancelled timeline schedules nothing further.
	s.CancelPending()
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending after second cancel = %d, want 0", got)
	}
	if got := sink.count(); got != 0 {
		t.Errorf("sink received %d writes after cancel, want 0", got)
	}

	// A fresh chunk after cancel starts the timeline again.
	start, err := s.Schedule(chunk)
	if err != nil {
		t.Fatalf("Schedule after cancel: %v", err)
	}
	if !start.Equal(base) {
		t.Errorf("start after cancel = %v, want %v", start, base)
	}
}

func TestSchedulerWritesToSink(t *testing.T) {
	sink := newRecordingSink()
	s := NewScheduler(PlaybackConfig(), sink)
	defer s.Close()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if _, err := s.Schedule(pcm); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case <-sink.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the chunk")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.writes) != 1 || len(sink.writes[0]) != len(pcm) {
		t.Errorf("writes = %v, want one %d-byte chunk", sink.writes, len(pcm))
	}
}

func TestScheduleAfterClose(t *testing.T) {
	s := NewScheduler(PlaybackConfig(), newRecordingSink())
	s.Close()

	if _, err := s.Schedule([]byte{0x01, 0x02}); err == nil {
		t.Error("Schedule after Close = nil error, want playback error")
	}
}
