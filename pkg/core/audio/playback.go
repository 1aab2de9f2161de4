package audio

import (
	"sync"
	"time"

	"github.com/railvoice/conductor/pkg/core"
)

// Sink receives decoded PCM16 audio at its scheduled start time.
type Sink interface {
	Write(pcm []byte) error
}

type scheduledChunk struct {
	pcm        []byte
	start      time.Time
	generation uint64
}

// Scheduler places inbound PCM chunks onto a continuous output timeline.
// Chunk k+1 starts at max(now, end of chunk k): back-to-back with no gap
// when chunks arrive promptly, and never overlapping regardless of arrival
// jitter. The playback cursor is the single piece of state touched from two
// concurrent contexts (scheduling and cancellation) and is guarded by one
// mutex so a cancellation can never race it backward.
type Scheduler struct {
	cfg  Config
	sink Sink

	mu         sync.Mutex
	cursor     time.Time
	queue      []scheduledChunk
	generation uint64
	closed     bool

	wake chan struct{}
	done chan struct{}

	// now is swapped in tests.
	now func() time.Time
}

// NewScheduler creates a scheduler writing to sink and starts its runner.
func NewScheduler(cfg Config, sink Sink) *Scheduler {
	s := &Scheduler{
		cfg:  cfg,
		sink: sink,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		now:  time.Now,
	}
	go s.run()
	return s
}

// Schedule queues one decoded chunk for playback. Chunks arrive in
// arbitrary sizes, not aligned to any frame boundary; each is scheduled as
// a unit. An odd-length payload cannot hold complete 16-bit samples and is
// dropped with the cursor left unchanged.
func (s *Scheduler) Schedule(pcm []byte) (time.Time, error) {
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return time.Time{}, core.NewPlaybackError("undecodable audio payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return time.Time{}, core.NewPlaybackError("scheduler closed")
	}

	now := s.now()
	start := now
	if s.cursor.After(start) {
		start = s.cursor
	}
	s.cursor = start.Add(s.cfg.Duration(len(pcm)))
	s.queue = append(s.queue, scheduledChunk{pcm: pcm, start: start, generation: s.generation})

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return start, nil
}

// CancelPending discards every chunk that has not yet started and resets
// the cursor to the current time. Safe to call at any time from the
// transport, concurrently with arriving chunks: chunks scheduled before the
// cancel belong to an older generation and are never played.
func (s *Scheduler) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.generation++
	s.cursor = s.now()
}

// Pending returns the number of chunks scheduled but not yet started.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Cursor returns the earliest time the next chunk may start.
func (s *Scheduler) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Close stops the runner and discards pending playback.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.generation++
	s.mu.Unlock()
	close(s.done)
}

// run is the single goroutine that hands chunks to the sink. Chunks are
// written at their start time in queue order; the sink owns buffering from
// there.
func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		s.mu.Lock()
		var next *scheduledChunk
		if len(s.queue) > 0 {
			next = &s.queue[0]
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.done:
				return
			case <-s.wake:
			}
			continue
		}

		wait := time.Until(next.start)
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-s.done:
				return
			case <-s.wake:
				if !timer.Stop() {
					<-timer.C
				}
				continue
			case <-timer.C:
			}
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			// Cancelled between the timer firing and now.
			s.mu.Unlock()
			continue
		}
		if s.queue[0].generation != next.generation {
			// Replaced by a newer generation; re-evaluate its start time.
			s.mu.Unlock()
			continue
		}
		chunk := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		_ = s.sink.Write(chunk.pcm)
	}
}
