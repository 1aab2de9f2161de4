package audio

import (
	"sync"
	"testing"
	"time"
)

// newBufferOnlySpeaker builds a Speaker without opening an output device,
// exercising the buffer and reader handoff in isolation. playing is set so
// Write never touches the device layer.
func newBufferOnlySpeaker() *Speaker {
	s := &Speaker{playing: true}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func TestSpeakerFlushReleasesStaleRead(t *testing.T) {
	s := newBufferOnlySpeaker()

	stale := make(chan []byte, 1)
	go func() {
		p := []byte{0xff, 0xff, 0xff, 0xff}
		n, err := s.Read(p)
		if err != nil || n != len(p) {
			t.Errorf("stale Read = %d, %v", n, err)
		}
		stale <- p
	}()

	// Let the reader park on the empty buffer before the interruption.
	time.Sleep(100 * time.Millisecond)
	s.Flush()

	select {
	case p := <-stale:
		for _, b := range p {
			if b != 0 {
				t.Fatalf("stale read returned audio %v, want silence", p)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Flush left the old read blocked")
	}

	// Audio written after the interruption reaches the next reader intact.
	if err := s.Write([]byte{7, 8, 9, 10}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	p := make([]byte, 4)
	n, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 4 || p[0] != 7 || p[3] != 10 {
		t.Errorf("post-interruption read = %v (n=%d), want [7 8 9 10]", p[:n], n)
	}
}

func TestSpeakerFlushDropsBufferedAudio(t *testing.T) {
	s := newBufferOnlySpeaker()

	if err := s.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush()
	if err := s.Write([]byte{9, 9}); err != nil {
		t.Fatalf("Write after Flush: %v", err)
	}

	p := make([]byte, 8)
	n, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 2 || p[0] != 9 {
		t.Errorf("read = %v (n=%d), want only post-flush bytes", p[:n], n)
	}
}

func TestSpeakerCloseUnblocksRead(t *testing.T) {
	s := newBufferOnlySpeaker()

	done := make(chan struct{})
	go func() {
		p := make([]byte, 4)
		n, err := s.Read(p)
		if err != nil || n != len(p) {
			t.Errorf("Read after Close = %d, %v", n, err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close left the reader blocked")
	}

	if err := s.Write([]byte{1, 2}); err == nil {
		t.Error("Write after Close = nil error, want playback error")
	}
}
