package audio

import (
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/railvoice/conductor/pkg/core"
)

// Speaker plays scheduled PCM16 through the system output device. It
// implements Sink. The oto player pulls from an internal buffer via Read;
// Flush drops whatever has been handed over but not yet played.
type Speaker struct {
	otoCtx  *oto.Context
	player  *oto.Player
	buf     []byte
	mu      sync.Mutex
	cond    *sync.Cond
	playing bool
	closed  bool

	// gen changes on Flush so a read parked by a discarded player cannot
	// consume audio meant for its successor.
	gen uint64
}

// NewSpeaker opens the output device for the given format.
func NewSpeaker(cfg Config) (*Speaker, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms buffer keeps latency low without glitching.
		BufferSize: cfg.BytesFor(100 * time.Millisecond),
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, core.NewPlaybackError("open output device: " + err.Error())
	}
	<-ready

	s := &Speaker{otoCtx: otoCtx}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write appends PCM to the playback buffer, starting the player on first
// data.
func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.NewPlaybackError("speaker closed")
	}

	s.buf = append(s.buf, pcm...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
	return nil
}

// Read implements io.Reader for the oto player.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.gen
	for len(s.buf) == 0 && !s.closed && gen == s.gen {
		s.cond.Wait()
	}
	if (s.closed && len(s.buf) == 0) || gen != s.gen {
		// Feed silence: either oto is draining, or this read belongs to a
		// player discarded by Flush and must not consume the new buffer.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush discards buffered audio and stops the current player so the next
// write starts fresh. Called on turn interruption.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.gen++
	s.cond.Broadcast()
	if s.player != nil && s.playing {
		s.playing = false
		player := s.player
		s.player = nil
		s.mu.Unlock()

		player.Pause()
		player.Reset()
		_ = player.Close()
		return
	}
	s.mu.Unlock()
}

// Close releases the output device.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
}
