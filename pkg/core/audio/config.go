package audio

import "time"

// Config specifies PCM format parameters for one direction of the session.
type Config struct {
	// SampleRate in Hz. Capture uses 16000, playback 24000; the two
	// pipelines never share a clock.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for linear PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// CaptureConfig is the microphone format sent to the model.
func CaptureConfig() Config {
	return Config{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// PlaybackConfig is the synthesized-speech format received from the model.
func PlaybackConfig() Config {
	return Config{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// Duration returns the playback duration of the given byte count.
func (c Config) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count covering the given duration.
func (c Config) BytesFor(d time.Duration) int {
	return int(int64(c.BytesPerSecond()) * int64(d) / int64(time.Second))
}
