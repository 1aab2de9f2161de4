package audio

import (
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/railvoice/conductor/pkg/core"
)

// captureFrameSamples is the fixed frame size handed to the transport.
const captureFrameSamples = 2048

// Frame is one fixed-size chunk of capture-bound PCM16 audio. Frames are
// owned transiently by whichever stage currently holds them and are never
// retained past one processing cycle.
type Frame struct {
	PCM []byte
}

// Capture acquires exclusive, scoped access to the microphone and produces
// a continuous stream of fixed-size PCM16 frames until stopped. A coarse
// volume level is derived as a side channel for UI feedback; it is dropped
// rather than ever blocking the capture path.
type Capture struct {
	cfg Config

	frames chan Frame
	volume chan float64

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	pending []float32
	stopped bool
}

// NewCapture prepares a capture pipeline for the given format. No device is
// acquired until Start.
func NewCapture(cfg Config) *Capture {
	return &Capture{
		cfg:    cfg,
		frames: make(chan Frame, 32),
		volume: make(chan float64, 1),
	}
}

// Frames yields capture frames for as long as the device is running. The
// channel is closed on Stop.
func (c *Capture) Frames() <-chan Frame {
	return c.frames
}

// Volume yields the most recent coarse volume level (0..1). Values are
// dropped when the consumer lags.
func (c *Capture) Volume() <-chan float64 {
	return c.volume
}

// Start acquires the microphone configured for the capture format. Denied
// or unavailable device access is returned as a recoverable error; the
// caller decides whether the session continues degraded.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return core.NewCaptureError("capture pipeline already stopped", nil)
	}
	if c.device != nil {
		return core.NewCaptureError("capture device already started", nil)
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	allocated, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return core.NewCaptureError("init audio context", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(c.cfg.Channels)
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.onSamples(decodeF32LE(input))
		},
	}

	device, err := malgo.InitDevice(allocated.Context, deviceConfig, callbacks)
	if err != nil {
		allocated.Uninit()
		return core.NewPermissionError("microphone unavailable: " + err.Error())
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		allocated.Uninit()
		return core.NewCaptureError("start microphone", err)
	}

	c.ctx = allocated
	c.device = device
	return nil
}

// onSamples accumulates device samples and emits full frames. Frames are
// dropped when the consumer falls behind; capture latency stays bounded.
func (c *Capture) onSamples(samples []float32) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, samples...)
	var ready [][]float32
	for len(c.pending) >= captureFrameSamples {
		frame := make([]float32, captureFrameSamples)
		copy(frame, c.pending[:captureFrameSamples])
		c.pending = c.pending[captureFrameSamples:]
		ready = append(ready, frame)
	}
	c.mu.Unlock()

	for _, frame := range ready {
		pcm := EncodeFloat32(frame)
		select {
		case c.frames <- Frame{PCM: pcm}:
		default:
		}
		select {
		case c.volume <- MeanMagnitude(pcm):
		default:
		}
	}
}

// Stop releases the device and audio context. It is safe to call from any
// exit path and more than once; every device handle is released before
// Stop returns.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	device := c.device
	ctx := c.ctx
	c.device = nil
	c.ctx = nil
	c.pending = nil
	c.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
	}
	close(c.frames)
	close(c.volume)
}

func decodeF32LE(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
