// Package agent wires capture, transport, playback and tool dispatch into
// one voice session and projects session events into UI-facing state.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/railvoice/conductor/pkg/core"
	"github.com/railvoice/conductor/pkg/core/audio"
	"github.com/railvoice/conductor/pkg/core/protocol"
	"github.com/railvoice/conductor/pkg/core/session"
	"github.com/railvoice/conductor/pkg/core/tools"
	"github.com/railvoice/conductor/pkg/geo"
)

// DefaultModel is the live audio model spoken to over the websocket.
const DefaultModel = "models/gemini-2.5-flash-native-audio-preview-09-2025"

// DefaultEndpoint is the bidirectional generation endpoint for DefaultModel.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/v1alpha/models/gemini-2.5-flash-native-audio-preview-09-2025:bidiGenerate"

// DefaultSystemInstruction is the persona and tool-use procedure given to
// the model at setup.
const DefaultSystemInstruction = `You are "The Conductor", a helpful, punctual, and slightly bureaucratic but efficient voice agent for Caltrain commuters.
Your goal is to provide train schedules. You have a unique "learning" ability.

Procedure:
1. If the user asks for a route from their current location, call 'get_user_location'.
2. For specific station-to-station queries, ALWAYS call 'check_schedule_cache' first.
3. If the cache is empty OR you have a user location, use your built-in Google Search to find the schedule.
4. When you find the time(s) from the web, you MUST immediately call 'cache_schedule_entry' to save each time found to the database for future reference.
5. Finally, answer the user.

If the cache returns results, use them immediately without searching the web.

Tone: Professional, transit-oriented, using terms like "on track", "departing", "schedule".`

// PlaybackSink is where scheduled audio goes. Flush discards anything
// buffered past the scheduler, used on turn interruption.
type PlaybackSink interface {
	audio.Sink
	Flush()
}

// Config assembles an Agent.
type Config struct {
	// APIKey is appended to the endpoint as a key query parameter.
	APIKey string
	// Model defaults to DefaultModel.
	Model string
	// Endpoint defaults to DefaultEndpoint.
	Endpoint string
	// SystemInstruction defaults to DefaultSystemInstruction.
	SystemInstruction string

	// Store backs the schedule cache tools.
	Store tools.ScheduleStore
	// Locator backs get_user_location.
	Locator geo.Locator
	// Sink receives scheduled playback audio.
	Sink PlaybackSink

	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *Metrics

	// OnUpdate, if set, is called with no locks held after every state
	// change worth redrawing for.
	OnUpdate func()
}

// Agent owns the session lifecycle and all session-level mutable state.
// At most one session is active at a time; Connect after Disconnect starts
// a fresh session with no carried-over state.
type Agent struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	dispatcher *tools.Dispatcher

	mu        sync.Mutex
	connected bool
	recording bool
	volume    float64
	board     []BoardItem
	logs      []LogEntry

	transport *session.Transport
	capture   *audio.Capture
	scheduler *audio.Scheduler
}

// New builds an Agent. Store, Locator and Sink are required.
func New(cfg Config) (*Agent, error) {
	if cfg.Store == nil {
		return nil, core.NewInvalidArgumentError("schedule store is required", "store")
	}
	if cfg.Locator == nil {
		return nil, core.NewInvalidArgumentError("locator is required", "locator")
	}
	if cfg.Sink == nil {
		return nil, core.NewInvalidArgumentError("playback sink is required", "sink")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &Agent{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	a.dispatcher = tools.NewDispatcher(
		[]tools.Handler{
			tools.LookupHandler{Store: cfg.Store},
			tools.RecordHandler{Store: cfg.Store},
			tools.LocationHandler{Locator: cfg.Locator},
		},
		tools.Observer{
			OnCallStarted: a.projectCallStarted,
			OnCallDone:    a.projectCallDone,
		},
		cfg.Logger,
	)
	return a, nil
}

// Connect establishes a fresh session: dials the endpoint, sends the
// configuration envelope and starts capture. Returns an error if a session
// is already active.
func (a *Agent) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return core.NewInvalidArgumentError("session already active", "")
	}
	// Reserve the session slot before dialing so a concurrent Connect is
	// refused here, not after both have dialed.
	a.connected = true
	a.board = nil
	a.logs = nil
	a.volume = 0
	a.mu.Unlock()

	if a.cfg.APIKey == "" {
		a.appendLog(LogError, "API Key not found in environment variables.")
		a.release(nil)
		return core.NewInvalidArgumentError("api key is required", "api_key")
	}

	scheduler := audio.NewScheduler(audio.PlaybackConfig(), a.cfg.Sink)
	a.mu.Lock()
	a.scheduler = scheduler
	a.mu.Unlock()

	// The read loop is live before session.Connect returns, so an
	// immediate drop can race the commit below. Hooks that tear down or
	// answer the session wait for the committed state; audio and
	// interruption only touch the scheduler, already installed.
	ready := make(chan struct{})

	transport, err := session.Connect(ctx, session.Config{
		URL: a.cfg.Endpoint + "?key=" + a.cfg.APIKey,
		Setup: protocol.Setup{
			Model: a.cfg.Model,
			GenerationConfig: protocol.GenerationConfig{
				ResponseModalities: []string{protocol.ResponseModalityAudio},
			},
			SystemInstruction: &protocol.SystemInstruction{
				Parts: []protocol.TextPart{{Text: a.cfg.SystemInstruction}},
			},
			Tools: tools.Declarations(),
		},
		Hooks: session.Hooks{
			OnAudio: a.handleAudio,
			OnToolCall: func(calls []protocol.FunctionCall) {
				<-ready
				a.handleToolCall(calls)
			},
			OnInterrupted:  a.handleInterrupted,
			OnTurnComplete: a.handleTurnComplete,
			OnClosed: func(err error) {
				<-ready
				a.handleClosed(err)
			},
		},
		Logger: a.logger,
	})
	if err != nil {
		close(ready)
		a.release(scheduler)
		a.appendLog(LogError, "Connection Error")
		if a.metrics != nil {
			a.metrics.SessionsTotal.WithLabelValues("dial_error").Inc()
		}
		return err
	}

	a.mu.Lock()
	a.transport = transport
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.SessionsActive.Inc()
		a.metrics.SessionsTotal.WithLabelValues("connected").Inc()
	}
	a.appendLog(LogInfo, "Connected to Caltrain Ops")
	close(ready)

	a.startCapture()
	return nil
}

// release frees a reserved session that never became active.
func (a *Agent) release(scheduler *audio.Scheduler) {
	a.mu.Lock()
	a.connected = false
	a.scheduler = nil
	a.transport = nil
	a.mu.Unlock()
	if scheduler != nil {
		scheduler.Close()
	}
}

// startCapture opens the microphone and begins pumping frames outbound.
// Capture failure is recoverable: the session continues without a mic.
func (a *Agent) startCapture() {
	capture := audio.NewCapture(audio.CaptureConfig())
	if err := capture.Start(); err != nil {
		a.logger.Warn("capture start failed", "error", err)
		a.appendLog(LogError, "Failed to start audio input")
		return
	}

	a.mu.Lock()
	if !a.connected {
		// The session dropped before the device came up.
		a.mu.Unlock()
		capture.Stop()
		return
	}
	a.capture = capture
	a.recording = true
	transport := a.transport
	a.mu.Unlock()
	a.notify()

	go a.pumpFrames(capture, transport)
	go a.pumpVolume(capture)
}

func (a *Agent) pumpFrames(capture *audio.Capture, transport *session.Transport) {
	for frame := range capture.Frames() {
		if err := transport.SendAudioChunk(frame.PCM); err != nil {
			if core.TypeOf(err) == core.ErrTransport {
				return
			}
			a.logger.Warn("dropping capture frame", "error", err)
			continue
		}
		if a.metrics != nil {
			a.metrics.AudioBytesTotal.WithLabelValues("out").Add(float64(len(frame.PCM)))
		}
	}
}

func (a *Agent) pumpVolume(capture *audio.Capture) {
	for v := range capture.Volume() {
		a.mu.Lock()
		a.volume = v
		a.mu.Unlock()
		a.notify()
	}
}

// Disconnect tears the session down: capture stops and releases the device,
// the connection closes, playback scheduled but not yet started is
// discarded. In-flight tool invocations complete and have their results
// dropped rather than being abandoned mid-write.
func (a *Agent) Disconnect() {
	a.mu.Lock()
	transport := a.transport
	a.mu.Unlock()

	a.stopCapture()
	if transport != nil {
		_ = transport.Close()
	}
}

func (a *Agent) stopCapture() {
	a.mu.Lock()
	capture := a.capture
	a.capture = nil
	wasRecording := a.recording
	a.recording = false
	a.volume = 0
	a.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if wasRecording {
		a.notify()
	}
}

func (a *Agent) handleAudio(pcm []byte) {
	a.mu.Lock()
	scheduler := a.scheduler
	a.mu.Unlock()
	if scheduler == nil {
		return
	}

	if _, err := scheduler.Schedule(pcm); err != nil {
		// Undecodable chunk: dropped, cursor untouched, scheduler keeps
		// servicing later chunks.
		a.logger.Warn("dropping inbound audio chunk", "error", err)
		a.appendLog(LogError, "Dropped undecodable audio chunk")
		return
	}
	if a.metrics != nil {
		a.metrics.AudioBytesTotal.WithLabelValues("in").Add(float64(len(pcm)))
	}
}

// handleToolCall services one batched envelope off the read loop. Dispatch
// runs on a background context so a disconnect mid-call lets store writes
// finish; if the session is gone by the time results are ready they are
// dropped.
func (a *Agent) handleToolCall(calls []protocol.FunctionCall) {
	a.mu.Lock()
	transport := a.transport
	a.mu.Unlock()

	go func() {
		responses := a.dispatcher.Dispatch(context.Background(), calls)
		if transport == nil {
			return
		}
		if err := transport.SendToolResponse(responses); err != nil {
			a.logger.Debug("dropping tool responses", "count", len(responses), "error", err)
		}
	}()
}

func (a *Agent) handleInterrupted() {
	a.mu.Lock()
	scheduler := a.scheduler
	a.mu.Unlock()
	if scheduler != nil {
		scheduler.CancelPending()
	}
	a.cfg.Sink.Flush()
	a.appendLog(LogAgent, "Interrupted")
}

func (a *Agent) handleTurnComplete() {
	a.logger.Debug("model turn complete")
}

// handleClosed runs exactly once per session, on both local and remote
// initiated closes, and releases everything the session owned.
func (a *Agent) handleClosed(err error) {
	a.stopCapture()

	a.mu.Lock()
	scheduler := a.scheduler
	a.scheduler = nil
	a.transport = nil
	wasConnected := a.connected
	a.connected = false
	a.mu.Unlock()

	if scheduler != nil {
		scheduler.CancelPending()
		scheduler.Close()
	}

	if wasConnected && a.metrics != nil {
		a.metrics.SessionsActive.Dec()
	}
	if err != nil {
		a.logger.Error("session closed", "error", err)
		a.appendLog(LogError, "Connection Error")
		if a.metrics != nil {
			a.metrics.SessionsTotal.WithLabelValues("error").Inc()
		}
	}
	a.appendLog(LogInfo, "Disconnected")
}

// Connected reports whether a session is active.
func (a *Agent) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Recording reports whether the microphone is live.
func (a *Agent) Recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

// Volume returns the most recent capture level in [0, 1].
func (a *Agent) Volume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

// Board returns a copy of the current departure board.
func (a *Agent) Board() []BoardItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]BoardItem, len(a.board))
	copy(out, a.board)
	return out
}

// Logs returns a copy of the session log from the given offset, for
// incremental rendering.
func (a *Agent) Logs(from int) []LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if from < 0 || from > len(a.logs) {
		from = len(a.logs)
	}
	out := make([]LogEntry, len(a.logs)-from)
	copy(out, a.logs[from:])
	return out
}

// Done returns a channel closed when the current session disconnects, or
// nil when no session is active.
func (a *Agent) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.transport == nil {
		return nil
	}
	return a.transport.Done()
}

func (a *Agent) appendLog(level LogLevel, message string) {
	a.mu.Lock()
	a.logs = append(a.logs, newLogEntry(level, message))
	a.mu.Unlock()
	a.notify()
}

func (a *Agent) notify() {
	if a.cfg.OnUpdate != nil {
		a.cfg.OnUpdate()
	}
}

func (a *Agent) projectCallStarted(call protocol.FunctionCall) {
	a.appendLog(LogTool, "Calling "+call.Name)
}

// projectCallDone maps each tool outcome to exactly one log line, plus a
// board update where the result carries schedule rows.
func (a *Agent) projectCallDone(call protocol.FunctionCall, payload any, err error) {
	if a.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		a.metrics.ToolCallsTotal.WithLabelValues(call.Name, outcome).Inc()
	}

	if err != nil {
		if errors.Is(err, geo.ErrPermissionDenied) {
			a.appendLog(LogError, "Location access denied")
		} else {
			a.appendLog(LogError, "Tool Error: "+err.Error())
		}
		return
	}

	switch result := payload.(type) {
	case tools.LookupResult:
		if !result.Found {
			a.appendLog(LogInfo, "Cache MISS")
			return
		}
		origin := strings.ToUpper(argString(call.Args, "origin"))
		destination := strings.ToUpper(argString(call.Args, "destination"))
		items := make([]BoardItem, 0, len(result.Times))
		for _, t := range result.Times {
			items = append(items, BoardItem{
				Origin:      origin,
				Destination: destination,
				Time:        t,
				Status:      StatusOnTime,
				Source:      SourceCache,
			})
		}
		a.mu.Lock()
		a.board = items
		a.mu.Unlock()
		a.appendLog(LogInfo, fmt.Sprintf("Cache HIT: Found %d trains", len(result.Times)))

	case tools.RecordResult:
		origin := argString(call.Args, "origin")
		destination := argString(call.Args, "destination")
		departure := argString(call.Args, "departure_time")
		a.mu.Lock()
		a.board = append(a.board, BoardItem{
			Origin:      strings.ToUpper(origin),
			Destination: strings.ToUpper(destination),
			Time:        departure,
			Status:      StatusOnTime,
			Source:      SourceWeb,
		})
		a.mu.Unlock()
		a.appendLog(LogInfo, fmt.Sprintf("Learned: %s -> %s @ %s", origin, destination, departure))

	case geo.Position:
		a.appendLog(LogInfo, fmt.Sprintf("Location: %.4f, %.4f", result.Latitude, result.Longitude))
	}
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
