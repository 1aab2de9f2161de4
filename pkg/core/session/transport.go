// Package session owns the persistent connection to the live model
// endpoint: the connection state machine, outbound serialization and the
// inbound demultiplex loop.
package session

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/railvoice/conductor/pkg/core"
	"github.com/railvoice/conductor/pkg/core/protocol"
)

const defaultConnectTimeout = 15 * time.Second

// State is the connection lifecycle state.
type State int32

const (
	// StateDisconnected is the initial and terminal state.
	StateDisconnected State = iota
	// StateConnecting covers the websocket dial.
	StateConnecting
	// StateConfiguring is entered once the socket is open and the setup
	// envelope has been sent. Capture may already begin; no server
	// acknowledgment is required first.
	StateConfiguring
	// StateActive is entered on setupComplete.
	StateActive
	// StateClosing covers a locally initiated shutdown.
	StateClosing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConfiguring:
		return "CONFIGURING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Hooks receive demultiplexed inbound traffic. All hooks are invoked from
// the single read loop goroutine; a nil hook drops that message kind.
type Hooks struct {
	// OnAudio receives decoded playback-bound PCM16.
	OnAudio func(pcm []byte)
	// OnToolCall receives one batched toolCall envelope.
	OnToolCall func(calls []protocol.FunctionCall)
	// OnInterrupted signals that the current turn was cut off and pending
	// playback should be discarded.
	OnInterrupted func()
	// OnTurnComplete signals the end of a model turn.
	OnTurnComplete func()
	// OnClosed fires exactly once when the connection reaches
	// Disconnected, with the terminal error if the close was not clean.
	OnClosed func(err error)
}

// Transport is a single logical session connection. At most one is active
// per agent instance; reconnection is a fresh Connect discarding all prior
// session state.
type Transport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	state atomic.Int32

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}

	errMu sync.Mutex
	err   error

	hooks Hooks
}

// Config configures a Connect call.
type Config struct {
	// URL is the wss endpoint including any key query parameter.
	URL string
	// Setup is sent as the one configuration envelope at connect.
	Setup protocol.Setup
	// Hooks receive inbound traffic.
	Hooks Hooks
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Connect dials the endpoint, sends the configuration envelope and starts
// the read loop. The transport is Configuring when Connect returns; the
// caller may begin capture immediately.
func Connect(ctx context.Context, cfg Config) (*Transport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Transport{
		logger: logger,
		done:   make(chan struct{}),
		hooks:  cfg.Hooks,
	}
	t.state.Store(int32(StateConnecting))

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, cfg.URL, http.Header{})
	if err != nil {
		t.state.Store(int32(StateDisconnected))
		if resp != nil {
			return nil, core.NewTransportError("websocket dial failed", err)
		}
		return nil, core.NewTransportError("connection refused", err)
	}
	t.conn = conn

	if err := t.sendJSON(protocol.SetupEnvelope{Setup: cfg.Setup}); err != nil {
		_ = conn.Close()
		t.state.Store(int32(StateDisconnected))
		return nil, core.NewTransportError("send setup envelope", err)
	}
	t.state.Store(int32(StateConfiguring))

	go t.readLoop()
	return t, nil
}

// State returns the current connection state.
func (t *Transport) State() State {
	if t == nil {
		return StateDisconnected
	}
	return State(t.state.Load())
}

// Done is closed once the transport reaches Disconnected.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Err returns the terminal transport error, if any, once Done is closed.
func (t *Transport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *Transport) setErr(err error) {
	if err == nil {
		return
	}
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

// SendAudioChunk transmits one capture frame as a realtime input envelope.
// Outbound envelopes preserve submission order on the wire; the remote side
// makes no servicing-order promise beyond that.
func (t *Transport) SendAudioChunk(pcm []byte) error {
	if t.State() == StateDisconnected {
		return core.NewTransportError("session is disconnected", nil)
	}
	return t.sendJSON(protocol.RealtimeInputEnvelope{
		RealtimeInput: protocol.RealtimeInput{
			MediaChunks: []protocol.MediaChunk{{
				MimeType: protocol.PCMMimeType,
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	})
}

// SendToolResponse transmits one batch of correlated tool results.
func (t *Transport) SendToolResponse(responses []protocol.FunctionResponse) error {
	if t.State() == StateDisconnected {
		return core.NewTransportError("session is disconnected", nil)
	}
	return t.sendJSON(protocol.ToolResponseEnvelope{
		ToolResponse: protocol.ToolResponse{FunctionResponses: responses},
	})
}

func (t *Transport) sendJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteJSON(v); err != nil {
		return core.NewTransportError("write envelope", err)
	}
	return nil
}

// Close performs a local shutdown. Idempotent; safe from any goroutine.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.state.Store(int32(StateClosing))
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		t.writeMu.Unlock()
		_ = t.conn.Close()
	})
	<-t.done
	return nil
}

// readLoop demultiplexes inbound envelopes until the connection drops.
// Any connection-level error moves the state machine to Disconnected; the
// caller decides whether to establish a fresh session.
func (t *Transport) readLoop() {
	defer func() {
		wasClosing := t.State() == StateClosing
		t.state.Store(int32(StateDisconnected))
		// OnClosed runs before done is closed so anyone waiting on Done
		// observes the teardown as already complete.
		if t.hooks.OnClosed != nil {
			if wasClosing {
				t.hooks.OnClosed(nil)
			} else {
				t.hooks.OnClosed(t.Err())
			}
		}
		close(t.done)
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if t.State() != StateClosing {
				t.setErr(core.NewTransportError("connection lost", err))
			}
			return
		}

		envelope, err := protocol.DecodeServerEnvelope(data)
		if err != nil {
			// Protocol violation: fatal to the session, never retried.
			t.setErr(core.NewProtocolError("malformed inbound envelope", err))
			_ = t.conn.Close()
			return
		}
		t.dispatch(envelope)
	}
}

func (t *Transport) dispatch(envelope protocol.ServerEnvelope) {
	switch {
	case envelope.SetupComplete != nil:
		t.state.CompareAndSwap(int32(StateConfiguring), int32(StateActive))

	case envelope.Content != nil:
		content := envelope.Content
		if content.Interrupted && t.hooks.OnInterrupted != nil {
			t.hooks.OnInterrupted()
		}
		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if !part.InlineData.IsPCM() {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					// Undecodable chunk: drop it, keep the loop alive.
					t.logger.Warn("dropping undecodable audio chunk", "error", err)
					continue
				}
				if t.hooks.OnAudio != nil {
					t.hooks.OnAudio(pcm)
				}
			}
		}
		if content.TurnComplete && t.hooks.OnTurnComplete != nil {
			t.hooks.OnTurnComplete()
		}

	case envelope.ToolCall != nil:
		if t.hooks.OnToolCall != nil && len(envelope.ToolCall.FunctionCalls) > 0 {
			t.hooks.OnToolCall(envelope.ToolCall.FunctionCalls)
		}
	}
}
