// Package tools matches inbound tool invocations to handler
// implementations and returns correlated results.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/railvoice/conductor/pkg/core/protocol"
)

// Handler executes one tool. Implementations return the result payload or
// an error; they never need to shape their own error results.
type Handler interface {
	// Name is the exact tool name matched against invocations.
	Name() string
	// Call executes the tool with the invocation's argument mapping.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ErrorResult is the error-shaped payload returned to the remote side when
// a tool fails. An invocation never resolves to nothing: every failure
// becomes one of these.
type ErrorResult struct {
	Error string `json:"error"`
}

// Observer is notified of dispatch lifecycle events for log projection.
// A nil field skips that event.
type Observer struct {
	OnCallStarted func(call protocol.FunctionCall)
	OnCallDone    func(call protocol.FunctionCall, payload any, err error)
}

// Dispatcher resolves invocations to a fixed, statically known handler set
// by exact name match.
type Dispatcher struct {
	handlers map[string]Handler
	observer Observer
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher over the given handlers.
func NewDispatcher(handlers []Handler, observer Observer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byName[h.Name()] = h
	}
	return &Dispatcher{handlers: byName, observer: observer, logger: logger}
}

// Dispatch executes every invocation of one batched envelope concurrently
// and collects exactly one correlated response per invocation, returned as
// a single batch symmetric with the request. There is no ordering
// guarantee between invocations; responses are positioned by request
// order only for determinism of the outbound envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []protocol.FunctionCall) []protocol.FunctionResponse {
	responses := make([]protocol.FunctionResponse, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call protocol.FunctionCall) {
			defer wg.Done()
			payload, err := d.dispatchOne(ctx, call)
			responses[i] = protocol.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: protocol.ResponseResult{Result: payload},
			}
			if d.observer.OnCallDone != nil {
				d.observer.OnCallDone(call, payload, err)
			}
		}(i, call)
	}
	wg.Wait()
	return responses
}

// dispatchOne runs a single invocation. Internal failures are caught here
// and converted into an error-shaped payload; nothing escapes past the
// dispatcher boundary.
func (d *Dispatcher) dispatchOne(ctx context.Context, call protocol.FunctionCall) (payload any, err error) {
	if d.observer.OnCallStarted != nil {
		d.observer.OnCallStarted(call)
	}

	handler, ok := d.handlers[call.Name]
	if !ok {
		// Unknown names are not a protocol error; the remote side still
		// receives a correlated response.
		err = fmt.Errorf("no such tool: %s", call.Name)
		return ErrorResult{Error: err.Error()}, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
			d.logger.Error("tool handler panic", "tool", call.Name, "panic", r)
			payload = ErrorResult{Error: err.Error()}
		}
	}()

	payload, err = handler.Call(ctx, call.Args)
	if err != nil {
		d.logger.Warn("tool call failed", "tool", call.Name, "id", call.ID, "error", err)
		return ErrorResult{Error: err.Error()}, err
	}
	return payload, nil
}
