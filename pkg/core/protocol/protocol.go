// Package protocol defines the wire envelopes exchanged with the Gemini
// Live bidiGenerate endpoint. Every message is one JSON object whose single
// top-level key identifies its kind.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// PCMMimeType tags linear PCM audio payloads on the wire.
	PCMMimeType = "audio/pcm"

	// ResponseModalityAudio requests synthesized speech responses.
	ResponseModalityAudio = "AUDIO"
)

// DecodeError reports a malformed inbound envelope.
type DecodeError struct {
	Message string
	Field   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Field) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Field)
}

func badEnvelope(message, field string) *DecodeError {
	return &DecodeError{Message: message, Field: field}
}

// SetupEnvelope is sent once, immediately after the socket opens.
type SetupEnvelope struct {
	Setup Setup `json:"setup"`
}

// Setup carries the negotiated model and tool configuration.
type Setup struct {
	Model             string             `json:"model"`
	GenerationConfig  GenerationConfig   `json:"generationConfig"`
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
	Tools             []Tool             `json:"tools,omitempty"`
}

// GenerationConfig requests the response modality.
type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

// SystemInstruction holds the system prompt parts.
type SystemInstruction struct {
	Parts []TextPart `json:"parts"`
}

// TextPart is one text segment of a content message.
type TextPart struct {
	Text string `json:"text"`
}

// Tool is either a set of function declarations or an opaque built-in
// capability flag (google_search).
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations,omitempty"`
	GoogleSearch         *struct{}             `json:"google_search,omitempty"`
}

// FunctionDeclaration describes one callable tool to the model.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is the subset of the declaration schema the tools here need.
type Schema struct {
	Type       string            `json:"type"`
	Desc       string            `json:"description,omitempty"`
	Enum       []string          `json:"enum,omitempty"`
	Properties map[string]Schema `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

// RealtimeInputEnvelope carries capture-bound audio.
type RealtimeInputEnvelope struct {
	RealtimeInput RealtimeInput `json:"realtime_input"`
}

// RealtimeInput batches media chunks for one send.
type RealtimeInput struct {
	MediaChunks []MediaChunk `json:"media_chunks"`
}

// MediaChunk is one base64 PCM16 payload.
type MediaChunk struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// ToolResponseEnvelope returns correlated results for one toolCall
// envelope, batched symmetrically with the request.
type ToolResponseEnvelope struct {
	ToolResponse ToolResponse `json:"toolResponse"`
}

// ToolResponse holds one batch of function responses.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// FunctionResponse correlates one result with its originating call.
type FunctionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response ResponseResult `json:"response"`
}

// ResponseResult wraps the tool payload under the result key the model
// expects.
type ResponseResult struct {
	Result any `json:"result"`
}

// ServerEnvelope is one decoded inbound message. Exactly one of the kind
// fields is set.
type ServerEnvelope struct {
	SetupComplete *SetupComplete
	Content       *ServerContent
	ToolCall      *ToolCall
}

// SetupComplete acknowledges the setup envelope. The transport does not
// wait for it before starting capture.
type SetupComplete struct{}

// ServerContent carries model output and turn signals.
type ServerContent struct {
	ModelTurn    *ModelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
}

// ModelTurn holds the content parts of the current model turn.
type ModelTurn struct {
	Parts []Part `json:"parts,omitempty"`
}

// Part is one content part; audio arrives as inline data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is a base64 payload tagged with its mime type.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// IsPCM reports whether the payload is linear PCM audio.
func (d *InlineData) IsPCM() bool {
	return d != nil && strings.HasPrefix(d.MimeType, PCMMimeType)
}

// ToolCall batches one or more function calls. Each is dispatched
// independently; the protocol guarantees no ordering between them.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// FunctionCall is one model-initiated tool invocation. The ID is opaque,
// assigned by the remote side, and unique among outstanding invocations.
type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// DecodeServerEnvelope demultiplexes one inbound frame by its top-level
// tag. Unknown tags decode to an empty envelope the caller may ignore.
func DecodeServerEnvelope(data []byte) (ServerEnvelope, error) {
	var raw struct {
		SetupComplete *json.RawMessage `json:"setupComplete"`
		ServerContent *json.RawMessage `json:"serverContent"`
		ToolCall      *json.RawMessage `json:"toolCall"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServerEnvelope{}, badEnvelope("decode server envelope: "+err.Error(), "")
	}

	switch {
	case raw.SetupComplete != nil:
		return ServerEnvelope{SetupComplete: &SetupComplete{}}, nil
	case raw.ServerContent != nil:
		var content ServerContent
		if err := json.Unmarshal(*raw.ServerContent, &content); err != nil {
			return ServerEnvelope{}, badEnvelope("decode serverContent: "+err.Error(), "serverContent")
		}
		return ServerEnvelope{Content: &content}, nil
	case raw.ToolCall != nil:
		var call ToolCall
		if err := json.Unmarshal(*raw.ToolCall, &call); err != nil {
			return ServerEnvelope{}, badEnvelope("decode toolCall: "+err.Error(), "toolCall")
		}
		for i, fc := range call.FunctionCalls {
			if strings.TrimSpace(fc.ID) == "" {
				return ServerEnvelope{}, badEnvelope("functionCall missing id", fmt.Sprintf("toolCall.functionCalls[%d]", i))
			}
		}
		return ServerEnvelope{ToolCall: &call}, nil
	default:
		return ServerEnvelope{}, nil
	}
}
