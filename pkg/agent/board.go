package agent

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Board item status values.
const (
	StatusOnTime    = "ON TIME"
	StatusDelayed   = "DELAYED"
	StatusScheduled = "SCHEDULED"
)

// Board item provenance.
const (
	SourceCache = "CACHE"
	SourceWeb   = "WEB"
)

// BoardItem is one row of the departure board, rebuilt or appended on each
// relevant tool result. Presentation-only: nothing in the session reads it
// back.
type BoardItem struct {
	Origin      string
	Destination string
	Time        string
	Status      string
	Source      string
}

// LogLevel classifies a log entry for presentation.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogTool  LogLevel = "tool"
	LogError LogLevel = "error"
	LogAgent LogLevel = "agent"
)

// LogEntry is one line of the append-only session log.
type LogEntry struct {
	ID      string
	At      time.Time
	Level   LogLevel
	Message string
}

func newLogEntry(level LogLevel, message string) LogEntry {
	return LogEntry{
		ID:      ulid.Make().String(),
		At:      time.Now(),
		Level:   level,
		Message: message,
	}
}
