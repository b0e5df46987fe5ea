package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventLoad     EventType = "load"
	EventUpgrade  EventType = "upgrade"
	EventRefresh  EventType = "refresh"
	EventAdd      EventType = "add"
	EventRemove   EventType = "remove"
	EventMetadata EventType = "metadata"
	EventSave     EventType = "save"
	EventDelete   EventType = "delete"
	EventSelect   EventType = "select"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a config string to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	level := EventLevel(s)
	if _, ok := levelPriority[level]; ok {
		return level
	}
	return LevelInfo
}

// Event represents a single event in the index lifecycle
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Location     string            `json:"location,omitempty"`
	AudioFile    string            `json:"audio_file,omitempty"`
	MetadataFile string            `json:"metadata_file,omitempty"`
	Count        int               `json:"count,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

func levelFor(err error, ok EventLevel) (EventLevel, string) {
	if err != nil {
		return LevelError, err.Error()
	}
	return ok, ""
}

// LogLoad logs loading the persisted index
func (l *EventLogger) LogLoad(location string, count, schemaVersion int, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	return l.Log(&Event{
		Level:    level,
		Event:    EventLoad,
		Location: location,
		Count:    count,
		Error:    errMsg,
		Extra: map[string]string{
			"schema_version": fmt.Sprintf("%d", schemaVersion),
		},
	})
}

// LogUpgrade logs a schema migration of the persisted index
func (l *EventLogger) LogUpgrade(location string, from, to int) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventUpgrade,
		Location: location,
		Extra: map[string]string{
			"from": fmt.Sprintf("%d", from),
			"to":   fmt.Sprintf("%d", to),
		},
	})
}

// LogRefresh logs a finished reconciliation pass
func (l *EventLogger) LogRefresh(location string, added, unchanged, removed int, duration time.Duration, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	return l.Log(&Event{
		Level:    level,
		Event:    EventRefresh,
		Location: location,
		Count:    added + unchanged,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"added":     fmt.Sprintf("%d", added),
			"unchanged": fmt.Sprintf("%d", unchanged),
			"removed":   fmt.Sprintf("%d", removed),
		},
	})
}

// LogAdd logs a recording that entered the index
func (l *EventLogger) LogAdd(location, audioFile, metadataFile string) error {
	return l.Log(&Event{
		Level:        LevelDebug,
		Event:        EventAdd,
		Location:     location,
		AudioFile:    audioFile,
		MetadataFile: metadataFile,
	})
}

// LogRemove logs a recording dropped because its audio file disappeared
func (l *EventLogger) LogRemove(location, audioFile string) error {
	return l.Log(&Event{
		Level:     LevelDebug,
		Event:     EventRemove,
		Location:  location,
		AudioFile: audioFile,
	})
}

// LogMetadataError logs a sidecar that could not be parsed
func (l *EventLogger) LogMetadataError(location, audioFile, metadataFile string, err error) error {
	return l.Log(&Event{
		Level:        LevelWarning,
		Event:        EventMetadata,
		Location:     location,
		AudioFile:    audioFile,
		MetadataFile: metadataFile,
		Error:        err.Error(),
	})
}

// LogSave logs persisting the index document
func (l *EventLogger) LogSave(location string, count int, err error) error {
	level, errMsg := levelFor(err, LevelDebug)
	return l.Log(&Event{
		Level:    level,
		Event:    EventSave,
		Location: location,
		Count:    count,
		Error:    errMsg,
	})
}

// LogDelete logs a user deletion; deleted lists the files actually removed
func (l *EventLogger) LogDelete(location, audioFile string, deleted []string, err error) error {
	level, errMsg := levelFor(err, LevelInfo)
	return l.Log(&Event{
		Level:     level,
		Event:     EventDelete,
		Location:  location,
		AudioFile: audioFile,
		Count:     len(deleted),
		Error:     errMsg,
	})
}

// LogSelect logs a change of the recordings directory
func (l *EventLogger) LogSelect(location, previous string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventSelect,
		Location: location,
		Reason:   previous,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, location string, err error) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    event,
		Location: location,
		Error:    err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
