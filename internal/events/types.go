// Package events carries recorder status to any number of observers without
// ever blocking the publisher.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the kind of a StatusEvent.
type Status int

const (
	// StatusRecording: a session started and the file is open.
	StatusRecording Status = iota
	// StatusStopped: the session ended and the file was finalized.
	StatusStopped
	// StatusStorageError: the session was stopped because storage kept failing.
	StatusStorageError
	// StatusSourceError: the session was stopped because the source kept failing.
	StatusSourceError
	// StatusStartFailed: a start request failed, the recorder stayed idle.
	StatusStartFailed
	// StatusTick: periodic progress while recording.
	StatusTick
	// StatusStopping: a stop was requested and the capture loop is draining.
	StatusStopping
)

var statusNames = map[Status]string{
	StatusRecording:    "recording",
	StatusStopped:      "stopped",
	StatusStorageError: "storage_error",
	StatusSourceError:  "source_error",
	StatusStartFailed:  "start_failed",
	StatusTick:         "tick",
	StatusStopping:     "stopping",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsError reports whether the status ends a session abnormally or refuses one.
func (s Status) IsError() bool {
	return s == StatusStorageError || s == StatusSourceError || s == StatusStartFailed
}

// StatusEvent is one observation of the recorder.
type StatusEvent struct {
	Status    Status        `json:"status"`
	State     string        `json:"state"`
	SessionID string        `json:"session_id,omitempty"`
	File      string        `json:"file,omitempty"`
	Elapsed   time.Duration `json:"-"`
	Bytes     int64         `json:"bytes"`
	Err       error         `json:"-"`
	Timestamp time.Time     `json:"timestamp"`
}

// MarshalJSON adds elapsed seconds and the error text.
func (e StatusEvent) MarshalJSON() ([]byte, error) {
	type plain StatusEvent
	out := struct {
		plain
		ElapsedSeconds int64  `json:"elapsed_seconds"`
		Error          string `json:"error,omitempty"`
	}{plain: plain(e), ElapsedSeconds: int64(e.Elapsed / time.Second)}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

// EventConsumer receives status events, in publish order, on its own goroutine.
type EventConsumer interface {
	// Name identifies the consumer in logs and must be unique per bus.
	Name() string

	// ProcessEvent handles one event. Errors are logged and counted.
	ProcessEvent(event StatusEvent) error
}

// ConsumerFunc adapts a function to EventConsumer.
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(StatusEvent) error
}

// Name implements EventConsumer.
func (c ConsumerFunc) Name() string { return c.ConsumerName }

// ProcessEvent implements EventConsumer.
func (c ConsumerFunc) ProcessEvent(event StatusEvent) error { return c.Fn(event) }

// EventBusStats contains runtime statistics for monitoring.
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
