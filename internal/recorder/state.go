package recorder

import (
	"fmt"

	"github.com/boxrec/boxrec/internal/observability/metrics"
)

// State is the recorder lifecycle state.
type State int32

const (
	// StateIdle: no session; start is accepted.
	StateIdle State = iota
	// StateRecording: a session is capturing.
	StateRecording
	// StateStopping: the capture loop is draining and the file is being
	// finalized. Start stays refused until Idle.
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) gauge() int {
	switch s {
	case StateRecording:
		return metrics.StateRecording
	case StateStopping:
		return metrics.StateStopping
	default:
		return metrics.StateIdle
	}
}

// stopReason is why a capture loop ended.
type stopReason int

const (
	reasonRequested stopReason = iota
	reasonEndOfStream
	reasonStorageError
	reasonSourceError
)

func (r stopReason) String() string {
	switch r {
	case reasonRequested:
		return "requested"
	case reasonEndOfStream:
		return "end_of_stream"
	case reasonStorageError:
		return "storage_error"
	case reasonSourceError:
		return "source_error"
	default:
		return "unknown"
	}
}
