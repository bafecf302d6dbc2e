// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Session outcome labels.
const (
	// OutcomeStopped is a session ended by an explicit stop.
	OutcomeStopped = "stopped"
	// OutcomeStorageError is a session ended after consecutive append failures.
	OutcomeStorageError = "storage_error"
	// OutcomeSourceError is a session ended after consecutive read failures.
	OutcomeSourceError = "source_error"
	// OutcomeStartFailed is a start attempt that never reached Recording.
	OutcomeStartFailed = "start_failed"
)

// Front-end stage labels.
const (
	StageInit  = "init"
	StageFeed  = "feed"
	StageFetch = "fetch"
)

// Recorder state gauge values.
const (
	StateIdle      = 0
	StateRecording = 1
	StateStopping  = 2
)

// Histogram bucket parameters.
const (
	// BucketStart1ms is the first bucket for storage latencies.
	BucketStart1ms = 0.001
	// BucketStart1s is the first bucket for session durations.
	BucketStart1s = 1.0
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2.0
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
	// BucketStart64B is the first bucket for message sizes.
	BucketStart64B = 64
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
