package audiocore

import (
	"github.com/boxrec/boxrec/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

// Failure taxonomy of the capture pipeline. EnhancedError matches by
// category, so any error built with the same category satisfies errors.Is
// against these sentinels.
var (
	// ErrHardwareTransient is a failed source read. The cycle is skipped.
	ErrHardwareTransient = errors.Newf("audio source read failed").
		Component(ComponentAudioCore).
		Category(errors.CategoryAudioSource).
		Build()

	// ErrIOFailure is a failed open, append or finalize on the recording file.
	ErrIOFailure = errors.Newf("recording storage failure").
		Component(ComponentAudioCore).
		Category(errors.CategoryFileIO).
		Build()

	// ErrFrontEndUnavailable means the session continues without the front-end.
	ErrFrontEndUnavailable = errors.Newf("front-end unavailable").
		Component(ComponentAudioCore).
		Category(errors.CategoryFrontEnd).
		Build()

	// ErrInvalidState is returned for start while recording, stop while idle
	// and settings changes while recording.
	ErrInvalidState = errors.Newf("invalid recorder state").
		Component(ComponentAudioCore).
		Category(errors.CategoryState).
		Build()

	// ErrInvalidChunkSize is returned when a stage is handed a chunk of the wrong size.
	ErrInvalidChunkSize = errors.Newf("invalid chunk size").
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "chunk").
		Build()

	// ErrBufferOverflow is returned when a FrameBuffer write exceeds capacity.
	ErrBufferOverflow = errors.Newf("frame buffer overflow").
		Component(ComponentAudioCore).
		Category(errors.CategoryBuffer).
		Build()

	// ErrDeviceBusy is returned by playback while a recording holds the audio device.
	ErrDeviceBusy = errors.Newf("audio device busy: recording active").
		Component(ComponentAudioCore).
		Category(errors.CategoryConflict).
		Build()
)
