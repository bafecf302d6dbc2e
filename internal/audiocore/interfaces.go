package audiocore

import (
	"context"
	"time"
)

// AudioFormat represents the format of audio data
type AudioFormat struct {
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1 for mono, 2 for stereo)
	BitDepth   int    // Bits per sample
	Encoding   string // Encoding format (e.g., "pcm_s16le")
}

// BytesPerSecond returns the data rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// AudioData represents a chunk of audio with metadata
type AudioData struct {
	Buffer    []byte        // Raw audio data
	Format    AudioFormat   // Audio format information
	Timestamp time.Time     // When this audio was captured
	Duration  time.Duration // Duration of the audio chunk
	SourceID  string        // Identifier of the source that produced this audio
}

// SampleSource is a blocking pull source of interleaved stereo S16 frames.
//
// Read blocks until frames frames (frames*Channels samples) have been copied
// into buf or the device fails. frames must equal ChunkFrames. On a hardware
// failure Read returns 0 and an error matching ErrHardwareTransient; the
// caller skips the cycle. A finite source returns io.EOF when exhausted.
type SampleSource interface {
	ID() string
	Read(buf []int16, frames int) (int, error)
	Format() AudioFormat
	ChunkFrames() int
	Close() error
}

// FrontEnd is a single-channel speech enhancement stage with its own native chunk size.
//
// Feed accepts exactly ChunkFrames mono samples. Fetch is non-blocking and
// reports false when no output is queued; it must be drained after every
// Feed because output may lag input or arrive in bursts.
type FrontEnd interface {
	ChunkFrames() int
	Feed(chunk []int16) error
	Fetch() ([]int16, bool, error)
	Close() error
}

// FrontEndConfig configures a FrontEnd at session start.
type FrontEndConfig struct {
	ChunkFrames int // 0 selects DefaultFrontEndChunkFrames
	AGCMode     int // 0 off, 1 moderate, 2 aggressive
	LagChunks   int // outputs held back before Fetch yields them
}

// FrontEndFactory creates a FrontEnd for one session.
type FrontEndFactory func(cfg FrontEndConfig) (FrontEnd, error)

// ContainerWriter incrementally writes one recording file.
type ContainerWriter interface {
	Open(path string) error
	Append(p []byte) error
	Finalize() (int64, error)
	Path() string
}

// AudioProcessor processes audio data
type AudioProcessor interface {
	// ID returns a unique identifier for this processor
	ID() string

	// Process transforms audio data
	Process(ctx context.Context, input *AudioData) (*AudioData, error)

	// GetRequiredFormat returns the audio format this processor requires,
	// or nil if the processor can handle any format
	GetRequiredFormat() *AudioFormat

	// GetOutputFormat returns the audio format this processor outputs
	// given an input format
	GetOutputFormat(inputFormat AudioFormat) AudioFormat
}

// ProcessorChain represents a sequence of audio processors
type ProcessorChain interface {
	AddProcessor(processor AudioProcessor) error
	RemoveProcessor(id string) error
	Process(ctx context.Context, input *AudioData) (*AudioData, error)
	GetProcessors() []AudioProcessor
}

// FrontEndFlusher is implemented by front-ends that hold output back.
// Flush releases everything queued so a final Fetch drain sees it.
type FrontEndFlusher interface {
	Flush()
}
