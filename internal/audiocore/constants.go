package audiocore

import "time"

// Recording format. The container always declares two channels regardless
// of mix policy; see Mix.
const (
	SampleRate     = 16000
	Channels       = 2
	BitDepth       = 16
	BytesPerSample = BitDepth / 8
	BytesPerFrame  = Channels * BytesPerSample
	EncodingS16LE  = "pcm_s16le"
)

const (
	// DefaultSourceChunkFrames is the capture device period: 30 ms at 16 kHz.
	DefaultSourceChunkFrames = 480

	// DefaultFrontEndChunkFrames is the speech enhancer's native chunk: 32 ms at 16 kHz.
	DefaultFrontEndChunkFrames = 512

	// MaxConsecutiveWriteFailures forces an automatic stop when storage keeps failing.
	MaxConsecutiveWriteFailures = 3
)

// RecordingFormat is the fixed format every recording is written in.
var RecordingFormat = AudioFormat{
	SampleRate: SampleRate,
	Channels:   Channels,
	BitDepth:   BitDepth,
	Encoding:   EncodingS16LE,
}

// ChunkDuration returns the real-time duration of frames at the recording sample rate.
func ChunkDuration(frames int) time.Duration {
	return time.Duration(frames) * time.Second / SampleRate
}
