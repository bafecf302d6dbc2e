package audiocore

import (
	"github.com/boxrec/boxrec/internal/errors"
)

// FrameBuffer stages interleaved samples between two stages with different
// native chunk sizes. Data leaves in exact chunk-sized slices; whatever is
// left over is shifted to the start of the buffer, never dropped or
// reordered. Not safe for concurrent use.
type FrameBuffer struct {
	channels int
	capacity int // frames
	data     []int16
	out      []int16
}

// NewFrameBuffer creates a buffer holding up to capacityFrames frames of channels samples each.
func NewFrameBuffer(capacityFrames, channels int) (*FrameBuffer, error) {
	if capacityFrames <= 0 || channels <= 0 {
		return nil, errors.Newf("invalid frame buffer geometry").
			Component(ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("capacity_frames", capacityFrames).
			Context("channels", channels).
			Build()
	}
	return &FrameBuffer{
		channels: channels,
		capacity: capacityFrames,
		data:     make([]int16, 0, capacityFrames*channels),
	}, nil
}

// CapacityFor returns a capacity that can always absorb one more input
// chunk while holding a partial output chunk.
func CapacityFor(inFrames, outFrames int) int {
	return inFrames + outFrames
}

// Channels returns the channel count.
func (b *FrameBuffer) Channels() int { return b.channels }

// Capacity returns the capacity in frames.
func (b *FrameBuffer) Capacity() int { return b.capacity }

// Len returns the fill level in frames.
func (b *FrameBuffer) Len() int { return len(b.data) / b.channels }

// Write appends whole frames. It fails without writing anything if the
// samples would exceed capacity or are not a whole number of frames.
func (b *FrameBuffer) Write(samples []int16) error {
	if len(samples)%b.channels != 0 {
		return errors.New(ErrInvalidChunkSize).
			Component(ComponentAudioCore).
			Context("samples", len(samples)).
			Context("channels", b.channels).
			Build()
	}
	if len(b.data)+len(samples) > b.capacity*b.channels {
		return errors.New(ErrBufferOverflow).
			Component(ComponentAudioCore).
			Context("fill_frames", b.Len()).
			Context("write_frames", len(samples)/b.channels).
			Context("capacity_frames", b.capacity).
			Build()
	}
	b.data = append(b.data, samples...)
	return nil
}

// Next removes exactly frames frames from the front of the buffer. It
// returns false if fewer than frames are buffered. The returned slice is
// reused by the next call.
func (b *FrameBuffer) Next(frames int) ([]int16, bool) {
	n := frames * b.channels
	if frames <= 0 || len(b.data) < n {
		return nil, false
	}
	b.out = append(b.out[:0], b.data[:n]...)

	remaining := len(b.data) - n
	copy(b.data[:remaining], b.data[n:])
	b.data = b.data[:remaining]
	return b.out, true
}

// Reset discards buffered samples.
func (b *FrameBuffer) Reset() {
	b.data = b.data[:0]
}
