package malgo

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
)

// bridge turns malgo's push callback into the pull Read of a SampleSource.
// The callback writes into a byte ring; the reader waits for a full chunk.
// When the ring is full the oldest frames are dropped and an overrun is
// counted. All sizes stay multiples of audiocore.BytesPerFrame.
type bridge struct {
	mu       sync.Mutex
	rb       *ringbuffer.RingBuffer
	capacity int
	discard  []byte
	chunk    []byte

	ready    chan struct{}
	done     chan struct{}
	closed   atomic.Bool
	overruns atomic.Uint64
	received atomic.Uint64
}

func newBridge(chunkFrames, bufferChunks int) *bridge {
	capacity := chunkFrames * bufferChunks * audiocore.BytesPerFrame
	return &bridge{
		rb:       ringbuffer.New(capacity),
		capacity: capacity,
		discard:  make([]byte, capacity),
		chunk:    make([]byte, chunkFrames*audiocore.BytesPerFrame),
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// push stores one callback period. It never blocks the audio thread for
// longer than the ring copy.
func (b *bridge) push(p []byte) {
	if b.closed.Load() || len(p) == 0 {
		return
	}
	p = p[:len(p)-len(p)%audiocore.BytesPerFrame]
	if len(p) > b.capacity {
		b.overruns.Add(1)
		p = p[len(p)-b.capacity:]
	}

	b.mu.Lock()
	if free := b.rb.Free(); free < len(p) {
		drop := len(p) - free
		if rem := drop % audiocore.BytesPerFrame; rem != 0 {
			drop += audiocore.BytesPerFrame - rem
		}
		_, _ = b.rb.Read(b.discard[:drop])
		b.overruns.Add(1)
	}
	n, _ := b.rb.Write(p)
	b.mu.Unlock()
	b.received.Add(uint64(n))

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// read waits up to timeout for one full chunk and decodes it into buf.
func (b *bridge) read(buf []int16, timeout time.Duration) (int, error) {
	need := len(b.chunk)
	var timer *time.Timer
	for {
		if b.closed.Load() {
			return 0, io.EOF
		}

		b.mu.Lock()
		if b.rb.Length() >= need {
			n, err := b.rb.Read(b.chunk)
			b.mu.Unlock()
			if err != nil || n != need {
				return 0, transient(err, "ring_read")
			}
			audiocore.DecodeS16LE(buf[:0], b.chunk)
			return need / audiocore.BytesPerFrame, nil
		}
		b.mu.Unlock()

		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-b.ready:
		case <-b.done:
			return 0, io.EOF
		case <-timer.C:
			return 0, transient(nil, "read_timeout")
		}
	}
}

func (b *bridge) close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
		b.mu.Lock()
		b.rb.Reset()
		b.mu.Unlock()
	}
}

func transient(err error, operation string) error {
	if err == nil {
		err = audiocore.ErrHardwareTransient
	}
	return errors.New(err).
		Component(componentAudio).
		Category(errors.CategoryAudioSource).
		Context("operation", operation).
		Build()
}
