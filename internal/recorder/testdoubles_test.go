package recorder

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/events"
	"github.com/boxrec/boxrec/internal/logger"
)

func quietLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("recorder")
}

// staticSettings is a SettingsSource returning a fixed snapshot.
type staticSettings struct {
	cfg conf.SessionConfig
}

func (s staticSettings) Snapshot() conf.SessionConfig { return s.cfg }

func sessionConfig(dir string) conf.SessionConfig {
	return conf.SessionConfig{
		Dir:             dir,
		MixPolicy:       audiocore.MixMonoDownmix,
		ChunkFrames:     160,
		MaxReadFailures: 3,
		RefreshInterval: time.Hour,
	}
}

// scriptSource yields a fixed number of chunks of a constant stereo frame,
// then blocks each Read until hold is closed and reports a transient
// failure, so a stop can land between the scripted data and the next read.
type scriptSource struct {
	frames int
	left   int16
	right  int16
	chunks int

	hold chan struct{}

	mu       sync.Mutex
	served   int
	reads    atomic.Int64
	closed   atomic.Bool
	consumed chan struct{} // closed after the last scripted chunk
	once     sync.Once
}

func newScriptSource(frames, chunks int, left, right int16) *scriptSource {
	return &scriptSource{
		frames:   frames,
		left:     left,
		right:    right,
		chunks:   chunks,
		hold:     make(chan struct{}),
		consumed: make(chan struct{}),
	}
}

func (s *scriptSource) ID() string                    { return "script" }
func (s *scriptSource) Format() audiocore.AudioFormat { return audiocore.RecordingFormat }
func (s *scriptSource) ChunkFrames() int              { return s.frames }
func (s *scriptSource) release()                      { close(s.hold) }
func (s *scriptSource) Close() error                  { s.closed.Store(true); return nil }

func (s *scriptSource) Read(buf []int16, frames int) (int, error) {
	s.reads.Add(1)
	if frames != s.frames {
		return 0, audiocore.ErrInvalidChunkSize
	}
	s.mu.Lock()
	if s.served < s.chunks {
		s.served++
		last := s.served == s.chunks
		s.mu.Unlock()
		for i := 0; i < frames; i++ {
			buf[2*i], buf[2*i+1] = s.left, s.right
		}
		if last {
			s.once.Do(func() { close(s.consumed) })
		}
		return frames, nil
	}
	s.mu.Unlock()
	<-s.hold
	time.Sleep(time.Millisecond)
	return 0, audiocore.ErrHardwareTransient
}

// rampSource yields an endless ramp, distinct per sample, so ordering
// errors show up in the output.
type rampSource struct {
	frames   int
	next     int16
	produced atomic.Int64
	closed   atomic.Bool
}

func (s *rampSource) ID() string                    { return "ramp" }
func (s *rampSource) Format() audiocore.AudioFormat { return audiocore.RecordingFormat }
func (s *rampSource) ChunkFrames() int              { return s.frames }
func (s *rampSource) Close() error                  { s.closed.Store(true); return nil }

func (s *rampSource) Read(buf []int16, frames int) (int, error) {
	time.Sleep(100 * time.Microsecond)
	for i := 0; i < frames; i++ {
		buf[2*i] = s.next
		buf[2*i+1] = -s.next
		s.next++
	}
	s.produced.Add(int64(frames))
	return frames, nil
}

// failingSource fails every read.
type failingSource struct {
	frames int
	reads  atomic.Int64
}

func (s *failingSource) ID() string                    { return "failing" }
func (s *failingSource) Format() audiocore.AudioFormat { return audiocore.RecordingFormat }
func (s *failingSource) ChunkFrames() int              { return s.frames }
func (s *failingSource) Close() error                  { return nil }

func (s *failingSource) Read([]int16, int) (int, error) {
	s.reads.Add(1)
	time.Sleep(100 * time.Microsecond)
	return 0, errors.New(audiocore.ErrHardwareTransient).
		Component("test").
		Context("operation", "read").
		Build()
}

// flakySource fails failures reads in a row, then delivers one chunk of
// an endless ramp, and repeats.
type flakySource struct {
	frames   int
	failures int

	mu        sync.Mutex
	next      int16
	streak    int
	reads     atomic.Int64
	delivered atomic.Int64
}

func (s *flakySource) ID() string                    { return "flaky" }
func (s *flakySource) Format() audiocore.AudioFormat { return audiocore.RecordingFormat }
func (s *flakySource) ChunkFrames() int              { return s.frames }
func (s *flakySource) Close() error                  { return nil }

func (s *flakySource) Read(buf []int16, frames int) (int, error) {
	s.reads.Add(1)
	time.Sleep(100 * time.Microsecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streak < s.failures {
		s.streak++
		return 0, errors.New(audiocore.ErrHardwareTransient).
			Component("test").
			Context("operation", "read").
			Build()
	}
	s.streak = 0
	for i := 0; i < frames; i++ {
		buf[2*i] = s.next
		buf[2*i+1] = s.next
		s.next++
	}
	s.delivered.Add(1)
	return frames, nil
}

// memWriter is a ContainerWriter keeping the data in memory. With
// succeedEvery set, only every succeedEvery-th append goes through and the
// ones in between fail.
type memWriter struct {
	mu           sync.Mutex
	path         string
	data         []byte
	appends      int
	finalizes    int
	openErr      error
	failAll      bool
	succeedEvery int
}

func (w *memWriter) Open(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.openErr != nil {
		return w.openErr
	}
	w.path = path
	return nil
}

func (w *memWriter) Append(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appends++
	if w.failAll || (w.succeedEvery > 0 && w.appends%w.succeedEvery != 0) {
		return errors.New(audiocore.ErrIOFailure).
			Component("test").
			Context("operation", "append").
			Build()
	}
	w.data = append(w.data, p...)
	return nil
}

func (w *memWriter) Finalize() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finalizes++
	return int64(len(w.data)), nil
}

func (w *memWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *memWriter) stats() (appends, finalizes int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appends, w.finalizes
}

func (w *memWriter) samples() []int16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return audiocore.DecodeS16LE(nil, w.data)
}

// writerFactory hands out the same writer and counts how often it was asked.
type writerFactory struct {
	w     *memWriter
	calls atomic.Int64
}

func (f *writerFactory) New() audiocore.ContainerWriter {
	f.calls.Add(1)
	return f.w
}

// identityFrontEnd returns every fed chunk unchanged, optionally lagging
// and failing every failEvery-th fetch.
type identityFrontEnd struct {
	chunk     int
	lag       int
	failEvery int

	mu      sync.Mutex
	fed     []int16
	queue   [][]int16
	fetches int
	flushed bool
	closed  bool
}

func (fe *identityFrontEnd) ChunkFrames() int { return fe.chunk }

func (fe *identityFrontEnd) Feed(chunk []int16) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if len(chunk) != fe.chunk {
		return audiocore.ErrInvalidChunkSize
	}
	fe.fed = append(fe.fed, chunk...)
	fe.queue = append(fe.queue, append([]int16(nil), chunk...))
	return nil
}

func (fe *identityFrontEnd) Fetch() ([]int16, bool, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.fetches++
	if fe.failEvery > 0 && fe.fetches%fe.failEvery == 0 {
		return nil, false, errors.Newf("fetch failed").
			Component("test").
			Category(errors.CategoryFrontEnd).
			Build()
	}
	if len(fe.queue) <= fe.lag {
		return nil, false, nil
	}
	out := fe.queue[0]
	fe.queue = fe.queue[1:]
	return out, true, nil
}

func (fe *identityFrontEnd) Flush() {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.lag = 0
	fe.flushed = true
}

func (fe *identityFrontEnd) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.closed = true
	return nil
}

func (fe *identityFrontEnd) fedSamples() []int16 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]int16(nil), fe.fed...)
}

// eventLog is a Publisher recording every event.
type eventLog struct {
	mu     sync.Mutex
	events []events.StatusEvent
}

func (l *eventLog) TryPublish(ev events.StatusEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return true
}

// statuses returns the published statuses, ticks excluded.
func (l *eventLog) statuses() []events.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Status
	for _, ev := range l.events {
		if ev.Status != events.StatusTick {
			out = append(out, ev.Status)
		}
	}
	return out
}

func (l *eventLog) last() events.StatusEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return events.StatusEvent{}
	}
	return l.events[len(l.events)-1]
}
