package recorder

import (
	"io"
	"time"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/observability/metrics"
)

// capture is the per-session pipeline: source, mixer, optional front-end,
// writer. Everything runs sequentially on one goroutine so chunks reach
// the file in arrival order.
type capture struct {
	session *Session
	src     audiocore.SampleSource
	writer  audiocore.ContainerWriter
	fe      audiocore.FrontEnd
	acc     *audiocore.FrameBuffer
	metrics *metrics.RecorderMetrics
	log     logger.Logger

	chunkFrames     int
	maxReadFailures int

	in    []int16
	mixed []int16
	fold  []int16
	out   []int16
	pcm   []byte

	readFailures  int
	writeFailures int
	lastWriteErr  error
	lastReadErr   error
}

func newCapture(s *Session, src audiocore.SampleSource, w audiocore.ContainerWriter, m *metrics.RecorderMetrics, log logger.Logger) *capture {
	frames := src.ChunkFrames()
	return &capture{
		session:         s,
		src:             src,
		writer:          w,
		metrics:         m,
		log:             log,
		chunkFrames:     frames,
		maxReadFailures: s.Config.MaxReadFailures,
		in:              make([]int16, frames*audiocore.Channels),
		mixed:           make([]int16, frames*audiocore.Channels),
	}
}

// attachFrontEnd sets up the front-end path. When the front-end cannot be
// created the session records without it; this is logged once.
func (c *capture) attachFrontEnd(factory audiocore.FrontEndFactory) {
	if factory == nil {
		c.frontEndUnavailable(errors.New(audiocore.ErrFrontEndUnavailable).
			Component(componentRecorder).
			Context("reason", "no front-end configured").
			Build())
		return
	}
	fe, err := factory(audiocore.FrontEndConfig{
		AGCMode:   c.session.Config.AGCMode,
		LagChunks: c.session.Config.FELagChunks,
	})
	if err != nil {
		c.frontEndUnavailable(err)
		return
	}
	acc, err := audiocore.NewFrameBuffer(audiocore.CapacityFor(c.chunkFrames, fe.ChunkFrames()), 1)
	if err != nil {
		_ = fe.Close()
		c.frontEndUnavailable(err)
		return
	}
	c.fe = fe
	c.acc = acc
}

func (c *capture) frontEndUnavailable(err error) {
	c.metrics.RecordFrontEndError(metrics.StageInit)
	c.log.Warn("front-end unavailable, recording without it", logger.Error(err))
	c.session.UseFrontEnd = false
}

// run loops until a stop is requested or a failure policy ends the
// session, then finalizes the file.
func (c *capture) run() sessionResult {
	res := sessionResult{session: c.session}
	res.reason, res.cause = c.loop()

	if c.fe != nil {
		if res.reason != reasonStorageError {
			c.drainOnStop()
		}
		if err := c.fe.Close(); err != nil {
			c.log.Warn("front-end close failed", logger.Error(err))
		}
	}
	if err := c.src.Close(); err != nil {
		c.log.Warn("source close failed", logger.Error(err))
	}

	res.total, res.finalizeErr = c.writer.Finalize()
	return res
}

func (c *capture) loop() (stopReason, error) {
	for {
		if c.session.stopRequested() {
			return reasonRequested, nil
		}

		n, err := c.src.Read(c.in, c.chunkFrames)
		if n > 0 {
			c.readFailures = 0
			c.process(c.in[:n*audiocore.Channels])
			if c.writeFailures >= audiocore.MaxConsecutiveWriteFailures {
				return reasonStorageError, c.lastWriteErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.log.Info("source exhausted")
				return reasonEndOfStream, nil
			}
			if c.readFailed(err) {
				return reasonSourceError, c.lastReadErr
			}
		}
	}
}

// readFailed records a failed read and reports whether the session must stop.
// A zero limit never stops.
func (c *capture) readFailed(err error) bool {
	c.readFailures++
	c.lastReadErr = err
	c.metrics.RecordReadFailure()
	c.log.Warn("source read failed, skipping cycle",
		logger.Int("consecutive", c.readFailures),
		logger.Error(err))
	return c.maxReadFailures > 0 && c.readFailures >= c.maxReadFailures
}

func (c *capture) process(in []int16) {
	n := audiocore.MixInto(c.session.Policy, c.mixed, in)
	mixed := c.mixed[:n]
	if c.fe == nil {
		c.write(mixed)
		return
	}

	c.fold = audiocore.Fold(c.fold[:0], mixed)
	if err := c.acc.Write(c.fold); err != nil {
		// The capacity always holds one source chunk plus a partial
		// front-end chunk, so this means the chunk sizes changed.
		c.log.Error("front-end accumulation failed", logger.Error(err))
		return
	}
	frames := c.fe.ChunkFrames()
	for {
		chunk, ok := c.acc.Next(frames)
		if !ok {
			return
		}
		if err := c.fe.Feed(chunk); err != nil {
			c.metrics.RecordFrontEndError(metrics.StageFeed)
			c.log.Warn("front-end feed failed", logger.Error(err))
			continue
		}
		c.drain()
	}
}

// drain fetches until the front-end is empty. A fetch error ends this
// cycle's drain and does not count toward the write failure limit.
func (c *capture) drain() {
	for {
		out, ok, err := c.fe.Fetch()
		if err != nil {
			c.metrics.RecordFrontEndError(metrics.StageFetch)
			c.log.Warn("front-end fetch failed, skipping cycle output", logger.Error(err))
			return
		}
		if !ok {
			return
		}
		c.out = audiocore.Expand(c.out[:0], out)
		c.write(c.out)
	}
}

// drainOnStop releases output the front-end is holding back. Samples left
// in the accumulation buffer are less than one front-end chunk and are
// discarded.
func (c *capture) drainOnStop() {
	if f, ok := c.fe.(audiocore.FrontEndFlusher); ok {
		f.Flush()
	}
	c.drain()
	if rest := c.acc.Len(); rest > 0 {
		c.log.Debug("discarding partial front-end chunk", logger.Int("frames", rest))
		c.acc.Reset()
	}
}

func (c *capture) write(samples []int16) {
	if len(samples) == 0 || c.writeFailures >= audiocore.MaxConsecutiveWriteFailures {
		return
	}
	c.pcm = audiocore.AppendS16LE(c.pcm[:0], samples)

	began := time.Now()
	if err := c.writer.Append(c.pcm); err != nil {
		c.writeFailures++
		c.lastWriteErr = err
		c.metrics.RecordWriteFailure()
		c.log.Error("append failed",
			logger.Int("consecutive", c.writeFailures),
			logger.Error(err))
		return
	}
	c.writeFailures = 0
	c.session.bytes.Add(int64(len(c.pcm)))
	c.metrics.RecordAppend(len(c.pcm), time.Since(began))
}
