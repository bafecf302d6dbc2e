// Package recorder runs the recording state machine: it owns the
// Idle/Recording/Stopping lifecycle, consumes start and stop intents from a
// queue, spawns one capture goroutine per session and publishes status
// events for observers.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/events"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/observability/metrics"
	"github.com/boxrec/boxrec/internal/recordings"
)

const componentRecorder = "recorder"

// DefaultIntentQueueSize bounds the number of pending start/stop requests.
const DefaultIntentQueueSize = 16

// SettingsSource supplies the session configuration at start.
type SettingsSource interface {
	Snapshot() conf.SessionConfig
}

// Publisher receives status events. TryPublish must not block.
type Publisher interface {
	TryPublish(event events.StatusEvent) bool
}

// Config wires a Recorder to its collaborators.
type Config struct {
	Settings    SettingsSource
	OpenSource  func() (audiocore.SampleSource, error)
	NewWriter   func() audiocore.ContainerWriter
	NewFrontEnd audiocore.FrontEndFactory // nil disables the front-end
	Guard       *audiocore.DeviceGuard
	Publisher   Publisher
	Metrics     *metrics.RecorderMetrics
	Logger      logger.Logger
	QueueSize   int
}

type intentKind int

const (
	intentStart intentKind = iota
	intentStop
)

type intent struct {
	kind  intentKind
	reply chan error // nil for fire-and-forget
}

// Status is a point-in-time view of the recorder.
type Status struct {
	State       State
	SessionID   string
	File        string
	Elapsed     time.Duration
	Bytes       int64
	Policy      audiocore.MixPolicy
	UseFrontEnd bool
}

// Recorder is the recording state machine. Start and Stop only enqueue
// intents; Run consumes them on its own goroutine.
type Recorder struct {
	cfg     Config
	log     logger.Logger
	intents chan intent
	results chan sessionResult

	mu      sync.RWMutex
	state   State
	session *Session

	// touched only by the Run goroutine
	stopWaiters []chan error
	ticker      *time.Ticker

	quit     chan struct{}
	quitOnce sync.Once
	runMu    sync.Mutex
	runDone  chan struct{}
}

// New validates cfg and returns an idle Recorder.
func New(cfg Config) (*Recorder, error) {
	if cfg.Settings == nil || cfg.OpenSource == nil || cfg.NewWriter == nil {
		return nil, errors.Newf("recorder requires settings, a source opener and a writer factory").
			Component(componentRecorder).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Guard == nil {
		cfg.Guard = audiocore.NewDeviceGuard()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global().Module(componentRecorder)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultIntentQueueSize
	}
	r := &Recorder{
		cfg:     cfg,
		log:     cfg.Logger,
		intents: make(chan intent, cfg.QueueSize),
		results: make(chan sessionResult, 1),
		quit:    make(chan struct{}),
	}
	cfg.Metrics.SetState(StateIdle.gauge())
	return r, nil
}

// Guard returns the device guard the recorder sets while recording.
func (r *Recorder) Guard() *audiocore.DeviceGuard {
	return r.cfg.Guard
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// RecordingActive reports whether a session is in progress, Stopping included.
func (r *Recorder) RecordingActive() bool {
	return r.State() != StateIdle
}

// Snapshot returns the current state and session progress.
func (r *Recorder) Snapshot() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{State: r.state}
	if s := r.session; s != nil {
		st.SessionID = s.ID
		st.File = s.Path
		st.Elapsed = s.Elapsed()
		st.Bytes = s.Bytes()
		st.Policy = s.Policy
		st.UseFrontEnd = s.UseFrontEnd
	}
	return st
}

// Start requests a new session. It returns once the intent is queued.
func (r *Recorder) Start() error {
	return r.enqueue(intent{kind: intentStart})
}

// Stop requests the current session to stop. It returns once the intent is queued.
func (r *Recorder) Stop() error {
	return r.enqueue(intent{kind: intentStop})
}

// StartSync requests a session and waits until it is recording or the
// start failed.
func (r *Recorder) StartSync(ctx context.Context) error {
	return r.send(ctx, intentStart)
}

// StopSync requests a stop and waits until the file is finalized and the
// recorder is idle again.
func (r *Recorder) StopSync(ctx context.Context) error {
	return r.send(ctx, intentStop)
}

func (r *Recorder) send(ctx context.Context, kind intentKind) error {
	reply := make(chan error, 1)
	if err := r.enqueue(intent{kind: kind, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.quit:
		return errClosed()
	}
}

func (r *Recorder) enqueue(in intent) error {
	select {
	case <-r.quit:
		return errClosed()
	default:
	}
	select {
	case r.intents <- in:
		return nil
	default:
		return errors.Newf("recorder intent queue full").
			Component(componentRecorder).
			Category(errors.CategoryLimit).
			Context("queue_size", cap(r.intents)).
			Build()
	}
}

// Run consumes intents until ctx is cancelled or Close is called. An
// active session is stopped and finalized before Run returns.
func (r *Recorder) Run(ctx context.Context) error {
	r.runMu.Lock()
	if r.runDone != nil {
		r.runMu.Unlock()
		return errors.Newf("recorder already running").
			Component(componentRecorder).
			Category(errors.CategoryState).
			Build()
	}
	r.runDone = make(chan struct{})
	r.runMu.Unlock()
	defer close(r.runDone)

	r.log.Info("recorder started")
	for {
		select {
		case in := <-r.intents:
			r.handle(in)
		case res := <-r.results:
			r.finish(res)
		case <-r.tick():
			r.publish(events.StatusTick, nil)
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-r.quit:
			r.shutdown()
			return nil
		}
	}
}

// Close stops the Run loop, finalizing any active session, and waits for it.
func (r *Recorder) Close() error {
	r.quitOnce.Do(func() { close(r.quit) })
	r.runMu.Lock()
	done := r.runDone
	r.runMu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}

func (r *Recorder) shutdown() {
	if s := r.currentSession(); s != nil {
		r.log.Info("stopping active session on shutdown", logger.String("session_id", s.ID))
		if r.State() == StateRecording {
			r.beginStop(s)
		}
		r.finish(<-r.results)
	}
	// Fail whatever is still queued.
	for {
		select {
		case in := <-r.intents:
			if in.reply != nil {
				in.reply <- errClosed()
			}
		default:
			r.log.Info("recorder stopped")
			return
		}
	}
}

func (r *Recorder) handle(in intent) {
	var err error
	switch in.kind {
	case intentStart:
		err = r.start()
	case intentStop:
		if r.stop() {
			if in.reply != nil {
				r.stopWaiters = append(r.stopWaiters, in.reply)
			}
			return
		}
		err = invalidState("stop", r.State())
	}
	if in.reply != nil {
		in.reply <- err
	}
}

// start runs Idle -> Recording. Failures leave the recorder idle and are
// published as StatusStartFailed.
func (r *Recorder) start() error {
	if st := r.State(); st != StateIdle {
		r.log.Warn("start ignored", logger.String("state", st.String()))
		return invalidState("start", st)
	}

	cfg := r.cfg.Settings.Snapshot()
	store := recordings.New(cfg.Dir, r.log.Module("recordings"))

	if err := store.CheckFreeSpace(cfg.MinFreeMB); err != nil {
		return r.startFailed(err, "")
	}

	src, err := r.cfg.OpenSource()
	if err != nil {
		return r.startFailed(err, "")
	}

	path, err := store.NextPath()
	if err != nil {
		_ = src.Close()
		return r.startFailed(err, "")
	}

	w := r.cfg.NewWriter()
	if err := w.Open(path); err != nil {
		_ = src.Close()
		return r.startFailed(err, path)
	}

	s := newSession(path, cfg)
	c := newCapture(s, src, w, r.cfg.Metrics, r.log.With(logger.String("session_id", s.ID)))
	if cfg.UseFrontEnd {
		c.attachFrontEnd(r.cfg.NewFrontEnd)
	}

	r.mu.Lock()
	r.session = s
	r.state = StateRecording
	r.mu.Unlock()
	if err := r.cfg.Guard.SetRecording(true); err != nil {
		r.log.Warn("device lock not written, other processes may open the device", logger.Error(err))
	}
	r.cfg.Metrics.SetState(StateRecording.gauge())
	r.startTicker(cfg.RefreshInterval)

	go func() {
		r.results <- c.run()
	}()

	r.log.Info("recording started",
		logger.String("session_id", s.ID),
		logger.String("file", path),
		logger.String("mix_policy", s.Policy.String()),
		logger.Bool("front_end", c.fe != nil))
	r.publish(events.StatusRecording, nil)
	return nil
}

func (r *Recorder) startFailed(err error, path string) error {
	r.log.Error("could not start recording", logger.String("file", path), logger.Error(err))
	r.cfg.Metrics.RecordSession(metrics.OutcomeStartFailed, 0)
	r.publishEvent(events.StatusEvent{
		Status:    events.StatusStartFailed,
		State:     StateIdle.String(),
		File:      path,
		Err:       err,
		Timestamp: time.Now(),
	})
	return err
}

// stop runs Recording -> Stopping. A stop while already Stopping joins
// the pending one.
func (r *Recorder) stop() bool {
	r.mu.RLock()
	st, s := r.state, r.session
	r.mu.RUnlock()

	switch st {
	case StateRecording:
		r.beginStop(s)
		return true
	case StateStopping:
		r.log.Debug("stop already in progress", logger.String("session_id", s.ID))
		return true
	default:
		r.log.Warn("stop ignored", logger.String("state", st.String()))
		return false
	}
}

func (r *Recorder) beginStop(s *Session) {
	s.requestStop()
	r.mu.Lock()
	r.state = StateStopping
	r.mu.Unlock()
	r.cfg.Metrics.SetState(StateStopping.gauge())
	r.stopTicker()
	r.log.Info("stopping recording", logger.String("session_id", s.ID))
	r.publish(events.StatusStopping, nil)
}

// finish runs Stopping -> Idle once the capture goroutine has finalized
// the file. It is also the path for automatic stops.
func (r *Recorder) finish(res sessionResult) {
	s := res.session
	if r.State() == StateRecording {
		// automatic stop: the loop ended on its own
		r.mu.Lock()
		r.state = StateStopping
		r.mu.Unlock()
		r.stopTicker()
	}

	status, outcome := events.StatusStopped, metrics.OutcomeStopped
	var err error
	switch res.reason {
	case reasonStorageError:
		status, outcome, err = events.StatusStorageError, metrics.OutcomeStorageError, res.cause
	case reasonSourceError:
		status, outcome, err = events.StatusSourceError, metrics.OutcomeSourceError, res.cause
	}
	if res.finalizeErr != nil {
		r.log.Error("finalize failed", logger.String("session_id", s.ID), logger.Error(res.finalizeErr))
		if err == nil {
			err = res.finalizeErr
		}
	}

	elapsed := s.Elapsed()
	r.mu.Lock()
	r.state = StateIdle
	r.session = nil
	r.mu.Unlock()
	if err := r.cfg.Guard.SetRecording(false); err != nil {
		r.log.Warn("device lock not removed", logger.Error(err))
	}
	r.cfg.Metrics.SetState(StateIdle.gauge())
	r.cfg.Metrics.RecordSession(outcome, elapsed)

	r.log.Info("recording stopped",
		logger.String("session_id", s.ID),
		logger.String("file", s.Path),
		logger.String("reason", res.reason.String()),
		logger.Int64("bytes", res.total),
		logger.Duration("elapsed", elapsed))

	r.publishEvent(events.StatusEvent{
		Status:    status,
		State:     StateIdle.String(),
		SessionID: s.ID,
		File:      s.Path,
		Elapsed:   elapsed,
		Bytes:     res.total,
		Err:       err,
		Timestamp: time.Now(),
	})

	for _, w := range r.stopWaiters {
		w <- nil
	}
	r.stopWaiters = nil
}

func (r *Recorder) currentSession() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

func (r *Recorder) startTicker(interval time.Duration) {
	if interval <= 0 {
		interval = conf.DefaultRefreshInterval
	}
	r.ticker = time.NewTicker(interval)
}

func (r *Recorder) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

// tick returns the ticker channel, or nil so the select never fires.
func (r *Recorder) tick() <-chan time.Time {
	if r.ticker == nil {
		return nil
	}
	return r.ticker.C
}

func (r *Recorder) publish(status events.Status, err error) {
	snap := r.Snapshot()
	r.publishEvent(events.StatusEvent{
		Status:    status,
		State:     snap.State.String(),
		SessionID: snap.SessionID,
		File:      snap.File,
		Elapsed:   snap.Elapsed,
		Bytes:     snap.Bytes,
		Err:       err,
		Timestamp: time.Now(),
	})
}

func (r *Recorder) publishEvent(ev events.StatusEvent) {
	if r.cfg.Publisher == nil {
		return
	}
	if !r.cfg.Publisher.TryPublish(ev) {
		r.log.Debug("status event dropped", logger.String("status", ev.Status.String()))
	}
}

func invalidState(op string, st State) error {
	return errors.New(audiocore.ErrInvalidState).
		Component(componentRecorder).
		Context("operation", op).
		Context("state", st.String()).
		Build()
}

func errClosed() error {
	return errors.Newf("recorder closed").
		Component(componentRecorder).
		Category(errors.CategoryResource).
		Build()
}
