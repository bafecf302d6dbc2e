package recorder

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/conf"
)

// Session is one recording attempt bound to one file. It is created by the
// recorder goroutine on entering Recording and handed to the capture
// goroutine, which owns the source, front-end and writer until it exits.
type Session struct {
	ID          string
	Path        string
	Policy      audiocore.MixPolicy
	UseFrontEnd bool
	Config      conf.SessionConfig
	Started     time.Time

	bytes atomic.Int64
	stop  atomic.Bool
}

func newSession(path string, cfg conf.SessionConfig) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Path:        path,
		Policy:      cfg.MixPolicy,
		UseFrontEnd: cfg.UseFrontEnd,
		Config:      cfg,
		Started:     time.Now(),
	}
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.Started)
}

// Bytes returns the PCM bytes appended so far.
func (s *Session) Bytes() int64 {
	return s.bytes.Load()
}

func (s *Session) requestStop() {
	s.stop.Store(true)
}

func (s *Session) stopRequested() bool {
	return s.stop.Load()
}

// sessionResult is sent by the capture goroutine once the file is finalized.
type sessionResult struct {
	session     *Session
	reason      stopReason
	total       int64
	finalizeErr error
	cause       error
}
