package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/events"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/recorder"
)

// Terminal is a line-oriented recording screen. Each input line is one key:
// an empty line or "r" toggles recording, "a" toggles the speech
// front-end, "m" cycles the channel mode, "s" prints the status and "q"
// quits.
type Terminal struct {
	in       io.Reader
	out      io.Writer
	rec      Controller
	settings SettingsController
	lang     string
	log      logger.Logger

	mu sync.Mutex // serializes output
}

// NewTerminal creates a terminal adapter. settings may be nil, which
// disables the a and m keys.
func NewTerminal(in io.Reader, out io.Writer, rec Controller, settings SettingsController, lang string, log logger.Logger) *Terminal {
	if log == nil {
		log = logger.Global().Module(componentUI)
	}
	return &Terminal{in: in, out: out, rec: rec, settings: settings, lang: lang, log: log}
}

// Name implements events.EventConsumer.
func (t *Terminal) Name() string { return "terminal" }

// ProcessEvent implements events.EventConsumer.
func (t *Terminal) ProcessEvent(event events.StatusEvent) error {
	t.StatusChanged(event)
	return nil
}

// StatusChanged renders one status event.
func (t *Terminal) StatusChanged(ev events.StatusEvent) {
	name := filepath.Base(ev.File)
	var line string
	switch ev.Status {
	case events.StatusRecording, events.StatusTick:
		line = fmt.Sprintf("● %s %s %s %s", t.msg(msgRecording), name, clock(ev.Elapsed), humanBytes(ev.Bytes))
	case events.StatusStopping:
		line = fmt.Sprintf("■ %s %s …", t.msg(msgStopping), name)
	case events.StatusStopped:
		line = fmt.Sprintf("■ %s %s %s %s", t.msg(msgStopped), name, clock(ev.Elapsed), humanBytes(ev.Bytes))
		if ev.Err != nil {
			line += fmt.Sprintf(" (%v)", ev.Err)
		}
	case events.StatusStartFailed:
		line = fmt.Sprintf("! %s: %v", t.msg(msgStartFailed), ev.Err)
	case events.StatusStorageError:
		line = fmt.Sprintf("! %s: %s", t.msg(msgStorageError), name)
	case events.StatusSourceError:
		line = fmt.Sprintf("! %s: %s", t.msg(msgSourceError), name)
	default:
		return
	}
	t.println(line)
}

// Run reads keys until q, end of input or ctx is cancelled. Quitting
// requests a stop first when a session is active.
func (t *Terminal) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	t.println(t.msg(msgHelp))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			t.quit()
			return err
		case line := <-lines:
			if t.Handle(line) {
				return nil
			}
		}
	}
}

// Handle dispatches one input line and reports whether the user quit.
func (t *Terminal) Handle(line string) bool {
	key := strings.ToLower(strings.TrimSpace(line))
	switch key {
	case "", "r":
		t.toggleRecording()
	case "a":
		t.toggleFrontEnd()
	case "m":
		t.cycleMixPolicy()
	case "s":
		t.printStatus()
	case "h", "?":
		t.println(t.msg(msgHelp))
	case "q":
		t.quit()
		return true
	default:
		t.println(fmt.Sprintf("%s %q", t.msg(msgUnknownKey), key))
	}
	return false
}

func (t *Terminal) toggleRecording() {
	var err error
	switch t.rec.Snapshot().State {
	case recorder.StateIdle:
		err = t.rec.Start()
	case recorder.StateRecording:
		err = t.rec.Stop()
	default:
		// start stays disabled until the previous file is finalized
		t.println(t.msg(msgBusy))
		return
	}
	if err != nil {
		t.log.Warn("recording toggle failed", logger.Error(err))
		t.println("! " + err.Error())
	}
}

func (t *Terminal) toggleFrontEnd() {
	if t.settings == nil {
		return
	}
	if t.locked() {
		return
	}
	enabled := !t.settings.FrontEndEnabled()
	if err := t.settings.SetFrontEndEnabled(enabled); err != nil {
		t.settingRejected(err)
		return
	}
	t.println(fmt.Sprintf("%s: %s", t.msg(msgFrontEnd), t.onOff(enabled)))
}

func (t *Terminal) cycleMixPolicy() {
	if t.settings == nil {
		return
	}
	if t.locked() {
		return
	}
	next := t.settings.MixerPolicy().Next()
	if err := t.settings.SetMixerPolicy(next); err != nil {
		t.settingRejected(err)
		return
	}
	t.println(fmt.Sprintf("%s: %s", t.msg(msgMixPolicy), next))
}

// locked reports, and tells the user, that pipeline settings are frozen
// for the active session.
func (t *Terminal) locked() bool {
	if t.rec.Snapshot().State == recorder.StateIdle {
		return false
	}
	t.println(t.msg(msgLockedWhileOn))
	return true
}

func (t *Terminal) settingRejected(err error) {
	if errors.Is(err, audiocore.ErrInvalidState) {
		t.println(t.msg(msgLockedWhileOn))
		return
	}
	t.log.Warn("setting change failed", logger.Error(err))
	t.println("! " + err.Error())
}

func (t *Terminal) printStatus() {
	st := t.rec.Snapshot()
	if st.State == recorder.StateIdle {
		line := t.msg(msgIdle)
		if t.settings != nil {
			line = fmt.Sprintf("%s, %s: %s, %s: %s", line,
				t.msg(msgMixPolicy), t.settings.MixerPolicy(),
				t.msg(msgFrontEnd), t.onOff(t.settings.FrontEndEnabled()))
		}
		t.println(line)
		return
	}
	t.println(fmt.Sprintf("%s %s %s %s, %s: %s, %s: %s",
		st.State, filepath.Base(st.File), clock(st.Elapsed), humanBytes(st.Bytes),
		t.msg(msgMixPolicy), st.Policy, t.msg(msgFrontEnd), t.onOff(st.UseFrontEnd)))
}

func (t *Terminal) quit() {
	if t.rec.Snapshot().State == recorder.StateRecording {
		if err := t.rec.Stop(); err != nil {
			t.log.Warn("stop on quit failed", logger.Error(err))
		}
	}
}

func (t *Terminal) msg(key string) string {
	return text(t.lang, key)
}

func (t *Terminal) onOff(b bool) string {
	if b {
		return t.msg(msgOn)
	}
	return t.msg(msgOff)
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintln(t.out, line); err != nil {
		t.log.Debug("terminal write failed", logger.Error(err))
	}
}

// clock formats d as h:mm:ss, dropping hours when zero.
func clock(d time.Duration) string {
	s := int64(d / time.Second)
	h, m, sec := s/3600, (s/60)%60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
