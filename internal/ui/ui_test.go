package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/events"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/recorder"
)

func quietLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("ui")
}

// fakeRecorder records intents and reports a settable state.
type fakeRecorder struct {
	mu     sync.Mutex
	state  recorder.State
	starts int
	stops  int
}

func (f *fakeRecorder) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeRecorder) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRecorder) Snapshot() recorder.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return recorder.Status{State: f.state, File: "/sdcard/r/R0007.WAV", Policy: audiocore.MixMonoDownmix}
}

func (f *fakeRecorder) RecordingActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != recorder.StateIdle
}

func (f *fakeRecorder) set(st recorder.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
}

func (f *fakeRecorder) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func newTestTerminal(rec *fakeRecorder, lang string) (*Terminal, *conf.Store, *bytes.Buffer) {
	settings := &conf.Settings{}
	settings.Recording.RawMode = int(audiocore.MixMonoDownmix)
	store := conf.NewStore(settings, rec)
	out := &bytes.Buffer{}
	return NewTerminal(strings.NewReader(""), out, rec, store, lang, quietLogger()), store, out
}

func TestTerminalTogglesRecording(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	term, _, out := newTestTerminal(rec, "en")

	assert.False(t, term.Handle(""))
	starts, stops := rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, stops)

	rec.set(recorder.StateRecording)
	assert.False(t, term.Handle("r"))
	starts, stops = rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)

	// Start is disabled while the previous file is being finalized.
	rec.set(recorder.StateStopping)
	assert.False(t, term.Handle("R"))
	starts, stops = rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Contains(t, out.String(), "still saving")
}

func TestTerminalSettingsLockedWhileRecording(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	term, store, out := newTestTerminal(rec, "en")

	term.Handle("a")
	assert.True(t, store.FrontEndEnabled())
	assert.Contains(t, out.String(), "speech enhancement: on")

	term.Handle("m")
	assert.Equal(t, audiocore.MixStereo, store.MixerPolicy())
	assert.Contains(t, out.String(), "channel mode: stereo")

	rec.set(recorder.StateRecording)
	out.Reset()
	term.Handle("a")
	term.Handle("m")
	assert.True(t, store.FrontEndEnabled())
	assert.Equal(t, audiocore.MixStereo, store.MixerPolicy())
	assert.Equal(t, 2, strings.Count(out.String(), "cannot change while recording"))
}

func TestTerminalQuitStopsRecording(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{state: recorder.StateRecording}
	term, _, _ := newTestTerminal(rec, "en")

	assert.True(t, term.Handle("q"))
	_, stops := rec.counts()
	assert.Equal(t, 1, stops)
}

func TestTerminalRun(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	out := &bytes.Buffer{}
	term := NewTerminal(strings.NewReader("\ns\nx\nq\nr\n"), out, rec, nil, "en", quietLogger())

	require.NoError(t, term.Run(context.Background()))
	starts, _ := rec.counts()
	assert.Equal(t, 1, starts, "input after q is not processed")
	assert.Contains(t, out.String(), "keys:")
	assert.Contains(t, out.String(), `unknown key "x"`)
}

func TestTerminalRunEndOfInput(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{state: recorder.StateRecording}
	term := NewTerminal(strings.NewReader("s\n"), io.Discard, rec, nil, "en", quietLogger())

	require.NoError(t, term.Run(context.Background()))
	_, stops := rec.counts()
	assert.Equal(t, 1, stops)
}

func TestTerminalRendersStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		lang  string
		event events.StatusEvent
		want  string
	}{
		{"recording", "en", events.StatusEvent{Status: events.StatusRecording, File: "/sdcard/r/R0001.WAV"}, "● REC R0001.WAV 00:00 0 B"},
		{"tick", "en", events.StatusEvent{Status: events.StatusTick, File: "/sdcard/r/R0001.WAV", Elapsed: 65 * time.Second, Bytes: 2048}, "● REC R0001.WAV 01:05 2.0 KB"},
		{"stopped", "en", events.StatusEvent{Status: events.StatusStopped, File: "R0001.WAV", Elapsed: time.Hour + 2*time.Second, Bytes: 3 << 20}, "■ saved R0001.WAV 1:00:02 3.0 MB"},
		{"start failed", "en", events.StatusEvent{Status: events.StatusStartFailed, Err: errors.NewStd("disk full")}, "! could not start recording: disk full"},
		{"storage error", "en", events.StatusEvent{Status: events.StatusStorageError, File: "R0002.WAV"}, "! storage error, recording stopped: R0002.WAV"},
		{"source error", "cn", events.StatusEvent{Status: events.StatusSourceError, File: "R0003.WAV"}, "! 麦克风错误，录音已停止: R0003.WAV"},
		{"unknown language falls back", "de", events.StatusEvent{Status: events.StatusStopping, File: "R0004.WAV"}, "■ finishing R0004.WAV …"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := &bytes.Buffer{}
			term := NewTerminal(strings.NewReader(""), out, &fakeRecorder{}, nil, tt.lang, quietLogger())
			term.StatusChanged(tt.event)
			assert.Equal(t, tt.want+"\n", out.String())
		})
	}
}

func TestConsumerAdapter(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}
	term := NewTerminal(strings.NewReader(""), out, &fakeRecorder{}, nil, "en", quietLogger())
	c := Consumer{ConsumerName: "screen", Adapter: term}

	assert.Equal(t, "screen", c.Name())
	require.NoError(t, c.ProcessEvent(events.StatusEvent{Status: events.StatusStorageError, File: "R0001.WAV"}))
	assert.Contains(t, out.String(), "storage error")
}

// fakeClient is an mqtt.Client capturing publishes.
type fakeClient struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (c *fakeClient) Connect(context.Context) error { return nil }
func (c *fakeClient) IsConnected() bool             { return true }
func (c *fakeClient) Disconnect()                   {}

func (c *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	return nil
}

func TestMQTTPublisher(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	p := NewMQTTPublisher(client, "devices/boxrec/", quietLogger())
	assert.Equal(t, "devices/boxrec/status", p.Topic())
	assert.Equal(t, "mqtt", p.Name())

	p.StatusChanged(events.StatusEvent{
		Status:    events.StatusStorageError,
		State:     "idle",
		File:      "/sdcard/r/R0001.WAV",
		Elapsed:   3 * time.Second,
		Bytes:     1920,
		Err:       errors.NewStd("write failed"),
		Timestamp: time.Unix(0, 0).UTC(),
	})

	require.Len(t, client.payloads, 1)
	assert.Equal(t, "devices/boxrec/status", client.topics[0])

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.payloads[0], &got))
	assert.Equal(t, "storage_error", got["status"])
	assert.Equal(t, "/sdcard/r/R0001.WAV", got["file"])
	assert.InDelta(t, 3, got["elapsed_seconds"], 0)
	assert.InDelta(t, 1920, got["bytes"], 0)
	assert.Equal(t, "write failed", got["error"])
}

func TestMQTTPublisherErrors(t *testing.T) {
	t.Parallel()
	client := &fakeClient{err: errors.NewStd("not connected")}
	p := NewMQTTPublisher(client, "", quietLogger())
	assert.Equal(t, "boxrec/status", p.Topic())

	assert.Error(t, p.ProcessEvent(events.StatusEvent{Status: events.StatusStopped}))
	assert.NotPanics(t, func() { p.StatusChanged(events.StatusEvent{Status: events.StatusStopped}) })
}
