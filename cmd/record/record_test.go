package record

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/buildinfo"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

func quietLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("record")
}

func TestSourceOpenerValidatesKind(t *testing.T) {
	t.Parallel()
	s := &conf.Settings{}
	s.Audio.Source = "cassette"
	_, err := newSourceOpener(conf.NewStore(s, nil), quietLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	s.Audio.Source = "file:"
	_, err = newSourceOpener(conf.NewStore(s, nil), quietLogger())
	require.Error(t, err)
}

func TestSourceOpenerRereadsSettings(t *testing.T) {
	t.Parallel()
	s := &conf.Settings{}
	s.Audio.Source = "file:/does/not/exist.wav"
	store := conf.NewStore(s, nil)
	open, err := newSourceOpener(store, quietLogger())
	require.NoError(t, err)

	_, err = open()
	require.Error(t, err, "missing replay file fails at session start")
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestMQTTConfig(t *testing.T) {
	t.Parallel()
	build := &buildinfo.Context{SystemID: "box-1"}

	cfg := mqttConfig(conf.MQTTSettings{Broker: "tcp://b:1883", QoS: 1, Retain: true}, build)
	assert.Equal(t, "tcp://b:1883", cfg.Broker)
	assert.Equal(t, "boxrec-box-1", cfg.ClientID)
	assert.Equal(t, byte(1), cfg.QoS)
	assert.True(t, cfg.Retain)
	assert.Positive(t, cfg.ReconnectDelay)

	cfg = mqttConfig(conf.MQTTSettings{ClientID: "studio"}, build)
	assert.Equal(t, "studio", cfg.ClientID)
}

func TestMixFlag(t *testing.T) {
	t.Parallel()
	s := &conf.Settings{}
	s.Recording.RawMode = int(audiocore.MixMonoDownmix)
	cmd := Command(s, &buildinfo.Context{})

	flag := cmd.Flags().Lookup("mix")
	require.NotNil(t, flag)
	assert.Equal(t, audiocore.MixMonoDownmix.String(), flag.DefValue)
}
