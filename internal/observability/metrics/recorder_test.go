package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewRecorderMetrics(registry)
	require.NoError(t, err)

	m.RecordAppend(1920, 2*time.Millisecond)
	m.RecordAppend(1920, 3*time.Millisecond)
	m.RecordWriteFailure()
	m.RecordReadFailure()
	m.RecordReadFailure()
	m.RecordFrontEndError(StageFetch)
	m.RecordSession(OutcomeStorageError, 5*time.Second)
	m.SetState(StateStopping)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ChunksWritten), 0)
	assert.InDelta(t, 3840, testutil.ToFloat64(m.BytesWritten), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WriteFailures), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ReadFailures), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FrontEndErrors.WithLabelValues(StageFetch)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.FrontEndErrors.WithLabelValues(StageInit)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeStorageError)), 0)
	assert.InDelta(t, StateStopping, testutil.ToFloat64(m.State), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.SessionDuration))
}

func TestRecorderMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewRecorderMetrics(registry)
	require.NoError(t, err)
	_, err = NewRecorderMetrics(registry)
	assert.Error(t, err)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	t.Parallel()

	var rm *RecorderMetrics
	var mm *MQTTMetrics
	assert.NotPanics(t, func() {
		rm.RecordAppend(10, time.Millisecond)
		rm.RecordWriteFailure()
		rm.RecordReadFailure()
		rm.RecordFrontEndError(StageInit)
		rm.RecordSession(OutcomeStopped, time.Second)
		rm.SetState(StateRecording)
		mm.UpdateConnectionStatus(true)
		mm.IncrementMessagesDelivered()
		mm.IncrementErrors()
		mm.ObserveMessageSize(100)
		mm.StartPublishTimer().ObserveDuration()
	})
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewMQTTMetrics(registry)
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	m.IncrementMessagesDelivered()
	m.IncrementReconnectAttempts()
	m.ObserveMessageSize(200)
	m.StartPublishTimer().ObserveDuration()

	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesDelivered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ReconnectAttempts), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PublishLatency))

	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
}
