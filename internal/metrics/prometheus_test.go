package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnInjectedRegistry(t *testing.T) {
	// Two instances on separate registries must not collide.
	first := New(prometheus.NewRegistry())
	second := New(prometheus.NewRegistry())

	first.RecordTransition("idle", "listening")
	first.RecordTransition("idle", "listening")
	second.RecordTransition("idle", "listening")

	require.Equal(t, 2.0, testutil.ToFloat64(first.StateTransitions.WithLabelValues("idle", "listening")))
	require.Equal(t, 1.0, testutil.ToFloat64(second.StateTransitions.WithLabelValues("idle", "listening")))
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordFetchAttempt("stream", false)
	m.RecordFetchAttempt("direct", true)
	m.RecordPlayback(true)
	m.RecordRecording(0, true)
	m.SetConnected(true)
	m.SetQueueDepth(3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("stream", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("direct", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FallbackTones))
	require.Equal(t, 1.0, testutil.ToFloat64(m.EmptyRecordings))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionUp))
	require.Equal(t, 3.0, testutil.ToFloat64(m.QueueDepth))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.RecordTransition("idle", "listening")
		m.RecordMessageSent("ping")
		m.ObserveHeartbeatLatency(time.Second)
		m.RecordTextFallback()
	})
}
