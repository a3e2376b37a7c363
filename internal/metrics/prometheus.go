// Package metrics exposes the voice client's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice client. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Session metrics
	StateTransitions *prometheus.CounterVec
	IdentityRemaps   prometheus.Counter
	SessionErrors    prometheus.Counter

	// Connection metrics
	MessagesSent      *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	QueueDropped      *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	ReconnectFailures prometheus.Counter
	HeartbeatsSent    prometheus.Counter
	HeartbeatLatency  prometheus.Histogram
	ConnectionUp      prometheus.Gauge

	// Capture metrics
	RecordingDuration prometheus.Histogram
	InputLevel        prometheus.Gauge
	EmptyRecordings   prometheus.Counter

	// Playback and fetch metrics
	PlaybackStarted   prometheus.Counter
	FallbackTones     prometheus.Counter
	FetchAttempts     *prometheus.CounterVec
	FetchDuration     prometheus.Histogram
	FetchTextFallback prometheus.Counter
}

// New creates and registers all metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_session_state_transitions_total",
			Help: "Total number of session state transitions",
		}, []string{"from", "to"}),
		IdentityRemaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_session_identity_remaps_total",
			Help: "Total number of client session IDs remapped to a server ID",
		}),
		SessionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_session_errors_total",
			Help: "Total number of errors surfaced to the session",
		}),

		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_messages_sent_total",
			Help: "Total number of messages written to the connection",
		}, []string{"type"}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_messages_received_total",
			Help: "Total number of messages read from the connection",
		}, []string{"type"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arunika_outbound_queue_depth",
			Help: "Current number of messages held while disconnected",
		}),
		QueueDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_outbound_queue_dropped_total",
			Help: "Total number of queued messages dropped",
		}, []string{"reason"}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_reconnect_attempts_total",
			Help: "Total number of reconnect attempts",
		}),
		ReconnectFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_reconnect_failures_total",
			Help: "Total number of times reconnecting was given up",
		}),
		HeartbeatsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_heartbeats_sent_total",
			Help: "Total number of heartbeat pings sent",
		}),
		HeartbeatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arunika_heartbeat_latency_seconds",
			Help:    "Round trip time between ping and pong",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
		ConnectionUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arunika_connection_up",
			Help: "1 when the server connection is established",
		}),

		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arunika_recording_duration_seconds",
			Help:    "Duration of recorded user turns",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~1 minute
		}),
		InputLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arunika_input_level_rms",
			Help: "Most recent microphone RMS level",
		}),
		EmptyRecordings: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_empty_recordings_total",
			Help: "Total number of recordings that captured no samples",
		}),

		PlaybackStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_playback_started_total",
			Help: "Total number of responses played",
		}),
		FallbackTones: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_playback_fallback_tones_total",
			Help: "Total number of undecodable responses replaced by a tone",
		}),
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arunika_fetch_attempts_total",
			Help: "Total number of audio fetch attempts",
		}, []string{"kind", "outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arunika_fetch_duration_seconds",
			Help:    "Duration of successful audio fetches including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),
		FetchTextFallback: factory.NewCounter(prometheus.CounterOpts{
			Name: "arunika_fetch_text_fallback_total",
			Help: "Total number of turns degraded to text after fetch failure",
		}),
	}
}

// RecordTransition counts a session state change
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordIdentityRemap counts a session ID remap
func (m *Metrics) RecordIdentityRemap() {
	if m == nil {
		return
	}
	m.IdentityRemaps.Inc()
}

// RecordSessionError counts an error surfaced to the session
func (m *Metrics) RecordSessionError() {
	if m == nil {
		return
	}
	m.SessionErrors.Inc()
}

// RecordMessageSent counts an outbound message
func (m *Metrics) RecordMessageSent(msgType string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(msgType).Inc()
}

// RecordMessageReceived counts an inbound message
func (m *Metrics) RecordMessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// SetQueueDepth sets the outbound queue length
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// RecordQueueDrop counts a queued message that was evicted or went stale
func (m *Metrics) RecordQueueDrop(reason string) {
	if m == nil {
		return
	}
	m.QueueDropped.WithLabelValues(reason).Inc()
}

// RecordReconnectAttempt counts one reconnect dial
func (m *Metrics) RecordReconnectAttempt() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// RecordReconnectFailure counts exhausted reconnect cycles
func (m *Metrics) RecordReconnectFailure() {
	if m == nil {
		return
	}
	m.ReconnectFailures.Inc()
}

// RecordHeartbeat counts a ping
func (m *Metrics) RecordHeartbeat() {
	if m == nil {
		return
	}
	m.HeartbeatsSent.Inc()
}

// ObserveHeartbeatLatency records a ping/pong round trip
func (m *Metrics) ObserveHeartbeatLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.HeartbeatLatency.Observe(d.Seconds())
}

// SetConnected records whether the connection is up
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.ConnectionUp.Set(1)
	} else {
		m.ConnectionUp.Set(0)
	}
}

// RecordRecording records a finished user turn
func (m *Metrics) RecordRecording(d time.Duration, empty bool) {
	if m == nil {
		return
	}
	if empty {
		m.EmptyRecordings.Inc()
		return
	}
	m.RecordingDuration.Observe(d.Seconds())
}

// SetInputLevel sets the latest microphone level
func (m *Metrics) SetInputLevel(level float64) {
	if m == nil {
		return
	}
	m.InputLevel.Set(level)
}

// RecordPlayback counts a started response and whether it was the fallback tone
func (m *Metrics) RecordPlayback(fallback bool) {
	if m == nil {
		return
	}
	m.PlaybackStarted.Inc()
	if fallback {
		m.FallbackTones.Inc()
	}
}

// RecordFetchAttempt counts one fetch attempt. kind is "stream" or "direct".
func (m *Metrics) RecordFetchAttempt(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.FetchAttempts.WithLabelValues(kind, outcome).Inc()
}

// ObserveFetch records how long a successful fetch took
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// RecordTextFallback counts a turn degraded to text
func (m *Metrics) RecordTextFallback() {
	if m == nil {
		return
	}
	m.FetchTextFallback.Inc()
}
