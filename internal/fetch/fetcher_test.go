package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/arunika/voiceclient/internal/codec"
	"github.com/satriahrh/arunika/voiceclient/internal/metrics"
)

type statusReport struct {
	status string
	url    string
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []statusReport
	err     error
}

func (r *recordingReporter) ReportStreamingStatus(ctx context.Context, status, url, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, statusReport{status: status, url: url})
	return r.err
}

func (r *recordingReporter) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.reports))
	for i, rep := range r.reports {
		out[i] = rep.status
	}
	return out
}

type fakeSleeper struct {
	calls []time.Duration
}

func (s *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func newTestFetcher(t *testing.T, reporter Reporter, m *metrics.Metrics) (*Fetcher, *fakeSleeper) {
	f := NewFetcher(Config{MaxAttempts: 2, RetryDelay: time.Second}, nil, reporter, m, zaptest.NewLogger(t))
	sleeper := &fakeSleeper{}
	f.sleep = sleeper.sleep
	return f, sleeper
}

func TestDirectCandidates(t *testing.T) {
	got := DirectCandidates("http://tts.local:8000/api/stream?output_file=sample123&voice=a")

	require.Equal(t, []string{
		"http://tts.local:8000/outputs/sample123.wav",
		"http://tts.local:8000/outputs/sample123",
		"http://tts.local:8000/api/get-file?filename=sample123.wav",
		"http://tts.local:8000/api/get-file?filename=sample123",
	}, got)
}

func TestDirectCandidatesStripsExtensionAndPath(t *testing.T) {
	got := DirectCandidates("https://tts.local/stream?output_file=../out/reply.wav")

	require.Equal(t, "https://tts.local/outputs/reply.wav", got[0])
	require.Equal(t, "https://tts.local/outputs/reply", got[1])
}

func TestDirectCandidatesWithoutOutputFile(t *testing.T) {
	require.Nil(t, DirectCandidates("http://tts.local/stream"))
	require.Nil(t, DirectCandidates("::not a url"))
}

func TestFetchStreamingSucceeds(t *testing.T) {
	wav := codec.EncodeWAV([]float32{0.1, 0.2, 0.3}, 16000, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(wav)
	}))
	defer srv.Close()

	reporter := &recordingReporter{}
	f, sleeper := newTestFetcher(t, reporter, nil)

	result, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/stream"})
	require.NoError(t, err)
	require.False(t, result.Direct)
	require.Equal(t, 1, result.Attempts)
	require.Len(t, result.Audio.Samples, 3)
	require.Empty(t, sleeper.calls)
	require.Equal(t, []string{"started", "completed"}, reporter.statuses())
}

func TestFetchFallsBackToDirectCandidates(t *testing.T) {
	wav := codec.EncodeWAV([]float32{0.5, -0.5, 0.25, -0.25}, 22050, 1)
	var (
		mu   sync.Mutex
		hits []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.RequestURI())
		mu.Unlock()

		switch {
		case r.URL.Path == "/stream":
			http.Error(w, "synthesis backend unavailable", http.StatusBadGateway)
		case r.URL.Path == "/api/get-file" && r.URL.Query().Get("filename") == "sample123.wav":
			w.Header().Set("Content-Type", "audio/wav")
			w.Write(wav)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	reporter := &recordingReporter{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f, sleeper := newTestFetcher(t, reporter, m)

	result, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/stream?output_file=sample123"})
	require.NoError(t, err)

	require.True(t, result.Direct)
	require.Equal(t, srv.URL+"/api/get-file?filename=sample123.wav", result.Source)
	require.Equal(t, 22050, result.Audio.SampleRate)
	require.Len(t, result.Audio.Samples, 4)
	require.Equal(t, []time.Duration{time.Second}, sleeper.calls)

	require.Equal(t, []string{
		"/stream?output_file=sample123",
		"/stream?output_file=sample123",
		"/outputs/sample123.wav",
		"/outputs/sample123",
		"/api/get-file?filename=sample123.wav",
	}, hits)

	require.Equal(t, []string{
		"started", "failed",
		"started", "failed",
		"started", "failed",
		"started", "failed",
		"started", "completed",
	}, reporter.statuses())

	require.Equal(t, 2.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("stream", "failure")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("direct", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("direct", "success")))
}

func TestFetchDegradesToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, nil, nil)

	result, err := f.Fetch(context.Background(), Request{
		URL:          srv.URL + "/stream?output_file=x",
		FallbackText: "Sorry, say that again?",
	})
	require.NoError(t, err)
	require.True(t, result.TextOnly)
	require.Equal(t, "Sorry, say that again?", result.FallbackText)
	require.Equal(t, 6, result.Attempts)
}

func TestFetchAllAttemptsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not a wav file but long enough to pass the length check"))
	}))
	defer srv.Close()

	f, sleeper := newTestFetcher(t, nil, nil)

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/stream", MaxAttempts: 3})
	require.ErrorIs(t, err, ErrAllAttemptsFailed)
	require.Len(t, sleeper.calls, 2)
}

func TestFetchReporterErrorIsSwallowed(t *testing.T) {
	wav := codec.EncodeWAV([]float32{0.1}, 16000, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(wav)
	}))
	defer srv.Close()

	reporter := &recordingReporter{err: errors.New("not connected")}
	f, _ := newTestFetcher(t, reporter, nil)

	result, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, result.Audio.Samples, 1)
	require.Equal(t, []string{"started", "completed"}, reporter.statuses())
}

func TestFetchRawPCMFormat(t *testing.T) {
	accept := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept <- r.Header.Get("Accept")
		w.Write([]byte{0xff, 0x7f, 0x00, 0x00})
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, nil, nil)

	result, err := f.Fetch(context.Background(), Request{URL: srv.URL, FormatHint: "pcm_24000"})
	require.NoError(t, err)
	require.Equal(t, 24000, result.Audio.SampleRate)
	require.Equal(t, []float32{1, 0}, result.Audio.Samples)
	require.Equal(t, "audio/pcm", <-accept)
}

func TestFetchCancelledStopsRetrying(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f, _ := newTestFetcher(t, nil, nil)
	f.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := f.Fetch(ctx, Request{URL: srv.URL + "/stream?output_file=x", MaxAttempts: 5})
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}

func TestFetchNotReadyInTime(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewFetcher(Config{MaxAttempts: 1, ReadyWait: 50 * time.Millisecond}, nil, nil, nil, zaptest.NewLogger(t))

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.ErrorIs(t, err, ErrAllAttemptsFailed)
	require.Contains(t, err.Error(), errNotReady.Error())
}
