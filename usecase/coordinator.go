// Package usecase holds the session coordinator: the interview state machine
// that drives capture, playback and audio fetches from server messages and
// local triggers.
package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/capture"
	"github.com/satriahrh/arunika/voiceclient/internal/codec"
	"github.com/satriahrh/arunika/voiceclient/internal/fetch"
	"github.com/satriahrh/arunika/voiceclient/internal/metrics"
	"github.com/satriahrh/arunika/voiceclient/internal/playback"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
)

const (
	// emptyRecordingFill replaces a recording that captured nothing
	emptyRecordingFill = 500 * time.Millisecond

	commandBuffer  = 16
	resultBuffer   = 4
	journalBuffer  = 128
	journalTimeout = 5 * time.Second
)

// Connection is the transport the coordinator talks to the server through
type Connection interface {
	Connect(ctx context.Context) error
	Send(msg interface{}, allowQueue bool) error
	Events() <-chan websocket.Event
	State() entities.ConnectionState
	QueueLen() int
	SetSessionActive(active bool)
	Tick(now time.Time, busy bool, sessionID string)
}

// AudioFetcher downloads streamed response audio
type AudioFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// Config holds coordinator settings
type Config struct {
	// DeviceID overrides the capture device for every turn. Empty uses the
	// capture engine's configured device.
	DeviceID       string
	SampleRate     int
	WireSampleRate int
	TickInterval   time.Duration
}

// Dependencies are the components the coordinator orchestrates. Journal,
// Identity and Metrics are optional.
type Dependencies struct {
	Connection Connection
	Capture    *capture.Engine
	Playback   *playback.Engine
	Fetcher    AudioFetcher
	Journal    repositories.SessionJournal
	Identity   *entities.SessionIdentity
	Metrics    *metrics.Metrics
}

// Status is a point in time view of the session, safe to read from any goroutine
type Status struct {
	State            entities.SessionState     `json:"state"`
	Connection       entities.ConnectionState  `json:"connection"`
	SessionActive    bool                      `json:"session_active"`
	Identity         entities.IdentitySnapshot `json:"identity"`
	Recording        bool                      `json:"recording"`
	Playing          bool                      `json:"playing"`
	PlaybackProgress float64                   `json:"playback_progress"`
	QueuedMessages   int                       `json:"queued_messages"`
	LastError        string                    `json:"last_error,omitempty"`
}

type commandRequest struct {
	cmd   Command
	reply chan error
}

type fetchOutcome struct {
	seq    int
	result fetch.Result
	err    error
}

type journalEntry struct {
	transition *entities.Transition
	identity   *entities.IdentitySnapshot
}

// Coordinator owns the session state machine. All state changes happen on
// the goroutine calling Tick; other goroutines interact through Submit and
// Status.
type Coordinator struct {
	cfg      Config
	conn     Connection
	capture  *capture.Engine
	playback *playback.Engine
	fetcher  AudioFetcher
	journal  repositories.SessionJournal
	identity *entities.SessionIdentity
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	commands     chan commandRequest
	connectDone  chan error
	fetchResults chan fetchOutcome
	journalQueue chan journalEntry

	ticking  atomic.Bool
	lastTick time.Time

	state         entities.SessionState
	sessionActive bool
	fetchSeq      int
	fetchCancel   context.CancelFunc

	sessionObservers []SessionObserver
	textObservers    []TextObserver
	errorObservers   []ErrorObserver

	mu     sync.RWMutex
	status Status
}

// NewCoordinator wires a coordinator. Close releases its background work.
func NewCoordinator(cfg Config, deps Dependencies, logger *zap.Logger) *Coordinator {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.WireSampleRate <= 0 {
		cfg.WireSampleRate = 16000
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	identity := deps.Identity
	if identity == nil {
		identity = entities.NewSessionIdentity()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:          cfg,
		conn:         deps.Connection,
		capture:      deps.Capture,
		playback:     deps.Playback,
		fetcher:      deps.Fetcher,
		journal:      deps.Journal,
		identity:     identity,
		metrics:      deps.Metrics,
		logger:       logger,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		commands:     make(chan commandRequest, commandBuffer),
		connectDone:  make(chan error, 1),
		fetchResults: make(chan fetchOutcome, resultBuffer),
		state:        entities.SessionStateIdle,
	}
	c.status = Status{State: c.state, Identity: identity.Snapshot()}

	if c.journal != nil {
		c.journalQueue = make(chan journalEntry, journalBuffer)
		go c.journalWriter()
	}
	return c
}

// SubscribeSession registers a session state observer
func (c *Coordinator) SubscribeSession(o SessionObserver) {
	c.sessionObservers = append(c.sessionObservers, o)
}

// SubscribeText registers a response text observer
func (c *Coordinator) SubscribeText(o TextObserver) {
	c.textObservers = append(c.textObservers, o)
}

// SubscribeErrors registers an error observer
func (c *Coordinator) SubscribeErrors(o ErrorObserver) {
	c.errorObservers = append(c.errorObservers, o)
}

// SubscribePlayback registers a playback progress observer
func (c *Coordinator) SubscribePlayback(o playback.Observer) {
	c.playback.Subscribe(o)
}

// SubscribeLevel registers an input level observer
func (c *Coordinator) SubscribeLevel(o capture.LevelObserver) {
	c.capture.Subscribe(o)
}

// SetFetcher replaces the stream fetcher. The fetcher reports through the
// coordinator, so it is usually built after it. Call before Run.
func (c *Coordinator) SetFetcher(f AudioFetcher) {
	c.fetcher = f
}

// Identity returns the session identity
func (c *Coordinator) Identity() *entities.SessionIdentity {
	return c.identity
}

// State returns the current session state
func (c *Coordinator) State() entities.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.State
}

// Status returns the last published session status
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// History returns the journaled transitions of the current session
func (c *Coordinator) History(ctx context.Context) ([]entities.Transition, error) {
	if c.journal == nil {
		return nil, nil
	}
	return c.journal.Transitions(ctx, c.identity.ClientID())
}

// Run ticks the coordinator until ctx is done
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.logger.Info("Session coordinator running",
		zap.String("clientSessionID", c.identity.ClientID()),
		zap.Duration("tickInterval", c.cfg.TickInterval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Submit hands a command to the scheduling goroutine and waits for it to be
// applied on the next tick
func (c *Coordinator) Submit(ctx context.Context, cmd Command) error {
	req := commandRequest{cmd: cmd, reply: make(chan error, 1)}
	select {
	case c.commands <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops background fetches and the journal writer
func (c *Coordinator) Close() {
	c.cancel()
}

// Tick is the single scheduling entry point. It applies pending commands,
// connection events and fetch results, then polls capture and advances
// playback. A nested call made from an observer is rejected.
func (c *Coordinator) Tick(now time.Time) {
	if !c.ticking.CompareAndSwap(false, true) {
		c.logger.Warn("Nested tick rejected")
		return
	}
	defer c.ticking.Store(false)

	var elapsed time.Duration
	if !c.lastTick.IsZero() {
		elapsed = now.Sub(c.lastTick)
	}
	c.lastTick = now

	c.drainCommands()
	c.drainConnection()
	c.drainResults()

	if c.capture.Recording() {
		result, err := c.capture.Poll(elapsed)
		if err != nil {
			c.logger.Warn("Capture poll failed", zap.Error(err))
		}
		if result.Samples > 0 {
			c.metrics.SetInputLevel(result.Level)
		}
		if result.Stopped != nil {
			c.finishRecording(*result.Stopped)
		}
	}

	if c.playback.Tick(elapsed) {
		c.onPlaybackFinished()
	}

	if c.sessionActive {
		c.conn.Tick(now, c.state.Busy(), c.identity.Effective())
	}

	c.publish()
}

func (c *Coordinator) drainCommands() {
	for {
		select {
		case req := <-c.commands:
			req.reply <- c.apply(req.cmd)
		default:
			return
		}
	}
}

func (c *Coordinator) apply(cmd Command) error {
	c.logger.Debug("Applying command", zap.Stringer("command", cmd))
	switch cmd {
	case CommandStartSession:
		return c.StartSession(c.ctx)
	case CommandEndSession:
		return c.EndSession()
	case CommandStartRecording:
		return c.StartRecording()
	case CommandStopRecording:
		return c.StopRecording()
	case CommandPause:
		return c.Pause()
	case CommandResume:
		return c.Resume()
	case CommandReset:
		return c.Reset()
	}
	return fmt.Errorf("unknown command %s", cmd)
}

func (c *Coordinator) drainConnection() {
	for {
		select {
		case err := <-c.connectDone:
			if err != nil && c.sessionActive {
				c.endSessionLocally()
				c.fail(fmt.Errorf("failed to connect: %w", err), "connect failed")
			}
		case ev := <-c.conn.Events():
			c.handleEvent(ev)
		default:
			return
		}
	}
}

func (c *Coordinator) drainResults() {
	for {
		select {
		case out := <-c.fetchResults:
			c.handleFetchOutcome(out)
		default:
			return
		}
	}
}

// StartSession connects in the background and asks the server to start a
// session. The start request is queued until the connection is up.
func (c *Coordinator) StartSession(ctx context.Context) error {
	if c.sessionActive {
		return ErrSessionActive
	}
	c.sessionActive = true
	c.conn.SetSessionActive(true)
	c.recordIdentity()

	if err := c.send(domain.NewControlMessage(c.identity.Effective(), domain.ControlStart, c.now()), true); err != nil {
		c.endSessionLocally()
		return err
	}

	c.logger.Info("Starting session", zap.String("sessionID", c.identity.Effective()))
	go func() {
		err := c.conn.Connect(ctx)
		select {
		case c.connectDone <- err:
		case <-c.ctx.Done():
		}
	}()
	return nil
}

// EndSession stops all activity and tells the server the session is over
func (c *Coordinator) EndSession() error {
	if !c.sessionActive {
		return ErrNoSession
	}
	msg := domain.NewControlMessage(c.identity.Effective(), domain.ControlEnd, c.now())
	if err := c.conn.Send(msg, false); err != nil {
		c.logger.Debug("End of session not delivered", zap.Error(err))
	}
	c.endSessionLocally()
	c.setState(entities.SessionStateIdle, "session ended")
	return nil
}

// endSessionLocally releases devices and stops reconnecting without talking
// to the server
func (c *Coordinator) endSessionLocally() {
	c.sessionActive = false
	c.conn.SetSessionActive(false)
	c.cancelFetch()
	c.discardRecording()
	c.playback.Stop()
}

// StartRecording opens the microphone and moves the session to Listening
func (c *Coordinator) StartRecording() error {
	if !c.sessionActive {
		return ErrNoSession
	}
	if !canStartRecording(c.state, c.capture.Recording()) {
		return invalidTransition("start recording", c.state)
	}

	if err := c.capture.Start(c.cfg.DeviceID, c.cfg.SampleRate); err != nil {
		c.fail(fmt.Errorf("failed to start recording: %w", err), "capture failed")
		return err
	}
	c.setState(entities.SessionStateListening, "recording started")
	return nil
}

// StopRecording ends the turn and sends the recorded audio
func (c *Coordinator) StopRecording() error {
	if c.state != entities.SessionStateListening || !c.capture.Recording() {
		return invalidTransition("stop recording", c.state)
	}
	rec, err := c.capture.Stop()
	if err != nil {
		return err
	}
	c.finishRecording(rec)
	return nil
}

// finishRecording encodes a stopped recording and sends it as one audio_data
// message
func (c *Coordinator) finishRecording(rec capture.Recording) {
	c.metrics.RecordRecording(rec.Duration(), rec.Empty())

	samples := rec.Samples
	rate := rec.SampleRate
	if rec.Empty() || rate <= 0 {
		c.logger.Warn("Empty recording, sending silence instead",
			zap.Duration("fill", emptyRecordingFill))
		samples = codec.Silence(emptyRecordingFill, c.cfg.WireSampleRate)
		rate = c.cfg.WireSampleRate
	}

	wire := codec.Resample(samples, rate, c.cfg.WireSampleRate)
	wav := codec.EncodeWAV(wire, c.cfg.WireSampleRate, 1)
	duration := time.Duration(float64(len(wire)) / float64(c.cfg.WireSampleRate) * float64(time.Second))

	c.setState(entities.SessionStateProcessing, "recording stopped")

	msg := domain.NewAudioDataMessage(c.identity.Effective(),
		base64.StdEncoding.EncodeToString(wav), c.cfg.WireSampleRate, duration, c.now())
	if err := c.send(msg, true); err != nil {
		c.fail(fmt.Errorf("failed to send recording: %w", err), "send failed")
		return
	}
	c.logger.Info("Recording sent",
		zap.Duration("duration", duration),
		zap.Int("bytes", len(wav)),
		zap.Int("sampleRate", c.cfg.WireSampleRate))
}

func (c *Coordinator) discardRecording() {
	if !c.capture.Recording() {
		return
	}
	if rec, err := c.capture.Stop(); err == nil {
		c.logger.Info("Recording discarded", zap.Duration("duration", rec.Duration()))
	}
}

// Pause asks the server to pause the session
func (c *Coordinator) Pause() error {
	if !c.sessionActive {
		return ErrNoSession
	}
	return c.send(domain.NewControlMessage(c.identity.Effective(), domain.ControlPause, c.now()), true)
}

// Resume asks the server to resume a paused session
func (c *Coordinator) Resume() error {
	if !c.sessionActive {
		return ErrNoSession
	}
	return c.send(domain.NewControlMessage(c.identity.Effective(), domain.ControlResume, c.now()), true)
}

// Reset recovers from Error. Capture, playback and fetches are stopped and
// the server is asked to reset as well.
func (c *Coordinator) Reset() error {
	c.resetLocally("reset requested")
	msg := domain.NewControlMessage(c.identity.Effective(), domain.ControlReset, c.now())
	if err := c.conn.Send(msg, c.sessionActive); err != nil {
		c.logger.Debug("Reset not delivered", zap.Error(err))
	}
	return nil
}

func (c *Coordinator) resetLocally(reason string) {
	c.cancelFetch()
	c.discardRecording()
	c.playback.Stop()
	c.setState(entities.SessionStateIdle, reason)
}

func (c *Coordinator) handleEvent(ev websocket.Event) {
	switch ev.Kind {
	case websocket.EventMessage:
		c.handleMessage(ev.Message)
	case websocket.EventStateChanged:
		c.logger.Debug("Connection state changed", zap.String("state", string(ev.State)))
	case websocket.EventReconnectFailed:
		if !c.sessionActive {
			return
		}
		err := ev.Err
		if err == nil {
			err = websocket.ErrReconnectFailed
		}
		c.endSessionLocally()
		c.fail(err, "reconnect failed")
	}
}

// handleMessage dispatches one validated inbound message
func (c *Coordinator) handleMessage(msg interface{}) {
	switch m := msg.(type) {
	case *domain.StateUpdateMessage:
		if id, ok := m.Metadata["session_id"].(string); ok {
			c.remap(id)
		}
		if !c.accept(m.SessionID) {
			return
		}
		c.handleStateUpdate(m)

	case *domain.AudioResponseMessage:
		if !c.accept(m.SessionID) {
			return
		}
		c.handleAudioResponse(m)

	case *domain.AudioStreamMessage:
		if !c.accept(m.SessionID) {
			return
		}
		c.handleAudioStream(m)

	case *domain.ErrorMessage:
		if !c.accept(m.SessionID) {
			return
		}
		err := fmt.Errorf("%w: %s", ErrServer, m.Message)
		c.logger.Warn("Server reported an error", zap.String("message", m.Message))
		c.metrics.RecordSessionError()
		c.notifyError(err)

	case *domain.ControlMessage:
		if !c.accept(m.SessionID) {
			return
		}
		switch m.Action {
		case domain.ControlReset:
			c.resetLocally("server reset")
		case domain.ControlEnd:
			c.endSessionLocally()
			c.setState(entities.SessionStateIdle, "server ended session")
		default:
			c.logger.Debug("Ignoring server control", zap.String("action", string(m.Action)))
		}

	default:
		c.logger.Debug("Ignoring inbound message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// accept applies a first server assigned session ID and rejects messages for
// other sessions
func (c *Coordinator) accept(sessionID string) bool {
	if sessionID == "" || c.identity.Owns(sessionID) {
		return true
	}
	if c.remap(sessionID) {
		return true
	}
	c.logger.Warn("Dropping message for another session",
		zap.String("sessionID", sessionID),
		zap.String("effectiveSessionID", c.identity.Effective()))
	return false
}

func (c *Coordinator) remap(serverID string) bool {
	if !c.identity.Remap(serverID, c.now()) {
		return false
	}
	c.metrics.RecordIdentityRemap()
	c.logger.Info("Session remapped to server ID",
		zap.String("clientSessionID", c.identity.ClientID()),
		zap.String("serverSessionID", serverID))
	c.recordIdentity()
	return true
}

func (c *Coordinator) handleStateUpdate(m *domain.StateUpdateMessage) {
	next, err := entities.ParseSessionState(m.Current)
	if err != nil {
		c.logger.Warn("Ignoring state update", zap.Error(err))
		return
	}
	// Error is left only through a reset, local or from the server.
	if c.state == entities.SessionStateError {
		c.logger.Info("Ignoring state update while in error",
			zap.String("current", m.Current))
		return
	}

	if next != entities.SessionStateListening && c.capture.Recording() {
		if next == entities.SessionStateProcessing {
			// The server closed the turn; send what was captured.
			if rec, err := c.capture.Stop(); err == nil {
				c.finishRecording(rec)
			}
		} else {
			c.discardRecording()
		}
	}
	c.setState(next, "server update")
}

func (c *Coordinator) handleAudioResponse(m *domain.AudioResponseMessage) {
	c.cancelFetch()
	c.discardRecording()
	c.setState(entities.SessionStateResponding, "audio response")

	if m.Data == "" {
		c.deliverText(m.Text)
		return
	}

	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		// Validated upstream; treat as undecodable audio.
		data = nil
	}
	if m.Text != "" {
		c.notifyText(m.Text)
	}
	fallback := c.playback.PlayWAV(data)
	c.metrics.RecordPlayback(fallback)
}

func (c *Coordinator) handleAudioStream(m *domain.AudioStreamMessage) {
	c.cancelFetch()
	c.discardRecording()
	c.setState(entities.SessionStateResponding, "audio stream")

	ctx, cancel := context.WithCancel(c.ctx)
	c.fetchSeq++
	c.fetchCancel = cancel
	seq := c.fetchSeq
	req := fetch.Request{URL: m.URL, FormatHint: m.Format, FallbackText: m.FallbackText}

	c.logger.Info("Fetching response audio",
		zap.String("url", m.URL),
		zap.String("format", m.Format))
	go func() {
		result, err := c.fetcher.Fetch(ctx, req)
		select {
		case c.fetchResults <- fetchOutcome{seq: seq, result: result, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (c *Coordinator) handleFetchOutcome(out fetchOutcome) {
	if out.seq != c.fetchSeq || c.fetchCancel == nil {
		return
	}
	c.fetchCancel()
	c.fetchCancel = nil

	switch {
	case out.err != nil:
		if errors.Is(out.err, context.Canceled) {
			return
		}
		c.metrics.RecordSessionError()
		c.notifyError(out.err)
		c.setState(entities.SessionStateWaiting, "fetch failed")
	case out.result.TextOnly:
		c.deliverText(out.result.FallbackText)
	default:
		c.playback.Play(out.result.Audio)
		c.metrics.RecordPlayback(false)
	}
}

func (c *Coordinator) cancelFetch() {
	if c.fetchCancel == nil {
		return
	}
	c.fetchCancel()
	c.fetchCancel = nil
	c.fetchSeq++
}

// deliverText completes a turn that has no audio
func (c *Coordinator) deliverText(text string) {
	c.notifyText(text)
	c.completeTurn()
}

func (c *Coordinator) onPlaybackFinished() {
	if c.state != entities.SessionStateResponding {
		return
	}
	c.completeTurn()
}

func (c *Coordinator) completeTurn() {
	msg := domain.NewPlaybackCompleteMessage(c.identity.Effective(), c.now())
	if err := c.send(msg, true); err != nil {
		c.logger.Warn("Failed to send playback complete", zap.Error(err))
	}
	c.setState(entities.SessionStateWaiting, "playback complete")
}

// ReportStreamingStatus sends a streaming_status message. It may be called
// from fetch goroutines.
func (c *Coordinator) ReportStreamingStatus(ctx context.Context, status, url, errMsg string) error {
	msg := domain.NewStreamingStatusMessage(c.identity.Effective(), status, url, errMsg, c.now())
	return c.conn.Send(msg, true)
}

func (c *Coordinator) send(msg interface{}, allowQueue bool) error {
	if err := c.conn.Send(msg, allowQueue); err != nil {
		c.logger.Error("Failed to send message", zap.Error(err))
		return err
	}
	return nil
}

// fail moves the session to Error and reports err once
func (c *Coordinator) fail(err error, reason string) {
	c.logger.Error("Session error", zap.String("reason", reason), zap.Error(err))
	c.metrics.RecordSessionError()
	c.setState(entities.SessionStateError, reason)
	c.notifyError(err)
}

func (c *Coordinator) setState(next entities.SessionState, reason string) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next

	c.mu.Lock()
	c.status.State = next
	c.mu.Unlock()

	c.metrics.RecordTransition(string(prev), string(next))
	c.logger.Info("Session state changed",
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.String("reason", reason))

	c.enqueueJournal(journalEntry{transition: &entities.Transition{
		SessionID: c.identity.ClientID(),
		Previous:  prev,
		Current:   next,
		Reason:    reason,
		At:        c.now(),
	}})

	for _, o := range c.sessionObservers {
		o.OnSessionStateChanged(prev, next)
	}
}

func (c *Coordinator) notifyText(text string) {
	for _, o := range c.textObservers {
		o.OnResponseText(text)
	}
}

func (c *Coordinator) notifyError(err error) {
	c.mu.Lock()
	c.status.LastError = err.Error()
	c.mu.Unlock()
	for _, o := range c.errorObservers {
		o.OnSessionError(err)
	}
}

// publish refreshes the status snapshot read by other goroutines
func (c *Coordinator) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.State = c.state
	c.status.Connection = c.conn.State()
	c.status.SessionActive = c.sessionActive
	c.status.Identity = c.identity.Snapshot()
	c.status.Recording = c.capture.Recording()
	c.status.Playing = c.playback.Active()
	c.status.PlaybackProgress = c.playback.Progress()
	c.status.QueuedMessages = c.conn.QueueLen()
}

func (c *Coordinator) recordIdentity() {
	snapshot := c.identity.Snapshot()
	c.enqueueJournal(journalEntry{identity: &snapshot})
}

func (c *Coordinator) enqueueJournal(e journalEntry) {
	if c.journalQueue == nil {
		return
	}
	select {
	case c.journalQueue <- e:
	default:
		c.logger.Warn("Session journal backlog full, dropping entry")
	}
}

// journalWriter persists journal entries in order off the scheduling goroutine
func (c *Coordinator) journalWriter() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case e := <-c.journalQueue:
			ctx, cancel := context.WithTimeout(c.ctx, journalTimeout)
			var err error
			if e.transition != nil {
				err = c.journal.RecordTransition(ctx, *e.transition)
			} else if e.identity != nil {
				err = c.journal.RecordIdentity(ctx, *e.identity)
			}
			cancel()
			if err != nil {
				c.logger.Warn("Failed to write session journal", zap.Error(err))
			}
		}
	}
}
