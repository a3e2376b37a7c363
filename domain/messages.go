package domain

import (
	"math"
	"time"
)

// MessageType defines the type of a wire message
type MessageType string

// Message types exchanged with the conversation server
const (
	MessageTypeControl          MessageType = "control"
	MessageTypeAudioData        MessageType = "audio_data"
	MessageTypeAudioResponse    MessageType = "audio_response"
	MessageTypeAudioStream      MessageType = "audio_stream"
	MessageTypeStateUpdate      MessageType = "state_update"
	MessageTypeStreamingStatus  MessageType = "streaming_status"
	MessageTypePing             MessageType = "ping"
	MessageTypePong             MessageType = "pong"
	MessageTypePlaybackComplete MessageType = "playback_complete"
	MessageTypeError            MessageType = "error"
)

// ControlAction is the action carried by a control message
type ControlAction string

const (
	ControlStart  ControlAction = "start"
	ControlEnd    ControlAction = "end"
	ControlReset  ControlAction = "reset"
	ControlPause  ControlAction = "pause"
	ControlResume ControlAction = "resume"
)

// StreamingStatus values reported while fetching server audio
const (
	StreamingStarted   = "started"
	StreamingCompleted = "completed"
	StreamingFailed    = "failed"
)

// BaseMessage defines the envelope shared by every wire message
type BaseMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp float64     `json:"timestamp"`
}

// MessageType returns the envelope type
func (m BaseMessage) MessageType() MessageType {
	return m.Type
}

// ControlMessage asks the server to start, end, reset, pause or resume the session
type ControlMessage struct {
	BaseMessage
	Action ControlAction `json:"action"`
}

// AudioDataMessage carries one recorded user turn as base64 WAV
type AudioDataMessage struct {
	BaseMessage
	Data       string `json:"data"` // base64 encoded
	SampleRate int    `json:"sample_rate,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// AudioResponseMessage carries synthesized speech inline
type AudioResponseMessage struct {
	BaseMessage
	Data string `json:"data"` // base64 encoded
	Text string `json:"text,omitempty"`
}

// AudioStreamMessage points the client at a URL serving synthesized speech
type AudioStreamMessage struct {
	BaseMessage
	URL          string `json:"url"`
	Format       string `json:"format,omitempty"`
	FallbackText string `json:"fallback_text,omitempty"`
}

// StateUpdateMessage is the server's authoritative session state
type StateUpdateMessage struct {
	BaseMessage
	Previous string                 `json:"previous"`
	Current  string                 `json:"current"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StreamingStatusMessage reports progress of a stream fetch back to the server
type StreamingStatusMessage struct {
	BaseMessage
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  string `json:"error,omitempty"`
}

// PingMessage is a heartbeat probe
type PingMessage struct {
	BaseMessage
}

// PongMessage answers a ping
type PongMessage struct {
	BaseMessage
}

// PlaybackCompleteMessage tells the server the last response finished playing
type PlaybackCompleteMessage struct {
	BaseMessage
}

// ErrorMessage is an error reported by the server
type ErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// UnixSeconds converts t to the float seconds used in the envelope timestamp
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts an envelope timestamp back to time.Time
func FromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func newBase(t MessageType, sessionID string, now time.Time) BaseMessage {
	return BaseMessage{Type: t, SessionID: sessionID, Timestamp: UnixSeconds(now)}
}

// NewControlMessage creates a control message
func NewControlMessage(sessionID string, action ControlAction, now time.Time) *ControlMessage {
	return &ControlMessage{BaseMessage: newBase(MessageTypeControl, sessionID, now), Action: action}
}

// NewAudioDataMessage creates an audio_data message from base64 WAV bytes
func NewAudioDataMessage(sessionID, data string, sampleRate int, duration time.Duration, now time.Time) *AudioDataMessage {
	return &AudioDataMessage{
		BaseMessage: newBase(MessageTypeAudioData, sessionID, now),
		Data:        data,
		SampleRate:  sampleRate,
		DurationMs:  duration.Milliseconds(),
	}
}

// NewStreamingStatusMessage creates a streaming_status message
func NewStreamingStatusMessage(sessionID, status, url, errMsg string, now time.Time) *StreamingStatusMessage {
	return &StreamingStatusMessage{
		BaseMessage: newBase(MessageTypeStreamingStatus, sessionID, now),
		Status:      status,
		URL:         url,
		Error:       errMsg,
	}
}

// NewPingMessage creates a heartbeat ping
func NewPingMessage(sessionID string, now time.Time) *PingMessage {
	return &PingMessage{BaseMessage: newBase(MessageTypePing, sessionID, now)}
}

// NewPongMessage creates a heartbeat pong
func NewPongMessage(sessionID string, now time.Time) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong, sessionID, now)}
}

// NewPlaybackCompleteMessage creates a playback_complete notification
func NewPlaybackCompleteMessage(sessionID string, now time.Time) *PlaybackCompleteMessage {
	return &PlaybackCompleteMessage{BaseMessage: newBase(MessageTypePlaybackComplete, sessionID, now)}
}
