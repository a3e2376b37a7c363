package websocket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

// MessageValidator decodes and validates messages received from the server
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage decodes an inbound message into its typed struct
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base domain.BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case domain.MessageTypeStateUpdate:
		var msg domain.StateUpdateMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid state update message: %w", err)
		}
		if err := v.validateStateUpdate(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case domain.MessageTypeAudioResponse:
		var msg domain.AudioResponseMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio response message: %w", err)
		}
		if err := v.validateAudioResponse(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case domain.MessageTypeAudioStream:
		var msg domain.AudioStreamMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio stream message: %w", err)
		}
		if err := v.validateAudioStream(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case domain.MessageTypeControl:
		var msg domain.ControlMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid control message: %w", err)
		}
		if msg.Action == "" {
			return nil, fmt.Errorf("action is required")
		}
		return &msg, nil

	case domain.MessageTypePing:
		var msg domain.PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case domain.MessageTypePong:
		var msg domain.PongMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid pong message: %w", err)
		}
		return &msg, nil

	case domain.MessageTypeError:
		var msg domain.ErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid error message: %w", err)
		}
		if msg.Message == "" {
			msg.Message = "unknown server error"
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message missing type field")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateStateUpdate validates state update message fields
func (v *MessageValidator) validateStateUpdate(msg *domain.StateUpdateMessage) error {
	if _, err := entities.ParseSessionState(msg.Current); err != nil {
		return fmt.Errorf("current: %w", err)
	}
	if msg.Previous != "" {
		if _, err := entities.ParseSessionState(msg.Previous); err != nil {
			return fmt.Errorf("previous: %w", err)
		}
	}
	return nil
}

// validateAudioResponse validates audio response message fields
func (v *MessageValidator) validateAudioResponse(msg *domain.AudioResponseMessage) error {
	if msg.Data == "" && msg.Text == "" {
		return fmt.Errorf("data or text is required")
	}
	if msg.Data != "" {
		if _, err := base64.StdEncoding.DecodeString(msg.Data); err != nil {
			return fmt.Errorf("data is not valid base64: %w", err)
		}
	}
	return nil
}

// validateAudioStream validates audio stream message fields
func (v *MessageValidator) validateAudioStream(msg *domain.AudioStreamMessage) error {
	if msg.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(msg.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}
