package api

import (
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

// CommandResponse represents the response to a session or recording trigger
type CommandResponse struct {
	Command string         `json:"command"`
	Status  usecase.Status `json:"status"`
}

// HistoryResponse lists the journaled transitions of the session
type HistoryResponse struct {
	SessionID   string                `json:"session_id"`
	Transitions []entities.Transition `json:"transitions"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
