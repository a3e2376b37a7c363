package usecase

import (
	"errors"
	"fmt"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

var (
	// ErrSessionActive is returned when starting a session twice
	ErrSessionActive = errors.New("session already active")
	// ErrNoSession is returned for triggers that need an active session
	ErrNoSession = errors.New("no active session")
	// ErrInvalidTransition is returned when a local trigger is not allowed in
	// the current state
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrServer wraps error messages sent by the server
	ErrServer = errors.New("server error")
)

// Command is a local trigger submitted from outside the scheduling goroutine
type Command int

const (
	CommandStartSession Command = iota
	CommandEndSession
	CommandStartRecording
	CommandStopRecording
	CommandPause
	CommandResume
	CommandReset
)

func (c Command) String() string {
	switch c {
	case CommandStartSession:
		return "start_session"
	case CommandEndSession:
		return "end_session"
	case CommandStartRecording:
		return "start_recording"
	case CommandStopRecording:
		return "stop_recording"
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandReset:
		return "reset"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// canStartRecording reports whether the local start trigger may move the
// session to Listening. Recording never starts on its own from Processing.
func canStartRecording(state entities.SessionState, capturing bool) bool {
	switch state {
	case entities.SessionStateIdle, entities.SessionStateWaiting:
		return true
	case entities.SessionStateListening:
		// The server may announce Listening before the user starts talking.
		return !capturing
	}
	return false
}

func invalidTransition(trigger string, state entities.SessionState) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, trigger, state)
}
