package usecase

import "github.com/satriahrh/arunika/voiceclient/domain/entities"

// SessionObserver is told about every session state change
type SessionObserver interface {
	OnSessionStateChanged(previous, current entities.SessionState)
}

// TextObserver receives response text, either alongside audio or instead of
// it when audio could not be delivered
type TextObserver interface {
	OnResponseText(text string)
}

// ErrorObserver receives each session level error once
type ErrorObserver interface {
	OnSessionError(err error)
}

// SessionObserverFunc adapts a function to SessionObserver
type SessionObserverFunc func(previous, current entities.SessionState)

// OnSessionStateChanged implements SessionObserver
func (f SessionObserverFunc) OnSessionStateChanged(previous, current entities.SessionState) {
	f(previous, current)
}

// TextObserverFunc adapts a function to TextObserver
type TextObserverFunc func(text string)

// OnResponseText implements TextObserver
func (f TextObserverFunc) OnResponseText(text string) {
	f(text)
}

// ErrorObserverFunc adapts a function to ErrorObserver
type ErrorObserverFunc func(err error)

// OnSessionError implements ErrorObserver
func (f ErrorObserverFunc) OnSessionError(err error) {
	f(err)
}
