package memory

import "sync"

// PlayCall is one recorded Speaker.Play invocation
type PlayCall struct {
	Samples  []float32
	Rate     int
	Channels int
}

// Speaker records what it was asked to play instead of producing sound
type Speaker struct {
	mu      sync.Mutex
	plays   []PlayCall
	stops   int
	playErr error
}

// NewSpeaker creates a recording speaker
func NewSpeaker() *Speaker {
	return &Speaker{}
}

// FailWith makes subsequent Play calls return err
func (s *Speaker) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playErr = err
}

// Play implements repositories.Speaker
func (s *Speaker) Play(samples []float32, rate int, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.plays = append(s.plays, PlayCall{Samples: samples, Rate: rate, Channels: channels})
	return nil
}

// Stop implements repositories.Speaker
func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

// Plays returns the recorded Play calls
func (s *Speaker) Plays() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.plays))
	copy(out, s.plays)
	return out
}

// Stops returns how many times Stop was called
func (s *Speaker) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
