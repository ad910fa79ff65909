package transcribe

import "sync"

// Sink holds the latest transcript for the in-progress utterance.
// It is a single mutable slot: Apply replaces the held value, making the
// engine's replace-not-append contract explicit and testable in isolation.
type Sink struct {
	mu      sync.RWMutex
	current Utterance
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Apply replaces the held utterance with the update.
func (s *Sink) Apply(u Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = u
}

// Current returns the held utterance.
func (s *Sink) Current() Utterance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reset clears the held utterance. Called when a new capture session begins
// or the pipeline returns to idle.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Utterance{}
}
