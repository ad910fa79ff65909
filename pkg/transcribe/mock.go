package transcribe

import (
	"context"
	"sync"

	"github.com/vizzilabs/go-vizzi/pkg/audioio"
)

// MockEngine is an Engine for testing. Each Open returns a MockSession that
// replays the scripted results.
type MockEngine struct {
	// OpenErr, when set, is returned by Open.
	OpenErr error

	// Script is the sequence of results each session emits.
	// Sessions do not emit automatically; drive them with Emit.
	mu       sync.Mutex
	sessions []*MockSession
}

// NewMockEngine creates a mock engine.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Open returns a new mock session.
func (e *MockEngine) Open(ctx context.Context, locale string) (Session, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	if !LocaleSupported(locale) {
		return nil, ErrUnsupportedLocale
	}

	s := &MockSession{
		Locale:  locale,
		results: make(chan Result, 16),
	}

	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

// Last returns the most recently opened session, or nil.
func (e *MockEngine) Last() *MockSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}

// Sessions returns all opened sessions.
func (e *MockEngine) Sessions() []*MockSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*MockSession, len(e.sessions))
	copy(out, e.sessions)
	return out
}

// MockSession is a scriptable transcription session.
type MockSession struct {
	Locale string

	mu        sync.Mutex
	frames    []audioio.Frame
	results   chan Result
	closed    bool
	cancelled int
}

// WriteAudio records the frame.
func (s *MockSession) WriteAudio(frame audioio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.frames = append(s.frames, frame)
	return nil
}

// Results returns the scripted result channel.
func (s *MockSession) Results() <-chan Result {
	return s.results
}

// Cancel closes the session. Safe to call multiple times.
func (s *MockSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled++
	if s.closed {
		return
	}
	s.closed = true
	close(s.results)
}

// Emit pushes a result to the session's consumer. A final or error result
// closes the channel, matching engine behavior.
func (s *MockSession) Emit(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.results <- r
	if r.Final || r.Err != nil {
		s.closed = true
		close(s.results)
	}
}

// FrameCount returns how many frames were written.
func (s *MockSession) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// CancelCount returns how many times Cancel was called.
func (s *MockSession) CancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Compile-time interface checks.
var (
	_ Engine  = (*MockEngine)(nil)
	_ Session = (*MockSession)(nil)
)
