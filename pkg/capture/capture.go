// Package capture drives microphone capture and feeds audio frames to a
// streaming transcription engine, emitting transcript updates as they arrive.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vizzilabs/go-vizzi/pkg/audioio"
	"github.com/vizzilabs/go-vizzi/pkg/hardware"
	"github.com/vizzilabs/go-vizzi/pkg/transcribe"
)

// Errors returned by Start.
var (
	// ErrPermissionDenied is returned when microphone or speech
	// recognition permission is refused. No hardware is acquired.
	ErrPermissionDenied = errors.New("capture: permission denied")

	// ErrAlreadyActive is returned when Start is called on a running session.
	ErrAlreadyActive = errors.New("capture: session already active")
)

// StopReason records why a capture session ended.
type StopReason int

const (
	// UserCancelled means the user explicitly stopped capture.
	UserCancelled StopReason = iota

	// EngineFinal means the engine signalled end of speech.
	EngineFinal

	// EngineError means the transcription stream failed.
	EngineError
)

// String returns a human-readable name for the reason.
func (r StopReason) String() string {
	switch r {
	case UserCancelled:
		return "user_cancelled"
	case EngineFinal:
		return "engine_final"
	case EngineError:
		return "engine_error"
	default:
		return "unknown"
	}
}

// Permissions reports whether the two required grants are present.
// Both microphone and speech recognition must be granted before any
// hardware is touched.
type Permissions interface {
	Microphone() error
	Speech() error
}

// StaticPermissions is a fixed-grant Permissions implementation.
type StaticPermissions struct {
	MicGranted    bool
	SpeechGranted bool
}

// Microphone implements Permissions.
func (p StaticPermissions) Microphone() error {
	if !p.MicGranted {
		return fmt.Errorf("%w: microphone", ErrPermissionDenied)
	}
	return nil
}

// Speech implements Permissions.
func (p StaticPermissions) Speech() error {
	if !p.SpeechGranted {
		return fmt.Errorf("%w: speech recognition", ErrPermissionDenied)
	}
	return nil
}

// Granted returns permissions with both grants present.
func Granted() Permissions {
	return StaticPermissions{MicGranted: true, SpeechGranted: true}
}

// Session drives one or more sequential capture attempts against the
// microphone. At most one attempt is active at a time.
type Session struct {
	guard  *hardware.Guard
	source audioio.Source
	engine transcribe.Engine
	perms  Permissions
	logger *slog.Logger

	mu      sync.Mutex
	active  bool
	handle  *hardware.Handle
	stream  transcribe.Session
	cancel  context.CancelFunc
	stopped bool
}

// NewSession creates a capture session over the given collaborators.
func NewSession(guard *hardware.Guard, source audioio.Source, engine transcribe.Engine, perms Permissions, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		guard:  guard,
		source: source,
		engine: engine,
		perms:  perms,
		logger: logger.With("component", "capture"),
	}
}

// Start begins capturing and streaming to the transcription engine.
// Both permissions are checked before any hardware acquisition; a refusal
// fails with ErrPermissionDenied and leaves the device untouched.
//
// onResult receives transcript updates for this attempt. Updates may arrive
// on a different goroutine than the caller's; the consumer must serialize
// their application. Each update replaces the prior one.
func (s *Session) Start(ctx context.Context, locale string, onResult func(transcribe.Result)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrAlreadyActive
	}

	if err := s.perms.Microphone(); err != nil {
		return err
	}
	if err := s.perms.Speech(); err != nil {
		return err
	}

	handle, err := s.guard.AcquireCapture()
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := s.engine.Open(streamCtx, locale)
	if err != nil {
		cancel()
		s.guard.Release(handle)
		return err
	}

	if err := s.source.Start(streamCtx); err != nil {
		stream.Cancel()
		cancel()
		s.guard.Release(handle)
		return fmt.Errorf("capture: start source: %w", err)
	}

	s.active = true
	s.stopped = false
	s.handle = handle
	s.stream = stream
	s.cancel = cancel

	go s.pumpAudio(streamCtx, stream)
	go s.pumpResults(stream, onResult)

	s.logger.Info("capture started", "locale", locale, "source", s.source.Name())
	return nil
}

// pumpAudio forwards captured frames to the engine until the source stops.
func (s *Session) pumpAudio(ctx context.Context, stream transcribe.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.source.Stream():
			if !ok {
				return
			}
			if err := stream.WriteAudio(frame); err != nil {
				if !errors.Is(err, transcribe.ErrSessionClosed) {
					s.logger.Warn("audio write failed", "err", err)
				}
				return
			}
		}
	}
}

// pumpResults forwards transcript updates to the consumer.
func (s *Session) pumpResults(stream transcribe.Session, onResult func(transcribe.Result)) {
	for r := range stream.Results() {
		if onResult != nil {
			onResult(r)
		}
	}
}

// Stop ends the active capture attempt: stops the audio tap, ends the
// transcription stream, releases the hardware guard, and cancels the
// recognition context. Idempotent: concurrent or repeated calls from
// different trigger paths (engine end-of-speech vs explicit user stop)
// release the hardware exactly once and never double-fire callbacks.
func (s *Session) Stop(reason StopReason) {
	s.mu.Lock()
	if !s.active || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.active = false
	handle := s.handle
	stream := s.stream
	cancel := s.cancel
	s.handle = nil
	s.stream = nil
	s.cancel = nil
	s.mu.Unlock()

	_ = s.source.Stop()
	if stream != nil {
		stream.Cancel()
	}
	s.guard.Release(handle)
	if cancel != nil {
		cancel()
	}

	s.logger.Info("capture stopped", "reason", reason.String())
}

// Active reports whether a capture attempt is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
