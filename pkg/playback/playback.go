// Package playback drives speaker output of synthesized audio. A session
// owns the playback side of the hardware guard for exactly the duration of
// one clip: acquired on Play, released on completion, Stop, or decode
// failure.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vizzilabs/go-vizzi/pkg/audioio"
	"github.com/vizzilabs/go-vizzi/pkg/hardware"
)

// ErrDecode is returned when audio bytes cannot be decoded for playback.
var ErrDecode = errors.New("playback: decode error")

// Session plays one clip at a time through an audio sink.
type Session struct {
	guard  *hardware.Guard
	sink   audioio.Sink
	logger *slog.Logger

	// OnComplete fires when a clip finishes playing naturally. It does not
	// fire on Stop. May be invoked from the playback goroutine.
	OnComplete func()

	mu      sync.Mutex
	current string // attempt id, empty when idle
	handle  *hardware.Handle
	cancel  context.CancelFunc
}

// NewSession creates a playback session over the guard and sink.
func NewSession(guard *hardware.Guard, sink audioio.Sink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		guard:  guard,
		sink:   sink,
		logger: logger.With("component", "playback"),
	}
}

// Play decodes the audio bytes and starts speaker playback. The hardware
// slot is acquired before decoding; a decode failure releases it and returns
// ErrDecode, leaving the device free. Completion is reported via OnComplete.
func (s *Session) Play(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" {
		s.stopLocked()
	}

	handle, err := s.guard.AcquirePlayback()
	if err != nil {
		return err
	}

	dec, err := decodeAudio(data)
	if err != nil {
		s.guard.Release(handle)
		return err
	}

	frames := s.frames(dec)

	playCtx, cancel := context.WithCancel(ctx)
	if err := s.sink.Start(playCtx); err != nil {
		cancel()
		s.guard.Release(handle)
		return fmt.Errorf("playback: start sink: %w", err)
	}

	id := uuid.New().String()
	s.current = id
	s.handle = handle
	s.cancel = cancel

	go s.run(playCtx, id, frames)

	s.logger.Info("playback started",
		"samples", len(dec.samples),
		"rate", dec.sampleRate,
		"frames", len(frames),
	)
	return nil
}

// frames adapts decoded audio to the sink's configuration and splits it into
// fixed-duration frames.
func (s *Session) frames(dec *decoded) []audioio.Frame {
	cfg := s.sink.Config()

	samples := dec.samples
	if dec.channels == 2 {
		samples = audioio.StereoToMono(samples)
	}
	samples = audioio.Resample(samples, dec.sampleRate, cfg.SampleRate)

	size := cfg.FrameSize()
	var out []audioio.Frame
	for off := 0; off < len(samples); off += size {
		end := off + size
		if end > len(samples) {
			end = len(samples)
		}
		out = append(out, audioio.Frame{
			Samples:    samples[off:end],
			SampleRate: cfg.SampleRate,
			Channels:   1,
		})
	}
	return out
}

// run writes frames to the sink and reports completion. A superseded attempt
// detects it on finish and does nothing.
func (s *Session) run(ctx context.Context, id string, frames []audioio.Frame) {
	for _, f := range frames {
		if ctx.Err() != nil {
			return
		}
		if err := s.sink.Write(ctx, f); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("sink write failed", "err", err)
			}
			break
		}
	}
	if ctx.Err() == nil {
		_ = s.sink.Flush(ctx)
	}

	s.mu.Lock()
	if s.current != id {
		s.mu.Unlock()
		return
	}
	s.current = ""
	handle := s.handle
	cancel := s.cancel
	s.handle = nil
	s.cancel = nil
	s.mu.Unlock()

	_ = s.sink.Stop()
	s.guard.Release(handle)
	if cancel != nil {
		cancel()
	}

	s.logger.Info("playback complete")
	if cb := s.OnComplete; cb != nil {
		cb()
	}
}

// Stop immediately halts playback, discards buffered audio, and releases the
// hardware slot. Safe to call when nothing is playing.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.current == "" {
		return
	}
	s.current = ""
	handle := s.handle
	cancel := s.cancel
	s.handle = nil
	s.cancel = nil

	if cancel != nil {
		cancel()
	}
	_ = s.sink.Clear()
	_ = s.sink.Stop()
	s.guard.Release(handle)

	s.logger.Info("playback stopped")
}

// Playing reports whether a clip is currently playing.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != ""
}
