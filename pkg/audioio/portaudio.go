package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paInitMu   sync.Mutex
	paInitRefs int
)

// paAcquire initializes PortAudio on first use and reference-counts callers
// so Terminate runs only when the last device closes.
func paAcquire() error {
	paInitMu.Lock()
	defer paInitMu.Unlock()

	if paInitRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("audioio: initialize portaudio: %w", err)
		}
	}
	paInitRefs++
	return nil
}

func paRelease() {
	paInitMu.Lock()
	defer paInitMu.Unlock()

	paInitRefs--
	if paInitRefs == 0 {
		_ = portaudio.Terminate()
	}
}

// PortAudioSource captures microphone audio via PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	buf      []int16
	streamCh chan Frame
	stopCh   chan struct{}
	running  bool
	closed   bool
}

// NewPortAudioSource opens the default input device.
func NewPortAudioSource(cfg Config, logger *slog.Logger) (*PortAudioSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := paAcquire(); err != nil {
		return nil, err
	}

	s := &PortAudioSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.source"),
		buf:    make([]int16, cfg.FrameSize()*cfg.Channels),
	}

	stream, err := portaudio.OpenDefaultStream(
		cfg.Channels, 0, float64(cfg.SampleRate), cfg.FrameSize(), s.buf)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("audioio: open input stream: %w", err)
	}
	s.stream = stream

	return s, nil
}

// Start begins capture and launches the frame pump.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("audioio: start input stream: %w", err)
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan Frame, 16)
	go s.pump(ctx, s.stopCh, s.streamCh)

	s.logger.Info("capture started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// pump owns out and closes it on exit, so Stop never races a send.
func (s *PortAudioSource) pump(ctx context.Context, stop <-chan struct{}, out chan Frame) {
	defer close(out)

	for {
		if err := s.stream.Read(); err != nil {
			select {
			case <-stop:
				// Stop aborted the device read.
			default:
				s.logger.Warn("input stream read failed", "err", err)
				s.Stop()
			}
			return
		}

		samples := make([]int16, len(s.buf))
		copy(samples, s.buf)
		frame := Frame{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}

		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-stop:
			return
		case out <- frame:
		default:
			// Consumer behind, drop the frame rather than stall the device.
		}
	}
}

// Stop halts capture. Safe to call multiple times. The frame channel is
// closed by the pump goroutine, not here.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("audioio: stop input stream: %w", err)
	}
	s.logger.Info("capture stopped")
	return nil
}

// Stream returns the captured frame channel.
func (s *PortAudioSource) Stream() <-chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the capture configuration.
func (s *PortAudioSource) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSource) Name() string { return "portaudio" }

// Close releases the stream and the PortAudio reference.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()

	err := s.stream.Close()
	paRelease()
	if err != nil {
		return fmt.Errorf("audioio: close input stream: %w", err)
	}
	return nil
}

// PortAudioSink plays audio through the default output device.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	pending []int16
	running bool
	closed  bool
}

// NewPortAudioSink opens the default output device.
func NewPortAudioSink(cfg Config, logger *slog.Logger) (*PortAudioSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := paAcquire(); err != nil {
		return nil, err
	}

	k := &PortAudioSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.sink"),
		buf:    make([]int16, cfg.FrameSize()*cfg.Channels),
	}

	stream, err := portaudio.OpenDefaultStream(
		0, cfg.Channels, float64(cfg.SampleRate), cfg.FrameSize(), k.buf)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("audioio: open output stream: %w", err)
	}
	k.stream = stream

	return k, nil
}

// Start begins playback.
func (k *PortAudioSink) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return io.ErrClosedPipe
	}
	if k.running {
		return nil
	}

	if err := k.stream.Start(); err != nil {
		return fmt.Errorf("audioio: start output stream: %w", err)
	}
	k.running = true
	k.logger.Info("playback started", "sample_rate", k.cfg.SampleRate)
	return nil
}

// Write queues a frame and pushes full device buffers to the hardware.
func (k *PortAudioSink) Write(ctx context.Context, frame Frame) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed || !k.running {
		return io.ErrClosedPipe
	}

	samples := frame.Samples
	if frame.SampleRate != k.cfg.SampleRate {
		samples = Resample(samples, frame.SampleRate, k.cfg.SampleRate)
	}
	k.pending = append(k.pending, samples...)

	frameLen := len(k.buf)
	for len(k.pending) >= frameLen {
		if err := ctx.Err(); err != nil {
			return err
		}
		copy(k.buf, k.pending[:frameLen])
		k.pending = k.pending[frameLen:]
		if err := k.stream.Write(); err != nil {
			return fmt.Errorf("audioio: write output stream: %w", err)
		}
	}
	return nil
}

// Flush pads the remainder with silence and plays it out.
func (k *PortAudioSink) Flush(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return nil
	}

	if len(k.pending) > 0 {
		for i := range k.buf {
			k.buf[i] = 0
		}
		copy(k.buf, k.pending)
		k.pending = k.pending[:0]
		if err := k.stream.Write(); err != nil {
			return fmt.Errorf("audioio: flush output stream: %w", err)
		}
	}
	return nil
}

// Clear discards queued audio immediately.
func (k *PortAudioSink) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = k.pending[:0]
	return nil
}

// Stop halts playback. Safe to call multiple times.
func (k *PortAudioSink) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return nil
	}
	k.running = false
	k.pending = k.pending[:0]

	if err := k.stream.Abort(); err != nil {
		return fmt.Errorf("audioio: stop output stream: %w", err)
	}
	k.logger.Info("playback stopped")
	return nil
}

// Config returns the playback configuration.
func (k *PortAudioSink) Config() Config { return k.cfg }

// Name returns "portaudio".
func (k *PortAudioSink) Name() string { return "portaudio" }

// Close releases the stream and the PortAudio reference.
func (k *PortAudioSink) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	k.Stop()

	err := k.stream.Close()
	paRelease()
	if err != nil {
		return fmt.Errorf("audioio: close output stream: %w", err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ Source = (*PortAudioSource)(nil)
	_ Sink   = (*PortAudioSink)(nil)
)
