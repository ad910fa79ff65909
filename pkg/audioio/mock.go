package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or a sine wave).
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	stopCh   chan struct{}

	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan Frame, 16),
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating frames.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan Frame, 16)

	go m.generateLoop(ctx, m.stopCh, m.streamCh)
	return nil
}

// generateLoop owns out and closes it on exit, so Stop never races a send.
func (m *MockSource) generateLoop(ctx context.Context, stop <-chan struct{}, out chan Frame) {
	ticker := time.NewTicker(m.cfg.FrameDuration)
	defer ticker.Stop()
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			frame := m.generateFrame()
			select {
			case out <- frame:
			default:
				// Buffer full, drop the frame.
			}
		}
	}
}

func (m *MockSource) generateFrame() Frame {
	size := m.cfg.FrameSize()
	samples := make([]int16, size*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < size; i++ {
			v := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			s := int16(v * 32767)
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = s
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return Frame{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// Stop halts generation. Safe to call multiple times.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	return nil
}

// Stream returns the frame channel.
func (m *MockSource) Stream() <-chan Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Started reports whether the source is generating frames.
func (m *MockSource) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// MockSink is a mock audio sink for testing.
// It retains written frames for inspection instead of playing them.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	// WriteDelay simulates device playback time per frame.
	WriteDelay time.Duration

	mu      sync.Mutex
	running bool
	closed  bool
	frames  []Frame
	cleared int
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start begins accepting frames.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts playback. Safe to call multiple times.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write records the frame.
func (m *MockSink) Write(ctx context.Context, frame Frame) error {
	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	m.frames = append(m.frames, frame)
	delay := m.WriteDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// Flush is immediate for the mock.
func (m *MockSink) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Clear discards recorded frames and counts the interruption.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
	m.cleared++
	return nil
}

// Frames returns a copy of all frames written since the last Clear.
func (m *MockSink) Frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.frames))
	copy(out, m.frames)
	return out
}

// ClearCount returns how many times Clear was called.
func (m *MockSink) ClearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

// Started reports whether the sink is accepting frames.
func (m *MockSink) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Compile-time interface checks.
var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
