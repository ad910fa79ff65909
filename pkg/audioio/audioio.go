// Package audioio provides audio capture and playback for the voice pipeline.
//
// Two backends are available: PortAudio for real microphone and speaker
// devices, and Mock for CI and tests without hardware. Both sides speak
// fixed-size PCM16 frames.
package audioio

import (
	"context"
	"io"
)

// Frame is a fixed-size chunk of PCM16 audio.
type Frame struct {
	// Samples contains PCM16 audio samples (little-endian when serialized).
	Samples []int16

	// SampleRate is the sample rate of this frame in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// Bytes returns the frame as raw little-endian PCM16 bytes.
func (f *Frame) Bytes() []byte {
	return SamplesToBytes(f.Samples)
}

// FromBytes populates the frame from raw PCM16 bytes.
func (f *Frame) FromBytes(data []byte, sampleRate, channels int) {
	f.SampleRate = sampleRate
	f.Channels = channels
	f.Samples = BytesToSamples(data)
}

// Duration returns the playback duration of this frame in seconds.
func (f *Frame) Duration() float64 {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate*f.Channels)
}

// Source captures audio from a microphone.
type Source interface {
	// Start begins audio capture. Frames become available on Stream.
	Start(ctx context.Context) error

	// Stop halts capture. Safe to call multiple times.
	Stop() error

	// Stream returns a channel receiving captured frames.
	// The channel is closed when the source is stopped.
	Stream() <-chan Frame

	// Config returns the capture configuration.
	Config() Config

	// Name returns the backend name (e.g. "portaudio", "mock").
	Name() string

	// Close releases all resources. The source cannot be restarted after.
	io.Closer
}

// Sink plays audio to a speaker.
type Sink interface {
	// Start begins playback. Frames are written via Write.
	Start(ctx context.Context) error

	// Stop halts playback. Safe to call multiple times.
	Stop() error

	// Write queues a frame for playback. May block when the device
	// buffer is full.
	Write(ctx context.Context, frame Frame) error

	// Flush blocks until all queued audio has been played.
	Flush(ctx context.Context) error

	// Clear discards queued audio immediately. Use to interrupt playback.
	Clear() error

	// Config returns the playback configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}
