// Package tts provides a unified interface for text-to-speech providers.
//
// The pipeline synthesizes one short phrase per voice interaction. Providers
// are stateless between calls; the voice is read from the preference store by
// the caller and passed in the job, so a preference change applies to the
// next synthesis without reconstructing the provider.
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts the job's text to audio, returning the complete
	// audio buffer in the requested format.
	Synthesize(ctx context.Context, job Job) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Job is one synthesis request. Ephemeral: it exists only for the duration
// of the call.
type Job struct {
	// Text is the phrase to speak.
	Text string

	// Voice is the voice ID. Empty uses the provider default.
	Voice string

	// Format is the output encoding. Empty uses the provider default.
	Format Encoding

	// Speed is the playback speed multiplier. Zero means 1.0.
	Speed float64
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request duration in milliseconds.
	LatencyMs int64

	// Duration is the estimated playback duration, when known.
	Duration time.Duration
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the container/codec.
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats.
	BitDepth int
}

// Encoding represents audio output formats.
// These match the OpenAI speech endpoint's response_format options.
type Encoding string

const (
	// EncodingWAV is PCM16 in a RIFF container. Default: the playback
	// session decodes the header to recover the sample rate.
	EncodingWAV Encoding = "wav"

	// EncodingPCM is headerless 24kHz mono PCM16.
	EncodingPCM Encoding = "pcm"

	// EncodingMP3 is MP3 at 44.1kHz.
	EncodingMP3 Encoding = "mp3"
)

// formatFor returns the AudioFormat metadata for an encoding.
func formatFor(enc Encoding) AudioFormat {
	switch enc {
	case EncodingPCM:
		return AudioFormat{Encoding: enc, SampleRate: 24000, Channels: 1, BitDepth: 16}
	case EncodingMP3:
		return AudioFormat{Encoding: enc, SampleRate: 44100, Channels: 1}
	default:
		return AudioFormat{Encoding: EncodingWAV, SampleRate: 24000, Channels: 1, BitDepth: 16}
	}
}
